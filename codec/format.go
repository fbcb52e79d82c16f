package codec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/reoring/hayabib"
)

// Format names a textual bibliography format.
type Format string

const (
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatTOML     Format = "toml"
	FormatBibLaTeX Format = "biblatex"
)

// ParseFormat accepts a format name or a common alias ("yml", "bib").
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	case "biblatex", "bib", "bibtex":
		return FormatBibLaTeX, nil
	default:
		return "", fmt.Errorf("unknown format %q", name)
	}
}

// DetectFormat picks a format from a file extension.
func DetectFormat(filename string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot detect format of %q: no extension", filename)
	}
	return ParseFormat(ext)
}

// Decode parses data in the given format. BibLaTeX is export only.
func Decode(f Format, data []byte) (*hayabib.EntryMap, error) {
	switch f {
	case FormatYAML:
		return Deserialize(data)
	case FormatJSON:
		return DeserializeJSON(data)
	case FormatTOML:
		return DeserializeTOML(data)
	default:
		return nil, fmt.Errorf("format %q cannot be imported", f)
	}
}

// Encode renders m in the given format. TOML is import only.
func Encode(f Format, m *hayabib.EntryMap) ([]byte, error) {
	switch f {
	case FormatYAML:
		return Serialize(m)
	case FormatJSON:
		return SerializeJSON(m)
	case FormatBibLaTeX:
		return []byte(BibLaTeX(m)), nil
	default:
		return nil, fmt.Errorf("format %q cannot be exported", f)
	}
}
