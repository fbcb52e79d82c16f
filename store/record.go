package store

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/codec"
)

// record is the persisted form of a collection. Entries go through the codec
// so that union shapes and key order survive storage.
type record struct {
	Metadata hayabib.CollectionMetadata `json:"metadata"`
	Entries  json.RawMessage            `json:"entries"`
}

// EncodeRecord serializes c for a KV.
func EncodeRecord(c *hayabib.Collection) ([]byte, error) {
	entries, err := codec.SerializeJSON(c.EnsureEntries())
	if err != nil {
		return nil, fmt.Errorf("encode entries of %q: %w", c.Metadata.ID, err)
	}
	return json.Marshal(record{Metadata: c.Metadata, Entries: entries})
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(data []byte) (*hayabib.Collection, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: record: %w", hayabib.ErrMalformedDocument, err)
	}
	var (
		m   *hayabib.EntryMap
		err error
	)
	if len(r.Entries) == 0 {
		m = hayabib.NewEntryMap()
	} else if m, err = codec.DeserializeJSON(r.Entries); err != nil {
		return nil, fmt.Errorf("record %q: %w", r.Metadata.ID, err)
	}
	return &hayabib.Collection{Metadata: r.Metadata, Entries: m}, nil
}
