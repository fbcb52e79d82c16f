package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/codec"
	"github.com/reoring/hayabib/store"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List stored collections",
		GroupID: "collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cs, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tENTRIES\tUPDATED")
			for _, c := range cs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.Metadata.ID, c.Metadata.Title,
					c.EnsureEntries().Len(), formatTime(c.Metadata.UpdatedAt))
			}
			return w.Flush()
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "show <id>",
		Short:   "Show a collection and its entries",
		GroupID: "collections",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			md := c.Metadata
			fmt.Fprintf(out, "%s: %s\n", md.ID, md.Title)
			if md.Description != "" {
				fmt.Fprintln(out, md.Description)
			}
			fmt.Fprintf(out, "created %s, updated %s\n\n", formatTime(md.CreatedAt), formatTime(md.UpdatedAt))
			return printEntries(out, c.Entries)
		},
	}
}

func printEntries(out io.Writer, m *hayabib.EntryMap) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE\tTITLE\tAUTHOR")
	for key, e := range m.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key, hayabib.EntryTypeLabel(e.EffectiveType()),
			e.Title.Display(), e.Author.Display())
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

type importFlags struct {
	id, title, description string
	format                 string
	replace                bool
}

func newImportCmd(a *app) *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:     "import <file>",
		Short:   "Import a bibliography file as a collection",
		GroupID: "collections",
		Long: `Import reads a YAML, JSON or TOML bibliography (use - for stdin), validates
it against the schema and stores it as collection --id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readEntries(cmd.InOrStdin(), args[0], f.format)
			if err != nil {
				return err
			}
			title := f.title
			if title == "" {
				title = f.id
			}
			c := &hayabib.Collection{
				Metadata: hayabib.CollectionMetadata{ID: f.id, Title: title, Description: f.description},
				Entries:  m,
			}
			if f.replace {
				err = a.store.Replace(cmd.Context(), c)
			} else {
				err = a.store.Create(cmd.Context(), c)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries into %s\n", m.Len(), f.id)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.id, "id", "", "collection id")
	cmd.Flags().StringVar(&f.title, "title", "", "collection title (default: the id)")
	cmd.Flags().StringVar(&f.description, "description", "", "collection description")
	cmd.Flags().StringVar(&f.format, "format", "", "input format: yaml, json, toml (default: from the file extension)")
	cmd.Flags().BoolVar(&f.replace, "replace", false, "overwrite an existing collection")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// readEntries decodes path ("-" for in) as format, detecting the format
// from the extension when empty. Stdin defaults to YAML.
func readEntries(in io.Reader, path, format string) (*hayabib.EntryMap, error) {
	f, err := resolveFormat(path, format)
	if err != nil {
		return nil, err
	}
	var data []byte
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return codec.Decode(f, data)
}

func resolveFormat(path, format string) (codec.Format, error) {
	switch {
	case format != "":
		return codec.ParseFormat(format)
	case path == "-" || path == "":
		return codec.FormatYAML, nil
	default:
		return codec.DetectFormat(path)
	}
}

type exportFlags struct {
	entry     string
	format    string
	output    string
	clipboard bool
}

func newExportCmd(a *app) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:     "export <id>",
		Short:   "Export a collection or one of its entries",
		GroupID: "collections",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.output != "" && f.clipboard {
				return errors.New("--output and --clipboard are mutually exclusive")
			}
			c, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m := c.Entries
			if f.entry != "" {
				e, ok := m.Get(f.entry)
				if !ok {
					return fmt.Errorf("entry %q in %q: %w", f.entry, args[0], hayabib.ErrNotFound)
				}
				m = hayabib.NewEntryMap()
				m.Set(f.entry, e)
			}
			format, err := resolveFormat(f.output, f.format)
			if err != nil {
				return err
			}
			data, err := codec.Encode(format, m)
			if err != nil {
				return err
			}
			switch {
			case f.clipboard:
				if err := codec.CopyToClipboard(data); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "copied %d entries to the clipboard\n", m.Len())
				return nil
			case f.output != "":
				return codec.WriteFile(f.output, data)
			default:
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
		},
	}
	cmd.Flags().StringVar(&f.entry, "entry", "", "export only this entry key")
	cmd.Flags().StringVar(&f.format, "format", "", "output format: yaml, json, biblatex (default: from --output, else yaml)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&f.clipboard, "clipboard", false, "copy to the system clipboard instead of stdout")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a collection",
		GroupID: "collections",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newRenameCmd(a *app) *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:     "rename <old-id> <new-id>",
		Short:   "Change a collection's id and optionally its title",
		GroupID: "collections",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			c.Metadata.ID = args[1]
			if cmd.Flags().Changed("title") {
				c.Metadata.Title = title
			}
			if cmd.Flags().Changed("description") {
				c.Metadata.Description = description
			}
			if err := a.store.Rename(ctx, args[0], c, store.Prevalidated()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		format string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:     "validate <file>",
		Short:   "Validate a bibliography file without storing it",
		GroupID: "collections",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !watch {
				return a.validateFile(cmd, args[0], format)
			}
			if args[0] == "-" {
				return errors.New("--watch needs a file")
			}
			return watchFile(cmd.Context(), args[0], func() {
				if err := a.validateFile(cmd, args[0], format); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%v\n", err)
				}
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format: yaml, json, toml (default: from the file extension)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "validate again whenever the file changes")
	return cmd
}

// validateFile prints one line per issue and fails when the file is invalid.
func (a *app) validateFile(cmd *cobra.Command, path, format string) error {
	m, err := readEntries(cmd.InOrStdin(), path, format)
	if err != nil {
		return err
	}
	res, err := a.validators.ValidateEntries(cmd.Context(), m)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Valid {
		fmt.Fprintf(out, "%s: %d entries, valid\n", path, m.Len())
		return nil
	}
	for _, is := range res.Errors {
		fmt.Fprintf(out, "%s: %s\n", displayPath(is.Path), is.Message)
	}
	return fmt.Errorf("%s: %d issues", path, len(res.Errors))
}

func newDuplicatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "duplicates <id>",
		Short:   "Report entries that look like the same work",
		GroupID: "entries",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.entries.Duplicates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "no duplicates")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REASON\tVALUE\tKEYS")
			for _, g := range groups {
				fmt.Fprintf(w, "%s\t%s\t%s\n", g.Reason, g.Value, joinKeys(g.Keys))
			}
			return w.Flush()
		},
	}
}
