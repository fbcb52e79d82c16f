package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reoring/hayabib/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schema",
		Short:   "Inspect and refresh the cached Hayagriva schema",
		GroupID: "schema",
	}
	cmd.AddCommand(newSchemaShowCmd(a), newSchemaRefreshCmd(a))
	return cmd
}

func newSchemaShowCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Describe the schema in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := a.cache.Schema(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err := out.Write(doc.Raw())
				return err
			}
			describeSchema(out, doc)
			if _, err := a.validators.Entry(cmd.Context()); err != nil {
				fmt.Fprintf(out, "entry validator: %v\n", err)
			}
			if d := a.validators.Diag(); d != nil && d.HasWarnings() {
				fmt.Fprintln(out, "warnings:")
				for _, w := range d.Warnings() {
					fmt.Fprintf(out, "  %s\n", w)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the schema document itself")
	return cmd
}

func newSchemaRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the schema from the network now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := a.cache.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh %s: %w", a.cfg.Schema.URL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %s (sha256 %s)\n", a.cfg.Schema.URL, shortDigest(doc.Digest()))
			return nil
		},
	}
}

func describeSchema(out io.Writer, doc *schema.Document) {
	fmt.Fprintf(out, "source:      %s\n", doc.Source())
	if !doc.FetchedAt().IsZero() {
		fmt.Fprintf(out, "fetched:     %s\n", formatTime(doc.FetchedAt()))
	}
	fmt.Fprintf(out, "sha256:      %s\n", shortDigest(doc.Digest()))
	if ts := doc.EntryTypes(); len(ts) > 0 {
		fmt.Fprintf(out, "entry types: %s\n", strings.Join(ts, ", "))
	}
	if rs := doc.Roles(); len(rs) > 0 {
		fmt.Fprintf(out, "roles:       %s\n", strings.Join(rs, ", "))
	}
	if p := doc.DatePattern(); p != "" {
		fmt.Fprintf(out, "date:        %s\n", p)
	}
	if p := doc.LanguagePattern(); p != "" {
		fmt.Fprintf(out, "language:    %s\n", p)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
