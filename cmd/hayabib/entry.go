package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/codec"
)

func newEntryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entry",
		Short:   "Read and edit single entries of a collection",
		GroupID: "entries",
		Long: `Entry subcommands take and print single-entry YAML blocks:

  goedel1931:
    type: article
    title: On Formally Undecidable Propositions`,
	}
	cmd.AddCommand(newEntryGetCmd(a), newEntryAddCmd(a), newEntryUpdateCmd(a), newEntryRmCmd(a))
	return cmd
}

func newEntryGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <key>",
		Short: "Print one entry as a YAML block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.entries.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			block, err := codec.SerializeEntry(args[1], e)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(block)
			return err
		},
	}
}

func newEntryAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <id> [file]",
		Short: "Add an entry read from a YAML block (stdin when no file is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, e, err := readEntryBlock(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			if err := a.entries.Add(cmd.Context(), args[0], key, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s\n", key, args[0])
			return nil
		},
	}
}

func newEntryUpdateCmd(a *app) *cobra.Command {
	var oldKey string
	cmd := &cobra.Command{
		Use:   "update <id> [file]",
		Short: "Replace an entry with a YAML block, optionally renaming it",
		Long: `Update stores the block under its key. With --old-key, the entry at that key
is replaced and renamed in place, unless the block's key is already taken.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, e, err := readEntryBlock(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			if err := a.entries.Update(cmd.Context(), args[0], key, e, oldKey); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s in %s\n", key, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&oldKey, "old-key", "", "key of the entry being replaced")
	return cmd
}

func newEntryRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id> <key>",
		Aliases: []string{"delete"},
		Short:   "Remove an entry",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.entries.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[1], args[0])
			return nil
		},
	}
}

func readEntryBlock(in io.Reader, args []string) (string, *hayabib.Entry, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", nil, fmt.Errorf("read entry: %w", err)
	}
	return codec.DeserializeEntry(data)
}

func joinKeys(keys []string) string { return strings.Join(keys, ", ") }

// displayPath shows the document root as "/" rather than "".
func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// printIssues lists the issues carried by err, one per line.
func printIssues(w io.Writer, err error) {
	iss, ok := hayabib.AsIssues(err)
	if !ok {
		return
	}
	for _, is := range iss {
		fmt.Fprintf(w, "  %s: %s\n", displayPath(is.Path), is.Message)
	}
}
