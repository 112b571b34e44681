// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/annotator/internal/connector"
	"github.com/pdiddy/annotator/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one item without annotating it",
	Long: `Fetch asks the server for the next unfinished item, or for a given item
with --index, and prints it. Nothing is submitted.`,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	conn, err := newConnector(clientConfig())
	if err != nil {
		return err
	}

	sel := connector.SelectNext
	if cmd.Flags().Changed("index") {
		i, _ := cmd.Flags().GetInt("index")
		sel = connector.SelectIndex(i)
	}

	res, err := conn.Fetch(context.Background(), sel)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatFetchOutput(cmd.OutOrStdout(), res, jsonOutput)
}

func formatFetchOutput(w io.Writer, res types.FetchResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		switch res.Kind {
		case types.FetchOK:
			return enc.Encode(res.Item)
		case types.FetchCompleted:
			return enc.Encode(res.Completion)
		}
	}

	switch res.Kind {
	case types.FetchOK:
		p := res.Item
		fmt.Fprintf(w, "item %d  [%d/%d done]\n", p.Info.ItemIndex, types.Completed(p.Progress), len(p.Progress))
		for seg, item := range p.Items {
			fmt.Fprintf(w, "segment %d\n  src: %s\n", seg, item.Source)
			for cand, text := range item.Candidates.Texts {
				fmt.Fprintf(w, "  tgt %d: %s\n", cand, text)
			}
			if !item.Validation.IsZero() {
				fmt.Fprintf(w, "  (carries %d check(s))\n", len(item.Validation.Rules()))
			}
		}
	case types.FetchCompleted:
		c := res.Completion
		fmt.Fprintf(w, "task completed: %d/%d items\n", types.Completed(c.Progress), len(c.Progress))
		if c.Token != "" {
			fmt.Fprintf(w, "completion token: %s\n", c.Token)
		}
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownStatus, res.Status)
	}
	return nil
}

func init() {
	fetchCmd.Flags().Int("index", 0, "fetch this item instead of the next unfinished one")
	fetchCmd.Flags().Bool("json", false, "output the item as JSON")

	rootCmd.AddCommand(fetchCmd)
}
