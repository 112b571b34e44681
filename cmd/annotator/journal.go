// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/annotator/internal/journal"
	"github.com/pdiddy/annotator/pkg/types"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the local submission journal",
	Long: `Journal reads the local SQLite record of every submission attempt made
by run, including attempts the server never acknowledged.`,
}

// --- list subcommand ---

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded submission attempts, newest first",
	RunE:  runJournalList,
}

func runJournalList(cmd *cobra.Command, args []string) error {
	store, err := journalStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	entries, err := store.List(ctx, queryOptsFromFlags(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No submissions recorded.")
	} else {
		fmt.Fprintf(out, "%-36s  %-5s  %-5s  %s\n", "ID", "Item", "Acked", "Time")
		for _, e := range entries {
			fmt.Fprintf(out, "%-36s  %-5d  %-5t  %s\n", e.ID, e.ItemIndex, e.Acked, e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
	}

	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nattempts: %d, acknowledged: %d, items: %d, drafts: %d\n", st.Attempts, st.Acked, st.Items, st.Drafts)
	return nil
}

// --- export subcommand ---

var journalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the journal to YAML or JSON",
	Long: `Export writes the recorded submissions, oldest first, to export.yaml or
export.json in the journal directory.`,
	RunE: runJournalExport,
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("format")
	format, err := journal.ParseFormat(name)
	if err != nil {
		return err
	}

	store, err := journalStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd)
	var path string
	switch format {
	case journal.FormatJSON:
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		path, err = store.ExportYAML(context.Background(), opts)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

func journalStore() (*journal.Store, error) {
	cfg := clientConfig()
	if cfg.Server.CampaignID == "" || cfg.Server.UserID == "" {
		return nil, fmt.Errorf("campaign-id and user-id are required to open the journal")
	}
	return journal.NewStore(cfg.Journal, cfg.Server.CampaignID, cfg.Server.UserID, logger)
}

func queryOptsFromFlags(cmd *cobra.Command) journal.QueryOptions {
	var opts journal.QueryOptions
	if cmd.Flags().Changed("item") {
		i, _ := cmd.Flags().GetInt("item")
		opts.ItemIndex = types.Int(i)
	}
	opts.AckedOnly, _ = cmd.Flags().GetBool("acked")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	return opts
}

func init() {
	journalCmd.PersistentFlags().Int("item", 0, "only entries of this item")
	journalCmd.PersistentFlags().Bool("acked", false, "only acknowledged submissions")

	journalListCmd.Flags().Int("limit", 0, "maximum entries (0 = default)")
	journalListCmd.Flags().Bool("json", false, "output entries as JSON")

	journalExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalExportCmd)

	rootCmd.AddCommand(journalCmd)
}
