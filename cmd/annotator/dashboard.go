// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/annotator/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show campaign progress per annotator",
	Long: `Dashboard queries the campaign's progress and prints one line per
annotator: status, items done, first and last activity, time spent and
failed attention checks. Completion tokens are only revealed with
--campaign-token.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg := clientConfig()
	conn, err := newConnector(cfg)
	if err != nil {
		return err
	}

	token, _ := cmd.Flags().GetString("campaign-token")
	data, err := dashboard.Fetch(context.Background(), conn, cfg.Server.CampaignID, token)
	if err != nil {
		return err
	}
	rows := dashboard.Summarize(data)

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Users               []dashboard.Row `json:"users"`
			ValidationThreshold *float64        `json:"validation_threshold"`
		}{rows, data.ValidationThreshold})
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No annotators in this campaign.")
		return nil
	}
	if err := dashboard.WriteTable(out, rows, time.Now()); err != nil {
		return err
	}
	if data.ValidationThreshold != nil {
		fmt.Fprintf(out, "\nvalidation threshold: %g\n", *data.ValidationThreshold)
	}
	return nil
}

func init() {
	dashboardCmd.Flags().String("campaign-token", "", "campaign management token")
	dashboardCmd.Flags().Bool("json", false, "output the summary as JSON")

	rootCmd.AddCommand(dashboardCmd)
}
