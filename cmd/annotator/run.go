// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/annotator/internal/console"
	"github.com/pdiddy/annotator/internal/session"
	"github.com/pdiddy/annotator/internal/span"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Annotate the campaign interactively",
	Long: `Run opens an interactive session: the next unfinished item is fetched
and shown, and commands on standard input mark spans, set scores and
advance. Type help inside the session for the command list.

Failed requests are retried with growing delays. Responses that cannot be
submitted are kept as local drafts and restored the next time the item is
opened.`,
	RunE: runSession,
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg := clientConfig()

	conn, err := newConnector(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	conn.Policy.Notify = func(attempt int, delay time.Duration, err error) {
		logger.Warn("request failed, retrying", "attempt", attempt, "retry_in", delay, "error", err)
		fmt.Fprintf(out, "connection problem, retrying in %s (attempt %d)\n", delay, attempt)
	}
	defer conn.Wait()

	opts := session.Options{
		Policy: span.Policy{
			WordLevel:     cfg.Session.WordLevel,
			ExemptMissing: cfg.Session.ExemptMissing,
		},
		Frozen:   cfg.Session.Frozen,
		Taxonomy: span.MQM,
		Logger:   logger,
	}
	store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts.Recorder = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := session.New(conn, opts)
	return console.New(s, cmd.InOrStdin(), out).Run(ctx)
}

func init() {
	runCmd.Flags().Bool("word-level", false, "snap new spans to whole words")
	runCmd.Flags().Bool("exempt-missing", true, "do not snap spans that touch the missing unit")
	runCmd.Flags().Bool("frozen", false, "view items without editing or submitting")

	viper.BindPFlag("word_level", runCmd.Flags().Lookup("word-level"))
	viper.BindPFlag("exempt_missing", runCmd.Flags().Lookup("exempt-missing"))
	viper.BindPFlag("frozen", runCmd.Flags().Lookup("frozen"))

	rootCmd.AddCommand(runCmd)
}
