// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the annotator CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/annotator/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is built from --log-level before any subcommand runs.
var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// rootCmd is the base command for the annotator CLI.
var rootCmd = &cobra.Command{
	Use:   "annotator",
	Short: "Terminal client for human evaluation campaigns",
	Long: `annotator connects to an annotation server and walks one annotator
through a campaign: it fetches items, lets you mark error spans and scores,
runs the campaign's attention checks and submits each response.

Server address, campaign and user come from flags, ANNOTATOR_* environment
variables or annotator.yaml. An access token may also be stored in
.secrets/annotator-token.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(viper.GetString("log_level"))
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		if viper.GetString("token") == "" {
			tok, err := secrets.Token(secrets.DefaultDir, logger)
			if err != nil {
				return err
			}
			if tok != "" {
				viper.Set("token", tok)
				logger.Debug("loaded access token", "from", filepath.Join(secrets.DefaultDir, secrets.TokenKey))
			}
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./annotator.yaml or ~/.config/annotator/annotator.yaml)")
	pf.String("server-url", "", "annotation server base URL")
	pf.String("campaign-id", "", "campaign identifier")
	pf.String("user-id", "", "annotator identifier within the campaign")
	pf.String("token", "", "access token (default: .secrets/annotator-token)")
	pf.Duration("timeout", defaultTimeout, "per-attempt HTTP timeout")
	pf.String("journal-dir", "journal", "directory of the local submission journal")
	pf.Bool("no-journal", false, "do not record submissions locally")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")

	for key, flag := range map[string]string{
		"server_url":       "server-url",
		"campaign_id":      "campaign-id",
		"user_id":          "user-id",
		"token":            "token",
		"timeout":          "timeout",
		"journal_dir":      "journal-dir",
		"journal_disabled": "no-journal",
		"log_level":        "log-level",
	} {
		viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("annotator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "annotator"))
		}
	}

	viper.SetEnvPrefix("ANNOTATOR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
