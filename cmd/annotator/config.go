// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/annotator/internal/connector"
	"github.com/pdiddy/annotator/internal/journal"
	"github.com/pdiddy/annotator/pkg/types"
)

const defaultTimeout = 30 * time.Second

func init() {
	viper.SetDefault("exempt_missing", true)
	viper.SetDefault("timeout", defaultTimeout)
	viper.SetDefault("journal_dir", "journal")
}

// clientConfig assembles the configuration from flags, environment and
// config file.
func clientConfig() types.ClientConfig {
	return types.ClientConfig{
		Server: types.ServerConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("timeout"),
				UserAgent: "annotator/" + version,
			},
			URL:        viper.GetString("server_url"),
			CampaignID: viper.GetString("campaign_id"),
			UserID:     viper.GetString("user_id"),
			Token:      viper.GetString("token"),
		},
		Session: types.SessionConfig{
			WordLevel:     viper.GetBool("word_level"),
			ExemptMissing: viper.GetBool("exempt_missing"),
			Frozen:        viper.GetBool("frozen"),
		},
		Journal: types.JournalConfig{
			Dir:      viper.GetString("journal_dir"),
			Disabled: viper.GetBool("journal_disabled"),
		},
	}
}

func newConnector(cfg types.ClientConfig) (*connector.Connector, error) {
	return connector.New(cfg.Server, logger)
}

// openJournal returns nil when the journal is disabled.
func openJournal(cfg types.ClientConfig) (*journal.Store, error) {
	if cfg.Journal.Disabled {
		return nil, nil
	}
	return journal.NewStore(cfg.Journal, cfg.Server.CampaignID, cfg.Server.UserID, logger)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
