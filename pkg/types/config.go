package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// HTTPConfig holds shared HTTP settings for requests to the annotation server.
type HTTPConfig struct {
	// Timeout is the per-attempt HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "annotator/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ServerConfig identifies the annotation server and the annotator. The
// fields are external inputs and are only checked for presence.
type ServerConfig struct {
	HTTPConfig `yaml:",inline"`

	// URL is the server base address (e.g. "https://annotate.example.org").
	URL string `json:"server_url" yaml:"server_url" validate:"required,url"`

	// CampaignID selects the campaign.
	CampaignID string `json:"campaign_id" yaml:"campaign_id" validate:"required"`

	// UserID identifies the annotator within the campaign.
	UserID string `json:"user_id" yaml:"user_id" validate:"required"`

	// Token is an optional access token, sent when present.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Validate reports every missing or malformed field in one error.
func (c ServerConfig) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating server config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s is required", fe.Field()))
		default:
			problems = append(problems, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid server config: %s", strings.Join(problems, "; "))
}

// SessionConfig holds client-side annotation settings.
type SessionConfig struct {
	// WordLevel snaps new spans outward to word boundaries.
	WordLevel bool `json:"word_level" yaml:"word_level"`

	// ExemptMissing disables snapping when a span starts on the
	// "[missing]" sentinel unit (default true).
	ExemptMissing bool `json:"exempt_missing" yaml:"exempt_missing"`

	// Frozen opens items view-only: no edits and no submission.
	Frozen bool `json:"frozen" yaml:"frozen"`
}

// JournalConfig holds settings for the local submission journal.
type JournalConfig struct {
	// Dir is the directory holding journal.db and exports (default "journal").
	Dir string `json:"dir" yaml:"dir"`

	// Disabled turns the journal off.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// ClientConfig groups every setting of the annotator client.
type ClientConfig struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Session SessionConfig `json:"session" yaml:"session"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
}
