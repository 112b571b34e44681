// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dashboard queries campaign progress and summarizes it per
// annotator.
package dashboard

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"math"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/pdiddy/annotator/internal/connector"
	"github.com/pdiddy/annotator/pkg/types"
)

// Requester posts a JSON request. *connector.Connector implements it.
type Requester interface {
	Request(ctx context.Context, endpoint string, body, out any) error
}

// UserProgress is the server's record of one annotator.
type UserProgress struct {
	Progress  []bool   `json:"progress" yaml:"progress"`
	Time      float64  `json:"time" yaml:"time"`
	TimeStart *float64 `json:"time_start" yaml:"time_start"`
	TimeEnd   *float64 `json:"time_end" yaml:"time_end"`

	// Validations holds one flag per item that carried checks.
	Validations []bool `json:"validations" yaml:"validations"`

	// FailedChecks overrides the count derived from Validations.
	FailedChecks *int `json:"failed_checks,omitempty" yaml:"failed_checks,omitempty"`

	// ThresholdPassed is nil until the annotator completes the task.
	ThresholdPassed *bool `json:"threshold_passed" yaml:"threshold_passed"`

	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Tokens are only revealed to privileged callers.
	TokenCorrect   *string `json:"token_correct" yaml:"token_correct"`
	TokenIncorrect *string `json:"token_incorrect" yaml:"token_incorrect"`
}

// Data is the dashboard answer for one campaign.
type Data struct {
	Users               map[string]UserProgress `json:"data" yaml:"users"`
	ValidationThreshold *float64                `json:"validation_threshold" yaml:"validation_threshold"`
}

// Fetch queries the dashboard of campaignID. An empty token gives the
// unprivileged view.
func Fetch(ctx context.Context, r Requester, campaignID, token string) (*Data, error) {
	body := struct {
		CampaignID string  `json:"campaign_id"`
		Token      *string `json:"token"`
	}{CampaignID: campaignID}
	if token != "" {
		body.Token = &token
	}

	var d Data
	if err := r.Request(ctx, connector.EndpointDashboard, body, &d); err != nil {
		return nil, fmt.Errorf("fetching dashboard for %s: %w", campaignID, err)
	}
	return &d, nil
}

// Status classifies an annotator's activity.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in progress"
	StatusDone       Status = "done"
)

// Row is the summary of one annotator.
type Row struct {
	UserID          string     `json:"user_id" yaml:"user_id"`
	Status          Status     `json:"status" yaml:"status"`
	Completed       int        `json:"completed" yaml:"completed"`
	Total           int        `json:"total" yaml:"total"`
	Time            float64    `json:"time" yaml:"time"`
	FirstActivity   *time.Time `json:"first_activity,omitempty" yaml:"first_activity,omitempty"`
	LastActivity    *time.Time `json:"last_activity,omitempty" yaml:"last_activity,omitempty"`
	FailedChecks    int        `json:"failed_checks" yaml:"failed_checks"`
	ThresholdPassed *bool      `json:"threshold_passed,omitempty" yaml:"threshold_passed,omitempty"`
	URL             string     `json:"url,omitempty" yaml:"url,omitempty"`
}

// Summarize builds one row per annotator, ordered by user ID. An
// annotator with no submitted item is idle, whatever time they spent; one
// who submitted every item is done.
func Summarize(d *Data) []Row {
	rows := make([]Row, 0, len(d.Users))
	for id, u := range d.Users {
		r := Row{
			UserID:          id,
			Completed:       types.Completed(u.Progress),
			Total:           len(u.Progress),
			Time:            u.Time,
			FirstActivity:   unixTime(u.TimeStart),
			LastActivity:    unixTime(u.TimeEnd),
			ThresholdPassed: u.ThresholdPassed,
			URL:             u.URL,
		}
		switch {
		case r.Completed == 0:
			r.Status = StatusIdle
		case r.Completed == r.Total:
			r.Status = StatusDone
		default:
			r.Status = StatusInProgress
		}
		if u.FailedChecks != nil {
			r.FailedChecks = *u.FailedChecks
		} else {
			for _, ok := range u.Validations {
				if !ok {
					r.FailedChecks++
				}
			}
		}
		rows = append(rows, r)
	}
	slices.SortFunc(rows, func(a, b Row) int { return cmp.Compare(a.UserID, b.UserID) })
	return rows
}

func unixTime(sec *float64) *time.Time {
	if sec == nil {
		return nil
	}
	whole, frac := math.Modf(*sec)
	t := time.Unix(int64(whole), int64(frac*1e9)).UTC()
	return &t
}

// HumanDelta renders d as whole seconds, minutes, hours or days.
func HumanDelta(d time.Duration) string {
	s := d.Seconds()
	switch {
	case s < 60:
		return fmt.Sprintf("%.0fs", s)
	case s < 60*60:
		return fmt.Sprintf("%.0fm", s/60)
	case s < 60*60*24:
		return fmt.Sprintf("%.0fh", s/60/60)
	default:
		return fmt.Sprintf("%.0fd", s/60/60/24)
	}
}

// WriteTable prints rows as an aligned table. Activity times are shown
// relative to now.
func WriteTable(w io.Writer, rows []Row, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tSTATUS\tPROGRESS\tFIRST\tLAST\tTIME\tFAILED")
	for _, r := range rows {
		failed := "-"
		if r.FailedChecks > 0 {
			failed = fmt.Sprint(r.FailedChecks)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%.0fm\t%s\n",
			r.UserID, r.Status, r.Completed, r.Total,
			ago(r.FirstActivity, now), ago(r.LastActivity, now),
			r.Time/60, failed)
	}
	return tw.Flush()
}

func ago(t *time.Time, now time.Time) string {
	if t == nil {
		return "-"
	}
	return HumanDelta(now.Sub(*t)) + " ago"
}
