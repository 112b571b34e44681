// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/annotator/pkg/types"
)

const defaultLimit = 50

// QueryOptions filters List.
type QueryOptions struct {
	// ItemIndex restricts entries to one item when set.
	ItemIndex *int

	// AckedOnly drops attempts the server did not acknowledge.
	AckedOnly bool

	// Limit caps the result count. Zero uses a default of 50.
	Limit int
}

// Entry is one recorded submission attempt.
type Entry struct {
	ID         string           `json:"id" yaml:"id"`
	CampaignID string           `json:"campaign_id" yaml:"campaign_id"`
	UserID     string           `json:"user_id" yaml:"user_id"`
	ItemIndex  int              `json:"item_i" yaml:"item_i"`
	Acked      bool             `json:"acked" yaml:"acked"`
	CreatedAt  time.Time        `json:"created_at" yaml:"created_at"`
	Submission types.Submission `json:"submission" yaml:"submission"`
}

// List returns journal entries of the store's campaign and user, newest
// first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var qb strings.Builder
	args := []any{s.campaign, s.user}
	qb.WriteString(
		`SELECT id, campaign_id, user_id, item_i, acked, payload, created_at
		FROM submissions
		WHERE campaign_id = ? AND user_id = ?`)
	if opts.ItemIndex != nil {
		qb.WriteString(` AND item_i = ?`)
		args = append(args, *opts.ItemIndex)
	}
	if opts.AckedOnly {
		qb.WriteString(` AND acked = 1`)
	}
	qb.WriteString(` ORDER BY rowid DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			payload   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.UserID, &e.ItemIndex, &e.Acked, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Submission); err != nil {
			return nil, fmt.Errorf("parsing journal entry %s: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts journal entries.
type Stats struct {
	Attempts int
	Acked    int
	Items    int
	Drafts   int
}

// Stats summarizes the journal of the store's campaign and user.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), COALESCE(sum(acked), 0), count(DISTINCT CASE WHEN acked = 1 THEN item_i END)
		 FROM submissions WHERE campaign_id = ? AND user_id = ?`,
		s.campaign, s.user,
	).Scan(&st.Attempts, &st.Acked, &st.Items)
	if err != nil {
		return Stats{}, fmt.Errorf("counting submissions: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM drafts WHERE campaign_id = ? AND user_id = ?`,
		s.campaign, s.user,
	).Scan(&st.Drafts)
	if err != nil {
		return Stats{}, fmt.Errorf("counting drafts: %w", err)
	}
	return st, nil
}
