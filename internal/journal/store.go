// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal keeps a local SQLite record of every submission attempt
// and of drafts left behind by failed submissions.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/annotator/pkg/types"
)

const (
	dbFile     = "journal.db"
	defaultDir = "journal"
)

// Store is the journal of one campaign and user. It implements
// session.Recorder.
type Store struct {
	db       *sql.DB
	dir      string
	campaign string
	user     string
	logger   *slog.Logger

	// now defaults to time.Now.
	now func() time.Time
}

// NewStore opens or creates cfg.Dir/journal.db and creates the schema if
// it does not exist. Entries are scoped to campaignID and userID.
func NewStore(cfg types.JournalConfig, campaignID, userID string, logger *slog.Logger) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:       db,
		dir:      dir,
		campaign: campaignID,
		user:     userID,
		logger:   logger,
		now:      time.Now,
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			campaign_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			item_i INTEGER NOT NULL,
			acked INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_owner ON submissions(campaign_id, user_id, item_i)`,
		`CREATE TABLE IF NOT EXISTS drafts (
			campaign_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			item_i INTEGER NOT NULL,
			responses TEXT NOT NULL,
			comment TEXT,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (campaign_id, user_id, item_i)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordSubmission appends one submission attempt.
func (s *Store) RecordSubmission(ctx context.Context, itemIndex int, sub types.Submission, acked bool) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshaling submission: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, campaign_id, user_id, item_i, acked, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, s.campaign, s.user, itemIndex, acked, string(payload),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording submission for item %d: %w", itemIndex, err)
	}
	s.logger.Debug("journal entry", "id", id, "item", itemIndex, "acked", acked)
	return nil
}

// SaveDraft stores d, replacing any draft of the same item.
func (s *Store) SaveDraft(ctx context.Context, d types.Draft) error {
	responses, err := json.Marshal(d.Responses)
	if err != nil {
		return fmt.Errorf("marshaling draft: %w", err)
	}
	savedAt := d.SavedAt
	if savedAt.IsZero() {
		savedAt = s.now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (campaign_id, user_id, item_i, responses, comment, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(campaign_id, user_id, item_i) DO UPDATE SET
			responses=excluded.responses, comment=excluded.comment, saved_at=excluded.saved_at`,
		s.campaign, s.user, d.ItemIndex, string(responses), d.Comment,
		savedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving draft for item %d: %w", d.ItemIndex, err)
	}
	return nil
}

// LoadDraft returns the draft of an item, or nil if there is none.
func (s *Store) LoadDraft(ctx context.Context, itemIndex int) (*types.Draft, error) {
	var responses, comment, savedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT responses, COALESCE(comment, ''), saved_at FROM drafts
		 WHERE campaign_id = ? AND user_id = ? AND item_i = ?`,
		s.campaign, s.user, itemIndex,
	).Scan(&responses, &comment, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft for item %d: %w", itemIndex, err)
	}

	d := &types.Draft{ItemIndex: itemIndex, Comment: comment}
	if err := json.Unmarshal([]byte(responses), &d.Responses); err != nil {
		return nil, fmt.Errorf("parsing draft for item %d: %w", itemIndex, err)
	}
	d.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	return d, nil
}

// DeleteDraft removes the draft of an item. Deleting a missing draft is
// not an error.
func (s *Store) DeleteDraft(ctx context.Context, itemIndex int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM drafts WHERE campaign_id = ? AND user_id = ? AND item_i = ?`,
		s.campaign, s.user, itemIndex,
	)
	if err != nil {
		return fmt.Errorf("deleting draft for item %d: %w", itemIndex, err)
	}
	return nil
}

// Drafts lists the item indices that have a draft, in ascending order.
func (s *Store) Drafts(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_i FROM drafts WHERE campaign_id = ? AND user_id = ? ORDER BY item_i`,
		s.campaign, s.user,
	)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var i int
		if err := rows.Scan(&i); err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
