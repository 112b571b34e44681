package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/annotator/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T, campaign, user string) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "journal")
	store, err := NewStore(types.JournalConfig{Dir: dir}, campaign, user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store, dir
}

func sampleSubmission(score float64) types.Submission {
	return types.Submission{
		Annotations: []types.DocumentResponse{{{
			Score: types.Float(score),
			ErrorSpans: []types.ErrorSpan{
				{StartI: 0, EndI: 4, Severity: types.SeverityPtr(types.SeverityMinor)},
			},
		}}},
		Actions: []types.Action{
			{Time: 1.5, Kind: types.ActionLoad, Index: types.Int(0)},
			{Time: 9, Kind: types.ActionSubmit},
		},
		Item:        json.RawMessage(`[{"src":"a","tgt":"b"}]`),
		Validations: []bool{true},
		Comment:     "looks fine",
	}
}

// --- schema ---

func TestNewStore_CreatesDatabase(t *testing.T) {
	_, dir := testStore(t, "c1", "u1")
	_, err := os.Stat(filepath.Join(dir, dbFile))
	assert.NoError(t, err)
}

func TestNewStore_ReopensExisting(t *testing.T) {
	dir := t.TempDir()
	cfg := types.JournalConfig{Dir: dir}

	s1, err := NewStore(cfg, "c", "u", nil)
	require.NoError(t, err)
	require.NoError(t, s1.RecordSubmission(context.Background(), 3, sampleSubmission(50), true))
	require.NoError(t, s1.Close())

	s2, err := NewStore(cfg, "c", "u", nil)
	require.NoError(t, err)
	defer s2.Close()
	entries, err := s2.List(context.Background(), QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// --- submissions ---

func TestRecordSubmission_RoundTrip(t *testing.T) {
	s, _ := testStore(t, "c1", "u1")
	ctx := context.Background()

	require.NoError(t, s.RecordSubmission(ctx, 4, sampleSubmission(72), true))

	entries, err := s.List(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Len(t, e.ID, 36, "uuid string")
	assert.Equal(t, "c1", e.CampaignID)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, 4, e.ItemIndex)
	assert.True(t, e.Acked)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC), e.CreatedAt)
	assert.Equal(t, 72.0, *e.Submission.Annotations[0][0].Score)
	assert.Equal(t, types.SeverityMinor, *e.Submission.Annotations[0][0].ErrorSpans[0].Severity)
	assert.JSONEq(t, `[{"src":"a","tgt":"b"}]`, string(e.Submission.Item))
	assert.Equal(t, "looks fine", e.Submission.Comment)
}

func TestList_Filters(t *testing.T) {
	s, _ := testStore(t, "c1", "u1")
	ctx := context.Background()

	require.NoError(t, s.RecordSubmission(ctx, 0, sampleSubmission(10), true))
	require.NoError(t, s.RecordSubmission(ctx, 1, sampleSubmission(20), false))
	require.NoError(t, s.RecordSubmission(ctx, 1, sampleSubmission(30), true))
	require.NoError(t, s.RecordSubmission(ctx, 2, sampleSubmission(40), true))

	tests := []struct {
		name   string
		opts   QueryOptions
		scores []float64
	}{
		{"all newest first", QueryOptions{}, []float64{40, 30, 20, 10}},
		{"by item", QueryOptions{ItemIndex: types.Int(1)}, []float64{30, 20}},
		{"acked only", QueryOptions{AckedOnly: true}, []float64{40, 30, 10}},
		{"limit", QueryOptions{Limit: 2}, []float64{40, 30}},
		{"no match", QueryOptions{ItemIndex: types.Int(9)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.List(ctx, tt.opts)
			require.NoError(t, err)
			var got []float64
			for _, e := range entries {
				got = append(got, *e.Submission.Annotations[0][0].Score)
			}
			assert.Equal(t, tt.scores, got)
		})
	}
}

func TestList_ScopedToCampaignAndUser(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	a, err := NewStore(types.JournalConfig{Dir: dir}, "c1", "alice", nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewStore(types.JournalConfig{Dir: dir}, "c1", "bob", nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.RecordSubmission(ctx, 0, sampleSubmission(1), true))
	require.NoError(t, a.SaveDraft(ctx, types.Draft{ItemIndex: 0}))

	entries, err := b.List(ctx, QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	d, err := b.LoadDraft(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestStats(t *testing.T) {
	s, _ := testStore(t, "c1", "u1")
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	require.NoError(t, s.RecordSubmission(ctx, 0, sampleSubmission(1), true))
	require.NoError(t, s.RecordSubmission(ctx, 1, sampleSubmission(2), false))
	require.NoError(t, s.RecordSubmission(ctx, 1, sampleSubmission(3), true))
	require.NoError(t, s.RecordSubmission(ctx, 1, sampleSubmission(4), true))
	require.NoError(t, s.SaveDraft(ctx, types.Draft{ItemIndex: 5}))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Attempts: 4, Acked: 3, Items: 2, Drafts: 1}, st)
}

// --- drafts ---

func TestDrafts_SaveLoadDelete(t *testing.T) {
	s, _ := testStore(t, "c1", "u1")
	ctx := context.Background()

	d, err := s.LoadDraft(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, d)

	saved := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	draft := types.Draft{
		ItemIndex: 7,
		Responses: sampleSubmission(61).Annotations,
		Comment:   "half done",
		SavedAt:   saved,
	}
	require.NoError(t, s.SaveDraft(ctx, draft))

	d, err = s.LoadDraft(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, draft, *d)

	// Saving again replaces the draft.
	draft.Responses[0][0].Score = types.Float(62)
	require.NoError(t, s.SaveDraft(ctx, draft))
	d, err = s.LoadDraft(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 62.0, *d.Responses[0][0].Score)

	require.NoError(t, s.SaveDraft(ctx, types.Draft{ItemIndex: 2}))
	items, err := s.Drafts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 7}, items)

	require.NoError(t, s.DeleteDraft(ctx, 7))
	require.NoError(t, s.DeleteDraft(ctx, 7))
	d, err = s.LoadDraft(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSaveDraft_DefaultsTimestamp(t *testing.T) {
	s, _ := testStore(t, "c1", "u1")
	ctx := context.Background()

	require.NoError(t, s.SaveDraft(ctx, types.Draft{ItemIndex: 1}))
	d, err := s.LoadDraft(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC), d.SavedAt)
}

// --- export ---

func TestExport(t *testing.T) {
	s, dir := testStore(t, "c1", "u1")
	ctx := context.Background()
	require.NoError(t, s.RecordSubmission(ctx, 0, sampleSubmission(10), true))
	require.NoError(t, s.RecordSubmission(ctx, 1, sampleSubmission(20), false))

	t.Run("yaml file oldest first", func(t *testing.T) {
		path, err := s.ExportYAML(ctx, QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "export.yaml"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(data, &got))
		require.Len(t, got, 2)
		assert.Equal(t, 0, got[0]["item_i"])
		assert.Equal(t, false, got[1]["acked"])
		assert.NotContains(t, string(data), `"src"`, "raw item is not exported to yaml")
	})

	t.Run("json file", func(t *testing.T) {
		path, err := s.ExportJSON(ctx, QueryOptions{AckedOnly: true})
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got []Entry
		require.NoError(t, json.Unmarshal(data, &got))
		require.Len(t, got, 1)
		assert.Equal(t, 10.0, *got[0].Submission.Annotations[0][0].Score)
	})

	t.Run("empty selection is an empty list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.Export(ctx, &buf, FormatJSON, QueryOptions{ItemIndex: types.Int(5)}))
		assert.JSONEq(t, `[]`, buf.String())
	})
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"yaml": FormatYAML, "yml": FormatYAML, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("csv")
	assert.Error(t, err)
}
