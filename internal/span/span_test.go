// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package span

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/annotator/pkg/types"
)

// --- units ---

func TestSplit_WordsAndMissing(t *testing.T) {
	units := Split(0, "ab, cd\ne", true)

	// "a b , _ c d e [missing]": the newline yields no unit.
	require.Len(t, units, 8)
	assert.Equal(t, "e", units[6].Text)
	assert.True(t, units[7].Missing)
	assert.Equal(t, MissingText, units[7].Text)

	tests := []struct {
		i, start, end int
	}{
		{0, 0, 1},
		{1, 0, 1},
		{2, 2, 2}, // comma
		{3, 3, 3}, // space
		{4, 4, 6}, // "cde" once the newline is dropped
		{6, 4, 6},
		{7, 7, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.start, units[tt.i].WordStart, "word start of %d", tt.i)
		assert.Equal(t, tt.end, units[tt.i].WordEnd, "word end of %d", tt.i)
	}
}

func TestSplit_Media(t *testing.T) {
	assert.Empty(t, Split(0, `<video src="clip.mp4">`, true))
	assert.True(t, IsMedia(`<img src="x.png">`))
	assert.False(t, IsMedia("<b>bold</b>"))
}

func TestSplit_Unicode(t *testing.T) {
	units := Split(1, "día 5", false)
	require.Len(t, units, 5)
	assert.Equal(t, "í", units[1].Text)
	assert.Equal(t, 2, units[0].WordEnd)
	assert.Equal(t, 4, units[4].WordStart)
	assert.Equal(t, 1, units[4].Candidate)
}

// --- create / delete ---

func TestCreateSpan_OrderIndependent(t *testing.T) {
	c := NewCandidate(0, "0123456789", false, DefaultPolicy())
	require.Equal(t, 10, c.Len())

	s, err := c.CreateSpan(3, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.StartI)
	assert.Equal(t, 3, s.EndI)
	assert.Nil(t, s.Severity)
	assert.Nil(t, s.Category)
}

func TestCreateSpan_RejectsOverlap(t *testing.T) {
	c := NewCandidate(0, "abcdefghij", false, DefaultPolicy())
	c.LoadPrefilled([]types.ErrorSpan{{StartI: 0, EndI: 4, Severity: types.SeverityPtr(types.SeverityMinor)}})

	_, err := c.CreateSpan(2, 6)
	var oe *OverlapError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, 0, oe.Existing.StartI)
	assert.Equal(t, 4, oe.Existing.EndI)
	assert.Len(t, c.Spans(), 1)

	tests := []struct {
		name        string
		left, right int
		wantErr     bool
	}{
		{"touching end", 4, 7, true},
		{"containing", 9, 0, true},
		{"inside", 1, 2, true},
		{"adjacent", 5, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateSpan(tt.left, tt.right)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateSpan_OutOfRange(t *testing.T) {
	c := NewCandidate(0, "abc", false, DefaultPolicy())
	_, err := c.CreateSpan(-1, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.CreateSpan(0, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Empty(t, c.Spans())
}

func TestDeleteSpan_Idempotent(t *testing.T) {
	c := NewCandidate(0, "abcdef", false, DefaultPolicy())
	s, err := c.CreateSpan(0, 1)
	require.NoError(t, err)

	assert.True(t, c.DeleteSpan(s))
	assert.False(t, c.DeleteSpan(s))
	assert.False(t, c.DeleteSpan(&types.ErrorSpan{StartI: 0, EndI: 1}))
	assert.Empty(t, c.Spans())

	// The freed range is available again.
	_, err = c.CreateSpan(1, 0)
	assert.NoError(t, err)
}

func TestSpans_NeverOverlapAfterRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	c := NewCandidate(0, "the quick brown fox jumps over the lazy dog", true, Policy{WordLevel: true, ExemptMissing: true})

	for range 2000 {
		spans := c.Spans()
		if len(spans) > 0 && rng.IntN(3) == 0 {
			c.DeleteSpan(spans[rng.IntN(len(spans))])
			continue
		}
		_, _ = c.CreateSpan(rng.IntN(c.Len()), rng.IntN(c.Len()))

		spans = c.Spans()
		for i := range spans {
			for j := i + 1; j < len(spans); j++ {
				require.False(t, spans[i].Overlaps(*spans[j]), "spans %v and %v overlap", *spans[i], *spans[j])
			}
		}
	}
}

// --- word snapping ---

func TestCreateSpan_WordLevel(t *testing.T) {
	c := NewCandidate(0, "hello big world", true, Policy{WordLevel: true, ExemptMissing: true})

	s, err := c.CreateSpan(8, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, s.StartI)
	assert.Equal(t, 8, s.EndI)

	// Starting on the space does not reach into the neighbouring word.
	s, err = c.CreateSpan(9, 11)
	require.NoError(t, err)
	assert.Equal(t, 9, s.StartI)
	assert.Equal(t, 14, s.EndI)
}

func TestCreateSpan_MissingExemption(t *testing.T) {
	text := "hello world"
	missing := len(text)

	exempt := NewCandidate(0, text, true, Policy{WordLevel: true, ExemptMissing: true})
	s, err := exempt.CreateSpan(8, missing)
	require.NoError(t, err)
	assert.Equal(t, 8, s.StartI, "no snapping when the selection touches the missing unit")
	assert.Equal(t, missing, s.EndI)

	strict := NewCandidate(0, text, true, Policy{WordLevel: true})
	s, err = strict.CreateSpan(8, missing)
	require.NoError(t, err)
	assert.Equal(t, 6, s.StartI)
}

func TestSnap_Idempotent(t *testing.T) {
	c := NewCandidate(0, "ein kleiner Test, mit Satzzeichen!", true, DefaultPolicy())
	for start := 0; start < c.Len(); start++ {
		for end := start; end < c.Len(); end++ {
			s1, e1 := c.Snap(start, end)
			s2, e2 := c.Snap(s1, e1)
			require.Equal(t, s1, s2)
			require.Equal(t, e1, e2)
		}
	}
}

// --- selection flow ---

func TestSelection(t *testing.T) {
	c := NewCandidate(0, "abcdefgh", true, DefaultPolicy())

	_, err := c.CompleteSelection(3)
	assert.ErrorIs(t, err, ErrNoSelection)

	s, err := c.BeginSelection(5)
	require.NoError(t, err)
	assert.Nil(t, s)
	anchor, ok := c.Anchor()
	assert.True(t, ok)
	assert.Equal(t, 5, anchor)

	s, err = c.CompleteSelection(2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.StartI)
	assert.Equal(t, 5, s.EndI)
	_, ok = c.Anchor()
	assert.False(t, ok)

	// An anchor inside an existing span is refused.
	_, err = c.BeginSelection(4)
	var oe *OverlapError
	assert.True(t, errors.As(err, &oe))

	// The missing unit always yields a single-unit span.
	missing := c.MissingIndex()
	require.Equal(t, 8, missing)
	s, err = c.BeginSelection(missing)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, missing, s.StartI)
	assert.Equal(t, missing, s.EndI)

	_, err = c.BeginSelection(99)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

// --- prefilled ---

func TestLoadPrefilled_SkipsInvalid(t *testing.T) {
	c := NewCandidate(0, "abcdef", false, DefaultPolicy())
	_, err := c.CreateSpan(0, 0)
	require.NoError(t, err)

	n := c.LoadPrefilled([]types.ErrorSpan{
		{StartI: 1, EndI: 2, Severity: types.SeverityPtr(types.SeverityMajor)},
		{StartI: 4, EndI: 3},
		{StartI: 5, EndI: 9},
		{StartI: -1, EndI: 0},
		{StartI: 2, EndI: 4},
		{StartI: 4, EndI: 5, Category: types.String("Style/Awkward")},
	})
	assert.Equal(t, 2, n)

	got := c.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, types.SeverityMajor, *got[0].Severity)
	assert.Equal(t, "Style/Awkward", *got[1].Category)

	// Snapshots are copies.
	*got[0].Severity = types.SeverityNeutral
	assert.Equal(t, types.SeverityMajor, *c.Spans()[0].Severity)
}

// --- severity / category ---

func TestSetSeverity(t *testing.T) {
	var s types.ErrorSpan
	require.NoError(t, SetSeverity(&s, types.SeverityMinor))
	assert.Equal(t, types.SeverityMinor, *s.Severity)
	assert.Error(t, SetSeverity(&s, "critical"))
	assert.Equal(t, types.SeverityMinor, *s.Severity)
}

func TestSetCategory(t *testing.T) {
	tests := []struct {
		name     string
		main     string
		sub      string
		tax      Taxonomy
		want     *string
		complete bool
		wantErr  bool
	}{
		{"bare main stays pending", "Accuracy", "", MQM, types.String("Accuracy"), false, false},
		{"main and sub", "Accuracy", "Omission", MQM, types.String("Accuracy/Omission"), true, false},
		{"other completes", "Other", "", MQM, types.String("Other/Other"), true, false},
		{"empty main resets", "", "Omission", MQM, nil, false, false},
		{"unknown sub", "Accuracy", "Spelling", MQM, nil, false, true},
		{"unknown main", "Typography", "", MQM, nil, false, true},
		{"free taxonomy", "Custom", "Thing", nil, types.String("Custom/Thing"), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := types.ErrorSpan{Severity: types.SeverityPtr(types.SeverityMinor)}
			if tt.wantErr {
				s.Category = types.String("Style/Awkward")
			}
			err := SetCategory(&s, tt.main, tt.sub, tt.tax)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCategory)
				assert.Equal(t, "Style/Awkward", *s.Category, "rejected selection leaves the span unchanged")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Category)
			assert.Equal(t, tt.complete, Complete(s, true))
		})
	}
}

func TestComplete(t *testing.T) {
	s := types.ErrorSpan{}
	assert.False(t, Complete(s, false))

	s.Severity = types.SeverityPtr(types.SeverityNeutral)
	assert.True(t, Complete(s, false))
	assert.False(t, Complete(s, true))

	s.Category = types.String("Fluency/Grammar")
	assert.True(t, Complete(s, true))

	main, sub := SplitCategory(*s.Category)
	assert.Equal(t, "Fluency", main)
	assert.Equal(t, "Grammar", sub)
}

func TestTaxonomy_Mains(t *testing.T) {
	mains := MQM.Mains()
	assert.Contains(t, mains, OtherCategory)
	assert.IsNonDecreasing(t, mains)
}
