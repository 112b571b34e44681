// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the annotator client:
// error spans, candidate responses, items as issued by the annotation
// server, validation rules, fetch results, and submission payloads.
package types

import (
	"encoding/json"
	"fmt"
)

// Severity grades an annotated error span.
type Severity string

const (
	SeverityNeutral Severity = "neutral"
	SeverityMinor   Severity = "minor"
	SeverityMajor   Severity = "major"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityNeutral, SeverityMinor, SeverityMajor:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown severity strings.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("severity: %w", err)
	}
	if !Severity(v).Valid() {
		return fmt.Errorf("unknown severity %q", v)
	}
	*s = Severity(v)
	return nil
}

// ErrorSpan marks a closed range of units [StartI, EndI] of one candidate
// as containing a single annotated issue.
type ErrorSpan struct {
	// StartI is the index of the first unit covered by the span.
	StartI int `json:"start_i" yaml:"start_i"`

	// EndI is the index of the last unit covered by the span (inclusive).
	EndI int `json:"end_i" yaml:"end_i"`

	// Category is nil until chosen; "Main/Sub" once a subcategory is set.
	Category *string `json:"category" yaml:"category"`

	// Severity is nil until chosen.
	Severity *Severity `json:"severity" yaml:"severity"`
}

// Overlaps reports whether s and o share at least one unit. Spans that
// touch at an endpoint overlap.
func (s ErrorSpan) Overlaps(o ErrorSpan) bool {
	return s.StartI <= o.EndI && o.StartI <= s.EndI
}

// Contains reports whether unit index i lies inside the span.
func (s ErrorSpan) Contains(i int) bool {
	return i >= s.StartI && i <= s.EndI
}

// Clone returns a deep copy of s.
func (s ErrorSpan) Clone() ErrorSpan {
	c := ErrorSpan{StartI: s.StartI, EndI: s.EndI}
	if s.Category != nil {
		v := *s.Category
		c.Category = &v
	}
	if s.Severity != nil {
		v := *s.Severity
		c.Severity = &v
	}
	return c
}

// CandidateResponse is the annotation of one candidate: an optional 0-100
// score and a set of non-overlapping error spans in creation order.
type CandidateResponse struct {
	Score      *float64    `json:"score" yaml:"score"`
	ErrorSpans []ErrorSpan `json:"error_spans" yaml:"error_spans"`
}

// Scored reports whether a score has been given.
func (r CandidateResponse) Scored() bool {
	return r.Score != nil
}

// DocumentResponse holds one CandidateResponse per candidate of an item,
// in candidate order. Pointwise items have exactly one.
type DocumentResponse []CandidateResponse

// Float returns a pointer to v. Useful for literal scores.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// SeverityPtr returns a pointer to v.
func SeverityPtr(v Severity) *Severity { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
