// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Item is one segment of an annotation task as issued by the server. Items
// are immutable once issued.
type Item struct {
	// Source is the source text shown alongside the candidates.
	Source string `json:"src" yaml:"src"`

	// Candidates holds the target texts to annotate.
	Candidates Candidates `json:"tgt" yaml:"tgt"`

	// Instructions is optional per-item guidance (may contain markup).
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`

	// ErrorSpans are spans prefilled by the campaign author.
	ErrorSpans PrefilledSpans `json:"error_spans,omitempty" yaml:"error_spans,omitempty"`

	// Validation holds the attention-check or tutorial rule(s), if any.
	Validation ItemValidation `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// Candidates is the target side of an item. On the wire it is either a
// single string (pointwise) or an array of strings (listwise); Multi
// records which form was received so it can be written back unchanged.
type Candidates struct {
	Texts []string
	Multi bool
}

// Single builds a pointwise Candidates value.
func Single(text string) Candidates {
	return Candidates{Texts: []string{text}}
}

// Multiple builds a listwise Candidates value.
func Multiple(texts ...string) Candidates {
	return Candidates{Texts: texts, Multi: true}
}

// Len returns the number of candidates.
func (c Candidates) Len() int { return len(c.Texts) }

func (c *Candidates) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var texts []string
		if err := json.Unmarshal(data, &texts); err != nil {
			return fmt.Errorf("candidates: %w", err)
		}
		*c = Candidates{Texts: texts, Multi: true}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("candidates: %w", err)
	}
	*c = Single(text)
	return nil
}

func (c Candidates) MarshalJSON() ([]byte, error) {
	if c.Multi || len(c.Texts) != 1 {
		return json.Marshal(c.Texts)
	}
	return json.Marshal(c.Texts[0])
}

// PrefilledSpans holds prefilled error spans per candidate. The wire form
// is a flat list for a single candidate or a list of lists.
type PrefilledSpans [][]ErrorSpan

// ForCandidate returns the spans for candidate i, or nil.
func (p PrefilledSpans) ForCandidate(i int) []ErrorSpan {
	if i < 0 || i >= len(p) {
		return nil
	}
	return p[i]
}

func (p *PrefilledSpans) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("error_spans: %w", err)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	if first := bytes.TrimSpace(raw[0]); len(first) > 0 && first[0] == '[' {
		var nested [][]ErrorSpan
		if err := json.Unmarshal(data, &nested); err != nil {
			return fmt.Errorf("error_spans: %w", err)
		}
		*p = nested
		return nil
	}
	var flat []ErrorSpan
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("error_spans: %w", err)
	}
	*p = PrefilledSpans{flat}
	return nil
}

// ItemValidation attaches validation rules to an item: either one rule
// shared by all candidates or one (possibly nil) rule per candidate.
type ItemValidation struct {
	Shared       *ValidationRule
	PerCandidate []*ValidationRule
}

// IsZero reports whether no rule is attached.
func (v ItemValidation) IsZero() bool {
	return v.Shared == nil && len(v.PerCandidate) == 0
}

// ForCandidate returns the rule that applies to candidate i, or nil.
func (v ItemValidation) ForCandidate(i int) *ValidationRule {
	if v.PerCandidate != nil {
		if i < 0 || i >= len(v.PerCandidate) {
			return nil
		}
		return v.PerCandidate[i]
	}
	return v.Shared
}

// Rules returns every non-nil rule.
func (v ItemValidation) Rules() []*ValidationRule {
	var out []*ValidationRule
	if v.Shared != nil {
		out = append(out, v.Shared)
	}
	for _, r := range v.PerCandidate {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (v *ItemValidation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ItemValidation{}
	case len(data) > 0 && data[0] == '[':
		var rules []*ValidationRule
		if err := json.Unmarshal(data, &rules); err != nil {
			return fmt.Errorf("validation: %w", err)
		}
		if rules == nil {
			rules = []*ValidationRule{}
		}
		*v = ItemValidation{PerCandidate: rules}
	default:
		var rule ValidationRule
		if err := json.Unmarshal(data, &rule); err != nil {
			return fmt.Errorf("validation: %w", err)
		}
		*v = ItemValidation{Shared: &rule}
	}
	return nil
}

func (v ItemValidation) MarshalJSON() ([]byte, error) {
	if v.PerCandidate != nil {
		return json.Marshal(v.PerCandidate)
	}
	return json.Marshal(v.Shared)
}

// ValidationRule is a declarative check over a candidate response. Rules
// with a Warning are attention checks or tutorial items: failing them
// blocks progression.
type ValidationRule struct {
	// Warning is shown to the annotator when the rule fails.
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`

	// ScoreRange requires a score within [min, max].
	ScoreRange *[2]float64 `json:"score_range,omitempty" yaml:"score_range,omitempty"`

	// ScoreGreaterThan names a sibling candidate whose score this
	// candidate's score must strictly exceed.
	ScoreGreaterThan *int `json:"score_greater_than,omitempty" yaml:"score_greater_than,omitempty"`

	// RequiredSpans lists span descriptors that must each be matched by at
	// least one annotated span.
	RequiredSpans []RequiredSpan `json:"required_spans,omitempty" yaml:"required_spans,omitempty"`

	// AllowSkip offers a "skip tutorial" escape for the item.
	AllowSkip bool `json:"allow_skip,omitempty" yaml:"allow_skip,omitempty"`
}

// RequiredSpan describes an expected error span. Nil fields are wildcards.
type RequiredSpan struct {
	StartI   *Bound    `json:"start_i,omitempty" yaml:"start_i,omitempty"`
	EndI     *Bound    `json:"end_i,omitempty" yaml:"end_i,omitempty"`
	Severity *Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// Bound is an inclusive numeric interval. An exact value has Min == Max;
// on the wire it is a bare number, otherwise a [min, max] pair.
type Bound struct {
	Min float64
	Max float64
}

// Exact returns the bound matching exactly v.
func Exact(v float64) *Bound { return &Bound{Min: v, Max: v} }

// Range returns the bound matching [lo, hi].
func Range(lo, hi float64) *Bound { return &Bound{Min: lo, Max: hi} }

// Contains reports whether v lies within the bound.
func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

func (b *Bound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("bound: %w", err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("bound: range needs exactly 2 values, got %d", len(pair))
		}
		*b = Bound{Min: pair[0], Max: pair[1]}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bound: %w", err)
	}
	*b = Bound{Min: v, Max: v}
	return nil
}

func (b Bound) MarshalJSON() ([]byte, error) {
	if b.Min == b.Max {
		return json.Marshal(b.Min)
	}
	return json.Marshal([2]float64{b.Min, b.Max})
}
