// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package span

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pdiddy/annotator/pkg/types"
)

var (
	// ErrOutOfRange is returned for unit indices outside the candidate.
	ErrOutOfRange = errors.New("unit index out of range")

	// ErrNoSelection is returned by CompleteSelection without an anchor.
	ErrNoSelection = errors.New("no selection in progress")
)

// OverlapError rejects a span that would share a unit with an existing
// span on the same candidate.
type OverlapError struct {
	StartI, EndI int
	Existing     types.ErrorSpan
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("span [%d,%d] overlaps existing span [%d,%d]",
		e.StartI, e.EndI, e.Existing.StartI, e.Existing.EndI)
}

// Policy controls how CreateSpan computes bounds.
type Policy struct {
	// WordLevel expands the start to the start of its word and the end to
	// the end of its word.
	WordLevel bool

	// ExemptMissing skips word snapping when either boundary is the
	// missing unit.
	ExemptMissing bool
}

// DefaultPolicy is character-level selection with the missing-unit
// exemption on.
func DefaultPolicy() Policy { return Policy{ExemptMissing: true} }

// Candidate holds the units and error spans of one candidate. Spans are
// kept in creation order and never overlap.
type Candidate struct {
	index  int
	units  []Unit
	spans  []*types.ErrorSpan
	policy Policy

	anchor   int
	anchored bool
}

// NewCandidate splits text into units for candidate index. withMissing
// appends the missing unit, which protocols with spans require.
func NewCandidate(index int, text string, withMissing bool, p Policy) *Candidate {
	return &Candidate{
		index:  index,
		units:  Split(index, text, withMissing),
		policy: p,
	}
}

// Index returns the candidate's position within its item.
func (c *Candidate) Index() int { return c.index }

// Units returns the candidate's units. Callers must not modify them.
func (c *Candidate) Units() []Unit { return c.units }

// Len returns the number of units.
func (c *Candidate) Len() int { return len(c.units) }

// SetPolicy changes the bounds policy for spans created afterwards.
func (c *Candidate) SetPolicy(p Policy) { c.policy = p }

// Spans returns the live spans in creation order. The pointers stay valid
// for SetSeverity, SetCategory and DeleteSpan.
func (c *Candidate) Spans() []*types.ErrorSpan { return slices.Clone(c.spans) }

// Snapshot returns deep copies of the spans, ready to serialize.
func (c *Candidate) Snapshot() []types.ErrorSpan {
	out := make([]types.ErrorSpan, len(c.spans))
	for i, s := range c.spans {
		out[i] = s.Clone()
	}
	return out
}

// MissingIndex returns the index of the missing unit, or -1.
func (c *Candidate) MissingIndex() int {
	if n := len(c.units); n > 0 && c.units[n-1].Missing {
		return n - 1
	}
	return -1
}

func (c *Candidate) isMissing(i int) bool {
	return i >= 0 && i < len(c.units) && c.units[i].Missing
}

// SpanAt returns the span covering unit i, or nil.
func (c *Candidate) SpanAt(i int) *types.ErrorSpan {
	for _, s := range c.spans {
		if s.Contains(i) {
			return s
		}
	}
	return nil
}

// Snap expands [start, end] outward to word boundaries. It is idempotent.
func (c *Candidate) Snap(start, end int) (int, int) {
	if start < 0 || end >= len(c.units) || start > end {
		return start, end
	}
	return c.units[start].WordStart, c.units[end].WordEnd
}

// bounds orders left and right and applies the policy.
func (c *Candidate) bounds(left, right int) (int, int, error) {
	start, end := min(left, right), max(left, right)
	if start < 0 || end >= len(c.units) {
		return 0, 0, fmt.Errorf("%w: [%d,%d] with %d units", ErrOutOfRange, start, end, len(c.units))
	}
	if c.policy.WordLevel {
		exempt := c.policy.ExemptMissing && (c.isMissing(left) || c.isMissing(right))
		if !exempt {
			start, end = c.Snap(start, end)
		}
	}
	return start, end, nil
}

func (c *Candidate) overlapping(s types.ErrorSpan) *types.ErrorSpan {
	for _, e := range c.spans {
		if e.Overlaps(s) {
			return e
		}
	}
	return nil
}

// CreateSpan adds a span between units left and right, in either order.
// The new span has no category or severity. On error the candidate is
// unchanged.
func (c *Candidate) CreateSpan(left, right int) (*types.ErrorSpan, error) {
	start, end, err := c.bounds(left, right)
	if err != nil {
		return nil, err
	}
	s := &types.ErrorSpan{StartI: start, EndI: end}
	if e := c.overlapping(*s); e != nil {
		return nil, &OverlapError{StartI: start, EndI: end, Existing: e.Clone()}
	}
	c.spans = append(c.spans, s)
	return s, nil
}

// DeleteSpan removes s and reports whether it was present. Deleting a span
// that is not on the candidate does nothing.
func (c *Candidate) DeleteSpan(s *types.ErrorSpan) bool {
	i := slices.Index(c.spans, s)
	if i < 0 {
		return false
	}
	c.spans = slices.Delete(c.spans, i, i+1)
	return true
}

// Clear removes every span and any pending selection.
func (c *Candidate) Clear() {
	c.spans = nil
	c.anchored = false
}

// BeginSelection anchors a selection at unit i. Choosing the missing unit
// creates a single-unit span on it at once and returns it. An anchor
// inside an existing span is rejected.
func (c *Candidate) BeginSelection(i int) (*types.ErrorSpan, error) {
	if i < 0 || i >= len(c.units) {
		return nil, fmt.Errorf("%w: %d with %d units", ErrOutOfRange, i, len(c.units))
	}
	if c.isMissing(i) {
		c.anchored = false
		return c.CreateSpan(i, i)
	}
	if e := c.SpanAt(i); e != nil {
		return nil, &OverlapError{StartI: i, EndI: i, Existing: e.Clone()}
	}
	c.anchor, c.anchored = i, true
	return nil, nil
}

// CompleteSelection closes the pending selection at unit j and creates
// the span. The selection is cleared whether or not creation succeeds.
func (c *Candidate) CompleteSelection(j int) (*types.ErrorSpan, error) {
	if !c.anchored {
		if c.isMissing(j) {
			return c.CreateSpan(j, j)
		}
		return nil, ErrNoSelection
	}
	c.anchored = false
	return c.CreateSpan(c.anchor, j)
}

// Anchor returns the pending selection anchor.
func (c *Candidate) Anchor() (int, bool) { return c.anchor, c.anchored }

// CancelSelection drops a pending selection.
func (c *Candidate) CancelSelection() { c.anchored = false }

// LoadPrefilled seeds spans from an item or a previous submission,
// replacing the current ones. Entries with invalid bounds or that overlap
// an earlier entry are skipped; the number loaded is returned.
func (c *Candidate) LoadPrefilled(spans []types.ErrorSpan) int {
	c.Clear()
	for _, p := range spans {
		if p.StartI < 0 || p.EndI >= len(c.units) || p.StartI > p.EndI {
			continue
		}
		if c.overlapping(p) != nil {
			continue
		}
		s := p.Clone()
		c.spans = append(c.spans, &s)
	}
	return len(c.spans)
}

// SetSeverity sets the severity of s.
func SetSeverity(s *types.ErrorSpan, v types.Severity) error {
	if !v.Valid() {
		return fmt.Errorf("unknown severity %q", v)
	}
	s.Severity = &v
	return nil
}

// Complete reports whether s is finished: a severity is set and, when
// categories are required, the category names a subcategory.
func Complete(s types.ErrorSpan, requireCategory bool) bool {
	if s.Severity == nil {
		return false
	}
	if !requireCategory {
		return true
	}
	return s.Category != nil && isLeaf(*s.Category)
}
