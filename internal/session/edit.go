// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/pdiddy/annotator/internal/span"
	"github.com/pdiddy/annotator/internal/validation"
	"github.com/pdiddy/annotator/pkg/types"
)

// editable reports why edits are refused, or nil.
func (s *Session) editable() error {
	switch {
	case s.state == Completed:
		return ErrCompleted
	case s.state == Halted:
		return ErrHalted
	case s.state != Editing:
		return fmt.Errorf("%w (state %s)", ErrNotEditing, s.state)
	case s.opts.Frozen:
		return ErrFrozen
	}
	return nil
}

func (s *Session) candidate(seg, cand int) (*span.Candidate, error) {
	if seg < 0 || seg >= len(s.candidates) {
		return nil, fmt.Errorf("%w: segment %d", ErrInvalidIndex, seg)
	}
	if cand < 0 || cand >= len(s.candidates[seg]) {
		return nil, fmt.Errorf("%w: candidate %d of segment %d", ErrInvalidIndex, cand, seg)
	}
	return s.candidates[seg][cand], nil
}

func (s *Session) spanAt(seg, cand, n int) (*span.Candidate, *types.ErrorSpan, error) {
	c, err := s.candidate(seg, cand)
	if err != nil {
		return nil, nil, err
	}
	spans := c.Spans()
	if n < 0 || n >= len(spans) {
		return c, nil, fmt.Errorf("%w: span %d of segment %d candidate %d", ErrInvalidIndex, n, seg, cand)
	}
	return c, spans[n], nil
}

// edited marks unsaved work, logs the action and notifies observers.
func (s *Session) edited(a types.Action) {
	s.unsaved = true
	s.appendAction(a)
	s.notice(nil)
}

func (s *Session) requireCategory() bool {
	return s.payload != nil && s.payload.Info.ErrorCategories
}

func (s *Session) spansEnabled() bool {
	return s.payload != nil && s.payload.Info.SpansEnabled()
}

// CreateSpan marks units left..right of a candidate and opens its editor.
// It returns the position of the new span within the candidate.
func (s *Session) CreateSpan(seg, cand, left, right int) (int, types.ErrorSpan, error) {
	s.mu.Lock()
	defer s.unlock()
	if err := s.editable(); err != nil {
		return 0, types.ErrorSpan{}, err
	}
	if !s.spansEnabled() {
		return 0, types.ErrorSpan{}, ErrSpansDisabled
	}
	c, err := s.candidate(seg, cand)
	if err != nil {
		return 0, types.ErrorSpan{}, err
	}
	sp, err := c.CreateSpan(left, right)
	if err != nil {
		return 0, types.ErrorSpan{}, err
	}

	s.editor = &focus{seg: seg, cand: cand, span: sp}
	s.edited(types.Action{
		Kind: types.ActionCreateSpan, Index: types.Int(seg), Candidate: types.Int(cand),
		StartI: types.Int(sp.StartI), EndI: types.Int(sp.EndI),
	})
	return slices.Index(c.Spans(), sp), sp.Clone(), nil
}

// DeleteSpan removes span n of a candidate. A span that does not exist is
// ignored.
func (s *Session) DeleteSpan(seg, cand, n int) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.editable(); err != nil {
		return err
	}
	c, sp, err := s.spanAt(seg, cand, n)
	if c == nil {
		return err
	}
	if sp == nil || !c.DeleteSpan(sp) {
		return nil
	}
	if s.editor != nil && s.editor.span == sp {
		s.editor = nil
	}
	s.edited(types.Action{
		Kind: types.ActionDeleteSpan, Index: types.Int(seg), Candidate: types.Int(cand),
		StartI: types.Int(sp.StartI), EndI: types.Int(sp.EndI),
	})
	return nil
}

// SetSeverity grades span n of a candidate.
func (s *Session) SetSeverity(seg, cand, n int, v types.Severity) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.editable(); err != nil {
		return err
	}
	_, sp, err := s.spanAt(seg, cand, n)
	if err != nil {
		return err
	}
	if err := span.SetSeverity(sp, v); err != nil {
		return err
	}
	s.edited(types.Action{
		Kind: types.ActionSeverity, Index: types.Int(seg), Candidate: types.Int(cand),
		StartI: types.Int(sp.StartI), EndI: types.Int(sp.EndI), Value: string(v),
	})
	return nil
}

// SetCategory applies a category selection to span n of a candidate.
func (s *Session) SetCategory(seg, cand, n int, main, sub string) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.editable(); err != nil {
		return err
	}
	_, sp, err := s.spanAt(seg, cand, n)
	if err != nil {
		return err
	}
	var tax span.Taxonomy
	if s.requireCategory() {
		tax = s.opts.Taxonomy
	}
	if err := span.SetCategory(sp, main, sub, tax); err != nil {
		return err
	}
	var value any
	if sp.Category != nil {
		value = *sp.Category
	}
	s.edited(types.Action{
		Kind: types.ActionCategory, Index: types.Int(seg), Candidate: types.Int(cand),
		StartI: types.Int(sp.StartI), EndI: types.Int(sp.EndI), Value: value,
	})
	return nil
}

// SetScore scores a candidate on the 0-100 scale.
func (s *Session) SetScore(seg, cand int, v float64) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.editable(); err != nil {
		return err
	}
	if _, err := s.candidate(seg, cand); err != nil {
		return err
	}
	if math.IsNaN(v) || v < 0 || v > 100 {
		return fmt.Errorf("%w: %g", ErrScoreRange, v)
	}
	s.scores[seg][cand] = types.Float(v)
	s.edited(types.Action{Kind: types.ActionScore, Index: types.Int(seg), Candidate: types.Int(cand), Value: v})
	return nil
}

// SetComment attaches a free-text comment to the response.
func (s *Session) SetComment(text string) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.comment = strings.TrimSpace(text)
	s.unsaved = true
	s.notice(nil)
	return nil
}

// OpenEditor focuses span n of a candidate. The editor counts as open
// while the focused span is incomplete.
func (s *Session) OpenEditor(seg, cand, n int) error {
	s.mu.Lock()
	defer s.unlock()
	if err := s.editable(); err != nil {
		return err
	}
	_, sp, err := s.spanAt(seg, cand, n)
	if err != nil {
		return err
	}
	s.editor = &focus{seg: seg, cand: cand, span: sp}
	s.notice(nil)
	return nil
}

// CloseEditor drops the focus. An incomplete span keeps its editor open.
func (s *Session) CloseEditor() error {
	s.mu.Lock()
	defer s.unlock()
	if s.editorOpen() {
		return ErrSpanIncomplete
	}
	s.editor = nil
	return nil
}

func (s *Session) editorOpen() bool {
	if s.editor == nil || !s.spansEnabled() {
		return false
	}
	c := s.candidates[s.editor.seg][s.editor.cand]
	if !slices.Contains(c.Spans(), s.editor.span) {
		return false
	}
	return !span.Complete(*s.editor.span, s.requireCategory())
}

func (s *Session) editorRef() *EditorRef {
	if !s.editorOpen() {
		return nil
	}
	c := s.candidates[s.editor.seg][s.editor.cand]
	return &EditorRef{
		Segment:   s.editor.seg,
		Candidate: s.editor.cand,
		Span:      slices.Index(c.Spans(), s.editor.span),
	}
}

// CanAdvance returns the reasons the response cannot be submitted yet.
// It is empty when advancing is allowed.
func (s *Session) CanAdvance() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockers()
}

func (s *Session) blockers() []string {
	if err := s.editable(); err != nil {
		return []string{err.Error()}
	}
	var out []string
	if ref := s.editorRef(); ref != nil {
		out = append(out, fmt.Sprintf("span editor open on segment %d candidate %d span %d", ref.Segment, ref.Candidate, ref.Span))
	}
	info := s.payload.Info
	for seg, cands := range s.candidates {
		for cand, c := range cands {
			if info.Score && s.scores[seg][cand] == nil {
				out = append(out, fmt.Sprintf("segment %d candidate %d has no score", seg, cand))
			}
			if !info.SpansEnabled() {
				continue
			}
			for n, sp := range c.Spans() {
				if !span.Complete(*sp, info.ErrorCategories) {
					out = append(out, fmt.Sprintf("segment %d candidate %d span %d is incomplete", seg, cand, n))
				}
			}
		}
	}
	return out
}

func (s *Session) skipAvailable() bool {
	if s.payload == nil || s.state != Editing {
		return false
	}
	vals := make([]types.ItemValidation, len(s.payload.Items))
	for i, it := range s.payload.Items {
		vals[i] = it.Validation
	}
	return validation.HasAllowSkip(vals)
}
