// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"fmt"

	"github.com/pdiddy/annotator/internal/connector"
	"github.com/pdiddy/annotator/internal/span"
	"github.com/pdiddy/annotator/pkg/types"
)

// Start fetches the first item.
func (s *Session) Start(ctx context.Context) error {
	return s.load(ctx, connector.SelectNext)
}

// LoadNext fetches the next unfinished item.
func (s *Session) LoadNext(ctx context.Context) error {
	return s.load(ctx, connector.SelectNext)
}

// Retry repeats the last fetch after a failure or a halt.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	st, sel := s.state, s.lastSel
	s.mu.Unlock()

	if st != Loading && st != Halted {
		return fmt.Errorf("%w in state %s", ErrNothingToRetry, st)
	}
	return s.load(ctx, sel)
}

// Navigate opens item index. With unsaved work, confirm is asked first
// and a nil or refusing confirm cancels the navigation. The open item is
// never submitted implicitly.
func (s *Session) Navigate(ctx context.Context, index int, confirm func() bool) error {
	s.mu.Lock()
	switch {
	case s.state == Completed:
		s.mu.Unlock()
		return ErrCompleted
	case index < 0 || (len(s.progress) > 0 && index >= len(s.progress)):
		s.mu.Unlock()
		return fmt.Errorf("%w: item %d", ErrInvalidIndex, index)
	}
	unsaved := s.unsaved
	s.mu.Unlock()

	if unsaved && (confirm == nil || !confirm()) {
		return ErrNavigationDenied
	}
	return s.load(ctx, connector.SelectIndex(index))
}

func (s *Session) load(ctx context.Context, sel connector.Selector) error {
	s.mu.Lock()
	switch {
	case s.state == Completed:
		s.unlock()
		return ErrCompleted
	case s.inFlight:
		s.unlock()
		return ErrExchangeInFlight
	}
	s.inFlight = true
	s.lastSel = sel
	s.setState(Loading, nil)
	s.unlock()

	res, err := s.client.Fetch(ctx, sel)

	var draft *types.Draft
	if err == nil && res.Kind == types.FetchOK && !hasExisting(res.Item) && s.opts.Recorder != nil {
		d, derr := s.opts.Recorder.LoadDraft(ctx, res.Item.Info.ItemIndex)
		if derr != nil {
			s.logger.Warn("loading draft", "item", res.Item.Info.ItemIndex, "error", derr)
		}
		draft = d
	}

	s.mu.Lock()
	defer s.unlock()
	s.inFlight = false

	if err != nil {
		s.logger.Warn("fetch failed", "selector", sel, "error", err)
		s.notice(err)
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	switch res.Kind {
	case types.FetchOK:
		s.open(res.Item, draft)
		s.setState(Editing, nil)
		return nil
	case types.FetchCompleted:
		s.completion = res.Completion
		s.progress = res.Completion.Progress
		s.elapsed = res.Completion.Time
		s.editor = nil
		s.skipMode = false
		s.unsaved = false
		s.setState(Completed, nil)
		return nil
	default:
		s.status = res.Status
		err := fmt.Errorf("%w: %q", types.ErrUnknownStatus, res.Status)
		s.logger.Error("halting session", "status", res.Status)
		s.setState(Halted, err)
		return err
	}
}

func hasExisting(p *types.ItemPayload) bool {
	return p != nil && p.Existing != nil && len(p.Existing.Responses) > 0
}

// open replaces the session state with a freshly fetched item. A previous
// submission seeds the responses as saved work; a local draft seeds them
// as unsaved work. Either replaces the prefilled spans of the item.
func (s *Session) open(p *types.ItemPayload, draft *types.Draft) {
	s.payload = p
	s.index = p.Info.ItemIndex
	s.progress = p.Progress
	s.elapsed = p.Time
	s.comment = ""
	s.unsaved = false
	s.skipMode = false
	s.editor = nil
	s.status = ""
	s.actions = nil

	spans := p.Info.SpansEnabled()
	prefill := spans && !hasExisting(p) && draft == nil
	s.candidates = make([][]*span.Candidate, len(p.Items))
	s.scores = make([][]*float64, len(p.Items))
	for seg, item := range p.Items {
		cands := make([]*span.Candidate, item.Candidates.Len())
		for i, text := range item.Candidates.Texts {
			cands[i] = span.NewCandidate(i, text, spans, s.opts.Policy)
			if prefill {
				cands[i].LoadPrefilled(item.ErrorSpans.ForCandidate(i))
			}
		}
		s.candidates[seg] = cands
		s.scores[seg] = make([]*float64, len(cands))
	}

	switch {
	case hasExisting(p):
		s.seed(p.Existing.Responses)
		s.comment = p.Existing.Comment
	case draft != nil:
		s.seed(draft.Responses)
		s.comment = draft.Comment
		s.unsaved = true
		s.logger.Info("resumed local draft", "item", s.index, "saved_at", draft.SavedAt)
	}

	s.appendAction(types.Action{Kind: types.ActionLoad, Index: types.Int(s.index)})
}

func (s *Session) seed(docs []types.DocumentResponse) {
	for seg, doc := range docs {
		if seg >= len(s.candidates) {
			break
		}
		for cand, r := range doc {
			if cand >= len(s.candidates[seg]) {
				break
			}
			if r.Score != nil {
				s.scores[seg][cand] = types.Float(*r.Score)
			}
			if s.payload.Info.SpansEnabled() {
				s.candidates[seg][cand].LoadPrefilled(r.ErrorSpans)
			}
		}
	}
}
