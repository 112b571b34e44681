// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"fmt"

	"github.com/pdiddy/annotator/internal/validation"
	"github.com/pdiddy/annotator/pkg/types"
)

// Advance validates the open item, submits it and loads the next one.
// A failed attention check returns *AdvanceBlockedError and keeps the
// item open. A failed submission also keeps it open with the responses
// intact and saves a local draft.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkAdvance(); err != nil {
		s.unlock()
		return err
	}

	skip := s.skipMode
	var report validation.Report
	if !skip {
		s.setState(Validating, nil)
		report = validation.CheckItem(s.payload.Items, s.responses())
		for _, o := range report.Outcomes {
			s.client.LogValidation(ctx, s.index, o.Segment, o.Candidate, o.Valid)
		}
		if o, blocked := report.FirstBlocking(); blocked {
			s.appendAction(types.Action{Kind: types.ActionValidationFailed})
			berr := &AdvanceBlockedError{
				Segment:   o.Segment,
				Candidate: o.Candidate,
				Warning:   o.Rule.Warning,
				Reasons:   o.Reasons,
			}
			s.logger.Info("attention check failed", "item", s.index,
				"segment", o.Segment, "candidate", o.Candidate, "reasons", o.Reasons)
			s.setState(Editing, berr)
			s.unlock()
			return berr
		}
	}

	s.appendAction(types.Action{Kind: types.ActionSubmit, SkipTutorial: skip})
	sub := types.Submission{
		Annotations:       s.responses(),
		Actions:           append([]types.Action(nil), s.actions...),
		Item:              s.payload.Raw,
		Validations:       report.Flags(),
		ValidationSkipped: skip,
		Comment:           s.comment,
	}
	index := s.index
	s.inFlight = true
	s.setState(Submitting, nil)
	s.unlock()

	ack, err := s.client.Submit(ctx, index, sub)
	if err == nil && !ack {
		err = ErrNotAcknowledged
	}
	s.record(ctx, index, sub, err == nil)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.logger.Warn("submission failed", "item", index, "error", err)
		s.setState(Editing, err)
		draft := types.Draft{
			ItemIndex: index,
			Responses: sub.Annotations,
			Comment:   sub.Comment,
			SavedAt:   s.opts.Now(),
		}
		s.unlock()
		s.saveDraft(ctx, draft)
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	if index >= 0 && index < len(s.progress) {
		s.progress[index] = true
	}
	s.unsaved = false
	s.skipMode = false
	s.unlock()

	s.deleteDraft(ctx, index)
	return s.LoadNext(ctx)
}

// SkipTutorial submits the open item without validation. It is offered
// only when a rule of the item allows skipping; completeness still
// applies.
func (s *Session) SkipTutorial(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkAdvance(); err != nil {
		s.unlock()
		return err
	}
	if !s.skipAvailable() {
		s.unlock()
		return ErrSkipUnavailable
	}
	s.skipMode = true
	s.notice(nil)
	s.unlock()

	return s.Advance(ctx)
}

func (s *Session) checkAdvance() error {
	if s.inFlight {
		return ErrExchangeInFlight
	}
	if err := s.editable(); err != nil {
		return err
	}
	if reasons := s.blockers(); len(reasons) > 0 {
		return &NotReadyError{Reasons: reasons}
	}
	return nil
}

func (s *Session) record(ctx context.Context, index int, sub types.Submission, acked bool) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.RecordSubmission(ctx, index, sub, acked); err != nil {
		s.logger.Warn("journal write failed", "item", index, "error", err)
	}
}

func (s *Session) saveDraft(ctx context.Context, d types.Draft) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.SaveDraft(ctx, d); err != nil {
		s.logger.Warn("saving draft failed", "item", d.ItemIndex, "error", err)
	}
}

func (s *Session) deleteDraft(ctx context.Context, index int) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.DeleteDraft(ctx, index); err != nil {
		s.logger.Warn("deleting draft failed", "item", index, "error", err)
	}
}
