// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session drives one annotator through a task: it loads items,
// applies span and score edits, validates and submits responses, and
// advances until the server reports the task complete. Rendering layers
// subscribe as observers and read the session through View.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/annotator/internal/connector"
	"github.com/pdiddy/annotator/internal/span"
	"github.com/pdiddy/annotator/pkg/types"
)

// State is a node of the session state machine.
type State int

const (
	Loading State = iota
	Editing
	Validating
	Submitting
	Completed
	// Halted follows an unrecognized server status.
	Halted
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Editing:
		return "editing"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrCompleted        = errors.New("task already completed")
	ErrHalted           = errors.New("session halted on unrecognized server status")
	ErrNotEditing       = errors.New("no item is open for editing")
	ErrFrozen           = errors.New("session is view-only")
	ErrExchangeInFlight = errors.New("another request is in flight")
	ErrFetchFailed      = errors.New("fetching item failed")
	ErrSubmitFailed     = errors.New("submitting response failed")
	ErrNotAcknowledged  = errors.New("server did not acknowledge the response")
	ErrInvalidIndex     = errors.New("invalid index")
	ErrNavigationDenied = errors.New("navigation cancelled: unsaved work")
	ErrSkipUnavailable  = errors.New("item does not allow skipping")
	ErrSpanIncomplete   = errors.New("span is incomplete")
	ErrNothingToRetry   = errors.New("nothing to retry")
	ErrSpansDisabled    = errors.New("protocol has no error spans")
	ErrScoreRange       = errors.New("score outside 0-100")
)

// AdvanceBlockedError reports a failed attention check that keeps the
// annotator on the current item.
type AdvanceBlockedError struct {
	Segment   int
	Candidate int
	Warning   string
	Reasons   []string
}

func (e *AdvanceBlockedError) Error() string {
	return fmt.Sprintf("segment %d candidate %d: %s", e.Segment, e.Candidate, e.Warning)
}

// NotReadyError lists why the response cannot be submitted yet.
type NotReadyError struct {
	Reasons []string
}

func (e *NotReadyError) Error() string {
	return "cannot advance: " + strings.Join(e.Reasons, "; ")
}

// Client is the server side of a session. *connector.Connector
// implements it.
type Client interface {
	Fetch(ctx context.Context, sel connector.Selector) (types.FetchResult, error)
	Submit(ctx context.Context, itemIndex int, sub types.Submission) (bool, error)
	LogValidation(ctx context.Context, itemIndex, subIndex, candidateIndex int, passed bool)
}

// Recorder keeps a local record of submissions and unsent work.
// Recorder errors are logged and never interrupt the session.
type Recorder interface {
	RecordSubmission(ctx context.Context, itemIndex int, sub types.Submission, acked bool) error
	SaveDraft(ctx context.Context, d types.Draft) error
	LoadDraft(ctx context.Context, itemIndex int) (*types.Draft, error)
	DeleteDraft(ctx context.Context, itemIndex int) error
}

// Event describes a change. Prev equals State for edits and notices.
type Event struct {
	Prev  State
	State State
	Item  int

	// Err is set when the change was caused by a failure.
	Err error
}

// Observer receives events after the session lock is released, so it
// may call back into the session.
type Observer func(Event)

// Options configures a Session.
type Options struct {
	Policy span.Policy

	// Frozen opens items view-only.
	Frozen bool

	// Taxonomy checks category selections when the protocol asks for
	// categories. Nil accepts any names.
	Taxonomy span.Taxonomy

	Recorder Recorder
	Logger   *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// EditorRef locates the span whose editor is open.
type EditorRef struct {
	Segment   int
	Candidate int
	Span      int
}

type focus struct {
	seg, cand int
	span      *types.ErrorSpan
}

// Session owns all state of one annotation session. Its methods are safe
// to call from several goroutines, but only one fetch or submission runs
// at a time.
type Session struct {
	client Client
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	inFlight  bool
	lastSel   connector.Selector
	observers []Observer
	pending   []Event

	payload    *types.ItemPayload
	index      int
	progress   []bool
	elapsed    float64
	candidates [][]*span.Candidate
	scores     [][]*float64
	comment    string
	unsaved    bool
	actions    []types.Action
	skipMode   bool
	editor     *focus
	completion *types.Completion
	status     string
}

// New returns a session in Loading. Call Start to fetch the first item.
func New(client Client, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		client:  client,
		opts:    opts,
		logger:  opts.Logger,
		state:   Loading,
		lastSel: connector.SelectNext,
	}
}

// Subscribe registers o for every subsequent event.
func (s *Session) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// unlock releases the lock and then delivers queued events.
func (s *Session) unlock() {
	events, obs := s.pending, s.observers
	s.pending = nil
	s.mu.Unlock()
	for _, e := range events {
		for _, o := range obs {
			o(e)
		}
	}
}

func (s *Session) setState(next State, cause error) {
	prev := s.state
	s.state = next
	s.logger.Debug("session state", "from", prev, "to", next, "item", s.index)
	s.pending = append(s.pending, Event{Prev: prev, State: next, Item: s.index, Err: cause})
}

// notice queues an event without a transition.
func (s *Session) notice(cause error) {
	s.pending = append(s.pending, Event{Prev: s.state, State: s.state, Item: s.index, Err: cause})
}

func (s *Session) appendAction(a types.Action) {
	a.Time = float64(s.opts.Now().UnixMilli()) / 1000
	s.actions = append(s.actions, a)
}

// View is a read-only copy of the session for rendering.
type View struct {
	State         State
	ItemIndex     int
	Progress      []bool
	Time          float64
	Items         []types.Item
	Info          types.ProtocolInfo
	Responses     []types.DocumentResponse
	Comment       string
	UnsavedWork   bool
	SkipMode      bool
	SkipAvailable bool
	Frozen        bool
	Editor        *EditorRef
	Completion    *types.Completion
	Status        string
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:         s.state,
		ItemIndex:     s.index,
		Progress:      append([]bool(nil), s.progress...),
		Time:          s.elapsed,
		Comment:       s.comment,
		UnsavedWork:   s.unsaved,
		SkipMode:      s.skipMode,
		SkipAvailable: s.skipAvailable(),
		Frozen:        s.opts.Frozen,
		Editor:        s.editorRef(),
		Completion:    s.completion,
		Status:        s.status,
	}
	if s.payload != nil {
		v.Items = s.payload.Items
		v.Info = s.payload.Info
		v.Responses = s.responses()
	}
	return v
}

// Units returns the units of one candidate of the open item.
func (s *Session) Units(seg, cand int) ([]span.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.candidate(seg, cand)
	if err != nil {
		return nil, err
	}
	return c.Units(), nil
}

// Actions returns a copy of the action log of the open item.
func (s *Session) Actions() []types.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Action(nil), s.actions...)
}

// responses builds deep copies of the in-progress responses.
func (s *Session) responses() []types.DocumentResponse {
	out := make([]types.DocumentResponse, len(s.candidates))
	for seg, cands := range s.candidates {
		doc := make(types.DocumentResponse, len(cands))
		for cand, c := range cands {
			r := types.CandidateResponse{ErrorSpans: c.Snapshot()}
			if sc := s.scores[seg][cand]; sc != nil {
				r.Score = types.Float(*sc)
			}
			doc[cand] = r
		}
		out[seg] = doc
	}
	return out
}
