// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/annotator/internal/connector"
	"github.com/pdiddy/annotator/internal/session"
	"github.com/pdiddy/annotator/internal/span"
	"github.com/pdiddy/annotator/pkg/types"
)

const (
	itemZero = `{"status": "ok", "progress": [false, false], "time": 0,
		"info": {"item_i": 0, "protocol_score": true, "protocol_error_spans": true},
		"payload": [{"src": "Hallo Welt", "tgt": "Hello world"}]}`
	itemOne = `{"status": "ok", "progress": [true, false], "time": 30,
		"info": {"item_i": 1, "protocol_score": true, "protocol_error_spans": false},
		"payload": [{"src": "Tschuess", "tgt": "Bye"}]}`
	done = `{"status": "goodbye", "progress": [true, true], "time": 60, "token": "tok-9",
		"instructions_goodbye": "Thanks! Your token is tok-9."}`
)

// scripted replays fetch bodies in order and acknowledges submissions.
type scripted struct {
	bodies  []string
	fetches []connector.Selector
	submits []types.Submission
}

func (f *scripted) Fetch(_ context.Context, sel connector.Selector) (types.FetchResult, error) {
	f.fetches = append(f.fetches, sel)
	if len(f.bodies) == 0 {
		return types.FetchResult{}, errors.New("exhausted")
	}
	var r types.FetchResult
	err := json.Unmarshal([]byte(f.bodies[0]), &r)
	f.bodies = f.bodies[1:]
	return r, err
}

func (f *scripted) Submit(_ context.Context, _ int, sub types.Submission) (bool, error) {
	f.submits = append(f.submits, sub)
	return true, nil
}

func (f *scripted) LogValidation(context.Context, int, int, int, bool) {}

func run(t *testing.T, f *scripted, input string) string {
	t.Helper()
	s := session.New(f, session.Options{})
	var out bytes.Buffer
	c := New(s, strings.NewReader(input), &out)
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func TestRun_FullTask(t *testing.T) {
	f := &scripted{bodies: []string{itemZero, itemOne, done}}
	out := run(t, f, strings.Join([]string{
		"span 0 0 6 10",
		"sev 0 0 0 major",
		"score 0 0 40",
		"comment source is odd",
		"next",
		"score 0 0 90",
		"next",
	}, "\n"))

	require.Len(t, f.submits, 2)
	first := f.submits[0]
	assert.Equal(t, 40.0, *first.Annotations[0][0].Score)
	assert.Equal(t, types.SeverityMajor, *first.Annotations[0][0].ErrorSpans[0].Severity)
	assert.Equal(t, "source is odd", first.Comment)

	assert.Contains(t, out, "item 0 ready")
	assert.Contains(t, out, "tgt 0: Hello world <missing>")
	assert.Contains(t, out, "span 0: units 6-10")
	assert.Contains(t, out, "submitting item 0")
	assert.Contains(t, out, "task completed: 2/2 items")
	assert.Contains(t, out, "Thanks! Your token is tok-9.")
	assert.Contains(t, out, "completion token: tok-9\n")
	assert.Contains(t, out, "time: 1m\n")
}

func TestRun_CompletedWithoutMessage(t *testing.T) {
	f := &scripted{bodies: []string{`{"status": "completed", "progress": [true], "time": 930, "token": "abc"}`}}
	out := run(t, f, "")

	assert.Contains(t, out, "task completed: 1/1 items")
	assert.Contains(t, out, "time: 16m")
	assert.Contains(t, out, "completion token: abc")
	assert.Empty(t, f.submits)
}

func TestRun_ReportsBlockers(t *testing.T) {
	f := &scripted{bodies: []string{itemZero}}
	out := run(t, f, "span 0 0 0 4\nnext\nbogus\nscore 0 0 x\nspan 0 0 1\nquit\n")

	assert.Empty(t, f.submits)
	assert.Contains(t, out, "cannot advance yet:")
	assert.Contains(t, out, "has no score")
	assert.Contains(t, out, `unknown command "bogus"`)
	assert.Contains(t, out, `score "x"`)
	assert.Contains(t, out, "expected 4 numeric arguments, got 3")
}

func TestRun_GotoAsksBeforeDiscarding(t *testing.T) {
	f := &scripted{bodies: []string{itemZero, itemOne}}
	out := run(t, f, "score 0 0 10\ngoto 1\nn\ngoto 1\ny\nquit\n")

	assert.Contains(t, out, "continue? [y/N]")
	assert.Contains(t, out, session.ErrNavigationDenied.Error())
	require.Len(t, f.fetches, 2)
	assert.Equal(t, connector.SelectIndex(1), f.fetches[1])
	assert.Empty(t, f.submits)
}

func TestRun_EndOfInput(t *testing.T) {
	f := &scripted{bodies: []string{itemZero}}
	out := run(t, f, "status\n")
	assert.Contains(t, out, "state: editing")
	assert.Contains(t, out, "progress: 0/2")
	assert.Contains(t, out, "blocked: segment 0 candidate 0 has no score")
}

func TestExec_Quit(t *testing.T) {
	s := session.New(&scripted{}, session.Options{})
	c := New(s, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, c.Exec(context.Background(), "quit"), ErrQuit)
	assert.NoError(t, c.Exec(context.Background(), "   "))
}

func TestMark(t *testing.T) {
	units := span.Split(0, "Hello world", true)
	sev := types.SeverityPtr(types.SeverityMinor)

	tests := []struct {
		name  string
		spans []types.ErrorSpan
		want  string
	}{
		{"no spans", nil, "Hello world <missing>"},
		{"one word", []types.ErrorSpan{{StartI: 6, EndI: 10, Severity: sev}}, "Hello [world]0 <missing>"},
		{"two spans", []types.ErrorSpan{{StartI: 0, EndI: 0}, {StartI: 11, EndI: 11}}, "[H]0ello world [<missing>]1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mark("Hello world", units, tt.spans))
		})
	}

	assert.Equal(t, `<img src="x.png">`, Mark(`<img src="x.png">`, nil, nil))
}
