// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package console runs an annotation session as a line-oriented
// interpreter over a reader and a writer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdiddy/annotator/internal/session"
	"github.com/pdiddy/annotator/pkg/types"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

const help = `commands:
  show                              print the open item
  span <seg> <cand> <left> <right>  mark units left..right
  del <seg> <cand> <n>              delete span n
  sev <seg> <cand> <n> <severity>   grade span n (neutral, minor, major)
  cat <seg> <cand> <n> <main> [sub] categorize span n
  score <seg> <cand> <0-100>        score a candidate
  comment <text>                    attach a comment
  next                              validate, submit and load the next item
  skip                              submit a tutorial item without validation
  goto <index>                      open another item
  retry                             repeat a failed fetch
  status                            print progress
  quit                              leave the session`

// Console reads commands, applies them to a session and prints results.
type Console struct {
	s   *session.Session
	in  *bufio.Scanner
	out io.Writer
}

// New returns a console for s. It subscribes to s to print state
// changes.
func New(s *session.Session, in io.Reader, out io.Writer) *Console {
	c := &Console{s: s, in: bufio.NewScanner(in), out: out}
	s.Subscribe(c.observe)
	return c
}

func (c *Console) observe(e session.Event) {
	if e.Prev == e.State {
		return
	}
	switch e.State {
	case session.Loading:
		fmt.Fprintf(c.out, "loading item...\n")
	case session.Editing:
		if e.Prev == session.Loading {
			fmt.Fprintf(c.out, "item %d ready\n", e.Item)
		}
	case session.Submitting:
		fmt.Fprintf(c.out, "submitting item %d...\n", e.Item)
	case session.Halted:
		fmt.Fprintf(c.out, "halted: %v (type retry)\n", e.Err)
	}
}

// Run starts the session and executes commands until quit, end of input
// or task completion.
func (c *Console) Run(ctx context.Context) error {
	if err := c.s.Start(ctx); err != nil {
		c.report(err)
	}
	if c.done() {
		return nil
	}
	c.show()

	for {
		fmt.Fprint(c.out, "> ")
		line, ok := c.readLine()
		if !ok {
			return c.in.Err()
		}
		err := c.Exec(ctx, line)
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			c.report(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.done() {
			return nil
		}
	}
}

func (c *Console) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(c.out, help)
		return nil
	case "quit", "exit", "q":
		return ErrQuit
	case "show":
		c.show()
		return nil
	case "status":
		c.status()
		return nil
	case "comment":
		return c.s.SetComment(strings.TrimSpace(strings.TrimPrefix(line, cmd)))
	case "next":
		if err := c.s.Advance(ctx); err != nil {
			return err
		}
		c.showIfEditing()
		return nil
	case "skip":
		if err := c.s.SkipTutorial(ctx); err != nil {
			return err
		}
		c.showIfEditing()
		return nil
	case "retry":
		if err := c.s.Retry(ctx); err != nil {
			return err
		}
		c.showIfEditing()
		return nil
	case "goto":
		n, err := ints(args, 1)
		if err != nil {
			return err
		}
		if err := c.s.Navigate(ctx, n[0], c.confirm); err != nil {
			return err
		}
		c.showIfEditing()
		return nil
	case "span":
		n, err := ints(args, 4)
		if err != nil {
			return err
		}
		idx, sp, err := c.s.CreateSpan(n[0], n[1], n[2], n[3])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "span %d: units %d-%d (set a severity)\n", idx, sp.StartI, sp.EndI)
		return nil
	case "del":
		n, err := ints(args, 3)
		if err != nil {
			return err
		}
		return c.s.DeleteSpan(n[0], n[1], n[2])
	case "sev":
		if len(args) != 4 {
			return fmt.Errorf("usage: sev <seg> <cand> <n> <severity>")
		}
		n, err := ints(args[:3], 3)
		if err != nil {
			return err
		}
		return c.s.SetSeverity(n[0], n[1], n[2], types.Severity(args[3]))
	case "cat":
		if len(args) < 4 {
			return fmt.Errorf("usage: cat <seg> <cand> <n> <main> [sub]")
		}
		n, err := ints(args[:3], 3)
		if err != nil {
			return err
		}
		main, sub := args[3], ""
		if len(args) > 4 {
			sub = strings.Join(args[4:], " ")
		}
		return c.s.SetCategory(n[0], n[1], n[2], main, sub)
	case "score":
		if len(args) != 3 {
			return fmt.Errorf("usage: score <seg> <cand> <value>")
		}
		n, err := ints(args[:2], 2)
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("score %q: %w", args[2], err)
		}
		return c.s.SetScore(n[0], n[1], v)
	default:
		return fmt.Errorf("unknown command %q (type help)", cmd)
	}
}

// confirm asks on the same input before discarding unsaved work.
func (c *Console) confirm() bool {
	fmt.Fprint(c.out, "unsaved work will be lost, continue? [y/N] ")
	line, ok := c.readLine()
	if !ok {
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *Console) done() bool {
	v := c.s.View()
	if v.State != session.Completed {
		return false
	}
	fmt.Fprintf(c.out, "task completed: %d/%d items\n", types.Completed(v.Progress), len(v.Progress))
	if v.Completion != nil {
		fmt.Fprintf(c.out, "time: %.0fm\n", v.Completion.Time/60)
		if v.Completion.Message != "" {
			fmt.Fprintln(c.out, v.Completion.Message)
		}
		if v.Completion.Token != "" {
			fmt.Fprintf(c.out, "completion token: %s\n", v.Completion.Token)
		}
	}
	return true
}

func (c *Console) report(err error) {
	var blocked *session.AdvanceBlockedError
	var notReady *session.NotReadyError
	switch {
	case errors.As(err, &blocked):
		fmt.Fprintf(c.out, "check failed on segment %d candidate %d: %s\n", blocked.Segment, blocked.Candidate, blocked.Warning)
		if c.s.View().SkipAvailable {
			fmt.Fprintln(c.out, "(type skip to skip this tutorial item)")
		}
	case errors.As(err, &notReady):
		fmt.Fprintln(c.out, "cannot advance yet:")
		for _, r := range notReady.Reasons {
			fmt.Fprintf(c.out, "  - %s\n", r)
		}
	case errors.Is(err, session.ErrFetchFailed):
		fmt.Fprintf(c.out, "error: %v (type retry)\n", err)
	default:
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}

func (c *Console) showIfEditing() {
	if c.s.State() == session.Editing {
		c.show()
	}
}

func ints(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("expected %d numeric arguments, got %d", want, len(args))
	}
	out := make([]int, want)
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %q is not a number", i+1, a)
		}
		out[i] = n
	}
	return out, nil
}
