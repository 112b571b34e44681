// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying HTTP exchange shared by every
// request the annotator makes to the annotation server.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetryBaseDelay is the length of one backoff time unit. Tests override
// this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const (
	// CeilingUnits bounds the backoff delay in time units. The exchange
	// gives up as soon as the doubled delay exceeds it.
	CeilingUnits = 120

	// MaxResponseBytes bounds the size of a decoded response body.
	MaxResponseBytes = 4 << 20
)

// ErrGaveUp reports that an exchange failed until the backoff delay
// exceeded CeilingUnits. Callers treat it like a hard failure and leave
// the retry to the user.
var ErrGaveUp = errors.New("gave up after exceeding backoff ceiling")

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// NotifyFunc observes a failed attempt before the backoff wait. attempt
// is 1-based; delay is the wait that follows.
type NotifyFunc func(attempt int, delay time.Duration, err error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy configures DoWithBackoff. The zero value uses RetryBaseDelay,
// CeilingUnits and a timer-based sleep.
type Policy struct {
	Unit    time.Duration
	Ceiling int
	Notify  NotifyFunc
	Sleep   SleepFunc
}

func (p Policy) unit() time.Duration {
	if p.Unit > 0 {
		return p.Unit
	}
	return RetryBaseDelay
}

func (p Policy) ceiling() int {
	if p.Ceiling > 0 {
		return p.Ceiling
	}
	return CeilingUnits
}

// DoWithBackoff executes req until it succeeds and returns the response
// body. Transport errors and non-2xx statuses are failures: each one is
// reported to p.Notify, followed by a wait of 1, 2, 4, ... time units.
// Once the doubled delay exceeds the ceiling, DoWithBackoff stops without
// another attempt and returns an error wrapping ErrGaveUp and the last
// failure. With the default ceiling that is 7 attempts. If ctx is
// cancelled, ctx.Err() is returned.
//
// req must be replayable: a nil body or one with GetBody set, as
// http.NewRequest does for bytes and strings readers.
func DoWithBackoff(ctx context.Context, client *http.Client, req *http.Request, p Policy) ([]byte, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	delay := 1
	for attempt := 1; ; attempt++ {
		body, err := DoOnce(ctx, client, req)
		if err == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		wait := time.Duration(delay) * p.unit()
		if p.Notify != nil {
			p.Notify(attempt, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
		delay *= 2
		if delay > p.ceiling() {
			return nil, fmt.Errorf("%w (%d attempts): %w", ErrGaveUp, attempt, err)
		}
	}
}

// DoOnce performs a single exchange and returns the body of a 2xx
// response, read up to MaxResponseBytes.
func DoOnce(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		r.Body = body
	}

	resp, err := client.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(data) > MaxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}
	return data, nil
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
