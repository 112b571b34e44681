// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package connector talks to the annotation server. Every exchange goes
// through httputil.DoWithBackoff except validation telemetry, which is a
// single best-effort attempt that never blocks the caller.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/annotator/internal/httputil"
	"github.com/pdiddy/annotator/pkg/types"
)

// Server endpoints, relative to the configured base address.
const (
	EndpointNextItem      = "/get-next-item"
	EndpointIndexItem     = "/get-i-item"
	EndpointLogResponse   = "/log-response"
	EndpointLogValidation = "/log-validation"
	EndpointDashboard     = "/dashboard-data"
)

// DefaultTelemetryTimeout bounds the single validation telemetry attempt.
const DefaultTelemetryTimeout = 5 * time.Second

// Selector picks the item to fetch: the next unfinished one, or an
// explicit index.
type Selector struct {
	Next  bool
	Index int
}

// SelectNext selects the next item the server assigns.
var SelectNext = Selector{Next: true}

// SelectIndex selects item i.
func SelectIndex(i int) Selector { return Selector{Index: i} }

func (s Selector) String() string {
	if s.Next {
		return "next"
	}
	return fmt.Sprintf("#%d", s.Index)
}

// Connector issues requests for one campaign and user.
type Connector struct {
	cfg    types.ServerConfig
	client *http.Client
	logger *slog.Logger

	// Policy controls the backoff of every retried exchange. Its Notify
	// hook is where transient failures are surfaced to the annotator.
	Policy httputil.Policy

	// TelemetryTimeout bounds LogValidation attempts.
	TelemetryTimeout time.Duration

	wg sync.WaitGroup
}

// New validates cfg and returns a Connector. A nil logger discards logs.
func New(cfg types.ServerConfig, logger *slog.Logger) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	c := &Connector{
		cfg:              cfg,
		client:           &http.Client{Timeout: cfg.Timeout},
		logger:           logger,
		TelemetryTimeout: DefaultTelemetryTimeout,
	}
	c.Policy.Notify = func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("request failed, retrying",
			"attempt", attempt, "retry_in", delay, "error", err)
	}
	return c, nil
}

// SetHTTPClient replaces the HTTP client, e.g. with an httptest client.
func (c *Connector) SetHTTPClient(client *http.Client) { c.client = client }

// Config returns the server configuration in use.
func (c *Connector) Config() types.ServerConfig { return c.cfg }

// Request posts body as JSON to endpoint and decodes the answer into out
// (skipped when out is nil). It retries with backoff and returns an error
// wrapping httputil.ErrGaveUp once the ceiling is exceeded.
func (c *Connector) Request(ctx context.Context, endpoint string, body, out any) error {
	req, err := c.newRequest(ctx, endpoint, body)
	if err != nil {
		return err
	}
	data, err := httputil.DoWithBackoff(ctx, c.client, req, c.Policy)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Connector) newRequest(ctx context.Context, endpoint string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return req, nil
}

type identity struct {
	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id"`
}

func (c *Connector) identity() identity {
	return identity{CampaignID: c.cfg.CampaignID, UserID: c.cfg.UserID}
}

// Fetch retrieves the item chosen by sel.
func (c *Connector) Fetch(ctx context.Context, sel Selector) (types.FetchResult, error) {
	if sel.Next {
		return c.FetchNext(ctx)
	}
	return c.FetchIndex(ctx, sel.Index)
}

// FetchNext asks the server for the next unfinished item.
func (c *Connector) FetchNext(ctx context.Context) (types.FetchResult, error) {
	var r types.FetchResult
	err := c.Request(ctx, EndpointNextItem, c.identity(), &r)
	return r, err
}

// FetchIndex asks the server for item i.
func (c *Connector) FetchIndex(ctx context.Context, i int) (types.FetchResult, error) {
	body := struct {
		identity
		ItemIndex int `json:"item_i"`
	}{c.identity(), i}

	var r types.FetchResult
	err := c.Request(ctx, EndpointIndexItem, body, &r)
	return r, err
}

// Submit sends the response for item itemIndex and returns the server's
// acknowledgement. Any 2xx answer acknowledges except a literal JSON
// false.
func (c *Connector) Submit(ctx context.Context, itemIndex int, sub types.Submission) (bool, error) {
	body := struct {
		identity
		ItemIndex int              `json:"item_i"`
		Payload   types.Submission `json:"payload"`
	}{c.identity(), itemIndex, sub}

	var raw json.RawMessage
	if err := c.Request(ctx, EndpointLogResponse, body, &raw); err != nil {
		return false, err
	}
	return !bytes.Equal(bytes.TrimSpace(raw), []byte("false")), nil
}

// LogValidation reports the outcome of one validation check. It returns
// immediately; the request runs detached with a single attempt bounded
// by TelemetryTimeout, and failures are only logged. Wait blocks until
// all pending reports finish.
func (c *Connector) LogValidation(ctx context.Context, itemIndex, subIndex, candidateIndex int, passed bool) {
	body := struct {
		identity
		ItemIndex      int  `json:"item_i"`
		SubIndex       int  `json:"sub_i"`
		CandidateIndex int  `json:"candidate_i"`
		Passed         bool `json:"passed"`
	}{c.identity(), itemIndex, subIndex, candidateIndex, passed}

	timeout := c.TelemetryTimeout
	if timeout <= 0 {
		timeout = DefaultTelemetryTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		req, err := c.newRequest(ctx, EndpointLogValidation, body)
		if err == nil {
			_, err = httputil.DoOnce(ctx, c.client, req)
		}
		if err != nil {
			c.logger.Debug("validation telemetry dropped",
				"item", itemIndex, "sub", subIndex, "candidate", candidateIndex, "error", err)
		}
	}()
}

// Wait blocks until every LogValidation report has finished.
func (c *Connector) Wait() { c.wg.Wait() }
