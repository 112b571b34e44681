// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned for fetch results whose status is neither
// ok nor completed.
var ErrUnknownStatus = errors.New("unrecognized server status")

// FetchKind discriminates FetchResult.
type FetchKind int

const (
	FetchUnknown FetchKind = iota
	FetchOK
	FetchCompleted
)

func (k FetchKind) String() string {
	switch k {
	case FetchOK:
		return "ok"
	case FetchCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// FetchResult is the answer of the item source. Exactly one of Item and
// Completion is set, according to Kind.
type FetchResult struct {
	Kind   FetchKind
	Status string

	Item       *ItemPayload
	Completion *Completion
}

func (r *FetchResult) UnmarshalJSON(data []byte) error {
	var head struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("fetch result: %w", err)
	}
	*r = FetchResult{Status: head.Status}

	switch head.Status {
	case "ok":
		var p ItemPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		r.Kind = FetchOK
		r.Item = &p
	case "completed", "goodbye":
		var c Completion
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("completion: %w", err)
		}
		r.Kind = FetchCompleted
		r.Completion = &c
	default:
		r.Kind = FetchUnknown
	}
	return nil
}

// ProtocolInfo carries the item index and the protocol flags that decide
// which affordances and checks apply.
type ProtocolInfo struct {
	ItemIndex       int    `json:"item_i" yaml:"item_i"`
	Score           bool   `json:"protocol_score" yaml:"protocol_score"`
	ErrorSpans      bool   `json:"protocol_error_spans" yaml:"protocol_error_spans"`
	ErrorCategories bool   `json:"protocol_error_categories" yaml:"protocol_error_categories"`
	StatusMessage   string `json:"status_message,omitempty" yaml:"status_message,omitempty"`
}

// SpansEnabled reports whether the protocol lets annotators mark spans.
func (p ProtocolInfo) SpansEnabled() bool {
	return p.ErrorSpans || p.ErrorCategories
}

// ItemPayload is an "ok" fetch result.
type ItemPayload struct {
	// Progress has one entry per task item, true once submitted.
	Progress []bool

	// Time is the cumulative annotation time in seconds.
	Time float64

	// Items are the segments of the fetched task item.
	Items []Item

	// Raw is the whole fetch answer exactly as issued, echoed back on
	// submission.
	Raw json.RawMessage

	// Existing holds a previous submission for this item, if any.
	Existing *ExistingPayload

	Info ProtocolInfo
}

func (p *ItemPayload) UnmarshalJSON(data []byte) error {
	var wire struct {
		Progress []bool           `json:"progress"`
		Time     float64          `json:"time"`
		Payload  json.RawMessage  `json:"payload"`
		Existing *ExistingPayload `json:"payload_existing"`
		Info     ProtocolInfo     `json:"info"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("item payload: %w", err)
	}

	var items []Item
	if len(wire.Payload) > 0 {
		if err := json.Unmarshal(wire.Payload, &items); err != nil {
			return fmt.Errorf("item payload: %w", err)
		}
	}

	*p = ItemPayload{
		Progress: wire.Progress,
		Time:     wire.Time,
		Items:    items,
		Raw:      append(json.RawMessage(nil), data...),
		Existing: wire.Existing,
		Info:     wire.Info,
	}
	return nil
}

// ExistingPayload is a previously submitted response. Servers send it as
// {"annotations": [...]}, {"annotation": [...]} or a bare array; entries
// are either one CandidateResponse per segment or one DocumentResponse per
// segment.
type ExistingPayload struct {
	Responses []DocumentResponse
	Comment   string
}

func (e *ExistingPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var list json.RawMessage
	var comment string

	if len(data) > 0 && data[0] == '[' {
		list = data
	} else {
		var wire struct {
			Annotations json.RawMessage `json:"annotations"`
			Annotation  json.RawMessage `json:"annotation"`
			Comment     string          `json:"comment"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return fmt.Errorf("payload_existing: %w", err)
		}
		list = wire.Annotations
		if len(list) == 0 {
			list = wire.Annotation
		}
		comment = wire.Comment
	}

	docs, err := decodeResponses(list)
	if err != nil {
		return fmt.Errorf("payload_existing: %w", err)
	}
	*e = ExistingPayload{Responses: docs, Comment: comment}
	return nil
}

func decodeResponses(data json.RawMessage) ([]DocumentResponse, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	docs := make([]DocumentResponse, 0, len(entries))
	for _, raw := range entries {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var doc DocumentResponse
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}
		var r CandidateResponse
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		docs = append(docs, DocumentResponse{r})
	}
	return docs, nil
}

// Completion is a "completed" fetch result: the task is done.
type Completion struct {
	Progress []bool  `json:"progress" yaml:"progress"`
	Time     float64 `json:"time" yaml:"time"`
	Token    string  `json:"token" yaml:"token"`

	// Message is the campaign's goodbye text with the token substituted.
	Message string `json:"instructions_goodbye,omitempty" yaml:"message,omitempty"`
}

// Completed counts submitted items in a progress vector.
func Completed(progress []bool) int {
	n := 0
	for _, done := range progress {
		if done {
			n++
		}
	}
	return n
}
