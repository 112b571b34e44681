// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// ActionKind names an entry of the per-item action log.
type ActionKind string

const (
	ActionLoad             ActionKind = "load"
	ActionCreateSpan       ActionKind = "create_span"
	ActionDeleteSpan       ActionKind = "delete_span"
	ActionSeverity         ActionKind = "severity"
	ActionCategory         ActionKind = "category"
	ActionScore            ActionKind = "score"
	ActionValidationFailed ActionKind = "validation_failed"
	ActionSubmit           ActionKind = "submit"
)

// Action is one timestamped entry of the action log. Optional fields are
// set according to Kind.
type Action struct {
	// Time is seconds since the Unix epoch.
	Time float64    `json:"time" yaml:"time"`
	Kind ActionKind `json:"action" yaml:"action"`

	Index     *int `json:"index,omitempty" yaml:"index,omitempty"`
	Candidate *int `json:"candidate,omitempty" yaml:"candidate,omitempty"`
	StartI    *int `json:"start_i,omitempty" yaml:"start_i,omitempty"`
	EndI      *int `json:"end_i,omitempty" yaml:"end_i,omitempty"`

	// Value is the new score, severity, or category.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	SkipTutorial bool `json:"skip_tutorial,omitempty" yaml:"skip_tutorial,omitempty"`
}

// Submission is the payload sent to the submission sink for one item.
type Submission struct {
	Annotations []DocumentResponse `json:"annotations" yaml:"annotations"`
	Actions     []Action           `json:"actions" yaml:"actions"`

	// Item echoes the fetch answer of the item exactly as issued.
	Item json.RawMessage `json:"item" yaml:"-"`

	// Validations holds the outcome of every checked rule, in segment
	// then candidate order. Omitted when nothing was checked.
	Validations []bool `json:"validations,omitempty" yaml:"validations,omitempty"`

	ValidationSkipped bool   `json:"validation_skipped,omitempty" yaml:"validation_skipped,omitempty"`
	Comment           string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Draft is an in-progress response kept locally after a submission gave
// up, so the work survives a restart.
type Draft struct {
	ItemIndex int                `json:"item_i" yaml:"item_i"`
	Responses []DocumentResponse `json:"responses" yaml:"responses"`
	Comment   string             `json:"comment,omitempty" yaml:"comment,omitempty"`
	SavedAt   time.Time          `json:"saved_at" yaml:"saved_at"`
}
