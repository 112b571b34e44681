// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validation evaluates candidate responses against the
// declarative rules attached to items (attention checks and tutorial
// items). All functions are pure.
package validation

import (
	"fmt"
	"math"

	"github.com/pdiddy/annotator/pkg/types"
)

// Result is the outcome of checking one response against one rule.
type Result struct {
	Valid bool

	// Reasons lists every failed check, for logs and messages.
	Reasons []string
}

// Validate reports whether resp satisfies rule. A nil rule is always
// satisfied. all holds the responses of every candidate of the segment
// and is only consulted for score_greater_than.
func Validate(resp types.CandidateResponse, rule *types.ValidationRule, all []types.CandidateResponse, candidateIndex int) bool {
	return Check(resp, rule, all, candidateIndex).Valid
}

// Check is Validate with the failing reasons.
func Check(resp types.CandidateResponse, rule *types.ValidationRule, all []types.CandidateResponse, candidateIndex int) Result {
	if rule == nil {
		return Result{Valid: true}
	}

	var reasons []string
	if r := rule.ScoreRange; r != nil {
		switch {
		case resp.Score == nil:
			reasons = append(reasons, "score missing")
		case !finite(*resp.Score):
			reasons = append(reasons, fmt.Sprintf("score %g is not a number", *resp.Score))
		case *resp.Score < r[0] || *resp.Score > r[1]:
			reasons = append(reasons, fmt.Sprintf("score %g outside [%g, %g]", *resp.Score, r[0], r[1]))
		}
	}

	for i, req := range rule.RequiredSpans {
		if !anyMatch(req, resp.ErrorSpans) {
			reasons = append(reasons, fmt.Sprintf("required span %d not marked", i))
		}
	}

	if ref := rule.ScoreGreaterThan; ref != nil {
		if reason := checkGreater(resp, *ref, all, candidateIndex); reason != "" {
			reasons = append(reasons, reason)
		}
	}

	return Result{Valid: len(reasons) == 0, Reasons: reasons}
}

func checkGreater(resp types.CandidateResponse, ref int, all []types.CandidateResponse, self int) string {
	if ref < 0 || ref >= len(all) {
		return fmt.Sprintf("candidate %d compared with nonexistent candidate %d", self, ref)
	}
	other := all[ref].Score
	switch {
	case resp.Score == nil:
		return "score missing"
	case other == nil:
		return fmt.Sprintf("candidate %d has no score", ref)
	case !finite(*resp.Score) || !finite(*other):
		return fmt.Sprintf("score %g not comparable with candidate %d score %g", *resp.Score, ref, *other)
	case *resp.Score <= *other:
		return fmt.Sprintf("score %g not greater than candidate %d score %g", *resp.Score, ref, *other)
	}
	return ""
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func anyMatch(req types.RequiredSpan, spans []types.ErrorSpan) bool {
	for _, s := range spans {
		if Matches(req, s) {
			return true
		}
	}
	return false
}

// Matches reports whether s satisfies every bound req specifies.
func Matches(req types.RequiredSpan, s types.ErrorSpan) bool {
	if req.StartI != nil && !req.StartI.Contains(float64(s.StartI)) {
		return false
	}
	if req.EndI != nil && !req.EndI.Contains(float64(s.EndI)) {
		return false
	}
	if req.Severity != nil && (s.Severity == nil || *s.Severity != *req.Severity) {
		return false
	}
	return true
}

// HasAllowSkip reports whether any rule, shared or per candidate, offers
// the skip-tutorial escape.
func HasAllowSkip(validations []types.ItemValidation) bool {
	for _, v := range validations {
		for _, r := range v.Rules() {
			if r.AllowSkip {
				return true
			}
		}
	}
	return false
}

// Blocking reports whether a failure of rule stops the annotator from
// advancing. Only rules that carry a warning block.
func Blocking(rule *types.ValidationRule) bool {
	return rule != nil && rule.Warning != ""
}
