// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validation

import "github.com/pdiddy/annotator/pkg/types"

// Outcome is the result for one candidate of one segment. Rule is nil
// for a candidate without a rule, which always passes.
type Outcome struct {
	Segment   int
	Candidate int
	Rule      *types.ValidationRule
	Result
}

// Blocking reports whether this outcome prevents advancing.
func (o Outcome) Blocking() bool {
	return !o.Valid && Blocking(o.Rule)
}

// Report collects the outcomes of every candidate of a task item, in
// segment then candidate order.
type Report struct {
	Outcomes []Outcome
}

// CheckItem validates the response of every segment against its item's
// rules.
func CheckItem(items []types.Item, responses []types.DocumentResponse) Report {
	var rep Report
	for seg, doc := range responses {
		if seg >= len(items) {
			break
		}
		all := []types.CandidateResponse(doc)
		for cand, resp := range doc {
			rule := items[seg].Validation.ForCandidate(cand)
			rep.Outcomes = append(rep.Outcomes, Outcome{
				Segment:   seg,
				Candidate: cand,
				Rule:      rule,
				Result:    Check(resp, rule, all, cand),
			})
		}
	}
	return rep
}

// Passed reports whether every outcome is valid.
func (r Report) Passed() bool {
	for _, o := range r.Outcomes {
		if !o.Valid {
			return false
		}
	}
	return true
}

// FirstBlocking returns the first outcome that blocks advancing.
func (r Report) FirstBlocking() (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Blocking() {
			return o, true
		}
	}
	return Outcome{}, false
}

// Flags returns the validity of each outcome that carries a rule, the
// form sent with a submission. It is nil when no rule was checked.
func (r Report) Flags() []bool {
	var out []bool
	for _, o := range r.Outcomes {
		if o.Rule != nil {
			out = append(out, o.Valid)
		}
	}
	return out
}
