// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package span

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/annotator/pkg/types"
)

// CategorySeparator joins a main category and its subcategory.
const CategorySeparator = "/"

// OtherCategory is the main category that needs no subcategory.
const OtherCategory = "Other"

// ErrUnknownCategory is returned for a selection outside the taxonomy.
var ErrUnknownCategory = errors.New("unknown category")

// Taxonomy maps each main category to its subcategories.
type Taxonomy map[string][]string

// MQM is the two-level error typology offered when a protocol asks for
// categories.
var MQM = Taxonomy{
	"Accuracy":          {"Addition", "Omission", "Mistranslation", "Untranslated text"},
	"Fluency":           {"Character encoding", "Grammar", "Inconsistency", "Punctuation", "Register", "Spelling"},
	"Style":             {"Awkward"},
	"Terminology":       {"Inappropriate for context", "Inconsistent use"},
	"Non-translation":   {"Non-translation"},
	"Locale convention": {"Address format", "Currency format", "Date format", "Name format", "Telephone format", "Time format"},
	OtherCategory:       {OtherCategory},
}

// Mains returns the main categories in sorted order.
func (t Taxonomy) Mains() []string {
	out := make([]string, 0, len(t))
	for m := range t {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Allows reports whether main, and sub when non-empty, belong to t.
func (t Taxonomy) Allows(main, sub string) bool {
	subs, ok := t[main]
	if !ok {
		return false
	}
	return sub == "" || slices.Contains(subs, sub)
}

// SetCategory applies a two-level category selection to s. An empty main
// clears the category. A main alone is stored bare and stays incomplete
// until a subcategory is chosen, except OtherCategory, which completes as
// "Other/Other". A nil taxonomy accepts any names.
func SetCategory(s *types.ErrorSpan, main, sub string, tax Taxonomy) error {
	main, sub = strings.TrimSpace(main), strings.TrimSpace(sub)
	if main == "" {
		s.Category = nil
		return nil
	}
	if main == OtherCategory && sub == "" {
		sub = OtherCategory
	}
	if tax != nil && !tax.Allows(main, sub) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, joinCategory(main, sub))
	}
	v := joinCategory(main, sub)
	s.Category = &v
	return nil
}

// SplitCategory separates a stored category into main and sub.
func SplitCategory(category string) (main, sub string) {
	main, sub, _ = strings.Cut(category, CategorySeparator)
	return main, sub
}

func joinCategory(main, sub string) string {
	if sub == "" {
		return main
	}
	return main + CategorySeparator + sub
}

func isLeaf(category string) bool {
	return strings.Contains(category, CategorySeparator)
}
