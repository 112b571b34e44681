// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package span models the error spans placed over the units of one
// candidate text. Spans on a candidate never overlap.
package span

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MissingText is the label of the sentinel unit appended to a candidate
// so annotators can mark omitted content.
const MissingText = "[missing]"

// mediaPrefixes mark candidate texts that embed media instead of prose.
// Such candidates have no units.
var mediaPrefixes = []string{"<audio ", "<video ", "<img ", "<iframe "}

// Unit is one annotatable character of a candidate. WordStart and
// WordEnd delimit the word containing it; a non-alphanumeric unit is its
// own word.
type Unit struct {
	Index     int
	Candidate int
	WordStart int
	WordEnd   int
	Text      string
	Missing   bool
}

// IsMedia reports whether text embeds media and cannot be split.
func IsMedia(text string) bool {
	for _, p := range mediaPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// Split turns text into the units of candidate cand. Newlines are layout
// only and produce no unit. When withMissing is set a sentinel missing
// unit is appended. Media texts produce no units at all.
func Split(cand int, text string, withMissing bool) []Unit {
	if IsMedia(text) {
		return nil
	}

	var units []Unit
	for _, r := range text {
		if r == '\n' {
			continue
		}
		units = append(units, Unit{Index: len(units), Candidate: cand, Text: string(r)})
	}
	markWords(units)

	if withMissing {
		i := len(units)
		units = append(units, Unit{
			Index: i, Candidate: cand, WordStart: i, WordEnd: i,
			Text: MissingText, Missing: true,
		})
	}
	return units
}

// markWords fills WordStart and WordEnd: maximal runs of letters and
// digits form a word.
func markWords(units []Unit) {
	for i := 0; i < len(units); {
		if !isWordRune(units[i].Text) {
			units[i].WordStart, units[i].WordEnd = i, i
			i++
			continue
		}
		j := i
		for j+1 < len(units) && isWordRune(units[j+1].Text) {
			j++
		}
		for k := i; k <= j; k++ {
			units[k].WordStart, units[k].WordEnd = i, j
		}
		i = j + 1
	}
}

func isWordRune(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
