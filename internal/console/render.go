// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package console

import (
	"fmt"
	"strings"

	"github.com/pdiddy/annotator/internal/span"
	"github.com/pdiddy/annotator/pkg/types"
)

func (c *Console) show() {
	v := c.s.View()
	if v.Items == nil {
		fmt.Fprintf(c.out, "no item open (%s)\n", v.State)
		return
	}

	fmt.Fprintf(c.out, "item %d  [%d/%d done]", v.ItemIndex, types.Completed(v.Progress), len(v.Progress))
	if v.Frozen {
		fmt.Fprint(c.out, "  (view only)")
	}
	fmt.Fprintln(c.out)

	for seg, item := range v.Items {
		fmt.Fprintf(c.out, "segment %d\n  src: %s\n", seg, item.Source)
		if item.Instructions != "" {
			fmt.Fprintf(c.out, "  note: %s\n", item.Instructions)
		}
		for cand, text := range item.Candidates.Texts {
			resp := v.Responses[seg][cand]
			units, _ := c.s.Units(seg, cand)
			fmt.Fprintf(c.out, "  tgt %d: %s\n", cand, Mark(text, units, resp.ErrorSpans))
			if v.Info.Score {
				score := "-"
				if resp.Score != nil {
					score = fmt.Sprintf("%g", *resp.Score)
				}
				fmt.Fprintf(c.out, "         score: %s\n", score)
			}
			for n, sp := range resp.ErrorSpans {
				fmt.Fprintf(c.out, "         span %d: %d-%d %s\n", n, sp.StartI, sp.EndI, label(sp))
			}
		}
	}
	if v.Comment != "" {
		fmt.Fprintf(c.out, "comment: %s\n", v.Comment)
	}
	if v.Editor != nil {
		fmt.Fprintf(c.out, "editing span %d of segment %d candidate %d\n", v.Editor.Span, v.Editor.Segment, v.Editor.Candidate)
	}
}

func (c *Console) status() {
	v := c.s.View()
	fmt.Fprintf(c.out, "state: %s\nitem: %d\nprogress: %d/%d\ntime: %.0fs\n",
		v.State, v.ItemIndex, types.Completed(v.Progress), len(v.Progress), v.Time)
	if v.UnsavedWork {
		fmt.Fprintln(c.out, "unsaved work: yes")
	}
	if v.SkipAvailable {
		fmt.Fprintln(c.out, "skip available")
	}
	for _, r := range c.s.CanAdvance() {
		fmt.Fprintf(c.out, "blocked: %s\n", r)
	}
}

// Mark renders a candidate with its spans in brackets, each followed by
// its position in spans. Media candidates are returned unchanged.
func Mark(text string, units []span.Unit, spans []types.ErrorSpan) string {
	if len(units) == 0 {
		return text
	}
	starts := make(map[int]bool, len(spans))
	ends := make(map[int][]int, len(spans))
	for n, sp := range spans {
		starts[sp.StartI] = true
		ends[sp.EndI] = append(ends[sp.EndI], n)
	}

	var b strings.Builder
	for _, u := range units {
		if u.Missing {
			b.WriteByte(' ')
		}
		if starts[u.Index] {
			b.WriteByte('[')
		}
		if u.Missing {
			b.WriteString("<missing>")
		} else {
			b.WriteString(u.Text)
		}
		for _, n := range ends[u.Index] {
			fmt.Fprintf(&b, "]%d", n)
		}
	}
	return b.String()
}

func label(sp types.ErrorSpan) string {
	sev := "?"
	if sp.Severity != nil {
		sev = string(*sp.Severity)
	}
	if sp.Category != nil {
		return sev + " " + *sp.Category
	}
	return sev
}
