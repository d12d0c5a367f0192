package diff

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultSummaryCap bounds how many individual changes a summary names
// before truncating with an "...and N more changes" tail.
const DefaultSummaryCap = 5

// Summarize renders a human-readable change summary, leading with the
// most affected sections.
func Summarize(changes []Change, limit int) string {
	if len(changes) == 0 {
		return "No changes"
	}
	if limit <= 0 {
		limit = DefaultSummaryCap
	}

	bySection := GroupBySection(changes)
	type sectionCount struct {
		section string
		count   int
	}
	counts := make([]sectionCount, 0, len(bySection))
	for sec, chs := range bySection {
		counts = append(counts, sectionCount{section: sec, count: len(chs)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].section < counts[j].section
	})

	var sections []string
	for i, sc := range counts {
		if i >= 3 {
			break
		}
		sections = append(sections, sc.section)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d change(s) in %s", len(changes), strings.Join(sections, ", "))
	if len(counts) > 3 {
		fmt.Fprintf(&b, " and %d other section(s)", len(counts)-3)
	}
	b.WriteString(": ")

	shown := changes
	if len(shown) > limit {
		shown = shown[:limit]
	}
	descs := make([]string, len(shown))
	for i, c := range shown {
		descs[i] = c.Description
	}
	b.WriteString(strings.Join(descs, "; "))
	if extra := len(changes) - len(shown); extra > 0 {
		fmt.Fprintf(&b, " ...and %d more changes", extra)
	}
	return b.String()
}

// GroupBySection buckets flat changes back by their section.
func GroupBySection(changes []Change) map[string][]Change {
	out := make(map[string][]Change)
	for _, c := range changes {
		out[c.Section] = append(out[c.Section], c)
	}
	return out
}
