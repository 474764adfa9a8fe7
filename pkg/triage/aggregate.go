package triage

import (
	"fmt"
	"strings"

	"github.com/crestline/triagebot/pkg/taxonomy"
)

// StatusCount is the number of messages at one status within a level.
type StatusCount struct {
	Status taxonomy.Entry
	Count  int
}

// LevelSummary is the aggregate row for one severity level.
type LevelSummary struct {
	Level    taxonomy.Entry
	Total    int
	ByStatus []StatusCount
}

// Summary is the aggregate of one triage run.
type Summary struct {
	Levels    []LevelSummary
	Tracked   int
	Scanned   int
	Truncated bool
}

// Summarize counts tracked messages per level and per status within
// each level. Rows follow taxonomy order and zero-count rows are kept
// so the posted table always has the same shape. A message matching
// several levels counts once under each.
func Summarize(msgs []Enriched, tax taxonomy.Taxonomy) Summary {
	s := Summary{Scanned: len(msgs)}
	for _, m := range msgs {
		if m.Tracked() {
			s.Tracked++
		}
	}

	for _, level := range tax.Levels {
		row := LevelSummary{Level: level}
		for _, m := range msgs {
			if !m.Levels[level.Key] {
				continue
			}
			row.Total++
		}
		for _, status := range tax.Statuses {
			sc := StatusCount{Status: status}
			for _, m := range msgs {
				if m.Levels[level.Key] && m.Statuses[status.Key] {
					sc.Count++
				}
			}
			row.ByStatus = append(row.ByStatus, sc)
		}
		s.Levels = append(s.Levels, row)
	}
	return s
}

// FormatSummary renders the summary as Slack mrkdwn for the thread
// reply.
func FormatSummary(s Summary, hoursBack int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*Triage summary* for the last %dh: %d of %d messages tracked\n", hoursBack, s.Tracked, s.Scanned)
	if s.Truncated {
		b.WriteString("_History was cut off at the page limit; older messages in the window are not counted._\n")
	}
	b.WriteString("\n")

	for _, row := range s.Levels {
		fmt.Fprintf(&b, "%s *%s*: %d", row.Level.Emoji, row.Level.Label, row.Total)
		if row.Total > 0 {
			var parts []string
			for _, sc := range row.ByStatus {
				if sc.Count == 0 {
					continue
				}
				parts = append(parts, fmt.Sprintf("%s %s %d", sc.Status.Emoji, sc.Status.Label, sc.Count))
			}
			if len(parts) > 0 {
				fmt.Fprintf(&b, "  (%s)", strings.Join(parts, ", "))
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}
