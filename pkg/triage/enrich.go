package triage

import (
	"github.com/crestline/triagebot/pkg/history"
	"github.com/crestline/triagebot/pkg/taxonomy"
)

// Enrich classifies every message against the taxonomy. The result is
// total: each input message yields exactly one Enriched in the same
// order, whether or not any facet matched. Messages written by
// excludedAuthorID (the bot itself) are dropped so summary posts never
// feed the next run.
func Enrich(msgs []history.Message, tax taxonomy.Taxonomy, excludedAuthorID string) []Enriched {
	out := make([]Enriched, 0, len(msgs))
	for _, msg := range msgs {
		if excludedAuthorID != "" && msg.AuthorID == excludedAuthorID {
			continue
		}
		e := Enriched{
			Message:  msg,
			Levels:   map[string]bool{},
			Statuses: map[string]bool{},
		}
		for _, entry := range tax.Levels {
			if entry.Matches(msg.Text) {
				e.Levels[entry.Key] = true
			}
		}
		for _, entry := range tax.Statuses {
			if entry.Matches(msg.Text) {
				e.Statuses[entry.Key] = true
			}
		}
		out = append(out, e)
	}
	return out
}
