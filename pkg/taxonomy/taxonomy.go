// Package taxonomy defines the static level/status taxonomy the triage
// pipeline classifies messages against. The taxonomy is loaded once from
// configuration at process start and is immutable afterwards; the
// classifier, aggregator and presentation all share it.
package taxonomy

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Entry is a single level or status: a stable key, a display label, an
// emoji for the summary, and the message-text tags that select it.
type Entry struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Emoji string   `json:"emoji"`
	Tags  []string `json:"tags"`
}

// Taxonomy is the ordered set of urgency levels and workflow statuses.
// Order is a presentation contract: summaries and export columns follow it.
type Taxonomy struct {
	Levels   []Entry `json:"levels"`
	Statuses []Entry `json:"statuses"`
}

// Default returns the built-in taxonomy used when the config does not
// override it.
func Default() Taxonomy {
	return Taxonomy{
		Levels: []Entry{
			{Key: "critical", Label: "Critical", Emoji: "🔴", Tags: []string{"critical", "p0"}},
			{Key: "high", Label: "High", Emoji: "🟠", Tags: []string{"high", "p1"}},
			{Key: "medium", Label: "Medium", Emoji: "🟡", Tags: []string{"medium", "p2"}},
			{Key: "low", Label: "Low", Emoji: "🟢", Tags: []string{"low", "p3"}},
		},
		Statuses: []Entry{
			{Key: "open", Label: "Open", Emoji: "📬", Tags: []string{"open"}},
			{Key: "acked", Label: "Acknowledged", Emoji: "👀", Tags: []string{"ack", "acked"}},
			{Key: "resolved", Label: "Resolved", Emoji: "✅", Tags: []string{"resolved", "done"}},
		},
	}
}

// Validate checks that keys are unique across the whole taxonomy and that
// every entry carries at least one tag.
func (t Taxonomy) Validate() error {
	seen := make(map[string]bool)
	for _, e := range append(append([]Entry{}, t.Levels...), t.Statuses...) {
		if e.Key == "" {
			return fmt.Errorf("taxonomy entry %q has empty key", e.Label)
		}
		if seen[e.Key] {
			return fmt.Errorf("duplicate taxonomy key %q", e.Key)
		}
		seen[e.Key] = true
		if len(e.Tags) == 0 {
			return fmt.Errorf("taxonomy entry %q has no tags", e.Key)
		}
	}
	if len(t.Levels) == 0 {
		return fmt.Errorf("taxonomy has no levels")
	}
	if len(t.Statuses) == 0 {
		return fmt.Errorf("taxonomy has no statuses")
	}
	return nil
}

// Matches reports whether the message text selects this entry.
// A tag matches as a "#tag" token or a ":tag:" emoji code, case-insensitive
// and bounded by non-word characters. The check is pure and deterministic.
func (e Entry) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, tag := range e.Tags {
		tag = strings.ToLower(tag)
		if containsToken(lower, "#"+tag) || strings.Contains(lower, ":"+tag+":") {
			return true
		}
	}
	return false
}

// containsToken reports whether token occurs in text followed by a
// non-word rune or end of string, so "#p0" does not match "#p00".
func containsToken(text, token string) bool {
	for from := 0; ; {
		idx := strings.Index(text[from:], token)
		if idx < 0 {
			return false
		}
		end := from + idx + len(token)
		if end == len(text) {
			return true
		}
		if r, _ := utf8.DecodeRuneInString(text[end:]); !isWordRune(r) {
			return true
		}
		from = end
	}
}

func isWordRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
