// Package triage turns a channel's recent history into a classified
// summary: fetch the window, tag each message against the taxonomy,
// aggregate the counts, and post the result back in a thread.
package triage

import (
	"strconv"
	"strings"
	"time"

	"github.com/crestline/triagebot/pkg/history"
)

// Request is one triage run as asked for by a user.
type Request struct {
	ID               string
	TenantID         string
	ChannelID        string
	HoursBack        int
	RequestingUserID string
	ReceivedAt       time.Time
}

// ParseHoursBack reads the free-text window argument of a command.
// Anything that is not a positive integer falls back to def.
func ParseHoursBack(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Enriched is a history message plus its classification facets.
type Enriched struct {
	history.Message

	Levels   map[string]bool
	Statuses map[string]bool
}

// Tracked reports whether the message carries at least one facet and
// therefore counts toward the summary.
func (e Enriched) Tracked() bool {
	return len(e.Levels) > 0 || len(e.Statuses) > 0
}
