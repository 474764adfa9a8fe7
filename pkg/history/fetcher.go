// Package history retrieves the windowed message history of a channel.
// The fetcher pages through the platform history API until the requested
// window is covered, joining the channel first when the bot has no
// visibility, and never reads past the window start by more than one
// overscan page.
package history

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/crestline/triagebot/pkg/logger"
	"github.com/crestline/triagebot/pkg/slackapi"
)

// ChannelAccessError means the channel does not exist or the bot cannot
// read it. It is surfaced to the requesting user instead of crashing the
// request.
type ChannelAccessError struct {
	ChannelID string
	Err       error
}

func (e *ChannelAccessError) Error() string {
	return fmt.Sprintf("channel %s is not accessible: %v", e.ChannelID, e.Err)
}

func (e *ChannelAccessError) Unwrap() error { return e.Err }

// Message is one channel message inside the window.
type Message struct {
	ID        string // platform timestamp, unique within the channel
	AuthorID  string
	Text      string
	Timestamp time.Time
	ThreadID  string
}

// Fetcher pages through channel history.
type Fetcher struct {
	api      slackapi.API
	pageSize int
	maxPages int
}

// NewFetcher builds a fetcher. pageSize and maxPages fall back to 200
// and 25 when non-positive; maxPages is the safety valve that keeps a
// mistyped window from walking the whole channel archive.
func NewFetcher(api slackapi.API, pageSize, maxPages int) *Fetcher {
	if pageSize <= 0 {
		pageSize = 200
	}
	if maxPages <= 0 {
		maxPages = 25
	}
	return &Fetcher{api: api, pageSize: pageSize, maxPages: maxPages}
}

// FetchWindow returns every message with timestamp in
// [now - hoursBack hours, now], sorted by timestamp ascending. truncated
// reports that the page cap fired before the window start was reached.
func (f *Fetcher) FetchWindow(ctx context.Context, channelID string, hoursBack int) (msgs []Message, truncated bool, err error) {
	now := time.Now()
	oldest := now.Add(-time.Duration(hoursBack) * time.Hour)

	if err := f.ensureAccess(channelID); err != nil {
		return nil, false, err
	}

	params := &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     f.pageSize,
		Oldest:    formatTS(oldest),
		Inclusive: true,
	}

	for page := 0; ; page++ {
		if page >= f.maxPages {
			logger.WarnCF("history", "Page cap hit before window start", map[string]any{
				"channel":    channelID,
				"hours_back": hoursBack,
				"max_pages":  f.maxPages,
			})
			truncated = true
			break
		}

		resp, err := f.api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			if IsAccessError(err) {
				return nil, false, &ChannelAccessError{ChannelID: channelID, Err: err}
			}
			return nil, false, fmt.Errorf("fetching history page %d for %s: %w", page, channelID, err)
		}

		pastWindow := false
		for _, raw := range resp.Messages {
			ts, err := parseTS(raw.Timestamp)
			if err != nil {
				continue
			}
			if ts.Before(oldest) {
				pastWindow = true
				continue
			}
			msgs = append(msgs, Message{
				ID:        raw.Timestamp,
				AuthorID:  raw.User,
				Text:      raw.Text,
				Timestamp: ts,
				ThreadID:  raw.ThreadTimestamp,
			})
		}

		if pastWindow || !resp.HasMore {
			break
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs, truncated, nil
}

// ensureAccess joins the channel when possible. Joining an already-joined
// channel is a no-op on the platform side; DMs and private channels the
// bot is already in report a join error that is safe to ignore.
func (f *Fetcher) ensureAccess(channelID string) error {
	if _, _, _, err := f.api.JoinConversation(channelID); err != nil {
		if IsAccessError(err) {
			return &ChannelAccessError{ChannelID: channelID, Err: err}
		}
		// method_not_supported_for_channel_type and already_in_channel
		// are expected for DMs and existing memberships.
		logger.DebugCF("history", "Join skipped", map[string]any{
			"channel": channelID,
			"reason":  err.Error(),
		})
	}
	return nil
}

var accessErrorCodes = []string{
	"channel_not_found",
	"not_in_channel",
	"access_denied",
	"is_archived",
	"missing_scope",
}

// IsAccessError reports whether err carries one of the platform error
// codes that mean the bot cannot see or post into the channel.
func IsAccessError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range accessErrorCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// parseTS converts a platform "seconds.fraction" timestamp to time.Time.
func parseTS(ts string) (time.Time, error) {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), nil
}

// formatTS renders a time as a platform timestamp string.
func formatTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
