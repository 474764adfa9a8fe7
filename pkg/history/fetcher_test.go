package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/crestline/triagebot/pkg/slackapi/slackapitest"
)

func tsString(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

func TestFetchWindowBoundaries(t *testing.T) {
	now := time.Now()
	inside := now.Add(-30 * time.Minute)
	edge := now.Add(-59 * time.Minute)
	outside := now.Add(-2 * time.Hour)

	fake := &slackapitest.Fake{
		HistoryPages: []slack.GetConversationHistoryResponse{
			{
				Messages: []slack.Message{
					slackapitest.HistoryMessage(tsString(inside), "U1", "recent"),
					slackapitest.HistoryMessage(tsString(edge), "U2", "near the edge"),
					slackapitest.HistoryMessage(tsString(outside), "U3", "too old"),
				},
			},
		},
	}

	msgs, truncated, err := NewFetcher(fake, 200, 25).FetchWindow(context.Background(), "C001", 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 in-window messages, got %d", len(msgs))
	}
	// Sorted ascending regardless of the platform's newest-first pages.
	if !msgs[0].Timestamp.Before(msgs[1].Timestamp) {
		t.Error("messages not sorted ascending")
	}
	if msgs[0].Text != "near the edge" || msgs[1].Text != "recent" {
		t.Errorf("wrong messages survived: %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestFetchWindowPaginatesUntilWindowStart(t *testing.T) {
	now := time.Now()
	fake := &slackapitest.Fake{
		HistoryPages: []slack.GetConversationHistoryResponse{
			{
				Messages: []slack.Message{
					slackapitest.HistoryMessage(tsString(now.Add(-10*time.Minute)), "U1", "page one"),
				},
				HasMore: true,
				ResponseMetaData: struct {
					NextCursor string `json:"next_cursor"`
				}{NextCursor: "cursor-2"},
			},
			{
				Messages: []slack.Message{
					slackapitest.HistoryMessage(tsString(now.Add(-50*time.Minute)), "U2", "page two"),
					slackapitest.HistoryMessage(tsString(now.Add(-3*time.Hour)), "U3", "beyond window"),
				},
				HasMore: true,
			},
		},
	}

	msgs, truncated, err := NewFetcher(fake, 2, 25).FetchWindow(context.Background(), "C001", 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	calls := fake.HistoryCalls()
	// The second page crossed the window start, so no third fetch happens
	// even though HasMore was still set.
	if len(calls) != 2 {
		t.Fatalf("expected 2 history calls, got %d", len(calls))
	}
	if calls[1].Cursor != "cursor-2" {
		t.Errorf("cursor not threaded through: %q", calls[1].Cursor)
	}
}

func TestFetchWindowPageCap(t *testing.T) {
	now := time.Now()
	var pages []slack.GetConversationHistoryResponse
	for i := 0; i < 10; i++ {
		pages = append(pages, slack.GetConversationHistoryResponse{
			Messages: []slack.Message{
				slackapitest.HistoryMessage(tsString(now.Add(-time.Duration(i)*time.Minute)), "U1", "m"),
			},
			HasMore: true,
		})
	}
	fake := &slackapitest.Fake{HistoryPages: pages}

	msgs, truncated, err := NewFetcher(fake, 1, 3).FetchWindow(context.Background(), "C001", 24)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !truncated {
		t.Error("expected truncation at page cap")
	}
	if len(msgs) != 3 {
		t.Errorf("expected 3 messages from 3 pages, got %d", len(msgs))
	}
}

func TestFetchWindowJoinsFirst(t *testing.T) {
	fake := &slackapitest.Fake{}
	_, _, err := NewFetcher(fake, 200, 25).FetchWindow(context.Background(), "C001", 7)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	joined := fake.Joined()
	if len(joined) != 1 || joined[0] != "C001" {
		t.Errorf("channel not joined before fetch: %v", joined)
	}
}

func TestFetchWindowChannelAccessDenied(t *testing.T) {
	fake := &slackapitest.Fake{JoinErr: errors.New("channel_not_found")}

	_, _, err := NewFetcher(fake, 200, 25).FetchWindow(context.Background(), "C404", 7)
	var accessErr *ChannelAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected ChannelAccessError, got %v", err)
	}
	if accessErr.ChannelID != "C404" {
		t.Errorf("channel in error: %s", accessErr.ChannelID)
	}
}

func TestFetchWindowHistoryAccessDenied(t *testing.T) {
	fake := &slackapitest.Fake{HistoryErr: errors.New("not_in_channel")}

	_, _, err := NewFetcher(fake, 200, 25).FetchWindow(context.Background(), "C001", 7)
	var accessErr *ChannelAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected ChannelAccessError, got %v", err)
	}
}

func TestParseFormatTS(t *testing.T) {
	in := "1700000123.456700"
	parsed, err := parseTS(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Unix() != 1700000123 {
		t.Errorf("seconds: got %d", parsed.Unix())
	}
	out := formatTS(parsed)
	reparsed, _ := parseTS(out)
	if delta := reparsed.Sub(parsed); delta > time.Millisecond || delta < -time.Millisecond {
		t.Errorf("round trip drift: %v", delta)
	}
}
