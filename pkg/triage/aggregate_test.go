package triage

import (
	"fmt"
	"strings"
	"testing"

	"github.com/crestline/triagebot/pkg/history"
	"github.com/crestline/triagebot/pkg/taxonomy"
)

func TestSummarizeKeepsZeroRowsInTaxonomyOrder(t *testing.T) {
	tax := taxonomy.Default()
	msgs := Enrich([]history.Message{
		msg("1", "U1", "#high db is slow #open"),
		msg("2", "U2", "lunch?"),
	}, tax, "")

	s := Summarize(msgs, tax)
	if len(s.Levels) != len(tax.Levels) {
		t.Fatalf("rows: got %d, want %d", len(s.Levels), len(tax.Levels))
	}
	for i, row := range s.Levels {
		if row.Level.Key != tax.Levels[i].Key {
			t.Errorf("row %d out of order: %s", i, row.Level.Key)
		}
	}
	if s.Scanned != 2 || s.Tracked != 1 {
		t.Errorf("counters: scanned=%d tracked=%d", s.Scanned, s.Tracked)
	}

	var high LevelSummary
	for _, row := range s.Levels {
		if row.Level.Key == "high" {
			high = row
		}
	}
	if high.Total != 1 {
		t.Errorf("high total: %d", high.Total)
	}
	for _, sc := range high.ByStatus {
		if sc.Status.Key == "open" && sc.Count != 1 {
			t.Errorf("high/open count: %d", sc.Count)
		}
	}
}

func TestSummarizeExactTallies(t *testing.T) {
	tax := taxonomy.Default()
	var raw []history.Message
	for i := 0; i < 3; i++ {
		raw = append(raw, msg(fmt.Sprintf("open-%d", i), "U1", "#high broken #open"))
	}
	for i := 0; i < 2; i++ {
		raw = append(raw, msg(fmt.Sprintf("res-%d", i), "U2", "#high was broken #resolved"))
	}
	for i := 0; i < 5; i++ {
		raw = append(raw, msg(fmt.Sprintf("plain-%d", i), "U3", "no tags here"))
	}

	s := Summarize(Enrich(raw, tax, ""), tax)
	if s.Scanned != 10 || s.Tracked != 5 {
		t.Fatalf("scanned=%d tracked=%d", s.Scanned, s.Tracked)
	}

	var high LevelSummary
	for _, row := range s.Levels {
		if row.Level.Key == "high" {
			high = row
		}
	}
	if high.Total != 5 {
		t.Errorf("high total: %d", high.Total)
	}
	byStatus := map[string]int{}
	for _, sc := range high.ByStatus {
		byStatus[sc.Status.Key] = sc.Count
	}
	if byStatus["open"] != 3 || byStatus["resolved"] != 2 || byStatus["acked"] != 0 {
		t.Errorf("high by status: %v", byStatus)
	}
}

func TestSummarizeCountsMultiLevelMessageOncePerLevel(t *testing.T) {
	tax := taxonomy.Default()
	msgs := Enrich([]history.Message{msg("1", "U1", "#critical #high both")}, tax, "")

	s := Summarize(msgs, tax)
	byKey := map[string]int{}
	for _, row := range s.Levels {
		byKey[row.Level.Key] = row.Total
	}
	if byKey["critical"] != 1 || byKey["high"] != 1 {
		t.Errorf("multi-level counting: %v", byKey)
	}
	if s.Tracked != 1 {
		t.Errorf("tracked should count the message once: %d", s.Tracked)
	}
}

func TestFormatSummaryRendersEveryLevel(t *testing.T) {
	tax := taxonomy.Default()
	msgs := Enrich([]history.Message{msg("1", "U1", "#critical #open fire")}, tax, "")
	s := Summarize(msgs, tax)

	text := FormatSummary(s, 7)
	for _, level := range tax.Levels {
		if !strings.Contains(text, level.Label) {
			t.Errorf("level %s missing from output", level.Label)
		}
	}
	if !strings.Contains(text, "last 7h") {
		t.Error("window missing from header")
	}
	if !strings.Contains(text, "1 of 1 messages tracked") {
		t.Errorf("counter line wrong:\n%s", text)
	}
}

func TestFormatSummaryMentionsTruncation(t *testing.T) {
	s := Summarize(nil, taxonomy.Default())
	if strings.Contains(FormatSummary(s, 7), "cut off") {
		t.Error("truncation note shown for complete run")
	}
	s.Truncated = true
	if !strings.Contains(FormatSummary(s, 7), "cut off") {
		t.Error("truncation note missing")
	}
}
