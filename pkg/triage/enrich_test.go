package triage

import (
	"reflect"
	"testing"
	"time"

	"github.com/crestline/triagebot/pkg/history"
	"github.com/crestline/triagebot/pkg/taxonomy"
)

func msg(id, author, text string) history.Message {
	return history.Message{ID: id, AuthorID: author, Text: text, Timestamp: time.Unix(1700000000, 0)}
}

func TestParseHoursBack(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 7},
		{"24", 24},
		{" 12 ", 12},
		{"yesterday", 7},
		{"0", 7},
		{"-3", 7},
		{"3.5", 7},
	}
	for _, tc := range cases {
		if got := ParseHoursBack(tc.in, 7); got != tc.want {
			t.Errorf("ParseHoursBack(%q): got %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestEnrichIsTotal(t *testing.T) {
	tax := taxonomy.Default()
	msgs := []history.Message{
		msg("1", "U1", "#critical outage, #open"),
		msg("2", "U2", "just chatting"),
		msg("3", "U3", "resolved it :resolved:"),
	}

	out := Enrich(msgs, tax, "")
	if len(out) != 3 {
		t.Fatalf("enrich dropped messages: %d", len(out))
	}
	if !out[0].Levels["critical"] || !out[0].Statuses["open"] {
		t.Errorf("facets missing on first message: %+v", out[0])
	}
	if out[1].Tracked() {
		t.Error("plain chatter should be untracked")
	}
	if !out[2].Statuses["resolved"] {
		t.Error("emoji status not matched")
	}
}

func TestEnrichExcludesBotAuthor(t *testing.T) {
	tax := taxonomy.Default()
	msgs := []history.Message{
		msg("1", "U0BOT", "#critical summary echo"),
		msg("2", "U1", "#critical real report"),
	}

	out := Enrich(msgs, tax, "U0BOT")
	if len(out) != 1 || out[0].AuthorID != "U1" {
		t.Fatalf("bot messages not excluded: %+v", out)
	}
}

func TestEnrichMultiFacet(t *testing.T) {
	tax := taxonomy.Default()
	out := Enrich([]history.Message{msg("1", "U1", "#critical #high #ack")}, tax, "")

	if !out[0].Levels["critical"] || !out[0].Levels["high"] {
		t.Error("message should match both levels")
	}
	if !out[0].Statuses["acked"] {
		t.Error("ack tag should map to acked status")
	}
}

func TestEnrichDeterministic(t *testing.T) {
	tax := taxonomy.Default()
	msgs := []history.Message{
		msg("1", "U1", "#high #open something"),
		msg("2", "U2", "#low"),
	}
	first := Enrich(msgs, tax, "")
	for i := 0; i < 20; i++ {
		if got := Enrich(msgs, tax, ""); !reflect.DeepEqual(got, first) {
			t.Fatal("enrichment not deterministic")
		}
	}
}
