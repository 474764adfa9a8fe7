package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/crestline/triagebot/pkg/history"
	"github.com/crestline/triagebot/pkg/taxonomy"
	"github.com/crestline/triagebot/pkg/triage"
)

func enrichedMessage(id, text string, levels, statuses []string) triage.Enriched {
	e := triage.Enriched{
		Message: history.Message{
			ID:        id,
			AuthorID:  "U1",
			Text:      text,
			Timestamp: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		},
		Levels:   map[string]bool{},
		Statuses: map[string]bool{},
	}
	for _, l := range levels {
		e.Levels[l] = true
	}
	for _, s := range statuses {
		e.Statuses[s] = true
	}
	return e
}

func TestExportColumnsFollowTaxonomyOrder(t *testing.T) {
	tax := taxonomy.Default()
	data, filename, err := CSV{}.Export(nil, tax)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filename == "" {
		t.Error("empty filename")
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	header := records[0]
	want := 5 + len(tax.Levels) + len(tax.Statuses)
	if len(header) != want {
		t.Fatalf("header width: got %d, want %d", len(header), want)
	}
	if header[5] != "level_"+tax.Levels[0].Key {
		t.Errorf("first level column: %s", header[5])
	}
	if header[5+len(tax.Levels)] != "status_"+tax.Statuses[0].Key {
		t.Errorf("first status column: %s", header[5+len(tax.Levels)])
	}
}

func TestExportSurvivesDelimitersAndNewlines(t *testing.T) {
	tax := taxonomy.Default()
	nasty := "line one\nline two, with a comma and a \"quote\""
	msgs := []triage.Enriched{
		enrichedMessage("1700000001.000100", nasty, []string{"critical"}, []string{"open"}),
		enrichedMessage("1700000002.000200", "plain", nil, nil),
	}

	data, _, err := CSV{}.Export(msgs, tax)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows: got %d, want 3", len(records))
	}
	if records[1][4] != nasty {
		t.Errorf("text mangled: %q", records[1][4])
	}
	if records[1][5] != "true" {
		t.Errorf("critical flag: %s", records[1][5])
	}
	// Untracked messages are exported too, with all facets false.
	for i := 5; i < len(records[2]); i++ {
		if records[2][i] != "false" {
			t.Errorf("untracked row column %d: %s", i, records[2][i])
		}
	}
}

func TestExportTimestampsAreRFC3339(t *testing.T) {
	msgs := []triage.Enriched{enrichedMessage("1.000000", "x", nil, nil)}
	data, _, err := CSV{}.Export(msgs, taxonomy.Default())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	records, _ := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if _, err := time.Parse(time.RFC3339, records[1][2]); err != nil {
		t.Errorf("timestamp format: %q: %v", records[1][2], err)
	}
}
