// Package export renders an enriched triage run as a CSV artifact.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/crestline/triagebot/pkg/taxonomy"
	"github.com/crestline/triagebot/pkg/triage"
)

// CSV writes one row per enriched message with a boolean column per
// taxonomy facet. Untracked messages are included so the export is a
// faithful copy of the scanned window.
type CSV struct{}

// Export implements triage.Exporter.
func (CSV) Export(msgs []triage.Enriched, tax taxonomy.Taxonomy) ([]byte, string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "author_id", "timestamp", "thread_id", "text"}
	for _, level := range tax.Levels {
		header = append(header, "level_"+level.Key)
	}
	for _, status := range tax.Statuses {
		header = append(header, "status_"+status.Key)
	}
	if err := w.Write(header); err != nil {
		return nil, "", err
	}

	for _, m := range msgs {
		row := []string{
			m.ID,
			m.AuthorID,
			m.Timestamp.UTC().Format(time.RFC3339),
			m.ThreadID,
			m.Text,
		}
		for _, level := range tax.Levels {
			row = append(row, boolCell(m.Levels[level.Key]))
		}
		for _, status := range tax.Statuses {
			row = append(row, boolCell(m.Statuses[status.Key]))
		}
		if err := w.Write(row); err != nil {
			return nil, "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("triage-%s.csv", time.Now().UTC().Format("20060102-150405"))
	return buf.Bytes(), filename, nil
}

func boolCell(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
