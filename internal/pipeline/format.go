package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// formatAnswer serializes rows as JSON records keyed by column name. When the
// caller supplied post-processing instructions, they are prepended as a
// directive line ahead of the data.
func formatAnswer(instructions string, columns []string, rows [][]any) (string, error) {
	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshal result rows: %w", err)
	}

	if directive := strings.TrimSpace(instructions); directive != "" {
		return directive + "\n" + string(data), nil
	}
	return string(data), nil
}
