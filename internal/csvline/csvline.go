// Package csvline splits and joins single logical CSV lines. Row payloads
// in a shared table are stored as one CSV line without a trailing newline;
// this package is the only place that tokenizes them.
package csvline

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// Split parses one logical CSV line into its fields. A quoted field may
// contain embedded commas, quotes, and newlines. An empty line yields a
// single empty field, matching what Join produces for [""].
func Split(line string) ([]string, error) {
	if line == "" {
		return []string{""}, nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("split csv line: %w", err)
	}
	return record, nil
}

// Join renders fields as one CSV line without a trailing newline.
func Join(fields []string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(fields); err != nil {
		return "", fmt.Errorf("join csv line: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("join csv line: %w", err)
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// Insert splits line, inserts value at index pos, and joins the result.
// Used by the column-addition utility on both halves of the system.
func Insert(line string, pos int, value string) (string, error) {
	fields, err := Split(line)
	if err != nil {
		return "", err
	}
	if pos < 0 || pos > len(fields) {
		return "", fmt.Errorf("insert position %d out of range for %d fields", pos, len(fields))
	}
	out := make([]string, 0, len(fields)+1)
	out = append(out, fields[:pos]...)
	out = append(out, value)
	out = append(out, fields[pos:]...)
	fields = out
	return Join(fields)
}
