package client

import (
	"errors"
	"fmt"

	"github.com/walter/stb/internal/csvline"
)

// AddColumn inserts a new column immediately after an existing one in
// every stored row, synced, conflict and pending alike. The first row
// in that order carries the column name (the header in an stbcsv
// table); every other row gains an empty cell. Running it again once
// the column is in place is a no-op.
//
// It must run before any Reader snapshot is taken, and it does not
// flag rows as modified: the matching server-side command makes the
// same change in the repository store.
func (t *Table) AddColumn(after, name string) error {
	if t.snap != nil {
		return errors.New("add-column must run before any reader")
	}

	var texts []*string
	for _, r := range t.store.Rows() {
		texts = append(texts, &r.Data)
	}
	for _, r := range t.store.Conflicts() {
		texts = append(texts, &r.Data)
	}
	for _, n := range t.store.Pending() {
		texts = append(texts, &n.Data)
	}
	if len(texts) == 0 {
		return errors.New("local store has no rows")
	}

	header, err := csvline.Split(*texts[0])
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	pos := -1
	for i, col := range header {
		if col == after {
			pos = i + 1
			break
		}
	}
	if pos == -1 {
		return fmt.Errorf("column %q not found", after)
	}
	if pos < len(header) && header[pos] == name {
		t.log.Debug("column already present", "column", name, "position", pos)
		return nil
	}

	value := name
	for _, text := range texts {
		updated, err := csvline.Insert(*text, pos, value)
		if err != nil {
			return err
		}
		*text = updated
		value = ""
	}
	t.log.Debug("column added", "column", name, "position", pos)
	return nil
}
