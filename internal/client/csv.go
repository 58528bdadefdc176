package client

import (
	"errors"
	"io"

	"github.com/walter/stb/internal/csvline"
	"github.com/walter/stb/internal/localstore"
)

// snapshot is the positional view taken by Reader: synced rows in
// ascending id order, then pending-new rows in insertion order. The
// writer walks the same positions, so the pair gives callers a stable
// read-modify-write cycle over the whole table.
type snapshot struct {
	rows      []*localstore.Row
	pending   []*localstore.NewRow
	conflicts []*Conflict
	consumed  bool
}

// Conflict is a handle on one unresolved conflict, tied to the
// positional index its row had in the Reader snapshot.
type Conflict struct {
	index    int
	row      *localstore.Row
	resolved bool
}

// Index returns the row's position in the snapshot.
func (c *Conflict) Index() int { return c.index }

// ID returns the server id of the conflicting row.
func (c *Conflict) ID() int64 { return c.row.ID }

// Version returns the server's version of the conflicting row.
func (c *Conflict) Version() int64 { return c.row.Version }

// Data returns the server's competing payload unparsed.
func (c *Conflict) Data() string { return c.row.Data }

// Row parses the server's competing payload into CSV fields.
func (c *Conflict) Row() ([]string, error) { return csvline.Split(c.row.Data) }

// Resolve promises that the next write at this conflict's position
// incorporates the server's version. The next Writer call folds the
// conflict: the synced row adopts the server version and the conflict
// entry is dropped.
func (c *Conflict) Resolve() { c.resolved = true }

// Unresolve withdraws a Resolve before a Writer has applied it.
func (c *Conflict) Unresolve() { c.resolved = false }

// Resolved reports whether Resolve has been called on the handle.
func (c *Conflict) Resolved() bool { return c.resolved }

// Reader yields the snapshot rows as parsed CSV records, ending with
// io.EOF like encoding/csv.
type Reader struct {
	snap *snapshot
	pos  int
}

// Reader snapshots the table and returns a positional reader over it.
// Taking a snapshot also records which positions carry unresolved
// conflicts; Conflicts returns their handles.
func (t *Table) Reader() *Reader {
	rows := t.store.Rows()
	snap := &snapshot{
		rows:    rows,
		pending: append([]*localstore.NewRow(nil), t.store.Pending()...),
	}
	for i, r := range rows {
		if c := t.store.Conflict(r.ID); c != nil {
			snap.conflicts = append(snap.conflicts, &Conflict{index: i, row: c})
		}
	}
	t.snap = snap
	return &Reader{snap: snap}
}

// Read returns the next record, or io.EOF after the last one.
func (r *Reader) Read() ([]string, error) {
	if r.pos < len(r.snap.rows) {
		row := r.snap.rows[r.pos]
		r.pos++
		return csvline.Split(row.Data)
	}
	if i := r.pos - len(r.snap.rows); i < len(r.snap.pending) {
		n := r.snap.pending[i]
		r.pos++
		return csvline.Split(n.Data)
	}
	return nil, io.EOF
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
}

// Conflicts returns handles on the unresolved conflicts noted by the
// last Reader. A Writer consumes the handles marked resolved; the rest
// stay listed.
func (t *Table) Conflicts() ([]*Conflict, error) {
	if t.snap == nil {
		return nil, errors.New("conflicts require a prior reader")
	}
	return t.snap.conflicts, nil
}

// Writer consumes records positionally against the Reader snapshot.
type Writer struct {
	t       *Table
	snap    *snapshot
	rowIdx  int
	newIdx  int
	overall int
}

// Writer starts a positional write pass. A Reader must have run first,
// and each snapshot supports one Writer; take a fresh Reader to write
// again.
//
// Conflict handles marked resolved are applied now: the synced row
// adopts the conflict's version, the conflict entry is dropped, and
// the caller's write at that position supplies the merged data.
func (t *Table) Writer() (*Writer, error) {
	if t.snap == nil {
		return nil, errors.New("writer requires a prior reader")
	}
	if t.snap.consumed {
		return nil, errors.New("snapshot already written; take a new reader")
	}
	t.snap.consumed = true

	var remain []*Conflict
	for _, c := range t.snap.conflicts {
		if c.resolved {
			t.store.ResolveConflict(c.row.ID)
		} else {
			remain = append(remain, c)
		}
	}
	t.snap.conflicts = remain

	return &Writer{t: t, snap: t.snap}, nil
}

// Write stores one record at the current position. Positions inside
// the snapshot update the underlying row, marking synced rows modified
// when the text changes. Positions past the snapshot append pending-new
// rows. In an stbcsv table, the very first write into an empty store
// creates the header row at id 0.
func (w *Writer) Write(record []string) error {
	text, err := csvline.Join(record)
	if err != nil {
		return err
	}
	return w.writeLine(text)
}

func (w *Writer) writeLine(text string) error {
	switch {
	case w.rowIdx < len(w.snap.rows):
		w.t.store.UpdateRow(w.snap.rows[w.rowIdx].ID, text)
		w.rowIdx++
	case w.newIdx < len(w.snap.pending):
		w.snap.pending[w.newIdx].Data = text
		w.newIdx++
	case w.overall == 0 && w.t.format == FormatSTBCSV:
		if _, err := w.t.store.AddSynced(0, 1, text); err != nil {
			return err
		}
	default:
		// Keep the snapshot in step with the store.
		n := w.t.store.AddRow(text)
		w.snap.pending = append(w.snap.pending, n)
		w.newIdx++
	}
	w.overall++
	return nil
}

// WriteAll stores every record in order.
func (w *Writer) WriteAll(records [][]string) error {
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
