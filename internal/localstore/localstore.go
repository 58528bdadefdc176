// Package localstore manages the client's persistent copy of one shared
// table: the repository coordinates, the pulled-version cursor, and the
// three row containers (synced, conflict, pending-new).
//
// The on-disk form is a single XML document. In memory the store is a
// typed model; nothing outside this package touches the document format.
package localstore

import (
	"fmt"
	"os"
	"sort"
)

// Row is a synced or conflict row. A synced row mirrors one server row
// by id; its Modified flag is set when the local data has diverged from
// what the server sent at this Version. A conflict row carries the
// server's competing version of a row the client has also modified.
type Row struct {
	ID       int64
	Version  int64
	Modified bool
	Data     string
}

// NewRow is a locally created row that has no server id yet. The id is
// assigned by the server on the first successful push.
type NewRow struct {
	Data string
}

// Repository holds the coordinates of the server-side table and the
// client's pulled-version cursor.
type Repository struct {
	URL           string
	Realm         string
	Username      string
	Password      string
	PulledVersion int64
}

// Store is an open local store. It is not safe for concurrent use; an
// exclusive lock file keeps other processes out between Open and Close.
type Store struct {
	path string
	lock *fileLock

	Repository Repository

	rows      []*Row
	conflicts []*Row
	pending   []*NewRow

	rowIndex      map[int64]*Row
	conflictIndex map[int64]*Row
}

// Open loads the local store at path and takes its lock. The three row
// containers are created empty when the document lacks them. Callers
// must Close the store to release the lock.
func Open(path string) (*Store, error) {
	lock := newFileLock(path)
	if err := lock.acquire(lockTimeout); err != nil {
		return nil, fmt.Errorf("lock local store: %w", err)
	}

	s, err := load(path)
	if err != nil {
		lock.release()
		return nil, err
	}
	s.lock = lock
	return s, nil
}

// Create writes a fresh local store document with the given repository
// coordinates and no rows. It refuses to overwrite an existing file.
func Create(path string, repo Repository) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("local store already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	s := &Store{path: path, Repository: repo}
	s.reindex()
	return s.Save()
}

// Close releases the store's lock. The in-memory state stays usable for
// reads but must not be saved afterwards.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	err := s.lock.release()
	s.lock = nil
	return err
}

// Path returns the file the store was opened from.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) reindex() {
	s.rowIndex = make(map[int64]*Row, len(s.rows))
	for _, r := range s.rows {
		s.rowIndex[r.ID] = r
	}
	s.conflictIndex = make(map[int64]*Row, len(s.conflicts))
	for _, r := range s.conflicts {
		s.conflictIndex[r.ID] = r
	}
}

// Row returns the synced row with the given id, or nil.
func (s *Store) Row(id int64) *Row {
	return s.rowIndex[id]
}

// Rows returns the synced rows in ascending id order.
func (s *Store) Rows() []*Row {
	out := make([]*Row, len(s.rows))
	copy(out, s.rows)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Conflict returns the conflict row with the given id, or nil.
func (s *Store) Conflict(id int64) *Row {
	return s.conflictIndex[id]
}

// Conflicts returns the conflict rows in ascending id order.
func (s *Store) Conflicts() []*Row {
	out := make([]*Row, len(s.conflicts))
	copy(out, s.conflicts)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pending returns the pending-new rows in insertion order. The slice is
// the store's own; callers must not reorder it.
func (s *Store) Pending() []*NewRow {
	return s.pending
}

// AddSynced appends a row to the synced container.
func (s *Store) AddSynced(id, version int64, data string) (*Row, error) {
	if s.rowIndex[id] != nil {
		return nil, fmt.Errorf("row %d already in store", id)
	}
	r := &Row{ID: id, Version: version, Data: data}
	s.rows = append(s.rows, r)
	s.rowIndex[id] = r
	return r, nil
}

// AddConflict records the server's competing version of a row.
func (s *Store) AddConflict(id, version int64, data string) (*Row, error) {
	if s.conflictIndex[id] != nil {
		return nil, fmt.Errorf("row %d already in conflict", id)
	}
	r := &Row{ID: id, Version: version, Data: data}
	s.conflicts = append(s.conflicts, r)
	s.conflictIndex[id] = r
	return r, nil
}

// RemoveConflict drops the conflict entry for id, reporting whether one
// existed.
func (s *Store) RemoveConflict(id int64) bool {
	if s.conflictIndex[id] == nil {
		return false
	}
	delete(s.conflictIndex, id)
	for i, r := range s.conflicts {
		if r.ID == id {
			s.conflicts = append(s.conflicts[:i], s.conflicts[i+1:]...)
			break
		}
	}
	return true
}

// AddRow appends a pending-new row.
func (s *Store) AddRow(data string) *NewRow {
	n := &NewRow{Data: data}
	s.pending = append(s.pending, n)
	return n
}

// ClearPending empties the pending-new container. Used after a push has
// promoted every pending row into the synced container.
func (s *Store) ClearPending() {
	s.pending = nil
}

// UpdateRow replaces the data of a synced row, setting its Modified
// flag when the text actually changes. The flag is never cleared here;
// only push acceptance clears it. Returns false if no such row exists.
func (s *Store) UpdateRow(id int64, data string) bool {
	r := s.rowIndex[id]
	if r == nil {
		return false
	}
	if r.Data != data {
		r.Data = data
		r.Modified = true
	}
	return true
}

// ResolveConflict folds the conflict entry for id back into the synced
// row: the synced row's version is advanced to the conflict's version
// and the conflict entry is dropped. The caller is expected to follow
// up with a write that incorporates the server's data. Returns false
// if either row is missing.
func (s *Store) ResolveConflict(id int64) bool {
	c := s.conflictIndex[id]
	r := s.rowIndex[id]
	if c == nil || r == nil {
		return false
	}
	r.Version = c.Version
	s.RemoveConflict(id)
	return true
}
