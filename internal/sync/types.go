package sync

import "errors"

// ErrBadPush marks a push the engine refuses to evaluate because the
// submission itself is malformed (header row above version 1, row
// version below 1). Handlers answer it as a client error.
var ErrBadPush = errors.New("invalid push")

// Row is one table row as it crosses the wire: the id, the per-row
// version and the opaque CSV payload. The table version and the
// writing user stay server-side.
type Row struct {
	ID      int64
	Version int64
	Data    string
}

// PullResult carries the current table version and every row changed
// since the client's cursor.
type PullResult struct {
	Version int64
	Rows    []Row
}

// PushResult reports the outcome of one push: which modifications
// landed, which ids were assigned to new rows, and how many submitted
// rows lost their version race.
//
// FormatConflict means the batch was refused because the submitted
// header differs from the stored one. The caller must roll back the
// transaction so that nothing from the batch lands.
type PushResult struct {
	FormatConflict bool
	Version        int64
	ConflictCount  int
	ModifiedIDs    []int64
	NewIDs         []int64
}
