package sync

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/walter/stb/internal/serverdb"
)

// Pull returns the current table version and every row whose tver is
// later than the client's cursor. For stbcsv tables the header row is
// included in every response so the client can re-verify the format.
func Pull(tx *sql.Tx, table, format string, pulledVersion int64) (PullResult, error) {
	var result PullResult

	current, err := serverdb.TableVersion(tx, table)
	if err != nil {
		return result, err
	}
	result.Version = current

	stored, err := serverdb.ScanSince(tx, table, pulledVersion, format == serverdb.FormatSTBCSV)
	if err != nil {
		return result, err
	}
	for _, r := range stored {
		result.Rows = append(result.Rows, Row{ID: r.ID, Version: r.Version, Data: r.Data})
	}

	slog.Debug("pull", "table", table, "cursor", pulledVersion, "version", current, "rows", len(result.Rows))
	return result, nil
}

// Push applies one client push inside the given transaction: row
// modifications gated on the version the client based them on, then
// new rows with server-assigned ids in submission order.
//
// A modification whose version gate misses is counted as a conflict
// and skipped; the client recovers it on the next pull. A push that
// accepts nothing does not advance the table version.
//
// In stbcsv tables the row at id 0 is the format probe: the client
// submits it on every push, the server creates it on first contact and
// afterwards only compares. A mismatch refuses the whole batch with
// FormatConflict set; the caller must roll back.
func Push(tx *sql.Tx, table, format, user string, mods []Row, news []string) (PushResult, error) {
	var result PushResult

	current, err := serverdb.TableVersion(tx, table)
	if err != nil {
		return result, err
	}
	tver := current + 1

	for _, row := range mods {
		if row.ID == 0 && format == serverdb.FormatSTBCSV {
			if row.Version != 1 {
				return result, fmt.Errorf("%w: header row must stay at version 1, got %d", ErrBadPush, row.Version)
			}
			stored, err := serverdb.FetchRow(tx, table, 0)
			if err != nil {
				return result, err
			}
			if stored == nil {
				// First contact: adopt the client's header quietly.
				// Header creation alone does not count as an accepted
				// modification.
				if err := serverdb.InsertRow(tx, table, 0, 1, tver, user, row.Data); err != nil {
					return result, err
				}
				continue
			}
			if stored.Data != row.Data {
				slog.Warn("format conflict", "table", table, "user", user)
				return PushResult{FormatConflict: true, Version: current, ConflictCount: result.ConflictCount}, nil
			}
			continue
		}

		if row.Version < 1 {
			return result, fmt.Errorf("%w: row %d: version must be >= 1, got %d", ErrBadPush, row.ID, row.Version)
		}
		ok, err := serverdb.UpdateIf(tx, table, row.ID, row.Version, tver, user, row.Data)
		if err != nil {
			return result, err
		}
		if ok {
			result.ModifiedIDs = append(result.ModifiedIDs, row.ID)
		} else {
			result.ConflictCount++
		}
	}

	if len(news) > 0 {
		id, err := serverdb.MaxID(tx, table)
		if err != nil {
			return result, err
		}
		for _, data := range news {
			id++
			if err := serverdb.InsertRow(tx, table, id, 1, tver, user, data); err != nil {
				return result, err
			}
			result.NewIDs = append(result.NewIDs, id)
		}
	}

	// A push that only produced conflicts does not advance the table
	// version.
	if len(result.ModifiedIDs) == 0 && len(result.NewIDs) == 0 {
		tver = current
	}
	result.Version = tver

	slog.Debug("push", "table", table, "user", user,
		"submitted", len(mods)+len(news),
		"modified", len(result.ModifiedIDs), "new", len(result.NewIDs),
		"conflicts", result.ConflictCount, "version", result.Version)
	return result, nil
}
