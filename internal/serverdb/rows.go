package serverdb

import (
	"database/sql"
	"fmt"
)

// StoredRow is one row of a shared table's row store.
type StoredRow struct {
	ID      int64
	Version int64
	Tver    int64
	User    string
	Data    string
}

// The row primitives operate on an open transaction so a sync handler
// can compose them into one atomic request.

// TableVersion returns the highest tver stored in any row, or 0 for an
// empty table. The table version is never stored separately; it is
// always derived from the rows.
func TableVersion(tx *sql.Tx, table string) (int64, error) {
	var v sql.NullInt64
	if err := tx.QueryRow(fmt.Sprintf(`SELECT MAX(tver) FROM %s`, table)).Scan(&v); err != nil {
		return 0, fmt.Errorf("table version: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return v.Int64, nil
}

// MaxID returns the highest assigned row id, or -1 for an empty table.
// New rows are assigned MaxID+1 in submission order.
func MaxID(tx *sql.Tx, table string) (int64, error) {
	var v sql.NullInt64
	if err := tx.QueryRow(fmt.Sprintf(`SELECT MAX(id) FROM %s`, table)).Scan(&v); err != nil {
		return 0, fmt.Errorf("max id: %w", err)
	}
	if !v.Valid {
		return -1, nil
	}
	return v.Int64, nil
}

// ScanSince returns every row whose tver is later than the cursor,
// ordered by id. With includeHeader set, the row at id 0 is returned
// regardless of its tver so that clients can re-verify the header on
// every pull.
func ScanSince(tx *sql.Tx, table string, cursor int64, includeHeader bool) ([]StoredRow, error) {
	query := fmt.Sprintf(`SELECT id, version, tver, user, data FROM %s WHERE tver > ? ORDER BY id`, table)
	if includeHeader {
		query = fmt.Sprintf(`SELECT id, version, tver, user, data FROM %s WHERE tver > ? OR id = 0 ORDER BY id`, table)
	}

	rows, err := tx.Query(query, cursor)
	if err != nil {
		return nil, fmt.Errorf("scan since %d: %w", cursor, err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var r StoredRow
		if err := rows.Scan(&r.ID, &r.Version, &r.Tver, &r.User, &r.Data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan since %d: iterate: %w", cursor, err)
	}
	return out, nil
}

// UpdateIf applies a conditional update: the write lands only if the
// row is currently at version-1. Returns false when no row matched,
// which the caller reports as a conflict.
func UpdateIf(tx *sql.Tx, table string, id, version, tver int64, user, data string) (bool, error) {
	res, err := tx.Exec(
		fmt.Sprintf(`UPDATE %s SET version = ?, tver = ?, user = ?, data = ? WHERE id = ? AND version = ?`, table),
		version, tver, user, data, id, version-1,
	)
	if err != nil {
		return false, fmt.Errorf("update row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update row %d: rows affected: %w", id, err)
	}
	return n == 1, nil
}

// InsertRow inserts a row with an explicit id.
func InsertRow(tx *sql.Tx, table string, id, version, tver int64, user, data string) error {
	_, err := tx.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, version, tver, user, data) VALUES (?, ?, ?, ?, ?)`, table),
		id, version, tver, user, data,
	)
	if err != nil {
		return fmt.Errorf("insert row %d: %w", id, err)
	}
	return nil
}

// FetchRow returns the row at id, or nil if it does not exist.
func FetchRow(tx *sql.Tx, table string, id int64) (*StoredRow, error) {
	r := &StoredRow{}
	err := tx.QueryRow(
		fmt.Sprintf(`SELECT id, version, tver, user, data FROM %s WHERE id = ?`, table), id,
	).Scan(&r.ID, &r.Version, &r.Tver, &r.User, &r.Data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch row %d: %w", id, err)
	}
	return r, nil
}
