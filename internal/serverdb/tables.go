package serverdb

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/walter/stb/internal/csvline"
)

// Table formats. The format influences only header-row handling: stbcsv
// tables carry an immutable header at id 0, the others do not.
const (
	FormatSTBCSV = "stbcsv"
	FormatCSV    = "csv"
	FormatOther  = "other"
)

// ValidFormat reports whether f names a known table format.
func ValidFormat(f string) bool {
	return f == FormatSTBCSV || f == FormatCSV || f == FormatOther
}

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidTableName reports whether name is safe to use as a SQL table
// name. Names reserved for the server's own bookkeeping are rejected.
func ValidTableName(name string) bool {
	if !tableNameRe.MatchString(name) || len(name) > 64 {
		return false
	}
	if strings.HasPrefix(name, "stb_") || strings.HasPrefix(name, "sqlite_") || name == "schema_info" {
		return false
	}
	return true
}

// TableInfo describes one catalog entry.
type TableInfo struct {
	Name      string
	Format    string
	CreatedAt time.Time
}

// CreateTable creates the row store for a new shared table and records
// it in the catalog. The store starts empty: for stbcsv tables the
// header row is created by the first client push.
func (db *ServerDB) CreateTable(name, format string) error {
	if !ValidTableName(name) {
		return fmt.Errorf("invalid table name: %q", name)
	}
	if !ValidFormat(format) {
		return fmt.Errorf("invalid table format: %q (want stbcsv, csv or other)", format)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRow(`SELECT format FROM stb_tables WHERE name = ?`, name).Scan(&existing)
	if err == nil {
		return fmt.Errorf("table already exists: %s", name)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check catalog: %w", err)
	}

	if _, err := tx.Exec(fmt.Sprintf(
		`CREATE TABLE %s (id INTEGER PRIMARY KEY, version INTEGER, tver INTEGER, user TEXT, data TEXT)`, name)); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`CREATE INDEX %s_idx ON %s (tver)`, name, name)); err != nil {
		return fmt.Errorf("create index on %s: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO stb_tables (name, format) VALUES (?, ?)`, name, format); err != nil {
		return fmt.Errorf("record table %s: %w", name, err)
	}

	return tx.Commit()
}

// TableFormat returns the format of a cataloged table, or "" if the
// table does not exist.
func (db *ServerDB) TableFormat(name string) (string, error) {
	var format string
	err := db.conn.QueryRow(`SELECT format FROM stb_tables WHERE name = ?`, name).Scan(&format)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("table format: %w", err)
	}
	return format, nil
}

// ListTables returns all catalog entries ordered by name.
func (db *ServerDB) ListTables() ([]TableInfo, error) {
	rows, err := db.conn.Query(`SELECT name, format, created_at FROM stb_tables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Format, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: iterate: %w", err)
	}
	return tables, nil
}

// AddColumn inserts a new CSV column immediately after an existing one
// in every stored row of the table: the header row gains the column
// name, every other row gains an empty cell at the same index. Row
// versions are untouched, so clients do not see the rewrite as a
// conflict; they apply the same change locally with their own utility.
//
// The call is idempotent: if the header already carries newCol right
// after afterCol, nothing is rewritten. Returns the number of rows
// rewritten.
func (db *ServerDB) AddColumn(table, afterCol, newCol string) (int, error) {
	format, err := db.TableFormat(table)
	if err != nil {
		return 0, err
	}
	if format == "" {
		return 0, fmt.Errorf("unknown table: %s", table)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(fmt.Sprintf(`SELECT id, data FROM %s ORDER BY id`, table))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", table, err)
	}
	type stored struct {
		id   int64
		data string
	}
	var all []stored
	for rows.Next() {
		var s stored
		if err := rows.Scan(&s.id, &s.data); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan row: %w", err)
		}
		all = append(all, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("read %s: iterate: %w", table, err)
	}
	rows.Close()

	if len(all) == 0 {
		return 0, fmt.Errorf("table %s has no header row", table)
	}

	header, err := csvline.Split(all[0].data)
	if err != nil {
		return 0, fmt.Errorf("parse header: %w", err)
	}
	pos := -1
	for i, col := range header {
		if col == afterCol {
			pos = i + 1
			break
		}
	}
	if pos == -1 {
		return 0, fmt.Errorf("column %q not found in header", afterCol)
	}
	if pos < len(header) && header[pos] == newCol {
		// Already added.
		return 0, nil
	}

	rewritten := 0
	for i, s := range all {
		value := ""
		if i == 0 {
			value = newCol
		}
		newData, err := csvline.Insert(s.data, pos, value)
		if err != nil {
			return 0, fmt.Errorf("rewrite row %d: %w", s.id, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET data = ? WHERE id = ?`, table), newData, s.id); err != nil {
			return 0, fmt.Errorf("update row %d: %w", s.id, err)
		}
		rewritten++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return rewritten, nil
}
