package serverdb

import (
	"database/sql"
	"testing"
)

func newTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testTx(t *testing.T, db *ServerDB) *sql.Tx {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func seedRows(t *testing.T, db *ServerDB, table string, rows ...StoredRow) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, r := range rows {
		if err := InsertRow(tx, table, r.ID, r.Version, r.Tver, r.User, r.Data); err != nil {
			t.Fatalf("seed row %d: %v", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit seed: %v", err)
	}
}

// --- Catalog tests ---

func TestCreateTable(t *testing.T) {
	db := newTestDB(t)
	if err := db.CreateTable("people", FormatSTBCSV); err != nil {
		t.Fatalf("create table: %v", err)
	}
	format, err := db.TableFormat("people")
	if err != nil {
		t.Fatal(err)
	}
	if format != FormatSTBCSV {
		t.Fatalf("expected stbcsv, got %q", format)
	}
}

func TestCreateTableDuplicate(t *testing.T) {
	db := newTestDB(t)
	if err := db.CreateTable("people", FormatCSV); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateTable("people", FormatCSV); err == nil {
		t.Fatal("expected error for duplicate table")
	}
}

func TestCreateTableInvalidName(t *testing.T) {
	db := newTestDB(t)
	for _, name := range []string{
		"",
		"1people",
		"people; DROP TABLE stb_users",
		"stb_tables",
		"sqlite_master",
		"schema_info",
		"a b",
	} {
		if err := db.CreateTable(name, FormatCSV); err == nil {
			t.Errorf("expected error for table name %q", name)
		}
	}
}

func TestCreateTableInvalidFormat(t *testing.T) {
	db := newTestDB(t)
	if err := db.CreateTable("people", "tsv"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestTableFormatUnknownTable(t *testing.T) {
	db := newTestDB(t)
	format, err := db.TableFormat("nope")
	if err != nil {
		t.Fatal(err)
	}
	if format != "" {
		t.Fatalf("expected empty format, got %q", format)
	}
}

func TestListTables(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("zoo", FormatOther)
	db.CreateTable("people", FormatSTBCSV)

	tables, err := db.ListTables()
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0].Name != "people" || tables[1].Name != "zoo" {
		t.Fatalf("expected name order, got %s, %s", tables[0].Name, tables[1].Name)
	}
}

// --- Row primitive tests ---

func TestRowPrimitivesEmptyTable(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	tx := testTx(t, db)

	v, err := TableVersion(tx, "people")
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("empty table version should be 0, got %d", v)
	}

	id, err := MaxID(tx, "people")
	if err != nil {
		t.Fatal(err)
	}
	if id != -1 {
		t.Fatalf("empty table max id should be -1, got %d", id)
	}

	row, err := FetchRow(tx, "people", 0)
	if err != nil {
		t.Fatal(err)
	}
	if row != nil {
		t.Fatal("expected nil for missing row")
	}
}

func TestInsertAndFetchRow(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	seedRows(t, db, "people",
		StoredRow{ID: 0, Version: 1, Tver: 1, User: "alice", Data: "Name,Age"},
		StoredRow{ID: 1, Version: 1, Tver: 1, User: "alice", Data: "Bob,12"},
	)

	tx := testTx(t, db)
	row, err := FetchRow(tx, "people", 1)
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Data != "Bob,12" || row.Version != 1 || row.User != "alice" {
		t.Fatalf("unexpected row: %+v", row)
	}

	v, _ := TableVersion(tx, "people")
	if v != 1 {
		t.Fatalf("expected table version 1, got %d", v)
	}
	id, _ := MaxID(tx, "people")
	if id != 1 {
		t.Fatalf("expected max id 1, got %d", id)
	}
}

func TestUpdateIf(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	seedRows(t, db, "people",
		StoredRow{ID: 1, Version: 1, Tver: 1, User: "alice", Data: "Bob,12"},
	)

	tx := testTx(t, db)

	// Row at version 1, client proposes version 2: matches.
	ok, err := UpdateIf(tx, "people", 1, 2, 2, "bob", "Bob,13")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("update should have matched")
	}
	row, _ := FetchRow(tx, "people", 1)
	if row.Version != 2 || row.Tver != 2 || row.Data != "Bob,13" || row.User != "bob" {
		t.Fatalf("unexpected row after update: %+v", row)
	}

	// Same proposal again: the row moved on, no match.
	ok, err = UpdateIf(tx, "people", 1, 2, 3, "carol", "Bob,14")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("stale update should not match")
	}
	row, _ = FetchRow(tx, "people", 1)
	if row.Data != "Bob,13" {
		t.Fatal("stale update must leave the row untouched")
	}
}

func TestUpdateIfMissingRow(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	tx := testTx(t, db)

	ok, err := UpdateIf(tx, "people", 42, 2, 1, "alice", "x")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("update of missing row should not match")
	}
}

func TestScanSince(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	seedRows(t, db, "people",
		StoredRow{ID: 0, Version: 1, Tver: 1, User: "alice", Data: "Name,Age"},
		StoredRow{ID: 1, Version: 1, Tver: 1, User: "alice", Data: "Bob,12"},
		StoredRow{ID: 2, Version: 2, Tver: 2, User: "bob", Data: "Carol,9"},
	)

	tx := testTx(t, db)

	rows, err := ScanSince(tx, "people", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != 2 {
		t.Fatalf("expected only row 2, got %+v", rows)
	}

	rows, err = ScanSince(tx, "people", 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != 0 || rows[1].ID != 2 {
		t.Fatalf("expected header plus row 2, got %+v", rows)
	}

	// Cursor at current version: header only.
	rows, err = ScanSince(tx, "people", 2, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != 0 {
		t.Fatalf("expected header only, got %+v", rows)
	}
}

// --- AddColumn tests ---

func TestAddColumn(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	seedRows(t, db, "people",
		StoredRow{ID: 0, Version: 1, Tver: 1, User: "a", Data: "Name,Age"},
		StoredRow{ID: 1, Version: 1, Tver: 1, User: "a", Data: "Bob,12"},
		StoredRow{ID: 2, Version: 3, Tver: 2, User: "b", Data: "Carol,9"},
	)

	n, err := db.AddColumn("people", "Name", "Email")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows rewritten, got %d", n)
	}

	tx := testTx(t, db)
	header, _ := FetchRow(tx, "people", 0)
	if header.Data != "Name,Email,Age" {
		t.Fatalf("unexpected header: %q", header.Data)
	}
	row, _ := FetchRow(tx, "people", 2)
	if row.Data != "Carol,,9" {
		t.Fatalf("unexpected row: %q", row.Data)
	}
	// Versions are untouched by the rewrite.
	if row.Version != 3 || row.Tver != 2 {
		t.Fatalf("rewrite must not touch versions: %+v", row)
	}
}

func TestAddColumnIdempotent(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	seedRows(t, db, "people",
		StoredRow{ID: 0, Version: 1, Tver: 1, User: "a", Data: "Name,Age"},
		StoredRow{ID: 1, Version: 1, Tver: 1, User: "a", Data: "Bob,12"},
	)

	if _, err := db.AddColumn("people", "Name", "Email"); err != nil {
		t.Fatal(err)
	}
	n, err := db.AddColumn("people", "Name", "Email")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second run should be a no-op, rewrote %d", n)
	}

	tx := testTx(t, db)
	header, _ := FetchRow(tx, "people", 0)
	if header.Data != "Name,Email,Age" {
		t.Fatalf("unexpected header after rerun: %q", header.Data)
	}
}

func TestAddColumnUnknownAnchor(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	seedRows(t, db, "people",
		StoredRow{ID: 0, Version: 1, Tver: 1, User: "a", Data: "Name,Age"},
	)

	if _, err := db.AddColumn("people", "Phone", "Email"); err == nil {
		t.Fatal("expected error for unknown anchor column")
	}
}

func TestAddColumnUnknownTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.AddColumn("nope", "Name", "Email"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestAddColumnEmptyTable(t *testing.T) {
	db := newTestDB(t)
	db.CreateTable("people", FormatSTBCSV)
	if _, err := db.AddColumn("people", "Name", "Email"); err == nil {
		t.Fatal("expected error for table without header")
	}
}

// --- User tests ---

func TestAddUserAndLookup(t *testing.T) {
	db := newTestDB(t)
	if err := db.AddUser("alice", "shared", "secret"); err != nil {
		t.Fatal(err)
	}

	ha1, err := db.LookupHA1("alice", "shared")
	if err != nil {
		t.Fatal(err)
	}
	if ha1 != HA1("alice", "shared", "secret") {
		t.Fatalf("unexpected ha1: %s", ha1)
	}

	// Wrong realm, unknown user: no credential.
	ha1, _ = db.LookupHA1("alice", "other")
	if ha1 != "" {
		t.Fatal("lookup with wrong realm should return empty")
	}
	ha1, _ = db.LookupHA1("mallory", "shared")
	if ha1 != "" {
		t.Fatal("lookup of unknown user should return empty")
	}
}

func TestAddUserReplacesPassword(t *testing.T) {
	db := newTestDB(t)
	db.AddUser("alice", "shared", "old")
	if err := db.AddUser("alice", "shared", "new"); err != nil {
		t.Fatal(err)
	}
	ha1, _ := db.LookupHA1("alice", "shared")
	if ha1 != HA1("alice", "shared", "new") {
		t.Fatal("re-adding a user should reset the password")
	}
}

func TestAddUserRejectsColon(t *testing.T) {
	db := newTestDB(t)
	if err := db.AddUser("al:ice", "shared", "x"); err == nil {
		t.Fatal("expected error for ':' in username")
	}
	if err := db.AddUser("alice", "sha:red", "x"); err == nil {
		t.Fatal("expected error for ':' in realm")
	}
	if err := db.AddUser("", "shared", "x"); err == nil {
		t.Fatal("expected error for empty username")
	}
}

func TestListUsers(t *testing.T) {
	db := newTestDB(t)
	db.AddUser("bob", "shared", "x")
	db.AddUser("alice", "shared", "x")

	users, err := db.ListUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("unexpected users: %v", users)
	}
}

// --- Schema version tests ---

func TestSchemaVersion(t *testing.T) {
	db := newTestDB(t)
	v := db.getSchemaVersion()
	if v != ServerSchemaVersion {
		t.Fatalf("expected version %d, got %d", ServerSchemaVersion, v)
	}
}

func TestHA1(t *testing.T) {
	// RFC 2617 §3.5 example: HA1 for Mufasa/testrealm@host.com/Circle Of Life.
	got := HA1("Mufasa", "testrealm@host.com", "Circle Of Life")
	if got != "939e7578ed9e3c518a452acee763bce9" {
		t.Fatalf("unexpected HA1: %s", got)
	}
}
