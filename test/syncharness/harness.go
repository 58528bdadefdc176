// Package syncharness runs end-to-end sync tests: one real stb server
// over HTTP and several clients, each with its own local store file,
// reconciling a shared table.
package syncharness

import (
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/walter/stb/internal/api"
	"github.com/walter/stb/internal/client"
	"github.com/walter/stb/internal/localstore"
	"github.com/walter/stb/internal/serverdb"
)

// accounts are the digest credentials registered on the test server,
// in the order clients are created.
var accounts = []struct{ user, pass string }{
	{"alice", "wonderland"},
	{"bob", "builder"},
	{"carol", "copperfield"},
	{"dave", "lighthouse"},
}

// Client is one simulated user of the shared table.
type Client struct {
	Name  string
	Table *client.Table

	path string
}

// Harness owns the server, its database and the clients of one test.
type Harness struct {
	t *testing.T

	Table  string
	Format string
	HTTP   *httptest.Server
	DB     *serverdb.ServerDB

	Clients map[string]*Client
	names   []string
}

// NewHarness starts a server around a fresh database, creates the
// shared table and numClients clients bound to it.
func NewHarness(t *testing.T, numClients int, table, format string) *Harness {
	t.Helper()

	if numClients > len(accounts) {
		t.Fatalf("harness supports at most %d clients", len(accounts))
	}
	dir := t.TempDir()

	store, err := serverdb.Open(filepath.Join(dir, "server.db"))
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.CreateTable(table, format); err != nil {
		t.Fatalf("create table: %v", err)
	}

	cfg := api.Config{
		Realm:           "shared",
		ShutdownTimeout: time.Second,
		MaxRequestBytes: 10 << 20,
		NonceTTL:        5 * time.Minute,
	}
	srv, err := api.NewServer(cfg, store)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	h := &Harness{
		t:       t,
		Table:   table,
		Format:  format,
		HTTP:    ts,
		DB:      store,
		Clients: make(map[string]*Client),
	}

	for i := 0; i < numClients; i++ {
		acct := accounts[i]
		if err := store.AddUser(acct.user, cfg.Realm, acct.pass); err != nil {
			t.Fatalf("add user %s: %v", acct.user, err)
		}

		path := filepath.Join(dir, acct.user+".xml")
		repo := localstore.Repository{
			URL:      ts.URL + "/t/" + table,
			Realm:    cfg.Realm,
			Username: acct.user,
			Password: acct.pass,
		}
		if err := localstore.Create(path, repo); err != nil {
			t.Fatalf("create store for %s: %v", acct.user, err)
		}
		tbl, err := client.Open(path, format, client.Options{})
		if err != nil {
			t.Fatalf("open table for %s: %v", acct.user, err)
		}

		c := &Client{Name: acct.user, Table: tbl, path: path}
		t.Cleanup(func() { c.Table.Close() })

		h.Clients[acct.user] = c
		h.names = append(h.names, acct.user)
	}

	return h
}

// Client returns the named client.
func (h *Harness) Client(name string) *Client {
	h.t.Helper()
	c, ok := h.Clients[name]
	if !ok {
		h.t.Fatalf("unknown client: %s", name)
	}
	return c
}

// Pull runs one pull for the named client and saves the store.
func (h *Harness) Pull(name string) (changes, conflicts int, err error) {
	h.t.Helper()
	c := h.Client(name)

	changes, conflicts, err = c.Table.Pull()
	if err != nil {
		return changes, conflicts, err
	}
	return changes, conflicts, c.Table.Save()
}

// Push runs one push for the named client and saves the store.
func (h *Harness) Push(name string) (client.PushStats, error) {
	h.t.Helper()
	c := h.Client(name)

	stats, err := c.Table.Push()
	if err != nil {
		return stats, err
	}
	return stats, c.Table.Save()
}

// Records returns the client's current view of the table.
func (h *Harness) Records(name string) [][]string {
	h.t.Helper()
	records, err := h.Client(name).Table.Reader().ReadAll()
	if err != nil {
		h.t.Fatalf("read records of %s: %v", name, err)
	}
	return records
}

// WriteAll rewrites the client's table positionally from records, the
// way "stb update" does, and saves the store.
func (h *Harness) WriteAll(name string, records [][]string) error {
	h.t.Helper()
	tbl := h.Client(name).Table

	if _, err := tbl.Reader().ReadAll(); err != nil {
		return err
	}
	w, err := tbl.Writer()
	if err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return tbl.Save()
}

// Edit replaces the record at one snapshot position.
func (h *Harness) Edit(name string, pos int, record []string) error {
	h.t.Helper()

	records := h.Records(name)
	if pos < 0 || pos >= len(records) {
		return fmt.Errorf("edit position %d out of range for %d records", pos, len(records))
	}
	records[pos] = record
	return h.WriteAll(name, records)
}

// Append adds one record past the end of the table; it becomes a
// pending new row.
func (h *Harness) Append(name string, record []string) error {
	h.t.Helper()
	return h.WriteAll(name, append(h.Records(name), record))
}

// Conflicts lists the client's open conflicts under a fresh snapshot.
func (h *Harness) Conflicts(name string) []*client.Conflict {
	h.t.Helper()
	tbl := h.Client(name).Table

	if _, err := tbl.Reader().ReadAll(); err != nil {
		h.t.Fatalf("read records of %s: %v", name, err)
	}
	handles, err := tbl.Conflicts()
	if err != nil {
		h.t.Fatalf("conflicts of %s: %v", name, err)
	}
	return handles
}

// Resolve settles the conflict on one row by writing record as the
// merged result, the way "stb resolve" does.
func (h *Harness) Resolve(name string, id int64, record []string) error {
	h.t.Helper()
	tbl := h.Client(name).Table

	records, err := tbl.Reader().ReadAll()
	if err != nil {
		return err
	}
	handles, err := tbl.Conflicts()
	if err != nil {
		return err
	}

	var handle *client.Conflict
	for _, c := range handles {
		if c.ID() == id {
			handle = c
			break
		}
	}
	if handle == nil {
		return fmt.Errorf("no conflict on row %d", id)
	}
	handle.Resolve()
	records[handle.Index()] = record

	w, err := tbl.Writer()
	if err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return tbl.Save()
}

// AddColumn applies a column change on the client side. The table is
// reopened first: add-column only runs before the first snapshot, which
// the CLI guarantees by running it in its own process.
func (h *Harness) AddColumn(name, after, column string) error {
	h.t.Helper()
	c := h.Client(name)

	if err := c.Table.Close(); err != nil {
		return err
	}
	tbl, err := client.Open(c.path, h.Format, client.Options{})
	if err != nil {
		return err
	}
	c.Table = tbl

	if err := tbl.AddColumn(after, column); err != nil {
		return err
	}
	return tbl.Save()
}

// PulledVersion returns the client's sync cursor.
func (h *Harness) PulledVersion(name string) int64 {
	h.t.Helper()
	return h.Client(name).Table.PulledVersion()
}

// ServerRows reads the table's rows straight from the server database.
func (h *Harness) ServerRows() []serverdb.StoredRow {
	h.t.Helper()

	tx, err := h.DB.Begin()
	if err != nil {
		h.t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	rows, err := serverdb.ScanSince(tx, h.Table, 0, h.Format == serverdb.FormatSTBCSV)
	if err != nil {
		h.t.Fatalf("scan server rows: %v", err)
	}
	return rows
}

// AssertConverged verifies every client holds the same rows with no
// open conflicts and nothing left to push.
func (h *Harness) AssertConverged() {
	h.t.Helper()

	var refDump, refClient string
	for i, name := range h.names {
		c := h.Client(name)
		store := c.Table.Store()

		if n := len(store.Conflicts()); n > 0 {
			h.t.Fatalf("client %s still has %d conflicts", name, n)
		}
		if n := len(store.Pending()); n > 0 {
			h.t.Fatalf("client %s still has %d pending rows", name, n)
		}
		for _, r := range store.Rows() {
			if r.Modified {
				h.t.Fatalf("client %s still has modified row %d", name, r.ID)
			}
		}

		dump := h.dump(name)
		if i == 0 {
			refDump = dump
			refClient = name
			continue
		}
		if dump != refDump {
			h.t.Fatalf("DIVERGENCE between %s and %s:\n--- %s ---\n%s\n--- %s ---\n%s",
				refClient, name, refClient, refDump, name, dump)
		}
	}
}

// dump renders a client's synced rows deterministically.
func (h *Harness) dump(name string) string {
	var sb strings.Builder
	for _, r := range h.Client(name).Table.Store().Rows() {
		fmt.Fprintf(&sb, "id=%d v=%d data=%q\n", r.ID, r.Version, r.Data)
	}
	return sb.String()
}
