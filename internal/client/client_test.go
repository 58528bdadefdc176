package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/walter/stb/internal/localstore"
	"github.com/walter/stb/internal/wire"
)

// cannedServer runs an httptest server that parses each request
// document and answers with whatever document fn returns.
func cannedServer(t *testing.T, fn func(req *wire.Request) any) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := wire.ParseRequest(r.Body)
		if err != nil {
			t.Errorf("server: parse request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := wire.Marshal(fn(req))
		if err != nil {
			t.Errorf("server: marshal response: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write(data)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTable(t *testing.T, url, format string) *Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local.stb")
	repo := localstore.Repository{
		URL:      url,
		Realm:    "shared",
		Username: "alice",
		Password: "wonderland",
	}
	if err := localstore.Create(path, repo); err != nil {
		t.Fatalf("create store: %v", err)
	}
	tbl, err := Open(path, format, Options{})
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func mustAddSynced(t *testing.T, tbl *Table, id, version int64, data string) *localstore.Row {
	t.Helper()
	r, err := tbl.Store().AddSynced(id, version, data)
	if err != nil {
		t.Fatalf("add synced: %v", err)
	}
	return r
}

func mustAddConflict(t *testing.T, tbl *Table, id, version int64, data string) {
	t.Helper()
	if _, err := tbl.Store().AddConflict(id, version, data); err != nil {
		t.Fatalf("add conflict: %v", err)
	}
}

func pullRows(version int64, rows ...wire.Row) *wire.PullResponse {
	return &wire.PullResponse{Version: version, Rows: wire.RowSet{Rows: rows}}
}

func TestPullClassification(t *testing.T) {
	ts := cannedServer(t, func(req *wire.Request) any {
		if req.Type != wire.TypePull {
			t.Errorf("request type: got %q", req.Type)
		}
		if req.PulledVersion == nil || *req.PulledVersion != 3 {
			t.Errorf("pulled_version not sent: %+v", req.PulledVersion)
		}
		return pullRows(9,
			wire.Row{ID: 0, Version: 1, Data: "Name,Age"}, // header, unchanged
			wire.Row{ID: 1, Version: 2, Data: "Alice,31"}, // fast-forward
			wire.Row{ID: 2, Version: 2, Data: "Bob,13"},   // new conflict
			wire.Row{ID: 3, Version: 3, Data: "Carol,24"}, // conflict moved again
			wire.Row{ID: 4, Version: 2, Data: "Dave,40"},  // same version, ignore
			wire.Row{ID: 9, Version: 1, Data: "Erin,50"},  // brand new
		)
	})

	tbl := newTable(t, ts.URL, FormatSTBCSV)
	tbl.Store().Repository.PulledVersion = 3
	mustAddSynced(t, tbl, 0, 1, "Name,Age")
	mustAddSynced(t, tbl, 1, 1, "Alice,30")
	mustAddSynced(t, tbl, 2, 1, "Bob,12").Modified = true
	mustAddSynced(t, tbl, 3, 1, "Carol,22").Modified = true
	mustAddConflict(t, tbl, 3, 2, "Carol,23")
	mustAddSynced(t, tbl, 4, 2, "Dave,40")

	changes, conflicts, err := tbl.Pull()
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if changes != 4 || conflicts != 2 {
		t.Fatalf("counts: got (%d, %d), want (4, 2)", changes, conflicts)
	}

	store := tbl.Store()
	if r := store.Row(1); r.Version != 2 || r.Data != "Alice,31" || r.Modified {
		t.Errorf("fast-forward: %+v", r)
	}
	if c := store.Conflict(2); c == nil || c.Version != 2 || c.Data != "Bob,13" {
		t.Errorf("new conflict: %+v", c)
	}
	if r := store.Row(2); r.Data != "Bob,12" || !r.Modified {
		t.Errorf("local copy of conflicted row must stay put: %+v", r)
	}
	if c := store.Conflict(3); c.Version != 3 || c.Data != "Carol,24" {
		t.Errorf("conflict update: %+v", c)
	}
	if r := store.Row(4); r.Version != 2 || r.Data != "Dave,40" {
		t.Errorf("same-version row must be ignored: %+v", r)
	}
	if r := store.Row(9); r == nil || r.Version != 1 || r.Data != "Erin,50" {
		t.Errorf("brand-new row: %+v", r)
	}
	if got := store.Repository.PulledVersion; got != 9 {
		t.Errorf("cursor: got %d, want 9", got)
	}
}

func TestPullSeedsHeader(t *testing.T) {
	ts := cannedServer(t, func(req *wire.Request) any {
		return pullRows(1,
			wire.Row{ID: 0, Version: 1, Data: "Name,Age"},
			wire.Row{ID: 1, Version: 1, Data: "Иван,15"},
		)
	})

	tbl := newTable(t, ts.URL, FormatSTBCSV)
	changes, conflicts, err := tbl.Pull()
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if changes != 2 || conflicts != 0 {
		t.Fatalf("counts: got (%d, %d), want (2, 0)", changes, conflicts)
	}
	if r := tbl.Store().Row(0); r == nil || r.Data != "Name,Age" {
		t.Errorf("header not seeded: %+v", r)
	}
	if r := tbl.Store().Row(1); r == nil || r.Data != "Иван,15" {
		t.Errorf("row not applied: %+v", r)
	}
}

func TestPullHeaderMismatch(t *testing.T) {
	ts := cannedServer(t, func(req *wire.Request) any {
		return pullRows(5,
			wire.Row{ID: 0, Version: 1, Data: "Name,Age,Email"},
			wire.Row{ID: 1, Version: 2, Data: "Alice,31"},
		)
	})

	tbl := newTable(t, ts.URL, FormatSTBCSV)
	mustAddSynced(t, tbl, 0, 1, "Name,Age")
	mustAddSynced(t, tbl, 1, 1, "Alice,30")

	_, _, err := tbl.Pull()
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("want ErrFormat, got %v", err)
	}
	if !errors.Is(err, ErrSync) {
		t.Error("format errors must also match ErrSync")
	}

	// Nothing may be applied, not even rows earlier in the response.
	if r := tbl.Store().Row(1); r.Version != 1 || r.Data != "Alice,30" {
		t.Errorf("store mutated on failed pull: %+v", r)
	}
	if tbl.Store().Repository.PulledVersion != 0 {
		t.Error("cursor advanced on failed pull")
	}
}

func TestPullProtocolBreaks(t *testing.T) {
	tests := []struct {
		name string
		rows []wire.Row
	}{
		{"header version advanced", []wire.Row{{ID: 0, Version: 2, Data: "Name,Age"}}},
		{"duplicate ids", []wire.Row{{ID: 5, Version: 1, Data: "a"}, {ID: 5, Version: 2, Data: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := cannedServer(t, func(req *wire.Request) any {
				return pullRows(7, tt.rows...)
			})
			tbl := newTable(t, ts.URL, FormatSTBCSV)

			_, _, err := tbl.Pull()
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("want ErrProtocol, got %v", err)
			}
			if len(tbl.Store().Rows()) != 0 || tbl.Store().Repository.PulledVersion != 0 {
				t.Error("store mutated on protocol break")
			}
		})
	}
}

func TestPullServerDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	tbl := newTable(t, ts.URL, FormatSTBCSV)
	if _, _, err := tbl.Pull(); !errors.Is(err, ErrSync) {
		t.Fatalf("want ErrSync, got %v", err)
	}
}

func TestPullEmptyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(ts.Close)

	tbl := newTable(t, ts.URL, FormatSTBCSV)
	if _, _, err := tbl.Pull(); !errors.Is(err, ErrSync) {
		t.Fatalf("want ErrSync, got %v", err)
	}
}

func TestPushRequestAndAcceptance(t *testing.T) {
	var got *wire.Request
	ts := cannedServer(t, func(req *wire.Request) any {
		got = req
		return &wire.PushResponse{
			Result:        wire.ResultOK,
			Version:       3,
			ConflictCount: 0,
			ModifiedRows:  wire.IDSet{IDs: []wire.RowID{{ID: 2}}},
			NewRows:       wire.IDSet{IDs: []wire.RowID{{ID: 7}, {ID: 8}}},
		}
	})

	tbl := newTable(t, ts.URL, FormatSTBCSV)
	tbl.Store().Repository.PulledVersion = 2
	mustAddSynced(t, tbl, 0, 1, "Name,Age")
	mustAddSynced(t, tbl, 1, 1, "Alice,30")
	mustAddSynced(t, tbl, 2, 2, "Bob,14").Modified = true
	tbl.Store().AddRow("Erin,50")
	tbl.Store().AddRow("Frank,60")

	stats, err := tbl.Push()
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	// Request: the header rides along at version 1, the modified row is
	// asked for at version 3, the unmodified row stays home.
	if len(got.Rows) != 2 {
		t.Fatalf("submitted rows: %+v", got.Rows)
	}
	if got.Rows[0].ID != 0 || got.Rows[0].Version != 1 || got.Rows[0].Data != "Name,Age" {
		t.Errorf("header probe: %+v", got.Rows[0])
	}
	if got.Rows[1].ID != 2 || got.Rows[1].Version != 3 || got.Rows[1].Data != "Bob,14" {
		t.Errorf("modified row: %+v", got.Rows[1])
	}
	if len(got.NewRows) != 2 || got.NewRows[0].Data != "Erin,50" || got.NewRows[1].Data != "Frank,60" {
		t.Errorf("new rows: %+v", got.NewRows)
	}

	if stats.Submitted != 3 || stats.Accepted != 3 || stats.Conflicts != 0 {
		t.Fatalf("stats: %+v", stats)
	}

	store := tbl.Store()
	if r := store.Row(2); r.Modified || r.Version != 3 {
		t.Errorf("acceptance: %+v", r)
	}
	if r := store.Row(7); r == nil || r.Version != 1 || r.Data != "Erin,50" {
		t.Errorf("promoted row 7: %+v", r)
	}
	if r := store.Row(8); r == nil || r.Data != "Frank,60" {
		t.Errorf("promoted row 8: %+v", r)
	}
	if len(store.Pending()) != 0 {
		t.Error("pending rows not drained")
	}
	if store.Repository.PulledVersion != 3 {
		t.Errorf("cursor should advance to 3, got %d", store.Repository.PulledVersion)
	}
}

func TestPushSkipsEmptyRoundTrip(t *testing.T) {
	ts := cannedServer(t, func(req *wire.Request) any {
		t.Error("server must not be contacted")
		return &wire.PushResponse{Result: wire.ResultOK}
	})

	tbl := newTable(t, ts.URL, FormatSTBCSV)
	mustAddSynced(t, tbl, 0, 1, "Name,Age")
	mustAddSynced(t, tbl, 1, 1, "Alice,30")

	stats, err := tbl.Push()
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if stats != (PushStats{}) {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestPushCursorAdvance(t *testing.T) {
	tests := []struct {
		name        string
		respVersion int64
		conflicts   int
		acceptRow   bool
		wantCursor  int64
	}{
		{"sole pusher advances", 6, 0, true, 6},
		{"intervening push leaves cursor", 8, 0, true, 5},
		{"conflict-only push leaves cursor", 6, 1, false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := cannedServer(t, func(req *wire.Request) any {
				resp := &wire.PushResponse{
					Result:        wire.ResultOK,
					Version:       tt.respVersion,
					ConflictCount: tt.conflicts,
				}
				if tt.acceptRow {
					resp.ModifiedRows.IDs = []wire.RowID{{ID: 1}}
				}
				return resp
			})

			tbl := newTable(t, ts.URL, FormatSTBCSV)
			tbl.Store().Repository.PulledVersion = 5
			mustAddSynced(t, tbl, 0, 1, "Name,Age")
			mustAddSynced(t, tbl, 1, 2, "Alice,31").Modified = true

			if _, err := tbl.Push(); err != nil {
				t.Fatalf("push: %v", err)
			}
			if got := tbl.Store().Repository.PulledVersion; got != tt.wantCursor {
				t.Fatalf("cursor: got %d, want %d", got, tt.wantCursor)
			}
		})
	}
}

func TestPushFormatConflict(t *testing.T) {
	ts := cannedServer(t, func(req *wire.Request) any {
		return &wire.PushResponse{Result: wire.ResultFormatConflict}
	})

	tbl := newTable(t, ts.URL, FormatSTBCSV)
	mustAddSynced(t, tbl, 0, 1, "Name,Age")
	mustAddSynced(t, tbl, 1, 1, "Alice,31").Modified = true

	_, err := tbl.Push()
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("want ErrFormat, got %v", err)
	}
	if r := tbl.Store().Row(1); !r.Modified || r.Version != 1 {
		t.Errorf("store mutated on refused push: %+v", r)
	}
}

func TestPushProtocolBreaks(t *testing.T) {
	tests := []struct {
		name string
		resp *wire.PushResponse
	}{
		{
			// 2 submitted but 2 accepted plus 1 conflict claimed.
			"conservation violation",
			&wire.PushResponse{
				Result:        wire.ResultOK,
				Version:       1,
				ConflictCount: 1,
				ModifiedRows:  wire.IDSet{IDs: []wire.RowID{{ID: 1}}},
				NewRows:       wire.IDSet{IDs: []wire.RowID{{ID: 7}}},
			},
		},
		{
			"acknowledgement for unsubmitted row",
			&wire.PushResponse{
				Result:        wire.ResultOK,
				Version:       1,
				ConflictCount: 1,
				ModifiedRows:  wire.IDSet{IDs: []wire.RowID{{ID: 99}}},
				NewRows:       wire.IDSet{IDs: []wire.RowID{{ID: 7}}},
			},
		},
		{
			"missing new-row ids",
			&wire.PushResponse{
				Result:       wire.ResultOK,
				Version:      1,
				ModifiedRows: wire.IDSet{IDs: []wire.RowID{{ID: 1}}},
			},
		},
		{
			"new row assigned an existing id",
			&wire.PushResponse{
				Result:        wire.ResultOK,
				Version:       1,
				ConflictCount: 1,
				NewRows:       wire.IDSet{IDs: []wire.RowID{{ID: 1}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := cannedServer(t, func(req *wire.Request) any { return tt.resp })

			tbl := newTable(t, ts.URL, FormatSTBCSV)
			tbl.Store().Repository.PulledVersion = 3
			mustAddSynced(t, tbl, 0, 1, "Name,Age")
			mustAddSynced(t, tbl, 1, 1, "Alice,31").Modified = true
			tbl.Store().AddRow("Erin,50")

			_, err := tbl.Push()
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("want ErrProtocol, got %v", err)
			}

			store := tbl.Store()
			if r := store.Row(1); !r.Modified || r.Version != 1 {
				t.Errorf("store mutated before validation finished: %+v", r)
			}
			if len(store.Pending()) != 1 {
				t.Error("pending container mutated on protocol break")
			}
			if store.Repository.PulledVersion != 3 {
				t.Error("cursor mutated on protocol break")
			}
		})
	}
}

func TestPushHeaderNotSubmittedOutsideSTBCSV(t *testing.T) {
	var got *wire.Request
	ts := cannedServer(t, func(req *wire.Request) any {
		got = req
		return &wire.PushResponse{
			Result:       wire.ResultOK,
			Version:      1,
			ModifiedRows: wire.IDSet{IDs: []wire.RowID{{ID: 0}}},
		}
	})

	tbl := newTable(t, ts.URL, FormatCSV)
	mustAddSynced(t, tbl, 0, 3, "just a row").Modified = true

	if _, err := tbl.Push(); err != nil {
		t.Fatalf("push: %v", err)
	}
	// In a plain csv table, id 0 is an ordinary row: submitted only
	// because it is modified, at its own next version.
	if len(got.Rows) != 1 || got.Rows[0].Version != 4 {
		t.Fatalf("rows: %+v", got.Rows)
	}
}
