package api

import (
	"errors"
	"net/http"

	stbsync "github.com/walter/stb/internal/sync"
	"github.com/walter/stb/internal/wire"
)

// handleTable serves the sync protocol for one shared table. Both
// operations run inside a single transaction; for a push the commit is
// the last action, so any failure (or a refused batch) leaves the
// table as it was.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	log := logFor(r.Context())

	format, err := s.store.TableFormat(table)
	if err != nil {
		log.Error("table lookup", "table", table, "err", err)
		writeError(w, http.StatusInternalServerError, "table lookup failure")
		return
	}
	if format == "" {
		writeError(w, http.StatusNotFound, "unknown table: %s", table)
		return
	}

	req, err := wire.ParseRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request: %v", err)
		return
	}

	tx, err := s.store.Begin()
	if err != nil {
		log.Error("begin", "err", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	defer tx.Rollback()

	switch req.Type {
	case wire.TypePull:
		if req.PulledVersion == nil {
			writeError(w, http.StatusBadRequest, "pull requires pulled_version")
			return
		}

		result, err := stbsync.Pull(tx, table, format, *req.PulledVersion)
		if err != nil {
			log.Error("pull", "table", table, "err", err)
			writeError(w, http.StatusInternalServerError, "pull failure")
			return
		}
		if err := tx.Commit(); err != nil {
			log.Error("commit pull", "table", table, "err", err)
			writeError(w, http.StatusInternalServerError, "storage failure")
			return
		}

		resp := wire.PullResponse{Version: result.Version}
		for _, row := range result.Rows {
			resp.Rows.Rows = append(resp.Rows.Rows, wire.Row{ID: row.ID, Version: row.Version, Data: row.Data})
		}
		writeXML(w, http.StatusOK, resp)

	case wire.TypePush:
		user := userFromContext(r.Context())

		mods := make([]stbsync.Row, 0, len(req.Rows))
		for _, row := range req.Rows {
			mods = append(mods, stbsync.Row{ID: row.ID, Version: row.Version, Data: row.Data})
		}
		news := make([]string, 0, len(req.NewRows))
		for _, row := range req.NewRows {
			news = append(news, row.Data)
		}

		result, err := stbsync.Push(tx, table, format, user, mods, news)
		if errors.Is(err, stbsync.ErrBadPush) {
			writeError(w, http.StatusBadRequest, "bad request: %v", err)
			return
		}
		if err != nil {
			log.Error("push", "table", table, "err", err)
			writeError(w, http.StatusInternalServerError, "push failure")
			return
		}

		resp := wire.PushResponse{
			Result:        wire.ResultOK,
			Version:       result.Version,
			ConflictCount: result.ConflictCount,
		}
		if result.FormatConflict {
			// Refused batch: the deferred rollback discards anything
			// the engine wrote before it saw the header mismatch.
			resp.Result = wire.ResultFormatConflict
		} else if err := tx.Commit(); err != nil {
			log.Error("commit push", "table", table, "err", err)
			writeError(w, http.StatusInternalServerError, "storage failure")
			return
		}
		for _, id := range result.ModifiedIDs {
			resp.ModifiedRows.IDs = append(resp.ModifiedRows.IDs, wire.RowID{ID: id})
		}
		for _, id := range result.NewIDs {
			resp.NewRows.IDs = append(resp.NewRows.IDs, wire.RowID{ID: id})
		}
		writeXML(w, http.StatusOK, resp)
	}
}
