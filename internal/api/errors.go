package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/walter/stb/internal/wire"
)

// writeError sends a plain-text diagnostic. Protocol clients treat any
// non-200 status as a sync failure; the body is for humans reading
// server logs or curl output.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, format+"\n", args...)
}

// writeXML writes a protocol document response.
func writeXML(w http.ResponseWriter, status int, doc any) {
	data, err := wire.Marshal(doc)
	if err != nil {
		slog.Error("marshal response", "err", err)
		writeError(w, http.StatusInternalServerError, "encode response")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Error("write response", "err", err)
	}
}
