// Package client implements the stb client side: pull and push against
// a shared-table server, the CSV read/write adapter over the local
// store, conflict handles, and the column-addition utility.
package client

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/icholy/digest"

	"github.com/walter/stb/internal/localstore"
	"github.com/walter/stb/internal/wire"
)

// Table formats. An stbcsv table carries an immutable header row at
// id 0 that defines the CSV schema; csv and other tables treat every
// row as opaque payload.
const (
	FormatSTBCSV = "stbcsv"
	FormatCSV    = "csv"
	FormatOther  = "other"
)

// ValidFormat reports whether f names a known table format.
func ValidFormat(f string) bool {
	return f == FormatSTBCSV || f == FormatCSV || f == FormatOther
}

// CredentialSource supplies digest credentials at request time,
// overriding the username and password recorded in the local store.
type CredentialSource interface {
	Credentials() (username, password string, err error)
}

// Options configure a Table beyond its local store.
type Options struct {
	// Logger receives sync progress at debug level and falls back to
	// slog.Default when nil.
	Logger *slog.Logger

	// Credentials, when non-nil, replaces the credentials stored in
	// the local store document.
	Credentials CredentialSource

	// HTTPTimeout bounds one request round trip. Defaults to 30s.
	HTTPTimeout time.Duration
}

// Table is one client's handle on a shared table: the local store plus
// the HTTP coordinates needed to reconcile it with the server. A Table
// is not safe for concurrent use.
type Table struct {
	store  *localstore.Store
	format string
	url    string
	http   *http.Client
	log    *slog.Logger

	// snap is the positional snapshot taken by Reader and consumed by
	// Writer. See csv.go.
	snap *snapshot
}

// New wraps an already-open local store. The table takes ownership of
// the store; Close releases its lock.
func New(store *localstore.Store, format string, opts Options) (*Table, error) {
	if !ValidFormat(format) {
		return nil, fmt.Errorf("invalid table format: %q (want stbcsv, csv or other)", format)
	}

	username := store.Repository.Username
	password := store.Repository.Password
	if opts.Credentials != nil {
		var err error
		username, password, err = opts.Credentials.Credentials()
		if err != nil {
			return nil, fmt.Errorf("resolve credentials: %w", err)
		}
	}

	timeout := opts.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Table{
		store:  store,
		format: format,
		url:    store.Repository.URL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &digest.Transport{Username: username, Password: password},
		},
		log: log,
	}, nil
}

// Open opens the local store at path and wraps it in a Table.
func Open(path, format string, opts Options) (*Table, error) {
	store, err := localstore.Open(path)
	if err != nil {
		return nil, err
	}
	t, err := New(store, format, opts)
	if err != nil {
		store.Close()
		return nil, err
	}
	return t, nil
}

// Save writes the local store to disk.
func (t *Table) Save() error { return t.store.Save() }

// Close releases the local store's lock.
func (t *Table) Close() error { return t.store.Close() }

// Store exposes the underlying local store.
func (t *Table) Store() *localstore.Store { return t.store }

// Format returns the table format the client was constructed with.
func (t *Table) Format() string { return t.format }

// PulledVersion returns the client's table-version cursor.
func (t *Table) PulledVersion() int64 { return t.store.Repository.PulledVersion }

// post sends one request document to the repository URL and returns
// the raw response body. Transport failures, non-200 statuses and
// empty bodies are all ErrSync.
func (t *Table) post(doc any) ([]byte, error) {
	body, err := wire.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSync, err)
	}

	req, err := http.NewRequest(http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSync, err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSync, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSync, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrSync, resp.StatusCode, t.url)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrSync)
	}
	return data, nil
}
