package client

import (
	"fmt"

	"github.com/walter/stb/internal/wire"
)

// Pull asks the server for every row changed since the last pull and
// folds the response into the local store. It returns how many rows
// changed locally and how many of those are conflicts; changes counts
// every conflict, so changes >= conflicts always holds.
//
// Classification per received row: a known conflict is refreshed when
// the server version moved again; a synced row is fast-forwarded when
// it has no local modification, or recorded as a new conflict when it
// has; an unknown id is appended as a new synced row. The stbcsv
// header at id 0 is only compared, never applied.
//
// The response is validated in full before the store is touched, so a
// failed pull leaves the local store exactly as it was. The caller is
// responsible for saving the store afterwards.
func (t *Table) Pull() (changes, conflicts int, err error) {
	pulled := t.store.Repository.PulledVersion
	t.log.Debug("pull", "url", t.url, "pulled_version", pulled)

	body, err := t.post(&wire.PullRequest{Type: wire.TypePull, PulledVersion: pulled})
	if err != nil {
		return 0, 0, err
	}
	resp, err := wire.ParsePullResponse(body)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrSync, err)
	}

	if err := t.validatePull(resp); err != nil {
		return 0, 0, err
	}

	for _, row := range resp.Rows.Rows {
		if c := t.store.Conflict(row.ID); c != nil {
			// The row is already in conflict. A further server-side
			// change replaces the recorded competing version.
			if c.Version != row.Version {
				c.Version = row.Version
				c.Data = row.Data
				changes++
				conflicts++
			}
			continue
		}

		if r := t.store.Row(row.ID); r != nil {
			switch {
			case t.format == FormatSTBCSV && row.ID == 0:
				// Header equality was verified up front.
			case r.Version == row.Version:
				// Not changed on the server.
			case r.Modified:
				t.log.Debug("new conflict", "id", row.ID, "server_version", row.Version)
				if _, err := t.store.AddConflict(row.ID, row.Version, row.Data); err != nil {
					return changes, conflicts, fmt.Errorf("%w: %v", ErrProtocol, err)
				}
				changes++
				conflicts++
			default:
				r.Version = row.Version
				r.Data = row.Data
				changes++
			}
			continue
		}

		if _, err := t.store.AddSynced(row.ID, row.Version, row.Data); err != nil {
			return changes, conflicts, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		changes++
	}

	t.store.Repository.PulledVersion = resp.Version
	t.log.Debug("pull applied", "changes", changes, "conflicts", conflicts, "version", resp.Version)
	return changes, conflicts, nil
}

// validatePull enforces the response invariants before anything is
// applied: no duplicate ids; in stbcsv, the id 0 row must be at
// version 1 and its payload must match a locally stored header.
func (t *Table) validatePull(resp *wire.PullResponse) error {
	seen := make(map[int64]bool, len(resp.Rows.Rows))
	for _, row := range resp.Rows.Rows {
		if seen[row.ID] {
			return fmt.Errorf("%w: duplicate row id %d in pull response", ErrProtocol, row.ID)
		}
		seen[row.ID] = true

		if t.format != FormatSTBCSV || row.ID != 0 {
			continue
		}
		if row.Version != 1 {
			return fmt.Errorf("%w: header row advanced to version %d", ErrProtocol, row.Version)
		}
		if r := t.store.Row(0); r != nil && r.Data != row.Data {
			t.log.Debug("header mismatch", "local", r.Data, "server", row.Data)
			return fmt.Errorf("%w: server header differs from local header", ErrFormat)
		}
	}
	return nil
}
