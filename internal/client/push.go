package client

import (
	"fmt"

	"github.com/walter/stb/internal/wire"
)

// PushStats reports the outcome of one push.
type PushStats struct {
	Submitted int // modified rows plus pending-new rows sent
	Accepted  int // rows the server acknowledged
	Conflicts int // rows refused at the server's version gate
}

// Push submits every locally modified row at its next version and every
// pending-new row, then applies the server's acknowledgements: accepted
// modifications lose their modified flag and gain a version, pending
// rows are promoted into the synced container under their assigned ids.
// In stbcsv the header row rides along on every push as a format probe
// and is not counted as a submission.
//
// The round trip is skipped entirely when there is nothing to submit.
// The response is validated in full before the store is touched. The
// caller is responsible for saving the store afterwards.
func (t *Table) Push() (PushStats, error) {
	var stats PushStats
	req := &wire.PushRequest{Type: wire.TypePush}

	for _, r := range t.store.Rows() {
		if t.format == FormatSTBCSV && r.ID == 0 {
			if r.Version != 1 {
				return stats, fmt.Errorf("%w: header row advanced to version %d", ErrProtocol, r.Version)
			}
			req.Rows.Rows = append(req.Rows.Rows, wire.Row{ID: 0, Version: 1, Data: r.Data})
			continue
		}
		if r.Modified {
			req.Rows.Rows = append(req.Rows.Rows, wire.Row{ID: r.ID, Version: r.Version + 1, Data: r.Data})
			stats.Submitted++
		}
	}

	pending := t.store.Pending()
	for _, n := range pending {
		req.NewRows.Rows = append(req.NewRows.Rows, wire.NewRow{Data: n.Data})
		stats.Submitted++
	}

	if stats.Submitted == 0 {
		t.log.Debug("push skipped, nothing to submit")
		return stats, nil
	}
	t.log.Debug("push", "url", t.url, "submitted", stats.Submitted)

	body, err := t.post(req)
	if err != nil {
		return stats, err
	}
	resp, err := wire.ParsePushResponse(body)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrSync, err)
	}

	switch resp.Result {
	case wire.ResultOK:
	case wire.ResultFormatConflict:
		return stats, fmt.Errorf("%w: server refused the push", ErrFormat)
	default:
		return stats, fmt.Errorf("%w: server result %q", ErrSync, resp.Result)
	}

	if err := t.validatePush(resp, stats.Submitted, len(pending)); err != nil {
		return stats, err
	}

	for _, ack := range resp.ModifiedRows.IDs {
		r := t.store.Row(ack.ID)
		r.Modified = false
		r.Version++
	}
	for i, ack := range resp.NewRows.IDs {
		if _, err := t.store.AddSynced(ack.ID, 1, pending[i].Data); err != nil {
			return stats, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		t.log.Debug("new row accepted", "id", ack.ID)
	}
	t.store.ClearPending()

	stats.Accepted = len(resp.ModifiedRows.IDs) + len(resp.NewRows.IDs)
	stats.Conflicts = resp.ConflictCount

	// If at least one change took and the server's version is exactly
	// one past our cursor, the increase was ours alone and the cursor
	// can advance without a pull.
	if stats.Accepted > 0 {
		if resp.Version == t.store.Repository.PulledVersion+1 {
			t.log.Debug("no intervening pushes, advancing cursor", "version", resp.Version)
			t.store.Repository.PulledVersion = resp.Version
		} else {
			t.log.Debug("intervening push detected, cursor unchanged",
				"cursor", t.store.Repository.PulledVersion, "version", resp.Version)
		}
	}

	return stats, nil
}

// validatePush enforces the response invariants before anything is
// applied: every acknowledged modification names a row we submitted,
// new-row ids are acknowledged one-for-one in submission order without
// colliding with known ids, and every submission is accounted for as
// either accepted or conflicting.
func (t *Table) validatePush(resp *wire.PushResponse, submitted, pendingCount int) error {
	seen := make(map[int64]bool, len(resp.ModifiedRows.IDs)+len(resp.NewRows.IDs))

	for _, ack := range resp.ModifiedRows.IDs {
		if seen[ack.ID] {
			return fmt.Errorf("%w: row %d acknowledged twice", ErrProtocol, ack.ID)
		}
		seen[ack.ID] = true
		r := t.store.Row(ack.ID)
		if r == nil || !r.Modified {
			return fmt.Errorf("%w: acknowledgement for row %d which was not submitted", ErrProtocol, ack.ID)
		}
	}

	if len(resp.NewRows.IDs) != pendingCount {
		return fmt.Errorf("%w: %d new-row ids for %d submitted rows",
			ErrProtocol, len(resp.NewRows.IDs), pendingCount)
	}
	for _, ack := range resp.NewRows.IDs {
		if seen[ack.ID] {
			return fmt.Errorf("%w: row %d acknowledged twice", ErrProtocol, ack.ID)
		}
		seen[ack.ID] = true
		if t.store.Row(ack.ID) != nil {
			return fmt.Errorf("%w: new row assigned existing id %d", ErrProtocol, ack.ID)
		}
	}

	accepted := len(resp.ModifiedRows.IDs) + len(resp.NewRows.IDs)
	if submitted != accepted+resp.ConflictCount {
		return fmt.Errorf("%w: submitted %d but %d accepted + %d conflicts",
			ErrProtocol, submitted, accepted, resp.ConflictCount)
	}
	return nil
}
