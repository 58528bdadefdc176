package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure classes of a sync operation.
//
// ErrSync covers recoverable failures: the caller may retry the pull or
// push. ErrFormat wraps ErrSync, so errors.Is(err, ErrSync) holds for
// format conflicts too. ErrProtocol marks a response that violates the
// protocol invariants; the operation aborts before touching the local
// store and retrying is pointless until server or client is fixed.
var (
	ErrSync     = errors.New("sync failed")
	ErrFormat   = fmt.Errorf("%w: table format mismatch", ErrSync)
	ErrProtocol = errors.New("protocol violation")
)
