// Package domain defines the canonical types and the interfaces between the
// sync engine, the local store and the remote gateway. Wire schema knowledge
// never appears here; the gateway normalizes before anything reaches these
// types.
package domain

// Note is the canonical in-memory unit of synchronization. Timestamps are
// unix seconds; ModifiedAt is monotonically non-decreasing over a note's
// lifetime and is the sole basis for conflict resolution.
type Note struct {
	// ID is the locally-unique identifier, stable for the note's lifetime
	// on this client.
	ID string
	// RemoteID is assigned by the remote store after the first push; empty
	// for notes never synced.
	RemoteID string
	// Title is a derived display label, possibly empty.
	Title string
	// Body is the editable text content, always under this one field.
	Body string
	// CreatedAt and ModifiedAt are unix seconds.
	CreatedAt  int64
	ModifiedAt int64
	// Origin names the client that last wrote this version. Diagnostic
	// only, never consulted for merge decisions.
	Origin string
	// Deleted marks a tombstone: the user removed the note and the
	// deletion has not yet been propagated remotely.
	Deleted bool
}

// RemoteNoteSummary is the cheap listing record the gateway returns, enough
// to diff without fetching bodies.
type RemoteNoteSummary struct {
	RemoteID   string
	Name       string
	ModifiedAt int64
}

// SyncMapping links a local note to its remote counterpart. One row per
// note that has ever been synced, owned exclusively by the sync engine.
type SyncMapping struct {
	Account              string
	LocalID              string
	RemoteID             string
	LastSyncedModifiedAt int64
}
