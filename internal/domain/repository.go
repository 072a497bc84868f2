package domain

import "context"

// LocalStore is the contract the note-editing side honors to participate in
// sync. The engine reads a snapshot and hands back the accepted remote
// changes; everything on the UI side of this boundary is out of scope.
type LocalStore interface {
	// Snapshot returns every note including tombstones.
	Snapshot(ctx context.Context) ([]Note, error)

	// ApplyRemoteChanges merges accepted remote versions into the local
	// collection and removes notes whose ids appear in tombstonedLocalIDs.
	// An accepted note's ModifiedAt carries the remote timestamp, not the
	// local wall clock.
	ApplyRemoteChanges(ctx context.Context, accepted []Note, tombstonedLocalIDs []string) error

	// SetRemoteID records the remote identifier a push produced.
	SetRemoteID(ctx context.Context, localID, remoteID string) error

	// PurgeTombstones removes tombstones whose deletion has been
	// propagated remotely.
	PurgeTombstones(ctx context.Context, localIDs []string) error
}

// NoteEditor is the minimal local CRUD surface the bundled CLI commands
// use. A full editing UI replaces this wholesale.
type NoteEditor interface {
	NoteCreate(ctx context.Context, n *Note) error
	NoteList(ctx context.Context) ([]Note, error)
	NoteMarkDeleted(ctx context.Context, localID string, mtime int64) error
}

// MappingRepository persists the sync mapping table.
type MappingRepository interface {
	ListByAccount(ctx context.Context, account string) ([]SyncMapping, error)
	Upsert(ctx context.Context, m *SyncMapping) error
	Delete(ctx context.Context, account, localID string) error
}

// CredentialRepository persists one credential per account.
type CredentialRepository interface {
	Get(ctx context.Context, account string) (*Credential, error)
	List(ctx context.Context) ([]Credential, error)
	Save(ctx context.Context, c *Credential) error
	Delete(ctx context.Context, account string) error
}
