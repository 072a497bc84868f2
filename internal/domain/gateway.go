package domain

import "context"

// Profile identifies the signed-in user behind a credential.
type Profile struct {
	Name  string
	Email string
}

// NoteGateway is the normalized interface over the authenticated remote
// store. Implementations report raw per-call outcomes; batch-level
// classification is the engine's responsibility.
type NoteGateway interface {
	// List returns summaries for every remote note, without bodies.
	List(ctx context.Context) ([]RemoteNoteSummary, error)

	// Fetch retrieves full note content, normalized to the canonical shape.
	Fetch(ctx context.Context, remoteID string) (*Note, error)

	// Create pushes a new note and returns its remote id. The request
	// carries an idempotency key derived from the local id and creation
	// time, so a retry after an ambiguous failure updates instead of
	// duplicating.
	Create(ctx context.Context, note *Note) (string, error)

	// Update overwrites the remote note.
	Update(ctx context.Context, remoteID string, note *Note) error

	// Delete removes the remote note.
	Delete(ctx context.Context, remoteID string) error

	// Profile fetches the signed-in user's display name and email.
	Profile(ctx context.Context) (*Profile, error)
}
