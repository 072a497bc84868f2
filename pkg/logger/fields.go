package logger

// Shared log field name constants, so the same concept is always queryable
// under the same key.
const (
	// FieldAccount identifies the remote account a record belongs to.
	FieldAccount = "account"

	// FieldNoteID is the local note identifier.
	FieldNoteID = "noteId"

	// FieldRemoteID is the remote store's identifier for a note.
	FieldRemoteID = "remoteId"

	// FieldDuration is an elapsed-time field.
	FieldDuration = "duration"

	// FieldInterval is the device-flow poll interval.
	FieldInterval = "interval"

	// FieldError carries error text on non-Error log levels.
	FieldError = "error"
)
