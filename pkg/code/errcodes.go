package code

// Configuration and storage.
var (
	ErrConfigInvalid = NewError(10001, "configuration is invalid")
	ErrDBQuery       = NewError(10002, "database operation failed")
)

// Device-flow authentication. Transient errors are retried with bounded
// backoff; terminal ones require the user to restart the flow.
var (
	ErrAuthTransient  = NewError(20001, "transient authentication failure")
	ErrAuthDenied     = NewError(20002, "authorization was denied")
	ErrAuthExpired    = NewError(20003, "device code expired before authorization")
	ErrAuthFailed     = NewError(20004, "authentication failed")
	ErrAuthInProgress = NewError(20005, "an authentication attempt is already in progress")
	ErrNotConnected   = NewError(20006, "no credential stored for account")
)

// Remote gateway outcomes. The gateway reports these raw; batch-level
// classification is the sync engine's job.
var (
	ErrUnauthorized   = NewError(30001, "remote store rejected the credential")
	ErrUnavailable    = NewError(30002, "remote store is unavailable")
	ErrCorruptPayload = NewError(30003, "remote payload is malformed")
)

// Sync engine.
var (
	ErrAlreadySyncing = NewError(40001, "a sync run is already active for this account")
	ErrConnectivity   = NewError(40002, "remote store unreachable, sync aborted")
	ErrSyncTimeout    = NewError(40003, "sync run timed out before finishing")
	ErrSyncCancelled  = NewError(40004, "sync run was cancelled")
)
