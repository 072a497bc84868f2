// Package dto defines the shapes the service layer returns to callers.
package dto

import "github.com/notedapp/noted-sync/pkg/timex"

// SyncFailure names one note whose operation failed during a run.
type SyncFailure struct {
	LocalID  string `json:"localId,omitempty"`
	RemoteID string `json:"remoteId,omitempty"`
	Reason   string `json:"reason"`
}

// SyncResult is the structured summary of one sync run. A run never
// reports a bare success/failure boolean; partial success is a normal
// outcome.
type SyncResult struct {
	Account    string        `json:"account"`
	StartedAt  timex.Time    `json:"startedAt"`
	FinishedAt timex.Time    `json:"finishedAt"`
	Pushed     int           `json:"pushed"`
	Pulled     int           `json:"pulled"`
	Deleted    int           `json:"deleted"`
	Unchanged  int           `json:"unchanged"`
	Failed     int           `json:"failed"`
	Failures   []SyncFailure `json:"failures,omitempty"`
}
