package domain

import "time"

// Credential is the durable token material for one authenticated account.
// Written by the device-flow authenticator, refreshed by the gateway.
type Credential struct {
	Account           string
	AccessToken       string
	RefreshToken      string
	AccessTokenExpiry time.Time
	UserName          string
	UserEmail         string
}

// SessionStatus is the device-flow state machine's state.
type SessionStatus string

const (
	SessionPending              SessionStatus = "pending"
	SessionPolling              SessionStatus = "polling"
	SessionAuthorizationPending SessionStatus = "authorization_pending"
	SessionSlowDown             SessionStatus = "slow_down"
	SessionSucceeded            SessionStatus = "succeeded"
	SessionExpired              SessionStatus = "expired"
	SessionDenied               SessionStatus = "denied"
	SessionFailed               SessionStatus = "failed"
)

// Terminal reports whether the status ends the session.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionSucceeded, SessionExpired, SessionDenied, SessionFailed:
		return true
	}
	return false
}
