// Package authflow implements the OAuth device-authorization state machine
// that turns a user code plus polling protocol into a stored credential,
// without ever blocking the caller.
package authflow

import (
	"context"
	"sync"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"
)

// Session is one in-progress device-flow negotiation. It exists only for
// the duration of a single attempt and is discarded on any terminal status.
type Session struct {
	mu     sync.Mutex
	status domain.SessionStatus
	err    error
	cred   *domain.Credential

	deviceCode      string
	userCode        string
	verificationURI string
	issuedAt        time.Time
	expiresAt       time.Time
	pollInterval    time.Duration

	done   chan struct{}
	cancel context.CancelFunc
}

// UserCode is the short code the user enters on the verification page.
func (s *Session) UserCode() string {
	return s.userCode
}

// VerificationURI is where the user completes sign-in.
func (s *Session) VerificationURI() string {
	return s.verificationURI
}

// ExpiresAt is the wall-clock deadline for the whole attempt.
func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

// PollInterval is the current interval between token polls. It can only
// grow over the session's lifetime (slow_down handling).
func (s *Session) PollInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollInterval
}

// Status returns the state machine's current state.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done closes when the session reaches a terminal status.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session ended, nil on success.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Credential returns the stored credential after success, nil otherwise.
func (s *Session) Credential() *domain.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// Cancel stops the poll loop. The loop observes cancellation before its
// next sleep ends and exits without further network calls.
func (s *Session) Cancel() {
	s.cancel()
}

func (s *Session) setStatus(status domain.SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// finish records a terminal status exactly once.
func (s *Session) finish(status domain.SessionStatus, cred *domain.Credential, err error) {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.cred = cred
	s.err = err
	s.mu.Unlock()
	close(s.done)
}
