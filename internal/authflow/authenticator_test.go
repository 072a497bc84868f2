package authflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/pkg/code"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memCreds struct {
	mu    sync.Mutex
	saved map[string]*domain.Credential
}

func newMemCreds() *memCreds {
	return &memCreds{saved: make(map[string]*domain.Credential)}
}

func (m *memCreds) Get(ctx context.Context, account string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.saved[account]
	if !ok {
		return nil, code.ErrNotConnected.WithDetails(account)
	}
	return c, nil
}

func (m *memCreds) List(ctx context.Context) ([]domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Credential
	for _, c := range m.saved {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memCreds) Save(ctx context.Context, c *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[c.Account] = c
	return nil
}

func (m *memCreds) Delete(ctx context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, account)
	return nil
}

func (m *memCreds) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// tokenScript feeds the /token endpoint one canned response per poll.
type tokenScript struct {
	mu        sync.Mutex
	responses []map[string]any
	polls     int
}

func (s *tokenScript) next() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if len(s.responses) == 0 {
		return map[string]any{"error": "authorization_pending"}
	}
	r := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return r
}

func (s *tokenScript) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func newTestAuthenticator(t *testing.T, expiresIn int64, script *tokenScript) (*Authenticator, *memCreds) {
	t.Helper()

	old := minPollInterval
	minPollInterval = 5 * time.Millisecond
	t.Cleanup(func() { minPollInterval = old })

	mux := http.NewServeMux()
	mux.HandleFunc("/devicecode", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "dev-code",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://example.com/verify",
			"expires_in":       expiresIn,
			"interval":         0,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(script.next())
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"displayName": "Sam",
			"mail":        "sam@example.com",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	creds := newMemCreds()
	a := New(Options{
		Authority:  srv.URL,
		ClientID:   "client-1",
		Scopes:     []string{"notes.readwrite"},
		ProfileURL: srv.URL + "/me",
		Creds:      creds,
		HTTPClient: srv.Client(),
		Logger:     zap.NewNop(),
	})
	return a, creds
}

func waitTerminal(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not reach a terminal status")
	}
}

func TestDeviceFlowSucceeds(t *testing.T) {
	script := &tokenScript{responses: []map[string]any{
		{"error": "authorization_pending"},
		{"access_token": "tok", "refresh_token": "ref", "expires_in": 3600},
	}}
	a, creds := newTestAuthenticator(t, 300, script)

	s, err := a.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ABCD-1234", s.UserCode())
	require.Equal(t, "https://example.com/verify", s.VerificationURI())

	waitTerminal(t, s)
	require.Equal(t, domain.SessionSucceeded, s.Status())
	require.NoError(t, s.Err())

	cred := s.Credential()
	require.NotNil(t, cred)
	// The fake access token has no claims, so identity comes from the
	// profile endpoint.
	require.Equal(t, "sam@example.com", cred.Account)
	require.Equal(t, "Sam", cred.UserName)

	stored, err := creds.Get(context.Background(), "sam@example.com")
	require.NoError(t, err)
	require.Equal(t, "ref", stored.RefreshToken)
}

func TestDeviceFlowDenied(t *testing.T) {
	script := &tokenScript{responses: []map[string]any{
		{"error": "access_denied"},
	}}
	a, creds := newTestAuthenticator(t, 300, script)

	s, err := a.Start(context.Background())
	require.NoError(t, err)
	waitTerminal(t, s)

	require.Equal(t, domain.SessionDenied, s.Status())
	require.ErrorIs(t, s.Err(), code.ErrAuthDenied)
	require.Zero(t, creds.count())
}

func TestDeviceFlowExpiresWithoutPolling(t *testing.T) {
	script := &tokenScript{}
	a, _ := newTestAuthenticator(t, 0, script)

	s, err := a.Start(context.Background())
	require.NoError(t, err)
	waitTerminal(t, s)

	require.Equal(t, domain.SessionExpired, s.Status())
	require.ErrorIs(t, s.Err(), code.ErrAuthExpired)
	// An expired session never hits the token endpoint again.
	require.Zero(t, script.pollCount())
}

func TestDeviceFlowExpiredTokenResponse(t *testing.T) {
	script := &tokenScript{responses: []map[string]any{
		{"error": "expired_token"},
	}}
	a, _ := newTestAuthenticator(t, 300, script)

	s, err := a.Start(context.Background())
	require.NoError(t, err)
	waitTerminal(t, s)

	require.Equal(t, domain.SessionExpired, s.Status())
}

func TestSlowDownGrowsInterval(t *testing.T) {
	script := &tokenScript{responses: []map[string]any{
		{"error": "slow_down"},
		{"error": "authorization_pending"},
	}}
	a, _ := newTestAuthenticator(t, 300, script)

	s, err := a.Start(context.Background())
	require.NoError(t, err)
	before := s.PollInterval()

	require.Eventually(t, func() bool {
		return s.PollInterval() == before+slowDownStep
	}, 5*time.Second, 5*time.Millisecond)

	s.Cancel()
	waitTerminal(t, s)
}

func TestSecondStartRejectedWhilePolling(t *testing.T) {
	script := &tokenScript{}
	a, _ := newTestAuthenticator(t, 300, script)

	s, err := a.Start(context.Background())
	require.NoError(t, err)

	_, err = a.Start(context.Background())
	require.ErrorIs(t, err, code.ErrAuthInProgress)

	s.Cancel()
	waitTerminal(t, s)
}

func TestCancelLeavesCredentialsUntouchedAndAllowsRestart(t *testing.T) {
	script := &tokenScript{}
	a, creds := newTestAuthenticator(t, 300, script)

	s, err := a.Start(context.Background())
	require.NoError(t, err)
	s.Cancel()
	waitTerminal(t, s)

	require.True(t, s.Status().Terminal())
	require.Zero(t, creds.count())

	// A fresh attempt starts cleanly after cancellation.
	s2, err := a.Start(context.Background())
	require.NoError(t, err)
	s2.Cancel()
	waitTerminal(t, s2)
}

func TestStartRequiresClientID(t *testing.T) {
	a := New(Options{Authority: "https://idp.example.com", Creds: newMemCreds()})

	_, err := a.Start(context.Background())
	require.ErrorIs(t, err, code.ErrConfigInvalid)
}

var _ domain.CredentialRepository = (*memCreds)(nil)
