package authflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/pkg/code"
	"github.com/notedapp/noted-sync/pkg/logger"

	"go.uber.org/zap"
)

// Vars rather than consts so tests can compress time.
var (
	// minPollInterval is the floor on the provider-specified interval.
	minPollInterval = 5 * time.Second
	// transientBackoff seeds the exponential wait between transport
	// error retries.
	transientBackoff = time.Second
)

const (
	// slowDownStep is added to the interval on each slow_down response.
	slowDownStep = 5 * time.Second
	// transientRetries bounds retries of raw transport errors during
	// polling before the session fails.
	transientRetries = 3
)

// Options configures an Authenticator.
type Options struct {
	// Authority is the identity provider base URL; the device code and
	// token endpoints hang off it.
	Authority string
	ClientID  string
	Scopes    []string
	// ProfileURL is fetched after success to name the account when the
	// token claims don't.
	ProfileURL string
	Creds      domain.CredentialRepository
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Authenticator negotiates credentials through the device-authorization
// flow. At most one session is active at a time; starting another while one
// is polling is rejected, never queued.
type Authenticator struct {
	deviceCodeURL string
	tokenURL      string
	profileURL    string
	clientID      string
	scopes        []string
	creds         domain.CredentialRepository
	httpClient    *http.Client
	logger        *zap.Logger

	mu     sync.Mutex
	active *Session
}

// New creates an Authenticator.
func New(opts Options) *Authenticator {
	authority := strings.TrimRight(strings.TrimSpace(opts.Authority), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	profileURL := strings.TrimSpace(opts.ProfileURL)
	if profileURL == "" {
		profileURL = "https://graph.microsoft.com/v1.0/me"
	}
	return &Authenticator{
		deviceCodeURL: authority + "/devicecode",
		tokenURL:      authority + "/token",
		profileURL:    profileURL,
		clientID:      opts.ClientID,
		scopes:        opts.Scopes,
		creds:         opts.Creds,
		httpClient:    httpClient,
		logger:        lg,
	}
}

// TokenURL exposes the token endpoint for the gateway's refresh calls.
func (a *Authenticator) TokenURL() string {
	return a.tokenURL
}

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
}

// Start begins a new device-flow attempt. The device code request runs
// synchronously; on success the returned session is already polling in the
// background and the caller shows UserCode/VerificationURI to the user.
//
// A failure to even obtain a device code is reported immediately with no
// retry. A second Start while a session is still polling returns
// code.ErrAuthInProgress.
func (a *Authenticator) Start(ctx context.Context) (*Session, error) {
	if a.clientID == "" {
		return nil, code.ErrConfigInvalid.WithDetails("auth.client-id is not set")
	}
	a.mu.Lock()
	if a.active != nil && !a.active.Status().Terminal() {
		a.mu.Unlock()
		return nil, code.ErrAuthInProgress
	}
	a.mu.Unlock()

	form := url.Values{}
	form.Set("client_id", a.clientID)
	form.Set("scope", strings.Join(a.scopes, " "))

	var dc deviceCodeResponse
	if err := a.postForm(ctx, a.deviceCodeURL, form, &dc); err != nil {
		return nil, code.ErrAuthFailed.WithDetails(err.Error())
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, code.ErrAuthFailed.WithDetails("device code response incomplete")
	}

	interval := time.Duration(dc.Interval) * time.Second
	if interval < minPollInterval {
		interval = minPollInterval
	}

	pollCtx, cancel := context.WithCancel(ctx)
	now := time.Now()
	session := &Session{
		status:          domain.SessionPolling,
		deviceCode:      dc.DeviceCode,
		userCode:        dc.UserCode,
		verificationURI: dc.VerificationURI,
		issuedAt:        now,
		expiresAt:       now.Add(time.Duration(dc.ExpiresIn) * time.Second),
		pollInterval:    interval,
		done:            make(chan struct{}),
		cancel:          cancel,
	}

	a.mu.Lock()
	if a.active != nil && !a.active.Status().Terminal() {
		a.mu.Unlock()
		cancel()
		return nil, code.ErrAuthInProgress
	}
	a.active = session
	a.mu.Unlock()

	a.logger.Info("device flow started",
		zap.String("userCode", session.userCode),
		zap.String("verificationUri", session.verificationURI),
		zap.Time("expiresAt", session.expiresAt))

	go a.poll(pollCtx, session)
	return session, nil
}

// poll drives the token endpoint until a terminal status. Cancellation is
// observed at every sleep; the expiry check runs before each network call
// so an expired session never polls again.
func (a *Authenticator) poll(ctx context.Context, s *Session) {
	defer s.cancel()

	transientLeft := transientRetries

	for {
		if time.Now().After(s.expiresAt) {
			a.logger.Warn("device flow expired before authorization")
			s.finish(domain.SessionExpired, nil, code.ErrAuthExpired)
			return
		}

		if err := sleepContext(ctx, s.PollInterval()); err != nil {
			s.finish(domain.SessionFailed, nil, code.ErrAuthFailed.WithDetails(err.Error()))
			return
		}
		if time.Now().After(s.expiresAt) {
			s.finish(domain.SessionExpired, nil, code.ErrAuthExpired)
			return
		}

		form := url.Values{}
		form.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
		form.Set("client_id", a.clientID)
		form.Set("device_code", s.deviceCode)

		var tr tokenResponse
		err := a.postForm(ctx, a.tokenURL, form, &tr)
		if err != nil {
			if ctx.Err() != nil {
				s.finish(domain.SessionFailed, nil, code.ErrAuthFailed.WithDetails(ctx.Err().Error()))
				return
			}
			transientLeft--
			if transientLeft < 0 {
				a.logger.Error("device flow transport failure", zap.Error(err))
				s.finish(domain.SessionFailed, nil, code.ErrAuthTransient.WithDetails(err.Error()))
				return
			}
			backoff := transientBackoff << (transientRetries - 1 - transientLeft)
			if sleepErr := sleepContext(ctx, backoff); sleepErr != nil {
				s.finish(domain.SessionFailed, nil, code.ErrAuthFailed.WithDetails(sleepErr.Error()))
				return
			}
			continue
		}
		transientLeft = transientRetries

		switch tr.Error {
		case "":
			if tr.AccessToken == "" {
				s.finish(domain.SessionFailed, nil, code.ErrAuthFailed.WithDetails("token response missing access_token"))
				return
			}
			cred, err := a.storeCredential(ctx, &tr)
			if err != nil {
				s.finish(domain.SessionFailed, nil, err)
				return
			}
			a.logger.Info("device flow succeeded",
				zap.String(logger.FieldAccount, cred.Account))
			s.finish(domain.SessionSucceeded, cred, nil)
			return

		case "authorization_pending":
			s.setStatus(domain.SessionAuthorizationPending)

		case "slow_down":
			s.mu.Lock()
			s.pollInterval += slowDownStep
			interval := s.pollInterval
			s.status = domain.SessionSlowDown
			s.mu.Unlock()
			a.logger.Debug("provider requested slow down",
				zap.Duration(logger.FieldInterval, interval))

		case "expired_token":
			s.finish(domain.SessionExpired, nil, code.ErrAuthExpired)
			return

		case "access_denied":
			s.finish(domain.SessionDenied, nil, code.ErrAuthDenied)
			return

		default:
			s.finish(domain.SessionFailed, nil, code.ErrAuthFailed.WithDetails(tr.Error))
			return
		}
	}
}

// storeCredential derives the account identity and persists the token pair.
func (a *Authenticator) storeCredential(ctx context.Context, tr *tokenResponse) (*domain.Credential, error) {
	account, name := identityFromToken(tr.AccessToken)
	email := ""

	if profile, err := a.fetchProfile(ctx, tr.AccessToken); err == nil {
		if name == "" {
			name = profile.Name
		}
		email = profile.Email
		if account == "" {
			account = profile.Email
		}
	}
	if account == "" {
		account = "default"
	}

	cred := &domain.Credential{
		Account:           account,
		AccessToken:       tr.AccessToken,
		RefreshToken:      tr.RefreshToken,
		AccessTokenExpiry: time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		UserName:          name,
		UserEmail:         email,
	}
	if err := a.creds.Save(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (a *Authenticator) fetchProfile(ctx context.Context, accessToken string) (*domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.profileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, code.ErrUnavailable.WithDetails(resp.Status)
	}

	var payload struct {
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	email := payload.Mail
	if email == "" {
		email = payload.UserPrincipalName
	}
	return &domain.Profile{Name: payload.DisplayName, Email: email}, nil
}

// postForm submits a form and decodes the JSON response body. Provider
// protocol errors arrive inside a 400 response and are decoded, not
// treated as transport failures.
func (a *Authenticator) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode >= 500 {
		return code.ErrUnavailable.WithDetails(resp.Status)
	}
	return json.Unmarshal(body, out)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
