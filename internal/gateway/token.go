package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/pkg/code"
	"github.com/notedapp/noted-sync/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// refreshMargin is how close to expiry a token may get before a call
// triggers a transparent refresh.
const refreshMargin = 2 * time.Minute

// TokenSource yields a usable bearer token for one account, refreshing it
// through the identity provider when needed.
type TokenSource interface {
	// Token returns an access token valid for at least the refresh margin.
	Token(ctx context.Context) (string, error)
	// ForceRefresh discards the cached access token and refreshes now.
	// Called after the remote store rejects a token mid-flight.
	ForceRefresh(ctx context.Context) (string, error)
}

// TokenSourceOptions configures a credential-store backed token source.
type TokenSourceOptions struct {
	Account    string
	TokenURL   string
	ClientID   string
	Scopes     []string
	Creds      domain.CredentialRepository
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type tokenSource struct {
	account    string
	tokenURL   string
	clientID   string
	scopes     []string
	creds      domain.CredentialRepository
	httpClient *http.Client
	logger     *zap.Logger
	sf         singleflight.Group
}

// NewTokenSource creates a TokenSource over the credential repository.
func NewTokenSource(opts TokenSourceOptions) TokenSource {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &tokenSource{
		account:    opts.Account,
		tokenURL:   opts.TokenURL,
		clientID:   opts.ClientID,
		scopes:     opts.Scopes,
		creds:      opts.Creds,
		httpClient: httpClient,
		logger:     lg,
	}
}

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	cred, err := s.creds.Get(ctx, s.account)
	if err != nil {
		return "", err
	}
	if time.Until(cred.AccessTokenExpiry) > refreshMargin {
		return cred.AccessToken, nil
	}
	return s.refresh(ctx)
}

func (s *tokenSource) ForceRefresh(ctx context.Context) (string, error) {
	return s.refresh(ctx)
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. Concurrent callers share one upstream request.
func (s *tokenSource) refresh(ctx context.Context) (string, error) {
	v, err, _ := s.sf.Do(s.account, func() (any, error) {
		return s.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *tokenSource) doRefresh(ctx context.Context) (string, error) {
	cred, err := s.creds.Get(ctx, s.account)
	if err != nil {
		return "", err
	}
	if cred.RefreshToken == "" {
		return "", code.ErrUnauthorized.WithDetails("no refresh token stored")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", s.clientID)
	if len(s.scopes) > 0 {
		form.Set("scope", strings.Join(s.scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", code.ErrUnavailable.WithDetails(err.Error())
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", code.ErrUnavailable.WithDetails(readErr.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", code.ErrUnauthorized.WithDetails(strings.TrimSpace(string(body)))
		}
		return "", code.ErrUnavailable.WithDetails(resp.Status)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}
	if payload.AccessToken == "" {
		return "", code.ErrUnauthorized.WithDetails("token response missing access_token")
	}

	cred.AccessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		cred.RefreshToken = payload.RefreshToken
	}
	cred.AccessTokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	if err := s.creds.Save(ctx, cred); err != nil {
		return "", err
	}

	s.logger.Debug("access token refreshed",
		zap.String(logger.FieldAccount, s.account),
		zap.Time("expiry", cred.AccessTokenExpiry))
	return cred.AccessToken, nil
}
