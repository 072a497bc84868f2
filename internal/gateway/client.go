// Package gateway presents a normalized note interface over the
// authenticated remote file store. It reports raw per-call outcomes;
// deciding whether a failure is note-specific or batch-wide is the sync
// engine's job.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/pkg/code"

	"github.com/juju/ratelimit"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const noteFileExt = ".json"

// errNotFound marks a 404 so callers can special-case it.
var errNotFound = errors.New("remote item not found")

// Options configures the gateway client.
type Options struct {
	// BaseURL is the app-private folder root, e.g.
	// https://graph.microsoft.com/v1.0/me/drive/special/approot
	BaseURL string
	// ItemsURL addresses items by id, e.g.
	// https://graph.microsoft.com/v1.0/me/drive/items
	ItemsURL string
	// ProfileURL returns the signed-in user's profile.
	ProfileURL string
	Tokens     TokenSource
	HTTPClient *http.Client
	Logger     *zap.Logger
	// MaxRetries bounds internal retries of transient transport errors.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// RatePerSecond throttles all outgoing calls.
	RatePerSecond float64
}

// Client implements domain.NoteGateway over the remote HTTP API.
type Client struct {
	baseURL    string
	itemsURL   string
	profileURL string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	bucket     *ratelimit.Bucket
}

// NewClient creates a gateway client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	itemsURL := strings.TrimRight(strings.TrimSpace(opts.ItemsURL), "/")
	if itemsURL == "" {
		itemsURL = "https://graph.microsoft.com/v1.0/me/drive/items"
	}
	profileURL := strings.TrimSpace(opts.ProfileURL)
	if profileURL == "" {
		profileURL = "https://graph.microsoft.com/v1.0/me"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	rate := opts.RatePerSecond
	if rate <= 0 {
		rate = 4
	}
	return &Client{
		baseURL:    baseURL,
		itemsURL:   itemsURL,
		profileURL: profileURL,
		tokens:     opts.Tokens,
		httpClient: httpClient,
		logger:     lg,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		bucket:     ratelimit.NewBucketWithRate(rate, int64(rate)+1),
	}
}

// driveItem is the remote store's file metadata record.
type driveItem struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	FileSystemInfo       *struct {
		LastModifiedDateTime string `json:"lastModifiedDateTime"`
	} `json:"fileSystemInfo,omitempty"`
}

// modifiedAt prefers the client-stamped filesystem timestamp over the
// upload time, so summary comparisons share the note's clock domain.
func (it *driveItem) modifiedAt() int64 {
	if it.FileSystemInfo != nil {
		if ts, ok := parseISO(it.FileSystemInfo.LastModifiedDateTime); ok {
			return ts
		}
	}
	if ts, ok := parseISO(it.LastModifiedDateTime); ok {
		return ts
	}
	return 0
}

// List returns summaries for every note file, without bodies.
func (c *Client) List(ctx context.Context) ([]domain.RemoteNoteSummary, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/children", nil, "")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Value []driveItem `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, code.ErrCorruptPayload.WithDetails(err.Error())
	}

	summaries := make([]domain.RemoteNoteSummary, 0, len(payload.Value))
	for i := range payload.Value {
		it := &payload.Value[i]
		if !strings.HasSuffix(it.Name, noteFileExt) {
			continue
		}
		summaries = append(summaries, domain.RemoteNoteSummary{
			RemoteID:   it.ID,
			Name:       it.Name,
			ModifiedAt: it.modifiedAt(),
		})
	}
	return summaries, nil
}

// Fetch retrieves and normalizes one note. The result's ModifiedAt is zero
// when the payload carries no timestamp of its own; callers fall back to
// the listing's timestamp.
func (c *Client) Fetch(ctx context.Context, remoteID string) (*domain.Note, error) {
	raw, err := c.do(ctx, http.MethodGet, c.itemsURL+"/"+remoteID+"/content", nil, "")
	if errors.Is(err, errNotFound) {
		return nil, code.ErrUnavailable.WithDetails("note vanished remotely: " + remoteID)
	}
	if err != nil {
		return nil, err
	}
	return decodeNote(remoteID, raw, 0)
}

// idempotencyKey derives the remote file name from the local id plus
// creation timestamp, so retrying a create after an ambiguous failure
// overwrites the same file instead of duplicating it.
func idempotencyKey(n *domain.Note) string {
	return fmt.Sprintf("%s-%d", n.ID, n.CreatedAt)
}

// Create pushes a new note and returns its remote id.
func (c *Client) Create(ctx context.Context, note *domain.Note) (string, error) {
	payload, err := encodeNote(note)
	if err != nil {
		return "", err
	}

	url := c.baseURL + ":/" + idempotencyKey(note) + noteFileExt + ":/content"
	body, err := c.do(ctx, http.MethodPut, url, payload, "application/json")
	if err != nil {
		return "", err
	}

	var item driveItem
	if err := json.Unmarshal(body, &item); err != nil {
		return "", code.ErrCorruptPayload.WithDetails(err.Error())
	}
	if item.ID == "" {
		return "", code.ErrCorruptPayload.WithDetails("upload response missing item id")
	}

	if err := c.stampModified(ctx, item.ID, note.ModifiedAt); err != nil {
		return "", err
	}
	return item.ID, nil
}

// Update overwrites the remote note's content.
func (c *Client) Update(ctx context.Context, remoteID string, note *domain.Note) error {
	payload, err := encodeNote(note)
	if err != nil {
		return err
	}

	if _, err := c.do(ctx, http.MethodPut, c.itemsURL+"/"+remoteID+"/content", payload, "application/json"); err != nil {
		return err
	}
	return c.stampModified(ctx, remoteID, note.ModifiedAt)
}

// Delete removes the remote note. A missing item counts as success so
// retried deletes stay idempotent.
func (c *Client) Delete(ctx context.Context, remoteID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.itemsURL+"/"+remoteID, nil, "")
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// Profile fetches the signed-in user's display name and email.
func (c *Client) Profile(ctx context.Context) (*domain.Profile, error) {
	body, err := c.do(ctx, http.MethodGet, c.profileURL, nil, "")
	if err != nil {
		return nil, err
	}

	var payload struct {
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, code.ErrCorruptPayload.WithDetails(err.Error())
	}

	email := payload.Mail
	if email == "" {
		email = payload.UserPrincipalName
	}
	return &domain.Profile{Name: payload.DisplayName, Email: email}, nil
}

// stampModified writes the note's logical modification time into the item's
// filesystem metadata, keeping listings comparable against local clocks.
func (c *Client) stampModified(ctx context.Context, remoteID string, modifiedAt int64) error {
	patch := map[string]any{
		"fileSystemInfo": map[string]string{
			"lastModifiedDateTime": time.Unix(modifiedAt, 0).UTC().Format(time.RFC3339),
		},
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPatch, c.itemsURL+"/"+remoteID, payload, "application/json")
	return err
}

// do performs one authenticated call with throttling, bounded retries with
// exponential backoff, and a single transparent refresh-and-retry after an
// authorization rejection.
func (c *Client) do(ctx context.Context, method, url string, payload []byte, contentType string) ([]byte, error) {
	if wait := c.bucket.Take(1); wait > 0 {
		if err := sleepContext(ctx, wait); err != nil {
			return nil, err
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	refreshed := false
	for attempt := 0; ; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, code.ErrUnavailable.WithDetails(err.Error())
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, code.ErrUnavailable.WithDetails(readErr.Error())
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			return respBody, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				return nil, code.ErrUnauthorized.WithDetails(strings.TrimSpace(string(respBody)))
			}
			refreshed = true
			token, err = c.tokens.ForceRefresh(ctx)
			if err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode == http.StatusNotFound:
			return nil, errNotFound

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, code.ErrUnavailable.WithDetails(resp.Status)

		default:
			c.logger.Debug("remote call rejected",
				zap.String("method", method),
				zap.String("url", url),
				zap.Int("status", resp.StatusCode))
			return nil, code.ErrUnavailable.WithDetails(resp.Status + ": " + strings.TrimSpace(string(respBody)))
		}
	}
}

// retryDelay computes the backoff for the given attempt, honoring a
// Retry-After header when the server sent one.
func (c *Client) retryDelay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
			d := time.Duration(secs) * time.Second
			if d > 30*time.Second {
				d = 30 * time.Second
			}
			return d
		}
	}
	d := c.baseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if d > c.maxDelay {
		d = c.maxDelay
	}
	return d
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

var _ domain.NoteGateway = (*Client)(nil)
