// Package api is the EcoTrack REST client: challenges, events, tips and
// community statistics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/logger"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

// ErrInvalidProgress rejects a progress update before it is sent.
var ErrInvalidProgress = errors.New("progress must be between 0 and 100 with a known status")

type Config struct {
	// BaseURL is the API root, e.g. "https://api.ecotrack.example".
	BaseURL string

	// TokenSource authorises the calls that act on behalf of the user.
	// Without one those calls go out unauthenticated.
	TokenSource oauth2.TokenSource

	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	public  *http.Client
	authed  *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base URL %q", cfg.BaseURL)
	}

	public := cfg.HTTPClient
	if public == nil {
		public = &http.Client{Timeout: defaultTimeout}
	}
	authed := public
	if cfg.TokenSource != nil {
		authed = &http.Client{
			Transport: &oauth2.Transport{Source: cfg.TokenSource, Base: public.Transport},
			Timeout:   public.Timeout,
		}
	}
	return &Client{baseURL: base, public: public, authed: authed}, nil
}

func (c *Client) ListChallenges(ctx context.Context, f ChallengeFilter) ([]Challenge, error) {
	q := url.Values{}
	if len(f.Categories) > 0 {
		q.Set("category", strings.Join(f.Categories, ","))
	}
	if f.StartDate != "" {
		q.Set("startDate", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("endDate", f.EndDate)
	}
	if f.MinParticipants > 0 {
		q.Set("minParticipants", strconv.Itoa(f.MinParticipants))
	}
	if f.MaxParticipants > 0 {
		q.Set("maxParticipants", strconv.Itoa(f.MaxParticipants))
	}
	var out []Challenge
	if err := c.do(ctx, c.public, http.MethodGet, "/api/challenges", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetChallenge(ctx context.Context, id string) (*Challenge, error) {
	var out Challenge
	if err := c.do(ctx, c.public, http.MethodGet, "/api/challenges/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChallenge publishes a new challenge owned by email.
func (c *Client) CreateChallenge(ctx context.Context, email string, ch NewChallenge) error {
	ch.CreatedBy = email
	return c.do(ctx, c.authed, http.MethodPost, "/api/challenges", nil, ch, nil)
}

// JoinChallenge enrols email in the challenge.
func (c *Client) JoinChallenge(ctx context.Context, id, email string) error {
	body := map[string]string{"userId": email}
	return c.do(ctx, c.authed, http.MethodPost, "/api/challenges/join/"+url.PathEscape(id), nil, body, nil)
}

// ListUserChallenges returns the challenges email has joined.
func (c *Client) ListUserChallenges(ctx context.Context, email string) ([]UserChallenge, error) {
	var out []UserChallenge
	if err := c.do(ctx, c.authed, http.MethodGet, "/api/user-challenges/"+url.PathEscape(email), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserChallenge finds one of email's joined challenges by record id.
func (c *Client) UserChallenge(ctx context.Context, email, id string) (*UserChallenge, error) {
	all, err := c.ListUserChallenges(ctx, email)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "activity not found")
}

func (c *Client) UpdateProgress(ctx context.Context, id string, progress int, status Status) error {
	if progress < 0 || progress > 100 || !status.Valid() {
		return ErrInvalidProgress
	}
	body := struct {
		Progress int    `json:"progress"`
		Status   Status `json:"status"`
	}{progress, status}
	return c.do(ctx, c.authed, http.MethodPatch, "/api/user-challenges/"+url.PathEscape(id), nil, body, nil)
}

func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var out []Event
	if err := c.do(ctx, c.public, http.MethodGet, "/api/events", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	var out Event
	if err := c.do(ctx, c.public, http.MethodGet, "/api/events/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) JoinEvent(ctx context.Context, id, email string) error {
	body := map[string]string{"userId": email}
	return c.do(ctx, c.authed, http.MethodPost, "/api/events/join/"+url.PathEscape(id), nil, body, nil)
}

func (c *Client) ListTips(ctx context.Context) ([]Tip, error) {
	var out []Tip
	if err := c.do(ctx, c.public, http.MethodGet, "/api/tips", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Statistics(ctx context.Context) (*Statistics, error) {
	var out Statistics
	if err := c.do(ctx, c.public, http.MethodGet, "/api/statistics", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request and decodes a 2xx JSON body into out when out is
// non-nil. Failures come back as *apperrors.Error.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotAuthenticated) {
			return apperrors.Wrap(apperrors.CodeNotAuthenticated, "sign in to continue", err)
		}
		logger.Warn("api request failed", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return apperrors.Wrap(apperrors.CodeNetwork, "could not reach EcoTrack", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeNetwork, "could not read the response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(apperrors.CodeNetwork, "unexpected response from EcoTrack", err)
	}
	return nil
}

// statusError maps a non-2xx answer. The API reports failures as
// {"message": ...}; older routes use {"error": ...}.
func statusError(status int, data []byte) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(data, &body)
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}

	cause := fmt.Errorf("api: status %d", status)
	if status == http.StatusNotFound {
		if msg == "" {
			msg = "not found"
		}
		return apperrors.Wrap(apperrors.CodeNotFound, msg, cause)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return apperrors.Wrap(apperrors.CodeNetwork, msg, cause)
}
