package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quizplay/internal/domain"
)

// DefaultTimeout bounds every platform request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client talks to the quiz platform REST API. It satisfies app.Platform.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type playRequest struct {
	Response string `json:"response"`
}

func (c *Client) GetIdentity(ctx context.Context, id, token string) (domain.Identity, error) {
	var identity domain.Identity
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), token, nil, &identity)
	return identity, err
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.QuizItem, error) {
	var quizzes []domain.QuizItem
	if err := c.do(ctx, http.MethodGet, "/quizzes", "", nil, &quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.do(ctx, http.MethodGet, "/categories", "", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) ListPlayed(ctx context.Context, userID, token string) ([]domain.PlayRecord, error) {
	var records []domain.PlayRecord
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/played-quizzes", token, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, userID, quizID, answer, token string) (domain.PlayResult, error) {
	var result domain.PlayResult
	path := "/users/" + url.PathEscape(userID) + "/quizzes/" + url.PathEscape(quizID) + "/play"
	err := c.do(ctx, http.MethodPost, path, token, playRequest{Response: answer}, &result)
	return result, err
}

// Login obtains a token. Admin credentials go through the admin endpoint.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	path := "/users/login"
	if creds.Role == domain.RoleAdmin {
		path = "/auth/login"
	}
	var identity domain.Identity
	err := c.do(ctx, http.MethodPost, path, "", creds, &identity)
	return identity, err
}

func (c *Client) Signup(ctx context.Context, reg domain.Registration) (domain.Identity, error) {
	var identity domain.Identity
	err := c.do(ctx, http.MethodPost, "/users/signup", "", reg, &identity)
	return identity, err
}

// UpdateProfile edits the account of actor. Admins go through the admin endpoint.
func (c *Client) UpdateProfile(ctx context.Context, actor domain.Identity, update domain.ProfileUpdate) (domain.Identity, error) {
	method, path := http.MethodPatch, "/users/update/"+url.PathEscape(actor.ID)
	if actor.Role == domain.RoleAdmin {
		method, path = http.MethodPut, "/auth/update/"+url.PathEscape(actor.ID)
	}
	var identity domain.Identity
	err := c.do(ctx, method, path, actor.Token, update, &identity)
	return identity, err
}

func (c *Client) DeleteAccount(ctx context.Context, id, token string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), token, nil, nil)
}

// do performs one request and decodes a 2xx body into out. Non-2xx statuses map onto the
// domain error taxonomy; anything that never produced a status is a network failure.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("platform request failed", "method", method, "path", path, "err", err)
		return fmt.Errorf("%w: %s %s: %v", domain.ErrNetworkFailure, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrNetworkFailure, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrNetworkFailure, path, err)
	}
	return nil
}

func statusError(status int, data []byte) error {
	msg := http.StatusText(status)
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}
	return fmt.Errorf("%w: %s", sentinelFor(status), msg)
}

func sentinelFor(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	default:
		return domain.ErrNetworkFailure
	}
}

