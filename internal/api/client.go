package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/spendbot/core/logger"
)

// maxErrorBody caps how much of an error response body is read for messages.
const maxErrorBody = 4 << 10

// Client talks to the expense-tracking REST service. It is stateless with
// respect to authentication: every authorized call receives the caller's
// token pair and returns the pair that is valid afterwards (the same pair,
// or a refreshed one).
type Client struct {
	http    *http.Client
	baseURL string
}

// New builds a Client for the service at baseURL using the given HTTP client.
func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token pair. Any non-2xx response is
// reported as ErrInvalidCredentials; the service does not distinguish an
// unknown email from a wrong password.
func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	resp, err := c.send(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password})
	if err != nil {
		return TokenPair{}, err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug(ctx, "api", "login.rejected", slog.Int("http_code", resp.StatusCode))
		return TokenPair{}, ErrInvalidCredentials
	}
	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return TokenPair{}, fmt.Errorf("login: decode response: %w", err)
	}
	return pair, nil
}

// Register creates a new account. A duplicate email maps to ErrEmailTaken
// and a rejected payload to ErrRegisterPayload; registration does not log
// the user in.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	resp, err := c.send(ctx, http.MethodPost, "/auth/register", "", registerRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return err
	}
	defer drain(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return ErrEmailTaken
	case resp.StatusCode == http.StatusNotFound:
		return ErrRegisterPayload
	default:
		return statusError("register", resp)
	}
}

// Me fetches the authenticated account profile.
func (c *Client) Me(ctx context.Context, tokens TokenPair) (Profile, TokenPair, error) {
	var profile Profile
	tokens, err := c.doAuth(ctx, http.MethodGet, "/users/me", nil, &profile, tokens)
	return profile, tokens, err
}

// Expenses lists the account's expenses. Each expense receives a 1-based
// display index in listing order; indexes are only stable until the next fetch.
func (c *Client) Expenses(ctx context.Context, tokens TokenPair) ([]Expense, TokenPair, error) {
	var expenses []Expense
	tokens, err := c.doAuth(ctx, http.MethodGet, "/expenses", nil, &expenses, tokens)
	if err != nil {
		return nil, tokens, err
	}
	for i := range expenses {
		expenses[i].Index = i + 1
	}
	return expenses, tokens, nil
}

// CreateExpense stores a new expense.
func (c *Client) CreateExpense(ctx context.Context, tokens TokenPair, expense Expense) (TokenPair, error) {
	return c.doAuth(ctx, http.MethodPost, "/expenses", expense, nil, tokens)
}

// UpdateExpense replaces the expense with the given server-side ID.
func (c *Client) UpdateExpense(ctx context.Context, tokens TokenPair, id int64, expense Expense) (TokenPair, error) {
	return c.doAuth(ctx, http.MethodPut, fmt.Sprintf("/expenses/%d", id), expense, nil, tokens)
}

// DeleteExpense removes the expense with the given server-side ID.
func (c *Client) DeleteExpense(ctx context.Context, tokens TokenPair, id int64) (TokenPair, error) {
	return c.doAuth(ctx, http.MethodDelete, fmt.Sprintf("/expenses/%d", id), nil, nil, tokens)
}

// Categories lists the available spending categories.
func (c *Client) Categories(ctx context.Context, tokens TokenPair) ([]Category, TokenPair, error) {
	var categories []Category
	tokens, err := c.doAuth(ctx, http.MethodGet, "/categories", nil, &categories, tokens)
	return categories, tokens, err
}

// doAuth performs an authorized request. On a 401 it refreshes the pair and
// retries the request exactly once; a second 401 or a failed refresh yields
// ErrSessionExpired. Other non-2xx responses become a *StatusError.
func (c *Client) doAuth(ctx context.Context, method, path string, body, out any, tokens TokenPair) (TokenPair, error) {
	started := time.Now()
	resp, err := c.send(ctx, method, path, tokens.Access, body)
	if err != nil {
		return tokens, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if tokens.Refresh == "" {
			return tokens, ErrSessionExpired
		}
		refreshed, err := c.refresh(ctx, tokens.Refresh)
		if err != nil {
			logger.Warn(ctx, "api", "token.refresh_failed",
				slog.String("endpoint", path),
				slog.String("error", err.Error()),
			)
			return tokens, ErrSessionExpired
		}
		tokens = refreshed
		logger.Debug(ctx, "api", "token.refreshed", slog.String("endpoint", path))

		resp, err = c.send(ctx, method, path, tokens.Access, body)
		if err != nil {
			return tokens, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return tokens, ErrSessionExpired
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return tokens, statusError(method+" "+path, resp)
	}

	logger.Debug(ctx, "api", "request.done",
		slog.String("endpoint", path),
		slog.Int("http_code", resp.StatusCode),
		slog.Duration("took", logger.Took(started)),
	)

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return tokens, fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return tokens, nil
}

// refresh exchanges a refresh token for a new pair.
func (c *Client) refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return TokenPair{}, err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TokenPair{}, statusError("refresh", resp)
	}
	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return TokenPair{}, fmt.Errorf("refresh: decode response: %w", err)
	}
	return pair, nil
}

// send issues a single HTTP request, optionally with a bearer token.
func (c *Client) send(ctx context.Context, method, path, accessToken string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// statusError builds a *StatusError, pulling a message from the body when
// the service provides one.
func statusError(op string, resp *http.Response) error {
	se := &StatusError{Op: op, Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			if payload.Message != "" {
				se.Message = payload.Message
			} else {
				se.Message = payload.Error
			}
		}
	}
	return se
}

// drain discards and closes the response body so the connection is reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

// IsAuthError reports whether err means the user must log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
