// Package client is a Go client for the notewise REST API, together with the
// session-scoped note Cache built on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/notewise/internal/errs"
	"github.com/kuitang/notewise/internal/notes"
)

// DefaultTimeout bounds a single API call when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// User is the account profile returned by the API.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is returned by Register and Login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// ProfileUpdate changes the caller's profile. Empty fields are left unchanged.
type ProfileUpdate struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Client calls the notewise API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token currently in use.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token. An empty token signs the client out.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Register creates an account and adopts the returned token.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var session Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &session); err != nil {
		return nil, err
	}
	c.SetToken(session.Token)
	return &session, nil
}

// Login signs in and adopts the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &session); err != nil {
		return nil, err
	}
	c.SetToken(session.Token)
	return &session, nil
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMe changes the caller's profile.
func (c *Client) UpdateMe(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/api/users/me", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListNotes returns all of the caller's notes, newest first.
func (c *Client) ListNotes(ctx context.Context) ([]notes.Note, error) {
	var list []notes.Note
	if err := c.do(ctx, http.MethodGet, "/api/notes", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetNote returns one note.
func (c *Client) GetNote(ctx context.Context, id string) (*notes.Note, error) {
	var note notes.Note
	if err := c.do(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id), nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// CreateNote creates a note and returns the stored record.
func (c *Client) CreateNote(ctx context.Context, params notes.CreateNoteParams) (*notes.Note, error) {
	var note notes.Note
	if err := c.do(ctx, http.MethodPost, "/api/notes", params, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateNote applies a partial update and returns the stored record.
func (c *Client) UpdateNote(ctx context.Context, id string, params notes.UpdateNoteParams) (*notes.Note, error) {
	var note notes.Note
	if err := c.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(id), params, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil)
}

// SearchNotes runs a server-side substring search.
func (c *Client) SearchNotes(ctx context.Context, query string) ([]notes.Note, error) {
	var list []notes.Note
	path := "/api/notes/search?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// do sends one request. Non-2xx responses become coded errors; the code comes
// from the response body when present, otherwise from the status.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "notewise API unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.Internal, "malformed response from notewise API", err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeError(resp *http.Response) error {
	code := errs.CodeFromHTTPStatus(resp.StatusCode)
	message := http.StatusText(resp.StatusCode)

	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &eb) == nil {
		if eb.Code != "" && errs.HTTPStatus(errs.Code(eb.Code)) == resp.StatusCode {
			code = errs.Code(eb.Code)
		}
		if eb.Error != "" {
			message = eb.Error
		}
	}
	return errs.Wrap(code, message, fmt.Errorf("HTTP %d", resp.StatusCode))
}
