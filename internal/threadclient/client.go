package threadclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Thread struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is what /auth/login and /auth/register return.
type Session struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Reply struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
}

// Client talks to the chat HTTP API. The zero HTTP client means
// http.DefaultClient; no timeout is added beyond the transport's own.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    http.DefaultClient,
		Logger:  zap.NewNop(),
	}
}

// List returns the caller's threads, most recently updated first. userID only
// labels logs: the server scopes the list by the token's subject.
func (c *Client) List(ctx context.Context, token, userID string) ([]Thread, error) {
	var out struct {
		Threads []Thread `json:"threads"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/threads", token, nil, &out); err != nil {
		c.log().Debug("list threads failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if out.Threads == nil {
		out.Threads = []Thread{}
	}
	return out.Threads, nil
}

// Search lists threads whose titles contain q, case-insensitively.
func (c *Client) Search(ctx context.Context, token, q string) ([]Thread, error) {
	var out struct {
		Threads []Thread `json:"threads"`
	}
	path := "/chat/threads?q=" + url.QueryEscape(q)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

// Create rejects a blank title without a round trip.
func (c *Client) Create(ctx context.Context, token, title string) (Thread, error) {
	if strings.TrimSpace(title) == "" {
		return Thread{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	var out struct {
		Thread Thread `json:"thread"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat/threads", token, map[string]string{"title": title}, &out); err != nil {
		return Thread{}, err
	}
	return out.Thread, nil
}

func (c *Client) Get(ctx context.Context, token, id string) (Thread, error) {
	var out struct {
		Thread Thread `json:"thread"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/threads/"+url.PathEscape(id), token, nil, &out); err != nil {
		return Thread{}, err
	}
	return out.Thread, nil
}

// Delete reports ErrNotFound for a thread that is already gone.
func (c *Client) Delete(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/chat/threads/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) ListMessages(ctx context.Context, token, threadID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	path := "/chat/messages?threadId=" + url.QueryEscape(threadID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) PostMessage(ctx context.Context, token, threadID, role, content string) (Message, error) {
	var out struct {
		Message Message `json:"message"`
	}
	body := map[string]string{"threadId": threadID, "role": role, "content": content}
	if err := c.do(ctx, http.MethodPost, "/chat/messages", token, body, &out); err != nil {
		return Message{}, err
	}
	return out.Message, nil
}

// Ask gets a reply from the assistant without storing anything.
func (c *Client) Ask(ctx context.Context, token, message, model string) (Reply, error) {
	var out Reply
	body := map[string]string{"message": message}
	if model != "" {
		body["model"] = model
	}
	if err := c.do(ctx, http.MethodPost, "/chat/assistant", token, body, &out); err != nil {
		return Reply{}, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	return c.session(ctx, "/auth/login", email, password)
}

func (c *Client) Register(ctx context.Context, email, password string) (Session, error) {
	return c.session(ctx, "/auth/register", email, password)
}

func (c *Client) session(ctx context.Context, path, email, password string) (Session, error) {
	var out Session
	body := map[string]string{"email": email, "password": password}
	if err := c.doPublic(ctx, http.MethodPost, path, body, &out); err != nil {
		return Session{}, err
	}
	return out, nil
}

// Refresh trades a refresh token for a new pair. The old token stops working.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var out Session
	if err := c.doPublic(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refreshToken}, &out); err != nil {
		return Session{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	if token == "" {
		return fmt.Errorf("%w: missing credential", ErrAuth)
	}
	return c.send(ctx, method, path, token, in, out)
}

func (c *Client) doPublic(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, method, path, "", in, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Code  int    `json:"code"`
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Error
		}
		c.log().Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Int("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrStore, method, path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
