package buddyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("session missing or expired")

// StatusError es una respuesta no exitosa del relay.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("buddy api status %d", e.Code)
	}
	return fmt.Sprintf("buddy api status %d: %s", e.Code, e.Message)
}

// Turn es un mensaje del transcript tal como lo devuelve el relay.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type SessionToken struct {
	AccessToken string `json:"access_token"`
	SessionID   string `json:"session_id"`
	ExpiresIn   int64  `json:"expires_in"`
}

type ModelStatus struct {
	ModelActive bool   `json:"model_active"`
	Provider    string `json:"provider"`
}

// Client habla con el relay de Buddy. Los deadlines los pone quien llama via ctx.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

// WithToken devuelve una copia autenticada con otro token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = strings.TrimSpace(token)
	return &cp
}

func (c *Client) History(ctx context.Context) ([]Turn, error) {
	var resp struct {
		History []Turn `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/buddy/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

func (c *Client) Send(ctx context.Context, message string) (string, error) {
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/buddy", map[string]string{"message": message}, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/buddy/reset", struct{}{}, nil)
}

func (c *Client) Status(ctx context.Context) (ModelStatus, error) {
	var resp ModelStatus
	err := c.do(ctx, http.MethodGet, "/api/buddy/status", nil, &resp)
	return resp, err
}

// DemoSession pide un token de sesion demo. Solo funciona si el servidor lo habilita.
func (c *Client) DemoSession(ctx context.Context) (SessionToken, error) {
	var resp SessionToken
	err := c.do(ctx, http.MethodPost, "/auth/demo-session", nil, &resp)
	return resp, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
