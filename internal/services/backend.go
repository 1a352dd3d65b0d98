package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"eventu/internal/models"
)

// BackendClient is the remote HTTP collaborator that owns the business
// data. This server treats its responses as opaque envelopes.
type BackendClient interface {
	Login(email, password string) (*models.LoginResult, error)
	VerifyToken(token string) (bool, error)
	// InvalidateSession is best-effort, fire-and-forget: it must never
	// block the caller.
	InvalidateSession(token string)
}

// BackendConfig represents remote backend configuration
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPBackend talks to the remote backend API with bearer-token auth
type HTTPBackend struct {
	config BackendConfig
	client *http.Client
}

// NewHTTPBackend creates a new backend client
func NewHTTPBackend(config BackendConfig) *HTTPBackend {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	return &HTTPBackend{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Login authenticates against the backend and returns the user snapshot
// and bearer token
func (b *HTTPBackend) Login(email, password string) (*models.LoginResult, error) {
	envelope, err := b.post("/auth/login", "", models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	if !envelope.Success {
		return nil, fmt.Errorf("login rejected: %s", envelope.Error)
	}

	var result models.LoginResult
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode login payload: %w", err)
	}

	return &result, nil
}

// VerifyToken asks the backend whether a bearer token is still valid
func (b *HTTPBackend) VerifyToken(token string) (bool, error) {
	envelope, err := b.post("/auth/verify", token, nil)
	if err != nil {
		return false, err
	}

	return envelope.Success, nil
}

// InvalidateSession tells the backend to drop the session behind token.
// It runs detached with a short deadline so page-unload style callers
// are never blocked, and failures are only logged.
func (b *HTTPBackend) InvalidateSession(token string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		body, _ := json.Marshal(map[string]string{})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.BaseURL+"/auth/invalidate", bytes.NewReader(body))
		if err != nil {
			log.Printf("backend: failed to build invalidation request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := b.client.Do(req)
		if err != nil {
			log.Printf("backend: session invalidation failed: %v", err)
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
	}()
}

// post sends a JSON request and decodes the response envelope
func (b *HTTPBackend) post(path, token string, payload any) (*models.APIResponse, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(http.MethodPost, b.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}

	return &envelope, nil
}
