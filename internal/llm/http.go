package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// httpProvider implements Provider against the summarize HTTP API.
// The request body is the canonical payload; authentication rides in
// headers: a bearer token from the token endpoint plus an X-Verify
// SHA-256 of the body so the service can reject tampered payloads.
type httpProvider struct {
	endpoint     string
	tokenURL     string
	clientID     string
	clientSecret string
	timeout      time.Duration
	client       http.Client

	mu    sync.Mutex
	token string
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (p *httpProvider) Name() string {
	name := p.endpoint
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http://")
	if idx := strings.Index(name, "/"); idx > 0 {
		name = name[:idx]
	}
	return "http/" + name
}

func (p *httpProvider) Summarize(ctx context.Context, req Request) (*Result, error) {
	if len(req.Events) == 0 {
		return nil, fmt.Errorf("empty event batch")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, status, err := p.post(callCtx, body)
	if status == http.StatusUnauthorized && p.tokenURL != "" {
		// Token expired; refresh once and retry the same payload.
		if refreshErr := p.refreshToken(callCtx); refreshErr != nil {
			return nil, fmt.Errorf("refreshing token: %w", refreshErr)
		}
		result, _, err = p.post(callCtx, body)
	}
	if err != nil {
		return nil, err
	}

	if !result.Valid() {
		return nil, fmt.Errorf("malformed inference result: %+v", result)
	}
	return result, nil
}

func (p *httpProvider) post(ctx context.Context, body []byte) (*Result, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Verify", verifyHash(body))
	if token := p.currentToken(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("summarize API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parsing response: %w", err)
	}
	return &result, resp.StatusCode, nil
}

// refreshToken exchanges client credentials for a fresh bearer token.
func (p *httpProvider) refreshToken(ctx context.Context) error {
	body, err := json.Marshal(tokenRequest{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
	})
	if err != nil {
		return fmt.Errorf("marshaling token request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.tokenURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("token API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}
	if tr.Token == "" {
		return fmt.Errorf("token API returned empty token")
	}

	p.mu.Lock()
	p.token = tr.Token
	p.mu.Unlock()
	return nil
}

func (p *httpProvider) currentToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func verifyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
