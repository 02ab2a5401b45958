package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// CompletionRequest carries one prompt to a chat-completion provider.
type CompletionRequest struct {
	System string
	Prompt string
	Lang   string
}

// Provider generates text for a prompt. Implementations must honor ctx
// cancellation, so an aborted client stream also tears down the upstream
// provider call instead of letting it run to completion.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// checkResp returns an error if the status is not 2xx. On error it includes
// the upstream body for debugging.
func checkResp(resp *http.Response, provider string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s returned %d: %s", provider, resp.StatusCode, string(body))
}

// HTTPProvider calls an OpenAI-compatible chat completions endpoint.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewHTTPProvider(name, baseURL, apiKey, model string) *HTTPProvider {
	return &HTTPProvider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

func (p *HTTPProvider) Name() string { return p.name }

// Complete calls POST /chat/completions and returns the first choice.
func (p *HTTPProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body, _ := json.Marshal(map[string]any{
		"model":    p.model,
		"messages": messages,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s request: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	defer resp.Body.Close()

	if err := checkResp(resp, p.name); err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%s decode: %w", p.name, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return result.Choices[0].Message.Content, nil
}

// Fallback tries the primary provider, then the secondary. It reports which
// provider served the request so callers can tag results; when every
// provider fails, callers are expected to degrade to a deterministic
// default rather than fail the request.
type Fallback struct {
	primary   Provider
	secondary Provider
}

func NewFallback(primary, secondary Provider) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

// Complete runs the chain. A context cancellation stops it immediately;
// any other primary failure falls through to the secondary.
func (f *Fallback) Complete(ctx context.Context, req CompletionRequest) (string, string, error) {
	var lastErr error

	if f.primary != nil {
		text, err := f.primary.Complete(ctx, req)
		if err == nil {
			return text, f.primary.Name(), nil
		}
		if ctx.Err() != nil {
			return "", "", err
		}
		log.Warn().Err(err).Str("provider", f.primary.Name()).Msg("primary ai provider failed, trying secondary")
		lastErr = err
	}

	if f.secondary != nil {
		text, err := f.secondary.Complete(ctx, req)
		if err == nil {
			return text, f.secondary.Name(), nil
		}
		log.Warn().Err(err).Str("provider", f.secondary.Name()).Msg("secondary ai provider failed")
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no ai providers configured")
	}
	return "", "", fmt.Errorf("all ai providers failed: %w", lastErr)
}
