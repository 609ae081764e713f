package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	paperbase "github.com/dqviet/paperbase"
)

// Provider implements paperbase.Provider for any OpenAI-compatible chat
// completions API.
type Provider struct {
	apiKey string
	model  string
	opts   options
}

// New creates an OpenAI-compatible chat provider.
func New(apiKey, model string, opts ...Option) *Provider {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Provider{apiKey: apiKey, model: model, opts: o}
}

// Name returns the provider name (default "openai", configurable via WithName).
func (p *Provider) Name() string { return p.opts.name }

// Chat sends a non-streaming chat request and returns the complete response.
func (p *Provider) Chat(ctx context.Context, req paperbase.ChatRequest) (paperbase.ChatResponse, error) {
	resp, err := p.sendHTTP(ctx, p.buildBody(req, false))
	if err != nil {
		return paperbase.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return paperbase.ChatResponse{}, httpErr(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return paperbase.ChatResponse{}, &paperbase.ErrLLM{Provider: p.opts.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil {
		return paperbase.ChatResponse{}, &paperbase.ErrLLM{Provider: p.opts.name, Message: "response has no choices"}
	}

	out := paperbase.ChatResponse{Content: chatResp.Choices[0].Message.Content}
	if chatResp.Usage != nil {
		out.Usage = paperbase.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		}
	}
	return out, nil
}

// ChatStream streams text deltas into ch, then returns the final
// accumulated response. The channel is closed when streaming completes
// or on error. Callers should read from ch in a separate goroutine.
func (p *Provider) ChatStream(ctx context.Context, req paperbase.ChatRequest, ch chan<- string) (paperbase.ChatResponse, error) {
	body := p.buildBody(req, true)
	body.StreamOptions = &StreamOptions{IncludeUsage: true}

	resp, err := p.sendHTTP(ctx, body)
	if err != nil {
		close(ch)
		return paperbase.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		close(ch)
		return paperbase.ChatResponse{}, httpErr(resp)
	}

	// StreamSSE closes ch when done.
	return StreamSSE(ctx, resp.Body, ch)
}

func (p *Provider) buildBody(req paperbase.ChatRequest, stream bool) ChatRequest {
	body := ChatRequest{
		Model:       p.model,
		Stream:      stream,
		Temperature: p.opts.temperature,
		TopP:        p.opts.topP,
		MaxTokens:   p.opts.maxTokens,
		Seed:        p.opts.seed,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, Message{Role: m.Role, Content: m.Content})
	}
	return body
}

// sendHTTP marshals the request body and posts it to the chat completions
// endpoint.
func (p *Provider) sendHTTP(ctx context.Context, body ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &paperbase.ErrLLM{Provider: p.opts.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := p.opts.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &paperbase.ErrLLM{Provider: p.opts.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	return p.opts.client.Do(httpReq)
}

func httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &paperbase.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       string(body),
		RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
	}
}

// retryAfter parses a Retry-After header value, accepting both the
// delta-seconds and HTTP-date forms.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Compile-time interface check.
var _ paperbase.Provider = (*Provider)(nil)
