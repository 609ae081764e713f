package openaicompat

import "net/http"

// Option configures a Provider or Embedding instance.
type Option func(*options)

type options struct {
	baseURL     string
	name        string
	client      *http.Client
	temperature *float64
	topP        *float64
	maxTokens   int
	seed        *int
}

func defaultOptions() options {
	return options{
		baseURL: "https://api.openai.com/v1",
		name:    "openai",
		client:  &http.Client{},
	}
}

// WithBaseURL sets the API base (e.g. "https://api.groq.com/openai/v1",
// "http://localhost:11434/v1"). Endpoint paths are appended automatically.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithName sets the provider name returned by Name() (default "openai").
// Use this to distinguish providers in logs and observability.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithHTTPClient sets a custom HTTP client (e.g. for timeouts or proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithTemperature sets the sampling temperature applied to every request.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = &t }
}

// WithTopP sets nucleus sampling applied to every request.
func WithTopP(p float64) Option {
	return func(o *options) { o.topP = &p }
}

// WithMaxTokens caps the completion length of every request.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithSeed requests deterministic sampling where the backend supports it.
func WithSeed(s int) Option {
	return func(o *options) { o.seed = &s }
}
