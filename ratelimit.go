package paperbase

import (
	"context"
	"sync"
	"time"
)

// rateWindow is a sliding one-minute budget shared by the rate-limit
// wrappers. It tracks request timestamps and token counts.
type rateWindow struct {
	mu sync.Mutex

	// RPM state: sliding window of request timestamps.
	rpm       int
	rpmWindow []time.Time

	// TPM state: sliding window of (timestamp, tokenCount) pairs.
	tpm       int
	tpmWindow []tpmEntry
}

type tpmEntry struct {
	at     time.Time
	tokens int
}

// RateLimitOption configures a rate-limit wrapper.
type RateLimitOption func(*rateWindow)

// RPM sets the maximum requests per minute.
func RPM(n int) RateLimitOption {
	return func(r *rateWindow) { r.rpm = n }
}

// TPM sets the maximum tokens per minute (input + output combined).
// This is a soft limit — the request that exceeds the budget completes,
// but subsequent requests block until the window slides.
func TPM(n int) RateLimitOption {
	return func(r *rateWindow) { r.tpm = n }
}

// waitForBudget blocks until both RPM and TPM budgets allow a request.
// Returns ctx.Err() if the context is cancelled while waiting.
func (r *rateWindow) waitForBudget(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Minute)

		r.rpmWindow = pruneTime(r.rpmWindow, cutoff)
		r.tpmWindow = pruneTpm(r.tpmWindow, cutoff)

		rpmOK := r.rpm <= 0 || len(r.rpmWindow) < r.rpm

		tpmOK := true
		if r.tpm > 0 {
			var total int
			for _, e := range r.tpmWindow {
				total += e.tokens
			}
			tpmOK = total < r.tpm
		}

		if rpmOK && tpmOK {
			if r.rpm > 0 {
				r.rpmWindow = append(r.rpmWindow, now)
			}
			r.mu.Unlock()
			return nil
		}

		// Wait until the oldest entry in the blocking window expires.
		var wait time.Duration
		if !rpmOK && len(r.rpmWindow) > 0 {
			wait = r.rpmWindow[0].Add(time.Minute).Sub(now)
		}
		if !tpmOK && len(r.tpmWindow) > 0 {
			w := r.tpmWindow[0].at.Add(time.Minute).Sub(now)
			if wait == 0 || w < wait {
				wait = w
			}
		}
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// recordTokens adds token counts to the TPM sliding window.
func (r *rateWindow) recordTokens(total int) {
	if r.tpm <= 0 || total <= 0 {
		return
	}
	r.mu.Lock()
	r.tpmWindow = append(r.tpmWindow, tpmEntry{at: time.Now(), tokens: total})
	r.mu.Unlock()
}

// pruneTime removes entries older than cutoff from a sorted time slice.
func pruneTime(s []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(s) && s[i].Before(cutoff) {
		i++
	}
	return s[i:]
}

// pruneTpm removes entries older than cutoff from a sorted tpmEntry slice.
func pruneTpm(s []tpmEntry, cutoff time.Time) []tpmEntry {
	i := 0
	for i < len(s) && s[i].at.Before(cutoff) {
		i++
	}
	return s[i:]
}

// rateLimitProvider wraps a Provider with proactive rate limiting.
// Requests block until the rate budget allows them to proceed.
type rateLimitProvider struct {
	inner Provider
	win   rateWindow
}

// WithRateLimit wraps p with proactive rate limiting. Compose with other
// wrappers:
//
//	chatLLM = paperbase.WithRateLimit(provider, paperbase.RPM(60))
//	chatLLM = paperbase.WithRateLimit(paperbase.WithRetry(provider), paperbase.RPM(60), paperbase.TPM(100000))
func WithRateLimit(p Provider, opts ...RateLimitOption) Provider {
	r := &rateLimitProvider{inner: p}
	for _, opt := range opts {
		opt(&r.win)
	}
	return r
}

func (r *rateLimitProvider) Name() string { return r.inner.Name() }

func (r *rateLimitProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := r.win.waitForBudget(ctx); err != nil {
		return ChatResponse{}, err
	}
	resp, err := r.inner.Chat(ctx, req)
	if err == nil {
		r.win.recordTokens(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	}
	return resp, err
}

func (r *rateLimitProvider) ChatStream(ctx context.Context, req ChatRequest, ch chan<- string) (ChatResponse, error) {
	if err := r.win.waitForBudget(ctx); err != nil {
		close(ch)
		return ChatResponse{}, err
	}
	resp, err := r.inner.ChatStream(ctx, req, ch)
	if err == nil {
		r.win.recordTokens(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	}
	return resp, err
}

// rateLimitEmbedding wraps an EmbeddingProvider with the same sliding-window
// budget. Bulk ingestion is the embedding endpoint's heaviest caller; one RPM
// cap keeps a large document import under hoster limits without failing the
// whole ingest.
type rateLimitEmbedding struct {
	inner EmbeddingProvider
	win   rateWindow
}

// WithEmbeddingRateLimit wraps p with proactive rate limiting. Accepts the
// same RateLimitOption functions as WithRateLimit; TPM counts are unavailable
// for embeddings, so only RPM applies.
func WithEmbeddingRateLimit(p EmbeddingProvider, opts ...RateLimitOption) EmbeddingProvider {
	r := &rateLimitEmbedding{inner: p}
	for _, opt := range opts {
		opt(&r.win)
	}
	return r
}

func (r *rateLimitEmbedding) Name() string    { return r.inner.Name() }
func (r *rateLimitEmbedding) Dimensions() int { return r.inner.Dimensions() }

func (r *rateLimitEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.win.waitForBudget(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// compile-time checks
var (
	_ Provider          = (*rateLimitProvider)(nil)
	_ EmbeddingProvider = (*rateLimitEmbedding)(nil)
)
