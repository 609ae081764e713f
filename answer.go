package paperbase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// groundedSystemPrompt constrains generation to the retrieved evidence.
const groundedSystemPrompt = "You are a neutral, objective research assistant that extracts facts from provided documents. " +
	"Answer the user's question based STRICTLY on the context below. " +
	"If the answer is in the context, output it. If not, say you don't know. " +
	"Keep the tone neutral and factual. " +
	"When the user greets you, respond with a greeting."

// generalSystemPrompt is the evidence-free fallback persona.
const generalSystemPrompt = "You are a helpful and knowledgeable assistant. " +
	"Answer the user's question to the best of your ability using your general knowledge. " +
	"Be concise and friendly."

// AnswerOption configures an Answerer.
type AnswerOption func(*answerConfig)

type answerConfig struct {
	historyLimit int
	logger       *slog.Logger
}

// WithHistoryLimit sets how many recent chat turns are replayed into the
// generation context. Default is 6.
func WithHistoryLimit(n int) AnswerOption {
	return func(c *answerConfig) { c.historyLimit = n }
}

// WithAnswerLogger sets a structured logger. If not set, nothing is logged.
func WithAnswerLogger(l *slog.Logger) AnswerOption {
	return func(c *answerConfig) { c.logger = l }
}

// AnswerResult reports how a question was answered.
type AnswerResult struct {
	Route    Route
	Evidence []RetrievalHit // empty when the gate discarded retrieval
	Content  string
	Usage    Usage
}

// Answerer is the top-level question flow: route, retrieve, gate, generate.
// Retrieval trouble of any kind degrades to evidence-free generation; the
// end user never sees a retrieval error.
type Answerer struct {
	router   *Router
	pipeline *Pipeline
	provider Provider
	store    Store
	cfg      answerConfig
}

// NewAnswerer wires the answer flow. store persists chat history and may be
// nil to run stateless.
func NewAnswerer(router *Router, pipeline *Pipeline, provider Provider, store Store, opts ...AnswerOption) *Answerer {
	cfg := answerConfig{
		historyLimit: 6,
		logger:       slog.New(discardLogHandler{}),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Answerer{router: router, pipeline: pipeline, provider: provider, store: store, cfg: cfg}
}

// Answer streams the reply for one question into ch (closed by the provider
// when the stream ends) and returns the final result. Chat turns are
// persisted after the stream completes; an abandoned stream persists what
// was accumulated, accepting truncation.
func (a *Answerer) Answer(ctx context.Context, sessionKey, question string, ch chan<- string) (AnswerResult, error) {
	var history []Message
	var session Session
	if a.store != nil {
		var err error
		session, err = a.store.GetOrCreateSession(ctx, sessionKey)
		if err == nil {
			history, _ = a.store.GetMessages(ctx, session.ID, a.cfg.historyLimit)
		} else {
			a.cfg.logger.Warn("session lookup failed", "error", err)
		}
	}

	result := AnswerResult{Route: a.router.Classify(ctx, question)}

	if result.Route == RouteRetrieval {
		hits, err := a.pipeline.Retrieve(ctx, question)
		switch {
		case err != nil:
			a.cfg.logger.Warn("retrieval failed, answering without evidence", "error", err)
		case !a.pipeline.Gate(hits):
			a.cfg.logger.Debug("gate rejected evidence",
				"candidates", len(hits), "threshold", a.pipeline.GateThreshold())
		default:
			result.Evidence = hits
		}
	}

	req := a.buildRequest(question, history, result.Evidence)
	resp, streamErr := a.provider.ChatStream(ctx, req, ch)
	result.Content = resp.Content
	result.Usage = resp.Usage

	// An abandoned or failed stream still persists the exchange with
	// whatever content accumulated, so the next turn's history replay keeps
	// the question even when the reply was truncated.
	if a.store != nil && session.ID != "" {
		now := NowUnix()
		if err := a.store.StoreMessage(ctx, Message{
			ID: NewID(), SessionID: session.ID, Role: "user", Content: question, CreatedAt: now,
		}); err != nil {
			a.cfg.logger.Warn("persist user turn failed", "error", err)
		}
		if streamErr == nil || resp.Content != "" {
			if err := a.store.StoreMessage(ctx, Message{
				ID: NewID(), SessionID: session.ID, Role: "assistant", Content: resp.Content, CreatedAt: now,
			}); err != nil {
				a.cfg.logger.Warn("persist assistant turn failed", "error", err)
			}
		}
	}

	return result, streamErr
}

// buildRequest assembles system prompt, replayed history, and the user turn.
// With evidence present the user turn carries numbered context blocks.
func (a *Answerer) buildRequest(question string, history []Message, evidence []RetrievalHit) ChatRequest {
	var messages []ChatMessage
	if len(evidence) > 0 {
		messages = append(messages, SystemMessage(groundedSystemPrompt))
	} else {
		messages = append(messages, SystemMessage(generalSystemPrompt))
	}

	for _, m := range history {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Content})
	}

	if len(evidence) == 0 {
		messages = append(messages, UserMessage(question))
		return ChatRequest{Messages: messages}
	}

	var context strings.Builder
	for i, h := range evidence {
		if i > 0 {
			context.WriteString("\n\n---\n\n")
		}
		source := h.Source
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&context, "[Document %d - Source: %s]:\n%s", i+1, source, h.Text)
	}
	messages = append(messages, UserMessage(fmt.Sprintf(
		"Question: %s\n\nHere is the context from the documents:\n<context>\n%s\n</context>",
		question, context.String(),
	)))
	return ChatRequest{Messages: messages}
}
