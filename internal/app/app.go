package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	paperbase "github.com/dqviet/paperbase"
	"github.com/dqviet/paperbase/ingest"
	"github.com/dqviet/paperbase/internal/config"
	"github.com/dqviet/paperbase/observer"
	"github.com/dqviet/paperbase/provider/openaicompat"
	"github.com/dqviet/paperbase/provider/tei"
	"github.com/dqviet/paperbase/store/postgres"
	"github.com/dqviet/paperbase/store/sqlite"
)

// App holds the assembled document QA system: storage, ingestion, and the
// question-answer flow, all built from one Config.
type App struct {
	Store    paperbase.Store
	Lexical  *paperbase.LexicalIndex
	Ingestor *ingest.Ingestor
	Pipeline *paperbase.Pipeline
	Answerer *paperbase.Answerer

	instruments *observer.Instruments
	pool        *pgxpool.Pool
	shutdown    []func(context.Context) error
}

// Build constructs the full system from cfg, initializes storage, and warms
// the lexical index from whatever chunks are already stored. Call Close when
// done.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = paperbase.NopLogger()
	}

	a := &App{}

	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		var stop func(context.Context) error
		var err error
		inst, stop, err = observer.Init(ctx, pricing)
		if err != nil {
			return nil, fmt.Errorf("observer init: %w", err)
		}
		a.instruments = inst
		a.shutdown = append(a.shutdown, stop)
	}

	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		a.pool = pool
		a.Store = postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions))
	default:
		a.Store = sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
	}
	if err := a.Store.Init(ctx); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("store init: %w", err)
	}

	// Wrapping order: observer sees every attempt, retry sits above it,
	// rate limiting gates the outermost call.
	chatLLM := wrapProvider(cfg.LLM, openaicompat.New(cfg.LLM.APIKey, cfg.LLM.Model,
		openaicompat.WithBaseURL(cfg.LLM.BaseURL)), inst, logger)
	expandLLM := wrapProvider(cfg.Expansion, openaicompat.New(cfg.Expansion.APIKey, cfg.Expansion.Model,
		openaicompat.WithBaseURL(cfg.Expansion.BaseURL)), inst, logger)
	routerLLM := wrapProvider(cfg.Router, openaicompat.New(cfg.Router.APIKey, cfg.Router.Model,
		openaicompat.WithBaseURL(cfg.Router.BaseURL), openaicompat.WithTemperature(0)), inst, logger)

	var embedding paperbase.EmbeddingProvider = openaicompat.NewEmbedding(
		cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions,
		openaicompat.WithBaseURL(cfg.Embedding.BaseURL))
	if inst != nil {
		embedding = observer.WrapEmbedding(embedding, cfg.Embedding.Model, inst)
	}
	embedding = paperbase.WithEmbeddingRetry(embedding, paperbase.RetryLogger(logger))
	if cfg.Embedding.RPM > 0 {
		embedding = paperbase.WithEmbeddingRateLimit(embedding, paperbase.RPM(cfg.Embedding.RPM))
	}

	var reranker paperbase.RerankProvider = tei.New(cfg.Reranker.BaseURL, tei.WithAPIKey(cfg.Reranker.APIKey))
	if inst != nil {
		reranker = observer.WrapReranker(reranker, "tei", inst)
	}
	reranker = paperbase.WithRerankRetry(reranker, paperbase.RetryLogger(logger))

	a.Lexical = paperbase.NewLexicalIndex()
	if docs, err := a.Store.AllChunks(ctx); err != nil {
		logger.Warn("lexical index warm-up failed, keyword search disabled until next ingest", "error", err)
	} else if len(docs) > 0 {
		a.Lexical.Rebuild(docs)
		logger.Debug("lexical index warmed", "chunks", len(docs))
	}

	tok := paperbase.NewWordTokenizer()
	a.Ingestor = ingest.NewIngestor(a.Store, embedding, tok,
		ingest.WithLexicalIndex(a.Lexical),
		ingest.WithLogger(logger),
		ingest.WithChunkerOptions(
			ingest.WithFineChunkSize(cfg.Chunking.FineChunkSize),
			ingest.WithOverlapSentences(cfg.Chunking.OverlapSentences),
			ingest.WithCoarseTarget(cfg.Chunking.CoarseTarget),
			ingest.WithCoarseOverlap(cfg.Chunking.CoarseOverlap),
		))

	searcher := paperbase.NewHybridSearcher(a.Store, embedding, a.Lexical)
	a.Pipeline = paperbase.NewPipeline(searcher, reranker, expandLLM,
		paperbase.WithPerQueryTopK(cfg.Retrieval.PerQueryTopK),
		paperbase.WithRerankTopN(cfg.Retrieval.RerankTopN),
		paperbase.WithMaxVariants(cfg.Retrieval.MaxVariants),
		paperbase.WithGateThreshold(cfg.Retrieval.GateThreshold),
		paperbase.WithPipelineLogger(logger),
	)

	router := paperbase.NewRouter(routerLLM)
	a.Answerer = paperbase.NewAnswerer(router, a.Pipeline, chatLLM, a.Store,
		paperbase.WithHistoryLimit(cfg.Retrieval.HistoryLimit),
		paperbase.WithAnswerLogger(logger),
	)

	return a, nil
}

// Ask answers one question, streaming tokens into ch. When the observer is
// enabled the whole flow runs under a retrieval span.
func (a *App) Ask(ctx context.Context, sessionKey, question string, ch chan<- string) (paperbase.AnswerResult, error) {
	if a.instruments == nil {
		return a.Answerer.Answer(ctx, sessionKey, question, ch)
	}
	ctx, finish := a.instruments.StartRetrieval(ctx, "ask")
	res, err := a.Answerer.Answer(ctx, sessionKey, question, ch)
	gated := res.Route == paperbase.RouteRetrieval && len(res.Evidence) == 0
	finish(len(res.Evidence), gated)
	return res, err
}

// Close releases storage and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	return a.close(ctx)
}

func (a *App) close(ctx context.Context) error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	for _, stop := range a.shutdown {
		if err := stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func wrapProvider(cfg config.LLMConfig, p paperbase.Provider, inst *observer.Instruments, logger *slog.Logger) paperbase.Provider {
	if inst != nil {
		p = observer.WrapProvider(p, cfg.Model, inst)
	}
	p = paperbase.WithRetry(p, paperbase.RetryLogger(logger))
	if cfg.RPM > 0 || cfg.TPM > 0 {
		p = paperbase.WithRateLimit(p, paperbase.RPM(cfg.RPM), paperbase.TPM(cfg.TPM))
	}
	return p
}
