// Package main implements the cardex API server: card ingestion, semantic
// search, and the web UI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cardex-ai/cardex/engine/extract"
	"github.com/cardex-ai/cardex/engine/graph"
	"github.com/cardex-ai/cardex/engine/ingest"
	"github.com/cardex-ai/cardex/engine/search"
	"github.com/cardex-ai/cardex/engine/semantic"
	"github.com/cardex-ai/cardex/pkg/gemini"
	"github.com/cardex-ai/cardex/pkg/imgsrc"
	"github.com/cardex-ai/cardex/pkg/metrics"
	"github.com/cardex-ai/cardex/pkg/mid"
	"github.com/cardex-ai/cardex/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	QdrantURL      string
	Collection     string
	EmbedDims      int
	Neo4jURL       string
	Neo4jUser      string
	Neo4jPass      string
	NatsURL        string // optional; enables async ingestion
	GeminiKey      string
	OpenRouterKey  string
	ExtractModel   string
	EmbedModel     string
	CORSOrigin     string
	MinScore       float64
	RequestsPerSec float64
}

func loadConfig() (Config, error) {
	dims, err := strconv.Atoi(envOr("EMBED_DIMS", "3072"))
	if err != nil {
		return Config{}, fmt.Errorf("parse EMBED_DIMS: %w", err)
	}
	minScore, err := strconv.ParseFloat(envOr("MIN_SCORE", "0.3"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse MIN_SCORE: %w", err)
	}
	rps, err := strconv.ParseFloat(envOr("REQUESTS_PER_SEC", "25"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse REQUESTS_PER_SEC: %w", err)
	}

	cfg := Config{
		Port:           envOr("PORT", "8080"),
		QdrantURL:      envOr("QDRANT_URL", "localhost:6334"),
		Collection:     envOr("QDRANT_COLLECTION", "business_cards"),
		EmbedDims:      dims,
		Neo4jURL:       envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:      envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:      envOr("NEO4J_PASS", "password"),
		NatsURL:        os.Getenv("NATS_URL"),
		GeminiKey:      os.Getenv("GEMINI_API_KEY"),
		OpenRouterKey:  os.Getenv("OPENROUTER_API_KEY"),
		ExtractModel:   envOr("EXTRACT_MODEL", extract.DefaultModel),
		EmbedModel:     envOr("EMBED_MODEL", gemini.DefaultModel),
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
		MinScore:       minScore,
		RequestsPerSec: rps,
	}
	if cfg.GeminiKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.OpenRouterKey == "" {
		return Config{}, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	contactGraph := graph.New(neo4jDriver)

	// --- Model clients behind circuit breakers ---
	extractBreaker := resilience.NewBreaker(resilience.DefaultBreakerOpts)
	embedBreaker := resilience.NewBreaker(resilience.DefaultBreakerOpts)

	extractor := &guardedExtractor{
		inner:   extract.NewClient(cfg.OpenRouterKey, cfg.ExtractModel),
		breaker: extractBreaker,
	}
	embedder := &guardedEmbedder{
		inner:   gemini.NewEmbedClient(cfg.GeminiKey, cfg.EmbedModel),
		breaker: embedBreaker,
	}

	// --- Services ---
	deps := ingest.Deps{
		Loader:    imgsrc.New(),
		Extractor: extractor,
		Embedder:  embedder,
		Vector:    vectorStore,
		Contacts:  contactGraph,
		Logger:    logger,
	}

	searchSvc := search.New(embedder, vectorStore,
		search.WithColleagues(contactGraph),
		search.WithMinScore(float32(cfg.MinScore)),
		search.WithLogger(logger),
	)

	// --- Optional NATS ---
	var nc *nats.Conn
	if cfg.NatsURL != "" {
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		logger.Info("async ingestion enabled", "nats_url", cfg.NatsURL)
	}

	// --- Metrics ---
	reg := metrics.New()

	api := newServer(deps, searchSvc, vectorStore, nc, reg, logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	api.routes(mux)
	mux.Handle("GET /metrics", reg.Handler())

	limiter := resilience.NewLimiter(resilience.LimiterOpts{
		Rate:  cfg.RequestsPerSec,
		Burst: int(cfg.RequestsPerSec) * 2,
	})

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("cardex-api"),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(limiter),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
