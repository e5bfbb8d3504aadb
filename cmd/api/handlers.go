package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cardex-ai/cardex/engine/domain"
	"github.com/cardex-ai/cardex/engine/extract"
	"github.com/cardex-ai/cardex/engine/graph"
	"github.com/cardex-ai/cardex/engine/ingest"
	"github.com/cardex-ai/cardex/engine/search"
	"github.com/cardex-ai/cardex/pkg/fn"
	"github.com/cardex-ai/cardex/pkg/gemini"
	"github.com/cardex-ai/cardex/pkg/imgsrc"
	"github.com/cardex-ai/cardex/pkg/metrics"
	"github.com/cardex-ai/cardex/pkg/resilience"
)

// searchService is the slice of the search layer the handlers use.
type searchService interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]search.Hit, error)
	FetchCard(ctx context.Context, cardID string) (domain.CardRecord, error)
	Colleagues(ctx context.Context, cardID string) ([]graph.Person, error)
	CompanyDirectory(ctx context.Context, companyName string) ([]graph.Person, error)
}

// cardDeleter removes a card's points from the vector store.
type cardDeleter interface {
	DeleteByCardID(ctx context.Context, cardID string) error
}

type server struct {
	pipeline    fn.Stage[string, domain.CardRecord]
	imgPipeline fn.Stage[ingest.LoadedImage, domain.CardRecord]
	search      searchService
	store       cardDeleter
	nats        *nats.Conn
	metrics     *metrics.Registry
	log         *slog.Logger
}

func newServer(deps ingest.Deps, svc searchService, store cardDeleter, nc *nats.Conn, reg *metrics.Registry, log *slog.Logger) *server {
	return &server{
		pipeline:    ingest.NewPipeline(deps),
		imgPipeline: ingest.NewImagePipeline(deps),
		search:      svc,
		store:       store,
		nats:        nc,
		metrics:     reg,
		log:         log,
	}
}

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/cards", s.handleAddCard)
	mux.HandleFunc("GET /api/cards/{id}", s.handleGetCard)
	mux.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard)
	mux.HandleFunc("GET /api/cards/{id}/colleagues", s.handleColleagues)
	mux.HandleFunc("GET /api/companies/{name}/people", s.handleCompanyDirectory)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /", handleIndex)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddCardRequest is the JSON body for POST /api/cards. Multipart uploads
// with an `image` file field are accepted too.
type AddCardRequest struct {
	Source string `json:"source"`
	Async  bool   `json:"async,omitempty"`
}

func (s *server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.metrics.Histogram("ingest_seconds", "add-card latency", nil).Since(start)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.addUploadedCard(w, r)
		return
	}

	var req AddCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	if req.Async {
		if s.nats == nil {
			writeError(w, http.StatusBadRequest, "async ingestion is not enabled")
			return
		}
		if err := ingest.Enqueue(r.Context(), s.nats, req.Source); err != nil {
			s.log.Error("enqueue failed", "err", err)
			writeError(w, http.StatusInternalServerError, "enqueue failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	s.respondPipeline(w, s.pipeline(r.Context(), req.Source))
}

func (s *server) addUploadedCard(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(domain.MaxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, domain.MaxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	ref, err := imgsrc.Describe(data, "upload:"+header.Filename)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	s.respondPipeline(w, s.imgPipeline(r.Context(), ingest.LoadedImage{Data: data, Ref: ref}))
}

func (s *server) respondPipeline(w http.ResponseWriter, result fn.Result[domain.CardRecord]) {
	record, err := result.Unwrap()
	if err != nil {
		s.metrics.Counter("cards_ingest_errors_total", "failed add-card requests").Inc()
		s.log.Error("add card failed", "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.metrics.Counter("cards_ingested_total", "cards stored").Inc()
	writeJSON(w, http.StatusCreated, record)
}

func (s *server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	record, err := s.search.FetchCard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := domain.ValidateCardID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteByCardID(r.Context(), id); err != nil {
		s.log.Error("delete card failed", "card_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleColleagues(w http.ResponseWriter, r *http.Request) {
	people, err := s.search.Colleagues(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"colleagues": people})
}

func (s *server) handleCompanyDirectory(w http.ResponseWriter, r *http.Request) {
	people, err := s.search.CompanyDirectory(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"people": people})
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// SearchResponse carries ranked hits; relevance is 1 minus distance.
type SearchResponse struct {
	Results []search.Hit `json:"results"`
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.metrics.Histogram("search_seconds", "search latency", nil).Since(start)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hits, err := s.search.Search(r.Context(), domain.SearchQuery{Text: req.Query, Limit: req.K})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.metrics.Counter("searches_total", "search requests served").Inc()
	if hits == nil {
		hits = []search.Hit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// statusFor maps service errors to HTTP status codes: invalid input 400,
// unknown card 404, tripped breaker 503, upstream/storage failure 502.
func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrCardNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr),
		errors.Is(err, domain.ErrQueryTooShort),
		errors.Is(err, domain.ErrQueryTooLong),
		errors.Is(err, domain.ErrInvalidLimit),
		errors.Is(err, domain.ErrEmptyExtraction):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Model client guards ---

// guardedExtractor runs extraction through a circuit breaker.
type guardedExtractor struct {
	inner   *extract.Client
	breaker *resilience.Breaker
}

func (g *guardedExtractor) ExtractCard(ctx context.Context, image []byte, mimeType string) (domain.CardInfo, error) {
	return resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[domain.CardInfo] {
		return fn.FromPair(g.inner.ExtractCard(ctx, image, mimeType))
	}).Unwrap()
}

// guardedEmbedder runs embedding calls through a circuit breaker. It serves
// both the ingest pipeline and query embedding.
type guardedEmbedder struct {
	inner   *gemini.EmbedClient
	breaker *resilience.Breaker
}

func (g *guardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[[][]float32] {
		return fn.FromPair(g.inner.EmbedBatch(ctx, texts))
	}).Unwrap()
}

func (g *guardedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(g.inner.EmbedQuery(ctx, text))
	}).Unwrap()
}
