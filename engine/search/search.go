// Package search implements semantic retrieval over stored cards: query
// enhancement, embedding, over-fetched vector search, per-card dedup, and
// ranked results.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cardex-ai/cardex/engine/domain"
	"github.com/cardex-ai/cardex/engine/graph"
	"github.com/cardex-ai/cardex/engine/semantic"
	"github.com/cardex-ai/cardex/pkg/fn"
)

const (
	// overFetchFactor widens the raw vector search so dedup by card still
	// leaves enough distinct cards.
	overFetchFactor = 4
	// DefaultMinScore cuts hits with near-zero cosine similarity.
	DefaultMinScore = 0.3
)

// QueryEmbedder embeds query text for retrieval.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the slice of the vector store the search service needs.
type VectorIndex interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
	FetchByCardID(ctx context.Context, cardID string) ([]semantic.StoredDoc, error)
	Count(ctx context.Context) (int, error)
}

// ColleagueReader answers company lookups from the contact graph.
type ColleagueReader interface {
	Colleagues(ctx context.Context, cardID string) ([]graph.Person, error)
	CompanyDirectory(ctx context.Context, companyName string) ([]graph.Person, error)
}

// Hit is one ranked search result. Distance is 1 minus cosine similarity,
// so lower is closer.
type Hit struct {
	CardID   string  `json:"card_id"`
	Name     string  `json:"name"`
	JobTitle string  `json:"job_title"`
	Company  string  `json:"company"`
	Email    string  `json:"email"`
	Content  string  `json:"content"`
	Distance float32 `json:"distance"`
}

// Service answers card queries against the vector index and contact graph.
type Service struct {
	embedder QueryEmbedder
	index    VectorIndex
	graph    ColleagueReader // optional
	minScore float32
	log      *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithMinScore overrides the similarity floor.
func WithMinScore(s float32) Option {
	return func(svc *Service) { svc.minScore = s }
}

// WithColleagues enables contact graph lookups.
func WithColleagues(g ColleagueReader) Option {
	return func(svc *Service) { svc.graph = g }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(svc *Service) { svc.log = log }
}

// New creates a search service over the given embedder and index.
func New(embedder QueryEmbedder, index VectorIndex, opts ...Option) *Service {
	svc := &Service{
		embedder: embedder,
		index:    index,
		minScore: DefaultMinScore,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// enhanceQuery wraps the raw query with retrieval guidance so short queries
// like a bare name or company embed closer to the stored documents.
func enhanceQuery(text string) string {
	return fmt.Sprintf("Find business card contacts matching: %s. "+
		"Consider names, job titles, companies, industries, locations, and expertise.", text)
}

// Search returns at most q.Limit cards ordered by non-decreasing distance.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) ([]Hit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultResults
	}
	if err := domain.ValidateQuery(domain.SearchQuery{Text: q.Text, Limit: limit}); err != nil {
		return nil, err
	}

	total, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: count collection: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	embedding, err := s.embedder.EmbedQuery(ctx, enhanceQuery(q.Text))
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	fetch := limit * overFetchFactor
	if fetch > total {
		fetch = total
	}

	raw, err := s.index.Search(ctx, embedding, fetch)
	if err != nil {
		return nil, fmt.Errorf("search: vector search: %w", err)
	}

	// Highest similarity first, then keep one point per card.
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Score > raw[j].Score })
	deduped := fn.UniqueBy(raw, func(r semantic.SearchResult) string { return r.CardID })
	kept := fn.Filter(deduped, func(r semantic.SearchResult) bool { return r.Score >= s.minScore })
	if len(kept) > limit {
		kept = kept[:limit]
	}

	hits := fn.Map(kept, func(r semantic.SearchResult) Hit {
		return Hit{
			CardID:   r.CardID,
			Name:     r.Meta["name"],
			JobTitle: r.Meta["job_title"],
			Company:  r.Meta["company"],
			Email:    r.Meta["email"],
			Content:  r.Content,
			Distance: 1 - r.Score,
		}
	})

	s.log.Info("search", "query_len", len(q.Text), "raw_hits", len(raw), "returned", len(hits))
	return hits, nil
}

// FetchCard reconstructs a stored card from its points. The original record
// JSON rides along in every point payload.
func (s *Service) FetchCard(ctx context.Context, cardID string) (domain.CardRecord, error) {
	var zero domain.CardRecord
	if err := domain.ValidateCardID(cardID); err != nil {
		return zero, err
	}

	docs, err := s.index.FetchByCardID(ctx, cardID)
	if err != nil {
		return zero, fmt.Errorf("search: fetch card: %w", err)
	}
	if len(docs) == 0 {
		return zero, domain.ErrCardNotFound
	}

	src := docs[0].Meta["source_json"]
	if src == "" {
		return zero, fmt.Errorf("search: card %s has no source payload", cardID)
	}
	var rec domain.CardRecord
	if err := json.Unmarshal([]byte(src), &rec); err != nil {
		return zero, fmt.Errorf("search: decode card %s: %w", cardID, err)
	}
	return rec, nil
}

// Colleagues lists other people stored under the same company as the card.
func (s *Service) Colleagues(ctx context.Context, cardID string) ([]graph.Person, error) {
	if err := domain.ValidateCardID(cardID); err != nil {
		return nil, err
	}
	if s.graph == nil {
		return nil, nil
	}
	people, err := s.graph.Colleagues(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("search: colleagues of %s: %w", cardID, err)
	}
	return people, nil
}

// CompanyDirectory lists everyone stored under a company name.
func (s *Service) CompanyDirectory(ctx context.Context, companyName string) ([]graph.Person, error) {
	if strings.TrimSpace(companyName) == "" {
		return nil, domain.NewValidationError("company", companyName, domain.ErrQueryTooShort)
	}
	if s.graph == nil {
		return nil, nil
	}
	people, err := s.graph.CompanyDirectory(ctx, companyName)
	if err != nil {
		return nil, fmt.Errorf("search: directory of %s: %w", companyName, err)
	}
	return people, nil
}
