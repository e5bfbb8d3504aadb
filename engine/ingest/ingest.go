// Package ingest implements the add-card pipeline: load image, extract with
// the vision model, compose searchable documents, embed, and store in the
// vector collection and contact graph.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cardex-ai/cardex/engine/domain"
	"github.com/cardex-ai/cardex/engine/graph"
	"github.com/cardex-ai/cardex/engine/semantic"
	"github.com/cardex-ai/cardex/pkg/fn"
	"github.com/cardex-ai/cardex/pkg/natsutil"
)

const (
	// IngestSubject is the NATS subject for asynchronous card additions.
	IngestSubject = "cards.ingest"
	// DLQSubject is the dead letter queue subject for failed additions.
	DLQSubject = "cards.ingest.dlq"
	// MaxRetries before a message is sent to the DLQ.
	MaxRetries = 3
)

// ImageLoader loads card image bytes from a path or URL.
type ImageLoader interface {
	Load(ctx context.Context, source string) ([]byte, domain.ImageRef, error)
}

// Extractor turns image bytes into the fixed card schema.
type Extractor interface {
	ExtractCard(ctx context.Context, image []byte, mimeType string) (domain.CardInfo, error)
}

// Embedder produces document embeddings.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter upserts card points.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// ContactWriter records the person/company relationship of a card.
type ContactWriter interface {
	SaveCard(ctx context.Context, p graph.Person, c graph.Company) error
}

// Deps holds the external dependencies of the pipeline.
type Deps struct {
	Loader    ImageLoader
	Extractor Extractor
	Embedder  Embedder
	Vector    VectorWriter
	Contacts  ContactWriter // optional; nil disables the contact graph
	Logger    *slog.Logger
}

// NewLoad creates the image loading stage.
func NewLoad(loader ImageLoader) fn.Stage[string, LoadedImage] {
	return func(ctx context.Context, source string) fn.Result[LoadedImage] {
		data, ref, err := loader.Load(ctx, source)
		if err != nil {
			return fn.Err[LoadedImage](fmt.Errorf("load image: %w", err))
		}
		return fn.Ok(LoadedImage{Data: data, Ref: ref})
	}
}

// NewExtract creates the extraction stage. The card ID is the image content
// hash, fixed here and never changed downstream.
func NewExtract(client Extractor) fn.Stage[LoadedImage, ExtractedCard] {
	return func(ctx context.Context, img LoadedImage) fn.Result[ExtractedCard] {
		info, err := client.ExtractCard(ctx, img.Data, img.Ref.MimeType)
		if err != nil {
			return fn.Err[ExtractedCard](fmt.Errorf("extract: %w", err))
		}
		if err := domain.ValidateCardInfo(info); err != nil {
			return fn.Err[ExtractedCard](err)
		}
		return fn.Ok(ExtractedCard{
			Record: domain.CardRecord{
				ID:    img.Ref.Hash,
				Image: img.Ref,
				Info:  info,
			},
		})
	}
}

// Compose renders the searchable documents for a card.
var Compose fn.Stage[ExtractedCard, ComposedCard] = func(_ context.Context, card ExtractedCard) fn.Result[ComposedCard] {
	return fn.Ok(ComposedCard{
		Record:    card.Record,
		Documents: ComposeDocuments(card.Record),
	})
}

// NewEmbed creates the embedding stage.
func NewEmbed(embedder Embedder) fn.Stage[ComposedCard, EmbeddedCard] {
	return func(ctx context.Context, card ComposedCard) fn.Result[EmbeddedCard] {
		embeddings, err := embedder.EmbedBatch(ctx, card.Documents)
		if err != nil {
			return fn.Err[EmbeddedCard](fmt.Errorf("embed: %w", err))
		}
		if len(embeddings) != len(card.Documents) {
			return fn.Err[EmbeddedCard](fmt.Errorf("embed: got %d vectors for %d documents", len(embeddings), len(card.Documents)))
		}
		return fn.Ok(EmbeddedCard{ComposedCard: card, Embeddings: embeddings})
	}
}

// NewStore creates the storage stage, writing Qdrant points and, when a
// contact writer is present, the person/company graph. Graph failures are
// logged and do not fail the pipeline.
func NewStore(vector VectorWriter, contacts ContactWriter, log *slog.Logger) fn.Stage[EmbeddedCard, domain.CardRecord] {
	return func(ctx context.Context, card EmbeddedCard) fn.Result[domain.CardRecord] {
		if err := vector.Upsert(ctx, Records(card)); err != nil {
			return fn.Err[domain.CardRecord](fmt.Errorf("vector upsert: %w", err))
		}

		if contacts != nil {
			info := card.Record.Info
			person := graph.Person{
				CardID:  card.Record.ID,
				Name:    info.PrimaryInfo.Name.Value,
				Title:   info.PrimaryInfo.JobTitle.Value,
				Email:   info.PrimaryEmail(),
				Company: info.PrimaryInfo.Company.TextValue,
			}
			company := graph.Company{
				Key:      graph.CompanyKey(info.PrimaryInfo.Company.TextValue),
				Name:     info.PrimaryInfo.Company.TextValue,
				Website:  info.DigitalPresence.Website.Value,
				Industry: info.ContextualSummary.IndustryInference,
			}
			if err := contacts.SaveCard(ctx, person, company); err != nil {
				log.Warn("ingest: contact graph write failed", "card_id", card.Record.ID, "error", err)
			}
		}

		return fn.Ok(card.Record)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewImagePipeline builds the pipeline from loaded image bytes onward, for
// callers that already hold the bytes (HTTP uploads).
func NewImagePipeline(deps Deps) fn.Stage[LoadedImage, domain.CardRecord] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	extracted := fn.TracedStage("ingest.extract", NewExtract(deps.Extractor))
	composed := fn.Then(extracted, fn.TracedStage("ingest.compose", Compose))
	embedRetry := fn.RetryOpts{MaxAttempts: 3, InitialWait: 2 * time.Second, MaxWait: 15 * time.Second, Jitter: true}
	embedded := fn.Then(composed, fn.TracedStage("ingest.embed", fn.RetryStage(embedRetry, NewEmbed(deps.Embedder))))
	return fn.Then(embedded, fn.TracedStage("ingest.store", NewStore(deps.Vector, deps.Contacts, log)))
}

// NewPipeline constructs the full add-card pipeline. Input is the image
// source (path or URL); output is the stored record.
func NewPipeline(deps Deps) fn.Stage[string, domain.CardRecord] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	loaded := fn.Then(LoggedTap[string]("load", log), fn.TracedStage("ingest.load", NewLoad(deps.Loader)))
	return fn.Then(loaded, NewImagePipeline(deps))
}

// Message is the ingest queue payload. Attempt counts prior failures so a
// redelivered message eventually lands in the DLQ.
type Message struct {
	Source  string `json:"source"`
	Attempt int    `json:"attempt"`
}

// DeadLetter is published to the DLQ when a message exhausts its retries.
type DeadLetter struct {
	Source   string `json:"source"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// Enqueue publishes an add-card request to the ingest subject.
func Enqueue(ctx context.Context, nc *nats.Conn, source string) error {
	return natsutil.Publish(ctx, nc, IngestSubject, Message{Source: source})
}

// StartConsumer subscribes to the ingest subject and runs requests through
// the pipeline. Failed requests are re-published with an incremented attempt
// count, then dead-lettered after MaxRetries.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return natsutil.Subscribe(nc, IngestSubject, func(ctx context.Context, msg Message) {
		result := pipeline(ctx, msg.Source)
		if result.IsOk() {
			record, _ := result.Unwrap()
			log.Info("ingest: card stored", "card_id", record.ID, "source", msg.Source)
			return
		}

		_, pipeErr := result.Unwrap()
		msg.Attempt++
		log.Error("ingest: pipeline failed",
			"error", pipeErr,
			"source", msg.Source,
			"attempt", msg.Attempt,
		)

		if msg.Attempt >= MaxRetries {
			dl := DeadLetter{Source: msg.Source, Error: pipeErr.Error(), Attempts: msg.Attempt}
			if err := natsutil.Publish(ctx, nc, DLQSubject, dl); err != nil {
				log.Error("ingest: dead letter publish failed", "error", err)
			}
			return
		}
		if err := natsutil.Publish(ctx, nc, IngestSubject, msg); err != nil {
			log.Error("ingest: retry publish failed", "error", err)
		}
	})
}
