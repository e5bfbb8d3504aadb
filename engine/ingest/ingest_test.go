package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/cardex-ai/cardex/engine/domain"
	"github.com/cardex-ai/cardex/engine/graph"
	"github.com/cardex-ai/cardex/engine/semantic"
)

func testCard() domain.CardRecord {
	info := domain.CardInfo{}
	info.PrimaryInfo.Name = domain.Field{Value: "Jane Doe", Confidence: "high"}
	info.PrimaryInfo.JobTitle = domain.Field{Value: "CTO", Confidence: "high"}
	info.PrimaryInfo.Company = domain.Company{TextValue: "Acme Corp", Confidence: "high"}
	info.ContactInfo.Emails = []domain.ContactEntry{{Value: "jane@acme.io", Type: "work", Confidence: "high"}}
	info.ContactInfo.Phones = []domain.ContactEntry{{Value: "+1 555 0100", Type: "mobile", Confidence: "medium"}}
	info.ContactInfo.Addresses = []domain.ContactEntry{{Value: "Berlin, Germany", Type: "work", Confidence: "medium"}}
	info.DigitalPresence.Website = domain.Field{Value: "https://acme.io", Confidence: "high"}
	info.DigitalPresence.SocialMedia = []domain.SocialMedia{
		{Platform: "linkedin", Handle: "janedoe", IdentifiedFrom: "text", Confidence: "high"},
	}
	info.ContextualSummary.ProfessionalSummary = "Engineering leader at Acme."
	info.ContextualSummary.IndustryInference = "software"
	info.ContextualSummary.SeniorityEstimate = "executive"

	return domain.CardRecord{
		ID: "aa11bb22",
		Image: domain.ImageRef{
			Hash:     "aa11bb22",
			Source:   "/cards/jane.jpg",
			MimeType: "image/jpeg",
			Size:     1024,
		},
		Info: info,
	}
}

func TestComposeDocuments(t *testing.T) {
	docs := ComposeDocuments(testCard())

	if len(docs) != semantic.DocsPerCard {
		t.Fatalf("expected %d documents, got %d", semantic.DocsPerCard, len(docs))
	}

	checks := []struct {
		index int
		want  []string
	}{
		{DocIdentity, []string{"Jane Doe", "CTO", "Acme Corp", "Berlin"}},
		{DocContact, []string{"jane@acme.io", "+1 555 0100", "https://acme.io"}},
		{DocDigital, []string{"linkedin:janedoe"}},
		{DocSummary, []string{"Engineering leader", "software", "executive"}},
	}
	for _, c := range checks {
		for _, want := range c.want {
			if !strings.Contains(docs[c.index], want) {
				t.Errorf("document %d missing %q: %s", c.index, want, docs[c.index])
			}
		}
	}
}

func TestPointPayload(t *testing.T) {
	rec := testCard()
	payload := PointPayload(rec, DocContact, "contact doc")

	if payload["card_id"] != rec.ID {
		t.Errorf("card_id = %v", payload["card_id"])
	}
	if payload["doc_index"] != DocContact {
		t.Errorf("doc_index = %v", payload["doc_index"])
	}
	if payload["content"] != "contact doc" {
		t.Errorf("content = %v", payload["content"])
	}
	if payload["name"] != "Jane Doe" || payload["company"] != "Acme Corp" {
		t.Errorf("flattened metadata wrong: %v", payload)
	}

	src, ok := payload["source_json"].(string)
	if !ok || !strings.Contains(src, "jane@acme.io") {
		t.Errorf("source_json should carry the full record, got %v", payload["source_json"])
	}
}

func TestRecords(t *testing.T) {
	rec := testCard()
	card := EmbeddedCard{
		ComposedCard: ComposedCard{Record: rec, Documents: ComposeDocuments(rec)},
		Embeddings:   [][]float32{{0.1}, {0.2}, {0.3}, {0.4}},
	}

	records := Records(card)
	if len(records) != semantic.DocsPerCard {
		t.Fatalf("expected %d records, got %d", semantic.DocsPerCard, len(records))
	}
	for i, r := range records {
		if r.ID != semantic.PointID(rec.ID, i) {
			t.Errorf("record %d has ID %s, want derived point ID", i, r.ID)
		}
		if r.Payload["doc_index"] != i {
			t.Errorf("record %d doc_index = %v", i, r.Payload["doc_index"])
		}
	}
}

type stubLoader struct {
	data []byte
	ref  domain.ImageRef
	err  error
}

func (s *stubLoader) Load(_ context.Context, _ string) ([]byte, domain.ImageRef, error) {
	return s.data, s.ref, s.err
}

type stubExtractor struct {
	info domain.CardInfo
	err  error
}

func (s *stubExtractor) ExtractCard(_ context.Context, _ []byte, _ string) (domain.CardInfo, error) {
	return s.info, s.err
}

type stubEmbedder struct {
	dims int
	err  error
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

type stubVector struct {
	upserted []semantic.VectorRecord
	err      error
}

func (s *stubVector) Upsert(_ context.Context, records []semantic.VectorRecord) error {
	s.upserted = append(s.upserted, records...)
	return s.err
}

type stubContacts struct {
	people []graph.Person
	err    error
}

func (s *stubContacts) SaveCard(_ context.Context, p graph.Person, _ graph.Company) error {
	s.people = append(s.people, p)
	return s.err
}

func testDeps(loader *stubLoader, extractor *stubExtractor, vector *stubVector, contacts *stubContacts) Deps {
	d := Deps{
		Loader:    loader,
		Extractor: extractor,
		Embedder:  &stubEmbedder{dims: 3},
		Vector:    vector,
		Logger:    slog.New(slog.DiscardHandler),
	}
	if contacts != nil {
		d.Contacts = contacts
	}
	return d
}

func TestPipelineStoresCardUnderImageHash(t *testing.T) {
	rec := testCard()
	loader := &stubLoader{data: []byte("img"), ref: rec.Image}
	vector := &stubVector{}
	contacts := &stubContacts{}

	pipeline := NewPipeline(testDeps(loader, &stubExtractor{info: rec.Info}, vector, contacts))
	result := pipeline(context.Background(), "/cards/jane.jpg")

	stored, err := result.Unwrap()
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if stored.ID != rec.Image.Hash {
		t.Errorf("card ID %q should equal image hash %q", stored.ID, rec.Image.Hash)
	}
	if len(vector.upserted) != semantic.DocsPerCard {
		t.Errorf("expected %d points upserted, got %d", semantic.DocsPerCard, len(vector.upserted))
	}
	if len(contacts.people) != 1 || contacts.people[0].CardID != rec.Image.Hash {
		t.Errorf("contact graph not written: %+v", contacts.people)
	}
}

func TestPipelineRejectsEmptyExtraction(t *testing.T) {
	loader := &stubLoader{data: []byte("img"), ref: testCard().Image}
	pipeline := NewPipeline(testDeps(loader, &stubExtractor{info: domain.CardInfo{}}, &stubVector{}, nil))

	result := pipeline(context.Background(), "/cards/blank.jpg")
	_, err := result.Unwrap()
	if !errors.Is(err, domain.ErrEmptyExtraction) {
		t.Errorf("expected ErrEmptyExtraction, got %v", err)
	}
}

func TestPipelineLoadFailure(t *testing.T) {
	loader := &stubLoader{err: domain.ErrNotAnImage}
	pipeline := NewPipeline(testDeps(loader, &stubExtractor{}, &stubVector{}, nil))

	result := pipeline(context.Background(), "/cards/nope.txt")
	if _, err := result.Unwrap(); !errors.Is(err, domain.ErrNotAnImage) {
		t.Errorf("expected ErrNotAnImage, got %v", err)
	}
}

func TestPipelineContinuesOnGraphFailure(t *testing.T) {
	rec := testCard()
	loader := &stubLoader{data: []byte("img"), ref: rec.Image}
	contacts := &stubContacts{err: errors.New("neo4j down")}

	pipeline := NewPipeline(testDeps(loader, &stubExtractor{info: rec.Info}, &stubVector{}, contacts))
	result := pipeline(context.Background(), "/cards/jane.jpg")

	if _, err := result.Unwrap(); err != nil {
		t.Errorf("graph failure should not fail the pipeline: %v", err)
	}
}

func TestPipelineVectorFailure(t *testing.T) {
	rec := testCard()
	loader := &stubLoader{data: []byte("img"), ref: rec.Image}
	vector := &stubVector{err: errors.New("qdrant unavailable")}

	pipeline := NewPipeline(testDeps(loader, &stubExtractor{info: rec.Info}, vector, nil))
	result := pipeline(context.Background(), "/cards/jane.jpg")

	if _, err := result.Unwrap(); err == nil {
		t.Error("expected pipeline error on vector failure")
	}
}
