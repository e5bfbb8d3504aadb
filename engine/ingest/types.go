package ingest

import "github.com/cardex-ai/cardex/engine/domain"

// LoadedImage is a card image pulled into memory with its content hash.
type LoadedImage struct {
	Data []byte
	Ref  domain.ImageRef
}

// ExtractedCard is a loaded image with its extraction result. AddCard carries
// the record forward; the raw bytes are dropped after extraction.
type ExtractedCard struct {
	Record domain.CardRecord
}

// ComposedCard is a record with its searchable documents composed.
type ComposedCard struct {
	Record    domain.CardRecord
	Documents []string
}

// EmbeddedCard is a composed card with one embedding per document.
type EmbeddedCard struct {
	ComposedCard
	Embeddings [][]float32
}
