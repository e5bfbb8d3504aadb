package semantic

// DocsPerCard is the number of searchable documents composed per card:
// identity, contact, digital presence, and professional summary.
const DocsPerCard = 4

// VectorRecord is a single vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, card_id, doc_index, card metadata
}

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Content  string            `json:"content"`
	CardID   string            `json:"card_id"`
	DocIndex int               `json:"doc_index"`
	Meta     map[string]string `json:"meta"`
}

// StoredDoc is a point fetched by ID, payload flattened like SearchResult.
type StoredDoc struct {
	ID      string
	CardID  string
	Content string
	Meta    map[string]string
}
