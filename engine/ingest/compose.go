package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cardex-ai/cardex/engine/domain"
	"github.com/cardex-ai/cardex/engine/semantic"
)

// Document indexes within a card's point set.
const (
	DocIdentity = iota
	DocContact
	DocDigital
	DocSummary
)

// ComposeDocuments renders the fixed set of searchable documents for a card:
// professional identity, contact details, digital presence, and the model's
// contextual summary. Order is stable; doc index is part of point identity.
func ComposeDocuments(rec domain.CardRecord) []string {
	info := rec.Info
	primary := info.PrimaryInfo
	summary := info.ContextualSummary

	identity := fmt.Sprintf("%s is a %s at %s in %s, based in %s.",
		primary.Name.Value,
		primary.JobTitle.Value,
		primary.Company.TextValue,
		summary.IndustryInference,
		info.Location(),
	)

	contact := fmt.Sprintf("Contact: %s | Phone: %s | Location: %s | Website: %s",
		info.PrimaryEmail(),
		info.PrimaryPhone(),
		info.Location(),
		info.DigitalPresence.Website.Value,
	)

	handles := make([]string, 0, len(info.DigitalPresence.SocialMedia))
	for _, sm := range info.DigitalPresence.SocialMedia {
		handles = append(handles, sm.Platform+":"+sm.Handle)
	}
	digital := "Social media: " + strings.Join(handles, ", ")

	professional := fmt.Sprintf("Professional summary: %s Expertise in %s. Seniority: %s",
		summary.ProfessionalSummary,
		summary.IndustryInference,
		summary.SeniorityEstimate,
	)

	return []string{identity, contact, digital, professional}
}

// PointPayload builds the Qdrant payload for one document of a card. Every
// point of a card carries the full flattened metadata plus the original
// record JSON, so any single hit can reconstruct the whole card.
func PointPayload(rec domain.CardRecord, docIndex int, content string) map[string]any {
	sourceJSON, _ := json.Marshal(rec)

	return map[string]any{
		"content":      content,
		"card_id":      rec.ID,
		"doc_index":    docIndex,
		"name":         rec.Info.PrimaryInfo.Name.Value,
		"job_title":    rec.Info.PrimaryInfo.JobTitle.Value,
		"company":      rec.Info.PrimaryInfo.Company.TextValue,
		"email":        rec.Info.PrimaryEmail(),
		"location":     rec.Info.Location(),
		"website":      rec.Info.DigitalPresence.Website.Value,
		"industry":     rec.Info.ContextualSummary.IndustryInference,
		"seniority":    rec.Info.ContextualSummary.SeniorityEstimate,
		"image_hash":   rec.Image.Hash,
		"image_source": rec.Image.Source,
		"source_json":  string(sourceJSON),
	}
}

// Records converts an embedded card into the vector records to upsert.
func Records(card EmbeddedCard) []semantic.VectorRecord {
	records := make([]semantic.VectorRecord, len(card.Documents))
	for i, doc := range card.Documents {
		records[i] = semantic.VectorRecord{
			ID:        semantic.PointID(card.Record.ID, i),
			Embedding: card.Embeddings[i],
			Payload:   PointPayload(card.Record, i, doc),
		}
	}
	return records
}
