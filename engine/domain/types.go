// Package domain defines core domain types, constants, and validation for the
// cardex pipeline. It acts as the validation gate at pipeline entry points.
package domain

// Confidence levels reported by the extraction model per field.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Field is a single extracted value with a model confidence rating.
type Field struct {
	Value      string `json:"value"`
	Confidence string `json:"confidence,omitempty"`
}

// Company is the extracted company block. The model may identify the company
// from a logo or QR code even when it is not spelled out in text.
type Company struct {
	TextValue        string `json:"text_value"`
	LogoIdentified   bool   `json:"logo_identified"`
	QRCodeIdentified bool   `json:"qrcode_identified"`
	Confidence       string `json:"confidence,omitempty"`
}

// ContactEntry is an email, phone, or address with its usage type
// (work/personal, work/mobile/fax, work/headquarters).
type ContactEntry struct {
	Value      string `json:"value"`
	Type       string `json:"type,omitempty"`
	Confidence string `json:"confidence,omitempty"`
}

// SocialMedia is a social handle, possibly identified from an icon alone.
type SocialMedia struct {
	Platform       string `json:"platform"`
	Handle         string `json:"handle"`
	IdentifiedFrom string `json:"identified_from,omitempty"` // text or icon
	Confidence     string `json:"confidence,omitempty"`
}

// PrimaryInfo holds the headline fields of a card.
type PrimaryInfo struct {
	Name     Field   `json:"name"`
	JobTitle Field   `json:"job_title"`
	Company  Company `json:"company"`
}

// ContactInfo holds all contact methods found on a card.
type ContactInfo struct {
	Emails    []ContactEntry `json:"emails,omitempty"`
	Phones    []ContactEntry `json:"phones,omitempty"`
	Addresses []ContactEntry `json:"addresses,omitempty"`
}

// DigitalPresence holds website and social media references.
type DigitalPresence struct {
	Website     Field         `json:"website"`
	SocialMedia []SocialMedia `json:"social_media,omitempty"`
}

// ContextualSummary holds free-text inference the model derives from the card
// as a whole, used as retrieval context.
type ContextualSummary struct {
	ProfessionalSummary string `json:"professional_summary"`
	IndustryInference   string `json:"industry_inference,omitempty"`
	SeniorityEstimate   string `json:"seniority_estimate,omitempty"`
}

// CardInfo is the fixed extraction schema. Extraction is best-effort: fields
// the model cannot read stay empty, the shape never changes with card layout.
type CardInfo struct {
	PrimaryInfo       PrimaryInfo       `json:"primary_info"`
	ContactInfo       ContactInfo       `json:"contact_info"`
	DigitalPresence   DigitalPresence   `json:"digital_presence"`
	ContextualSummary ContextualSummary `json:"contextual_summary"`
}

// ImageRef describes the source image a card was extracted from.
type ImageRef struct {
	Hash     string `json:"hash"`   // sha256 hex of the raw bytes
	Source   string `json:"source"` // local path or URL
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// CardRecord is a stored business card. ID is the image content hash, so
// re-adding the same image yields the same record identity. Records are
// immutable once stored.
type CardRecord struct {
	ID    string   `json:"id"`
	Image ImageRef `json:"image"`
	Info  CardInfo `json:"info"`
}

// SearchQuery is a user query against the card collection.
type SearchQuery struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

// Card field accessors used when composing searchable documents. They absorb
// the empty-slice cases so callers never index into possibly-empty lists.

// PrimaryEmail returns the first extracted email value, or "".
func (c CardInfo) PrimaryEmail() string {
	if len(c.ContactInfo.Emails) == 0 {
		return ""
	}
	return c.ContactInfo.Emails[0].Value
}

// PrimaryPhone returns the first extracted phone value, or "".
func (c CardInfo) PrimaryPhone() string {
	if len(c.ContactInfo.Phones) == 0 {
		return ""
	}
	return c.ContactInfo.Phones[0].Value
}

// Location returns the first extracted address value, or "".
func (c CardInfo) Location() string {
	if len(c.ContactInfo.Addresses) == 0 {
		return ""
	}
	return c.ContactInfo.Addresses[0].Value
}
