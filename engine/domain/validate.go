package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minQueryLength = 3
	maxQueryLength = 512

	// MaxResults is the largest result count a single search may request.
	MaxResults = 50
	// DefaultResults is used when the caller does not specify a count.
	DefaultResults = 5

	// MaxImageBytes caps the size of a card image we are willing to load.
	MaxImageBytes = 20 << 20
)

// hashRegex matches a sha256 hex digest, the shape of every card ID.
var hashRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidateImageSource checks that a source string is a plausible local path
// or http(s) URL before any bytes are fetched.
func ValidateImageSource(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return NewValidationError("source", source, ErrInvalidImageSource)
	}
	if strings.ContainsRune(source, '\x00') {
		return NewValidationError("source", source, ErrInvalidImageSource)
	}
	// Reject non-http schemes outright; anything without a scheme is a path.
	if i := strings.Index(source, "://"); i >= 0 {
		scheme := strings.ToLower(source[:i])
		if scheme != "http" && scheme != "https" {
			return NewValidationError("source", source, ErrInvalidImageSource)
		}
	}
	return nil
}

// ValidateQuery validates a search query.
func ValidateQuery(q SearchQuery) error {
	text := strings.TrimSpace(q.Text)

	if utf8.RuneCountInString(text) < minQueryLength {
		return NewValidationError("text", text, ErrQueryTooShort)
	}
	if utf8.RuneCountInString(text) > maxQueryLength {
		return NewValidationError("text", text, ErrQueryTooLong)
	}
	if q.Limit < 0 || q.Limit > MaxResults {
		return NewValidationError("limit", fmt.Sprintf("%d", q.Limit), ErrInvalidLimit)
	}
	return nil
}

// ValidateCardID checks the card identifier shape (sha256 hex).
func ValidateCardID(id string) error {
	if !hashRegex.MatchString(id) {
		return NewValidationError("id", id, ErrCardNotFound)
	}
	return nil
}

// ValidateCardInfo checks an extraction result before storage. Extraction is
// best-effort, so only the fields the whole system keys on are required: a
// card with neither a name nor a company is not indexable.
func ValidateCardInfo(info CardInfo) error {
	name := strings.TrimSpace(info.PrimaryInfo.Name.Value)
	company := strings.TrimSpace(info.PrimaryInfo.Company.TextValue)
	if name == "" && company == "" {
		return NewValidationError("primary_info", "", ErrEmptyExtraction)
	}
	return nil
}
