package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cardex-ai/cardex/engine/domain"
)

// ParseCardJSON decodes model output into the extraction schema. Some models
// wrap structured output in markdown fences despite the response format, so
// fences are stripped before decoding.
func ParseCardJSON(content string) (domain.CardInfo, error) {
	cleaned := stripFences(content)

	var info domain.CardInfo
	if err := json.Unmarshal([]byte(cleaned), &info); err != nil {
		return domain.CardInfo{}, fmt.Errorf("parse card json: %w", err)
	}

	cleanInfo(&info)
	return info, nil
}

// stripFences removes ```json ... ``` or ``` ... ``` wrappers.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, wrapper := range []string{"```json", "```"} {
		if strings.HasPrefix(s, wrapper) && strings.HasSuffix(s, "```") {
			s = strings.TrimSpace(s[len(wrapper) : len(s)-3])
		}
	}
	return s
}

// cleanInfo trims whitespace and drops contact entries with no value.
func cleanInfo(info *domain.CardInfo) {
	trim := func(s *string) { *s = strings.TrimSpace(*s) }

	trim(&info.PrimaryInfo.Name.Value)
	trim(&info.PrimaryInfo.JobTitle.Value)
	trim(&info.PrimaryInfo.Company.TextValue)
	trim(&info.DigitalPresence.Website.Value)
	trim(&info.ContextualSummary.ProfessionalSummary)
	trim(&info.ContextualSummary.IndustryInference)
	trim(&info.ContextualSummary.SeniorityEstimate)

	info.ContactInfo.Emails = cleanEntries(info.ContactInfo.Emails)
	info.ContactInfo.Phones = cleanEntries(info.ContactInfo.Phones)
	info.ContactInfo.Addresses = cleanEntries(info.ContactInfo.Addresses)

	media := info.DigitalPresence.SocialMedia[:0]
	for _, sm := range info.DigitalPresence.SocialMedia {
		sm.Platform = strings.TrimSpace(sm.Platform)
		sm.Handle = strings.TrimSpace(sm.Handle)
		if sm.Platform == "" && sm.Handle == "" {
			continue
		}
		media = append(media, sm)
	}
	info.DigitalPresence.SocialMedia = media
}

func cleanEntries(entries []domain.ContactEntry) []domain.ContactEntry {
	out := entries[:0]
	for _, e := range entries {
		e.Value = strings.TrimSpace(e.Value)
		if e.Value == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}
