package graph

import "strings"

// Person is a card holder node, keyed by card ID.
type Person struct {
	CardID  string `json:"card_id"`
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// Company is an organization node, keyed by its normalized name.
type Company struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Website  string `json:"website,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// CompanyKey normalizes a company name into a stable node key, so "Acme Corp"
// and "acme corp." land on the same node.
func CompanyKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSuffix(key, ".")
	return strings.Join(strings.Fields(key), " ")
}

func personToMap(p Person) map[string]any {
	return map[string]any{
		"card_id": p.CardID,
		"name":    p.Name,
		"title":   p.Title,
		"email":   p.Email,
		"company": p.Company,
	}
}

func companyToMap(c Company) map[string]any {
	return map[string]any{
		"key":      c.Key,
		"name":     c.Name,
		"website":  c.Website,
		"industry": c.Industry,
	}
}

func personFromProps(props map[string]any) Person {
	str := func(k string) string {
		if v, ok := props[k].(string); ok {
			return v
		}
		return ""
	}
	return Person{
		CardID:  str("card_id"),
		Name:    str("name"),
		Title:   str("title"),
		Email:   str("email"),
		Company: str("company"),
	}
}
