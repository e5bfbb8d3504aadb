package extract

import "github.com/revrost/go-openrouter/jsonschema"

// confidence is the rating attached to every extracted field.
var confidence = jsonschema.Definition{
	Type: jsonschema.String,
	Enum: []string{"high", "medium", "low"},
}

func ratedString(desc string) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"value":      {Type: jsonschema.String, Description: desc},
			"confidence": confidence,
		},
		Required:             []string{"value", "confidence"},
		AdditionalProperties: false,
	}
}

func contactEntry(typeValues []string) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"value":      {Type: jsonschema.String},
			"type":       {Type: jsonschema.String, Enum: typeValues},
			"confidence": confidence,
		},
		Required:             []string{"value", "type", "confidence"},
		AdditionalProperties: false,
	}
}

// CardSchema is the strict response schema for card extraction. Its shape
// mirrors domain.CardInfo field for field.
var CardSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"primary_info": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"name":      ratedString("Full name of the person"),
				"job_title": ratedString("Job title as printed or inferred"),
				"company": {
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"text_value":        {Type: jsonschema.String, Description: "Company or organization name"},
						"logo_identified":   {Type: jsonschema.Boolean, Description: "Company identified from a logo"},
						"qrcode_identified": {Type: jsonschema.Boolean, Description: "Company identified from a QR code"},
						"confidence":        confidence,
					},
					Required:             []string{"text_value", "logo_identified", "qrcode_identified", "confidence"},
					AdditionalProperties: false,
				},
			},
			Required:             []string{"name", "job_title", "company"},
			AdditionalProperties: false,
		},
		"contact_info": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"emails":    {Type: jsonschema.Array, Items: ptr(contactEntry([]string{"work", "personal"}))},
				"phones":    {Type: jsonschema.Array, Items: ptr(contactEntry([]string{"work", "mobile", "fax"}))},
				"addresses": {Type: jsonschema.Array, Items: ptr(contactEntry([]string{"work", "headquarters"}))},
			},
			Required:             []string{"emails", "phones", "addresses"},
			AdditionalProperties: false,
		},
		"digital_presence": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"website": ratedString("Primary website URL"),
				"social_media": {
					Type: jsonschema.Array,
					Items: &jsonschema.Definition{
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"platform":        {Type: jsonschema.String, Description: "linkedin, twitter, etc."},
							"handle":          {Type: jsonschema.String},
							"identified_from": {Type: jsonschema.String, Enum: []string{"text", "icon"}},
							"confidence":      confidence,
						},
						Required:             []string{"platform", "handle", "identified_from", "confidence"},
						AdditionalProperties: false,
					},
				},
			},
			Required:             []string{"website", "social_media"},
			AdditionalProperties: false,
		},
		"contextual_summary": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"professional_summary": {Type: jsonschema.String, Description: "Comprehensive summary for retrieval"},
				"industry_inference":   {Type: jsonschema.String, Description: "Inferred industry and field"},
				"seniority_estimate":   {Type: jsonschema.String, Description: "Seniority estimate with reasoning"},
			},
			Required:             []string{"professional_summary", "industry_inference", "seniority_estimate"},
			AdditionalProperties: false,
		},
	},
	Required:             []string{"primary_info", "contact_info", "digital_presence", "contextual_summary"},
	AdditionalProperties: false,
}

func ptr(d jsonschema.Definition) *jsonschema.Definition { return &d }
