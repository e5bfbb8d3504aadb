// Package extract turns a business-card image into the fixed domain.CardInfo
// schema using an OpenRouter vision model with strict structured output.
package extract

import (
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/revrost/go-openrouter"
	"golang.org/x/time/rate"

	"github.com/cardex-ai/cardex/engine/domain"
)

// DefaultModel is used when no model is configured. Must support vision and
// structured output.
const DefaultModel = "google/gemini-2.0-flash-001"

//go:embed prompt.txt
var extractionPrompt string

// Client extracts card data via OpenRouter.
type Client struct {
	or      *openrouter.Client
	model   string
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClient creates an extraction client. The limiter keeps request bursts to
// the hosted model within provider limits.
func NewClient(token, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		or: openrouter.NewClient(token,
			openrouter.WithXTitle("cardex"),
			openrouter.WithHTTPReferer("https://github.com/cardex-ai/cardex"),
		),
		model:   model,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		timeout: 45 * time.Second,
	}
}

// ExtractCard sends the image to the vision model and returns the parsed,
// cleaned extraction. Missing fields come back empty, never an error; the
// error path is reserved for transport and malformed-response failures.
func (c *Client) ExtractCard(ctx context.Context, image []byte, mimeType string) (domain.CardInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.CardInfo{}, fmt.Errorf("extract: rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	request := openrouter.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		MaxTokens:   2048,
		Messages: []openrouter.ChatCompletionMessage{
			openrouter.SystemMessage(extractionPrompt),
			openrouter.UserMessageWithImage("Extract all information from this business card", dataURL),
		},
		Provider: &openrouter.ChatProvider{
			DataCollection: openrouter.DataCollectionDeny,
			Sort:           openrouter.ProviderSortingPrice,
		},
		ResponseFormat: &openrouter.ChatCompletionResponseFormat{
			Type: openrouter.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openrouter.ChatCompletionResponseFormatJSONSchema{
				Name:   "business_card",
				Schema: &CardSchema,
				Strict: true,
			},
		},
	}

	completion, err := c.or.CreateChatCompletion(ctx, request)
	if err != nil {
		return domain.CardInfo{}, fmt.Errorf("extract: completion: %w", err)
	}

	if len(completion.Choices) == 0 {
		return domain.CardInfo{}, fmt.Errorf("extract: completion returned no choices")
	}

	content := completion.Choices[0].Message.Content.Text
	if content == "" {
		return domain.CardInfo{}, fmt.Errorf("extract: completion returned no content")
	}

	info, err := ParseCardJSON(content)
	if err != nil {
		return domain.CardInfo{}, fmt.Errorf("extract: %w", err)
	}
	return info, nil
}
