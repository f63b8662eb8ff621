package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel задаёт модель Gemini по умолчанию.
const DefaultModel = "gemini-2.0-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIComposer генерирует текст счёта через Gemini API.
type GenAIComposer struct {
	models contentGenerator
	model  string
}

// NewGenAIComposer создаёт клиента Gemini с указанным API-ключом.
func NewGenAIComposer(ctx context.Context, apiKey, model string) (*GenAIComposer, error) {
	if apiKey == "" {
		return nil, errors.New("compliance: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIComposer{models: client.Models, model: model}, nil
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"compliantInvoice": {
			Type:        genai.TypeString,
			Description: "The legally compliant invoice text.",
		},
	},
	Required: []string{"compliantInvoice"},
}

// Compose возвращает юридически корректный текст счёта.
func (c *GenAIComposer) Compose(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}

	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema,
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return parseResponse(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
