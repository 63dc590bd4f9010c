package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ashureev/estimabot/internal/domain"
)

// GeminiClient completes through the Gemini API with a response schema.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini client for model.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string { return g.model }

// Complete implements Completer.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	cfg := geminiConfig(req)
	result, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(req.Turns), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return text, nil
}

func geminiConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		//nolint:gosec // bounded by configuration
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if len(req.Schema.Properties) > 0 {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = geminiSchema(req.Schema)
	}
	return cfg
}

func geminiSchema(s Schema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(s.Properties))
	required := make([]string, 0, len(s.Properties))
	order := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		props[p.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: p.Description,
		}
		required = append(required, p.Name)
		order = append(order, p.Name)
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Description:      s.Description,
		Properties:       props,
		Required:         required,
		PropertyOrdering: order,
	}
}

const (
	geminiRoleUser  = "user"
	geminiRoleModel = "model"
)

func geminiContents(turns []domain.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := geminiRoleUser
		if t.Role == domain.RoleAssistant {
			role = geminiRoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Content}},
		})
	}
	return contents
}
