// Package llm talks to hosted completion models.
//
// Every provider implements Completer. Requests carry a JSON object schema and
// providers are expected to return a single JSON document that conforms to it.
package llm

import (
	"context"
	"errors"

	"github.com/ashureev/estimabot/internal/domain"
)

// ErrEmptyResponse is returned when the provider answered without content.
var ErrEmptyResponse = errors.New("empty completion response")

// Completer produces one completion for a conversation.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Request is a single completion call.
type Request struct {
	System    string
	Turns     []domain.Turn
	Schema    Schema
	MaxTokens int
}

// Schema describes a flat JSON object whose properties are all required
// strings and which admits no other properties.
type Schema struct {
	Name        string
	Description string
	Properties  []Property
}

// Property is one string field of a Schema.
type Property struct {
	Name        string
	Description string
}

// JSONSchema renders s as a JSON Schema document.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	required := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		props[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		required = append(required, p.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
