package estimate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/estimabot/internal/domain"
	"github.com/ashureev/estimabot/internal/llm"
	"github.com/ashureev/estimabot/internal/messages"
	"github.com/ashureev/estimabot/internal/session"
)

type fakeCompleter struct {
	response string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func (f *fakeCompleter) Model() string { return "fake" }

type fakeRenderer struct {
	heading  string
	markdown string
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, heading, md string) ([]byte, error) {
	f.heading = heading
	f.markdown = md
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 " + heading), nil
}

func newTestPipeline(c *fakeCompleter, r *fakeRenderer) (*Pipeline, *session.Store) {
	store := session.New(session.Policy{})
	return NewPipeline(store, c, r, messages.Default(), Options{MaxTokens: 5000}), store
}

func TestScenarioHeadingFromTitle(t *testing.T) {
	c := &fakeCompleter{response: `{"pdf_title":"Calle Falsa 123","content":"**Propietario:** Juan\n\n### **Trabajos a Realizar:**\n\n1. Pintura pared\n\n### **Costo Total del Proyecto:** $500"}`}
	r := &fakeRenderer{}
	p, store := newTestPipeline(c, r)
	ctx := context.Background()

	p.SubmitTurn(1, "Juan, Calle Falsa 123, pintura pared, $500", false)
	est, err := p.Generate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Calle Falsa 123", est.Title)

	doc, err := p.Render(ctx, est)
	require.NoError(t, err)
	assert.Equal(t, "Calle Falsa 123", r.heading)
	assert.Contains(t, r.markdown, "Pintura")
	assert.Equal(t, "Calle Falsa 123.pdf", doc.FileName)
	assert.Equal(t, DocumentMIMEType, doc.MIMEType)
	assert.NotEmpty(t, doc.Data)

	p.Commit(1, est)
	history := store.History(1)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleAssistant, history[1].Role)
	assert.Equal(t, est.Content, history[1].Content)

	require.Len(t, c.requests, 1)
	assert.Equal(t, 5000, c.requests[0].MaxTokens)
	assert.Equal(t, "estimate", c.requests[0].Schema.Name)
	assert.NotEmpty(t, c.requests[0].System)
}

func TestScenarioRevisionIncludesPriorEstimate(t *testing.T) {
	c := &fakeCompleter{response: `{"pdf_title":"Calle Falsa 123","content":"### **Costo Total del Proyecto:** $500"}`}
	p, _ := newTestPipeline(c, &fakeRenderer{})
	ctx := context.Background()

	p.SubmitTurn(7, "Calle Falsa 123, pintura, $500", false)
	est, err := p.Generate(ctx, 7)
	require.NoError(t, err)
	p.Commit(7, est)

	c.response = `{"pdf_title":"Calle Falsa 123","content":"### **Costo Total del Proyecto:** $800"}`
	p.SubmitTurn(7, "cambiá el costo a $800", true)
	_, err = p.Generate(ctx, 7)
	require.NoError(t, err)

	require.Len(t, c.requests, 2)
	turns := c.requests[1].Turns
	require.Len(t, turns, 3)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Contains(t, turns[1].Content, "$500")
	assert.Equal(t, domain.RoleUser, turns[2].Role)
	assert.Equal(t, "Modificar el presupuesto anterior: cambiá el costo a $800", turns[2].Content)
}

func TestResetStartsNewConversation(t *testing.T) {
	c := &fakeCompleter{response: `{"pdf_title":"Calle Falsa 123","content":"Pintura"}`}
	p, store := newTestPipeline(c, &fakeRenderer{})
	ctx := context.Background()

	p.SubmitTurn(7, "Calle Falsa 123, pintura", false)
	est, err := p.Generate(ctx, 7)
	require.NoError(t, err)
	p.Commit(7, est)
	require.Len(t, store.History(7), 2)

	p.Reset(7)
	assert.Empty(t, store.History(7))

	p.SubmitTurn(7, "Av. Siempreviva 742, plomería", false)
	_, err = p.Generate(ctx, 7)
	require.NoError(t, err)
	require.Len(t, c.requests, 2)
	assert.Len(t, c.requests[1].Turns, 1)
}

func TestRenderFallsBackToDefaultHeading(t *testing.T) {
	r := &fakeRenderer{}
	p, _ := newTestPipeline(&fakeCompleter{}, r)

	doc, err := p.Render(context.Background(), domain.Estimate{Title: "  ", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Presupuesto", r.heading)
	assert.Equal(t, "Presupuesto.pdf", doc.FileName)
}

func TestGenerateFailuresKeepHistory(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "provider error", err: errors.New("boom")},
		{name: "not json", response: "lo siento"},
		{name: "missing content", response: `{"pdf_title":"x"}`},
		{name: "missing title", response: `{"content":"x"}`},
		{name: "extra field", response: `{"pdf_title":"x","content":"y","notes":"z"}`},
		{name: "trailing data", response: `{"pdf_title":"x","content":"y"} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCompleter{response: tt.response, err: tt.err}
			p, store := newTestPipeline(c, &fakeRenderer{})

			p.SubmitTurn(3, "pintar", false)
			_, err := p.Generate(context.Background(), 3)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCompletion))

			history := store.History(3)
			require.Len(t, history, 1)
			assert.Equal(t, "pintar", history[0].Content)
		})
	}
}

func TestRenderFailure(t *testing.T) {
	p, _ := newTestPipeline(&fakeCompleter{}, &fakeRenderer{err: errors.New("chrome died")})

	_, err := p.Render(context.Background(), domain.Estimate{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrRender)
}

func TestGenerateDropsEmptyLabels(t *testing.T) {
	content := "**Fecha:** 12/03/2024\n\n**Contacto:** [contacto]\n\n**Propietaria:**\n\n---\n\n### **Trabajos a Realizar:**\n\n1. Pintar"
	c := &fakeCompleter{response: `{"pdf_title":"","content":` + quote(content) + `}`}
	p, _ := newTestPipeline(c, &fakeRenderer{})

	p.SubmitTurn(1, "pintar el 12/03/2024", false)
	est, err := p.Generate(context.Background(), 1)
	require.NoError(t, err)

	assert.NotContains(t, est.Content, "Contacto")
	assert.NotContains(t, est.Content, "Propietaria")
	assert.Contains(t, est.Content, "**Fecha:** 12/03/2024")
	assert.Contains(t, est.Content, "Trabajos a Realizar")
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
