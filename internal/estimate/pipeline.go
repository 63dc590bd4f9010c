// Package estimate turns a conversation about a job into a PDF estimate.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/estimabot/internal/chat"
	"github.com/ashureev/estimabot/internal/domain"
	"github.com/ashureev/estimabot/internal/llm"
	"github.com/ashureev/estimabot/internal/messages"
	"github.com/ashureev/estimabot/internal/metrics"
)

// DocumentMIMEType is the MIME type of delivered estimates. A reply to a
// document of this type is a revision.
const DocumentMIMEType = "application/pdf"

var (
	// ErrCompletion is returned when the model call fails or its answer
	// cannot be decoded.
	ErrCompletion = errors.New("estimate completion failed")

	// ErrRender is returned when the PDF cannot be produced.
	ErrRender = errors.New("estimate render failed")
)

// Conversations is the per-user turn history.
type Conversations interface {
	Append(userID int64, turn domain.Turn)
	History(userID int64) []domain.Turn
	Reset(userID int64)
}

// Renderer prints Markdown under a heading to a PDF.
type Renderer interface {
	Render(ctx context.Context, heading, markdown string) ([]byte, error)
}

// Pipeline runs submit → generate → render → commit for one user at a time.
type Pipeline struct {
	conversations Conversations
	completer     llm.Completer
	renderer      Renderer
	catalog       *messages.Catalog
	metrics       *metrics.Recorder
	maxTokens     int
	timeout       time.Duration
}

// Options configures a Pipeline.
type Options struct {
	MaxTokens int
	Timeout   time.Duration
	Metrics   *metrics.Recorder
}

// NewPipeline creates an estimate pipeline.
func NewPipeline(conv Conversations, completer llm.Completer, renderer Renderer, catalog *messages.Catalog, opts Options) *Pipeline {
	return &Pipeline{
		conversations: conv,
		completer:     completer,
		renderer:      renderer,
		catalog:       catalog,
		metrics:       opts.Metrics,
		maxTokens:     opts.MaxTokens,
		timeout:       opts.Timeout,
	}
}

// Reset forgets the user's conversation so the next message starts a new
// estimate.
func (p *Pipeline) Reset(userID int64) {
	p.conversations.Reset(userID)
}

// SubmitTurn appends the user's text to the conversation. Revisions are
// framed as a request to modify the previous estimate.
func (p *Pipeline) SubmitTurn(userID int64, text string, isRevision bool) {
	if isRevision {
		text = p.catalog.RevisionPrefix + text
	}
	p.conversations.Append(userID, domain.UserTurn(text))
}

// Generate asks the model for an estimate covering the whole conversation.
// The history is not modified.
func (p *Pipeline) Generate(ctx context.Context, userID int64) (domain.Estimate, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := p.completer.Complete(ctx, llm.Request{
		System:    systemPrompt,
		Turns:     p.conversations.History(userID),
		Schema:    estimateSchema,
		MaxTokens: p.maxTokens,
	})
	p.metrics.ObserveCompletion(p.completer.Model(), time.Since(start))
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	est, err := decodeEstimate(raw)
	if err != nil {
		slog.Warn("Malformed completion", "user_id", userID, "error", err, "bytes", len(raw))
		return domain.Estimate{}, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	est.Content = pruneEmptyFields(est.Content)
	return est, nil
}

// Heading returns the document heading for est.
func (p *Pipeline) Heading(est domain.Estimate) string {
	if strings.TrimSpace(est.Title) == "" {
		return p.catalog.DefaultHeading
	}
	return est.Title
}

// Render produces the PDF document for est.
func (p *Pipeline) Render(ctx context.Context, est domain.Estimate) (chat.Document, error) {
	heading := p.Heading(est)
	data, err := p.renderer.Render(ctx, heading, est.Content)
	if err != nil {
		return chat.Document{}, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return chat.Document{
		FileName: fileName(heading),
		MIMEType: DocumentMIMEType,
		Data:     data,
	}, nil
}

// Commit records the delivered estimate as the assistant's turn.
func (p *Pipeline) Commit(userID int64, est domain.Estimate) {
	p.conversations.Append(userID, domain.AssistantTurn(est.Content))
}
