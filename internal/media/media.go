// Package media downloads YouTube audio or video on request and hands the
// file to the chat transport.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/estimabot/internal/domain"
)

// Acquisition failure kinds.
var (
	ErrNoStreamFound = errors.New("no stream found for format")
	ErrExtraction    = errors.New("extraction failed")
	ErrTimeout       = errors.New("acquisition timed out")
	ErrSiteBlocked   = errors.New("site blocked the download")
)

// Validation failures.
var (
	ErrEmptyArtifact    = errors.New("artifact is missing or empty")
	ErrOversizeArtifact = errors.New("artifact exceeds the upload ceiling")
)

// Request asks a backend for one file.
type Request struct {
	URL    string
	Format domain.Format
	// Dir is an empty directory owned by the caller. Backends write only
	// inside it.
	Dir string
}

// Artifact is a file produced by a backend. Metadata fields are zero when the
// backend could not determine them.
type Artifact struct {
	Path     string
	Size     int64
	Title    string
	Author   string
	Duration time.Duration
	Width    int
	Height   int
}

// Acquirer downloads media. Implementations must be safe to call again with
// the same request and must not leave files behind on failure.
type Acquirer interface {
	Acquire(ctx context.Context, req Request) (*Artifact, error)
	Name() string
}

// AcquisitionError carries the failure kind and the backend's detail.
type AcquisitionError struct {
	Kind    error
	Backend string
	Err     error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Backend, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Backend, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *AcquisitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func acquisitionError(backend string, kind, err error) error {
	return &AcquisitionError{Kind: kind, Backend: backend, Err: err}
}

// OversizeError reports a video above the upload ceiling.
type OversizeError struct {
	Size  int64
	Limit int64
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("%v: %d > %d bytes", ErrOversizeArtifact, e.Size, e.Limit)
}

func (e *OversizeError) Unwrap() error { return ErrOversizeArtifact }

// outcome labels an acquisition result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOversizeArtifact):
		return "oversize"
	case errors.Is(err, ErrEmptyArtifact):
		return "empty"
	case errors.Is(err, ErrNoStreamFound):
		return "no_stream"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrSiteBlocked):
		return "site_blocked"
	default:
		return "error"
	}
}
