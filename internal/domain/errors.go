package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy of the answering pipeline. Per-source and per-page errors
// are recoverable; the rest abort the current answer cycle or startup.
var (
	// ErrFetch indicates a source could not be downloaded.
	ErrFetch = errors.New("fetch failed")

	// ErrParse indicates a source or page could not be turned into text.
	ErrParse = errors.New("parse failed")

	// ErrNoUsableDocuments indicates every configured source failed.
	ErrNoUsableDocuments = errors.New("no usable documents")

	// ErrEmbeddingService indicates the embedding service failed or returned malformed vectors.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGeneration indicates the generation service failed or timed out.
	ErrGeneration = errors.New("generation error")

	// ErrWebhookRegistration indicates the webhook could not be checked or registered.
	ErrWebhookRegistration = errors.New("webhook registration error")
)

// FetchError records a failed download of one source.
type FetchError struct {
	Source SourceRef
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ParseError records a source or page that could not be parsed.
// Page is zero when the whole document failed.
type ParseError struct {
	Source SourceRef
	Page   int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("parse %s page %d: %v", e.Source, e.Page, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// NoUsableDocumentsError is returned when no source yielded any text.
// Failures holds the per-source causes in source order.
type NoUsableDocumentsError struct {
	Failures []error
}

func (e *NoUsableDocumentsError) Error() string {
	if len(e.Failures) == 0 {
		return ErrNoUsableDocuments.Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNoUsableDocuments, strings.Join(parts, "; "))
}

func (e *NoUsableDocumentsError) Unwrap() []error { return e.Failures }

func (e *NoUsableDocumentsError) Is(target error) bool { return target == ErrNoUsableDocuments }

// EmbeddingError wraps a failure of the embedding service.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrEmbeddingService, e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbeddingService }

// GenerationError wraps a failure of the generation service.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrGeneration, e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// WebhookRegistrationError aborts startup.
type WebhookRegistrationError struct {
	URL string
	Op  string
	Err error
}

func (e *WebhookRegistrationError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrWebhookRegistration, e.Op, e.URL, e.Err)
}

func (e *WebhookRegistrationError) Unwrap() error { return e.Err }

func (e *WebhookRegistrationError) Is(target error) bool { return target == ErrWebhookRegistration }
