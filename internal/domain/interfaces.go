package domain

import "context"

// SourceRef identifies one document by URL.
type SourceRef string

// PageText is the extracted text of a single document page.
type PageText struct {
	Source SourceRef
	Page   int
	Text   string
}

// Chunk is a contiguous slice of the concatenated corpus used for indexing.
// ID is the chunk's ordinal in the produced sequence.
type Chunk struct {
	ID     int
	Offset int
	Text   string
	Source SourceRef
	Page   int
}

// SearchResult represents a matching chunk and its distance to the query.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// Embedder converts free text into numeric vectors.
type Embedder interface {
	Name() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits page text into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(pages []PageText) []Chunk
}

// Acquirer fetches sources and extracts their page text.
type Acquirer interface {
	Acquire(ctx context.Context, sources []SourceRef) ([]PageText, error)
}

// GenerationRequest is a single grounded generation call.
// System and Prompt are the rendered instructions; Question and Passages
// carry the same content unrendered for backends that work on raw text.
type GenerationRequest struct {
	System      string
	Prompt      string
	Question    string
	Passages    []string
	Temperature float64
	MaxTokens   int
}

// Generator produces text from a grounded request.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
