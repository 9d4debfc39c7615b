package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/logger"
	"ragbot/internal/vectorstore"
	"ragbot/internal/vectorstore/memory"
)

// RetrieverConfig holds the parameters that shape a knowledge base.
type RetrieverConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
	Metric       vectorstore.Metric
	TopK         int
	CacheTTL     time.Duration
	BuildTimeout time.Duration
}

// KnowledgeBase is a built, queryable index over one set of sources.
type KnowledgeBase struct {
	Key     string
	Sources []domain.SourceRef
	Index   vectorstore.Index
	Chunks  int
	BuiltAt time.Time
}

// Retriever builds knowledge bases and answers similarity queries against them.
type Retriever struct {
	acquirer domain.Acquirer
	chunker  domain.Chunker
	embedder domain.Embedder
	cfg      RetrieverConfig
	log      *slog.Logger

	sources atomic.Pointer[[]domain.SourceRef]
	cache   *kbCache
}

// NewRetriever wires the pipeline stages. A nil logger discards output.
func NewRetriever(acq domain.Acquirer, ch domain.Chunker, emb domain.Embedder, sources []domain.SourceRef, cfg RetrieverConfig, log *slog.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.Metric == "" {
		cfg.Metric = vectorstore.Cosine
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.Discard()
	}
	r := &Retriever{
		acquirer: acq,
		chunker:  ch,
		embedder: emb,
		cfg:      cfg,
		log:      log,
		cache:    newKBCache(cfg.CacheTTL, cfg.BuildTimeout),
	}
	r.SetSources(sources)
	return r
}

// Sources returns the current source list.
func (r *Retriever) Sources() []domain.SourceRef {
	return slices.Clone(*r.sources.Load())
}

// SetSources replaces the source list. Cached knowledge bases are dropped
// when the set of sources changes.
func (r *Retriever) SetSources(sources []domain.SourceRef) {
	next := slices.Clone(sources)
	prev := r.sources.Swap(&next)
	if prev != nil && r.cacheKey(*prev) != r.cacheKey(next) {
		r.log.Info("sources changed, invalidating knowledge base", "sources", len(next))
		r.cache.invalidate()
	}
}

// Invalidate drops every cached knowledge base.
func (r *Retriever) Invalidate() { r.cache.invalidate() }

// Build acquires, chunks and embeds the current sources into a new knowledge
// base. It never consults the cache.
func (r *Retriever) Build(ctx context.Context) (*KnowledgeBase, error) {
	return r.build(ctx, r.Sources())
}

func (r *Retriever) build(ctx context.Context, sources []domain.SourceRef) (*KnowledgeBase, error) {
	start := time.Now()
	pages, err := r.acquirer.Acquire(ctx, sources)
	if err != nil {
		return nil, err
	}

	var (
		chunks []domain.Chunk
		texts  []string
	)
	for _, c := range r.chunker.Chunk(pages) {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		chunks = append(chunks, c)
		texts = append(texts, c.Text)
	}
	if len(chunks) == 0 {
		return nil, &domain.NoUsableDocumentsError{}
	}

	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &domain.EmbeddingError{Op: "embed documents", Err: err}
	}
	idx, err := memory.Build(chunks, vectors, r.cfg.Metric)
	if err != nil {
		return nil, err
	}

	kb := &KnowledgeBase{
		Key:     r.cacheKey(sources),
		Sources: sources,
		Index:   idx,
		Chunks:  idx.Len(),
		BuiltAt: time.Now(),
	}
	r.log.Info("knowledge base built",
		"sources", len(sources),
		"pages", len(pages),
		"chunks", kb.Chunks,
		"dimension", idx.Dimension(),
		"took", time.Since(start))
	return kb, nil
}

// Query embeds question with the embedder used at build time and returns the
// k nearest chunks.
func (r *Retriever) Query(ctx context.Context, index vectorstore.Index, question string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = r.cfg.TopK
	}
	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, &domain.EmbeddingError{Op: "embed query", Err: err}
	}
	return index.Search(vec, k)
}

// Retrieve builds or reuses the knowledge base for the current sources and queries it.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]domain.SearchResult, error) {
	sources := r.Sources()
	kb, err := r.cache.get(ctx, r.cacheKey(sources), func(ctx context.Context) (*KnowledgeBase, error) {
		return r.build(ctx, sources)
	})
	if err != nil {
		return nil, err
	}
	return r.Query(ctx, kb.Index, question, k)
}

// cacheKey hashes everything that changes the content of a knowledge base.
func (r *Retriever) cacheKey(sources []domain.SourceRef) string {
	sorted := make([]string, len(sources))
	for i, s := range sources {
		sorted[i] = string(s)
	}
	slices.Sort(sorted)

	h := sha256.New()
	for _, s := range sorted {
		fmt.Fprintf(h, "source=%s\n", s)
	}
	fmt.Fprintf(h, "size=%d\noverlap=%d\nseparator=%q\nembedder=%s\nmetric=%s\n",
		r.cfg.ChunkSize, r.cfg.ChunkOverlap, r.cfg.Separator, r.embedder.Name(), r.cfg.Metric)
	return hex.EncodeToString(h.Sum(nil))
}
