// Package acquire downloads the configured documents and extracts their page text.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ragbot/internal/domain"
	"ragbot/internal/logger"
)

// Config bounds how much of each source is fetched and read.
type Config struct {
	MaxPages     int
	FetchTimeout time.Duration
	MaxBytes     int64
	Concurrency  int
}

// Option customizes an Acquirer.
type Option func(*Acquirer)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Acquirer) { a.client = c }
}

// WithLogger sets the logger used for skipped sources and pages.
func WithLogger(l *slog.Logger) Option {
	return func(a *Acquirer) { a.log = l }
}

// WithTempDir sets where downloads are staged. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(a *Acquirer) { a.tempDir = dir }
}

// Acquirer fetches sources over HTTP and turns them into page text.
type Acquirer struct {
	cfg     Config
	client  *http.Client
	log     *slog.Logger
	tempDir string
}

var _ domain.Acquirer = (*Acquirer)(nil)

// New creates an Acquirer. Zero config fields fall back to 20 pages,
// 60 seconds, 50 MiB and 3 concurrent downloads.
func New(cfg Config, opts ...Option) *Acquirer {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 60 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 50 << 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	a := &Acquirer{cfg: cfg, client: http.DefaultClient, log: logger.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type sourceResult struct {
	pages []domain.PageText
	err   error
}

// Acquire fetches every source and returns the non-empty pages in source
// order, then page order. Failed sources and pages are logged and skipped.
// It fails only when no source yields any text, or when ctx is done.
func (a *Acquirer) Acquire(ctx context.Context, sources []domain.SourceRef) ([]domain.PageText, error) {
	results := make([]sourceResult, len(sources))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			pages, err := a.acquireOne(ctx, src)
			results[i] = sourceResult{pages: pages, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		pages    []domain.PageText
		failures []error
	)
	for i, r := range results {
		if r.err != nil {
			a.log.Warn("source skipped", "source", sources[i], "err", r.err)
			failures = append(failures, r.err)
			continue
		}
		pages = append(pages, r.pages...)
	}
	if len(pages) == 0 {
		return nil, &domain.NoUsableDocumentsError{Failures: failures}
	}
	a.log.Info("documents acquired", "sources", len(sources), "failed", len(failures), "pages", len(pages))
	return pages, nil
}

func (a *Acquirer) acquireOne(ctx context.Context, src domain.SourceRef) ([]domain.PageText, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	f, size, contentType, err := a.download(ctx, src)
	if err != nil {
		return nil, err
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	head := make([]byte, 512)
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &domain.ParseError{Source: src, Err: err}
	}
	head = head[:n]

	var (
		pages   []domain.PageText
		pageErr []error
	)
	switch detectFormat(head, contentType, string(src)) {
	case formatPDF:
		pages, pageErr, err = extractPDF(f, size, src, a.cfg.MaxPages)
	case formatText:
		pages, pageErr, err = extractText(f, src, a.cfg.MaxPages)
	default:
		err = &domain.ParseError{Source: src, Err: fmt.Errorf("unsupported content type %q", contentType)}
	}
	if err != nil {
		return nil, err
	}
	for _, pe := range pageErr {
		a.log.Warn("page skipped", "source", src, "err", pe)
	}
	if len(pages) == 0 {
		return nil, &domain.ParseError{Source: src, Err: errors.New("no extractable text")}
	}
	return pages, nil
}

// download streams the body of src into a temp file. The caller owns the
// returned file and must close and remove it.
func (a *Acquirer) download(ctx context.Context, src domain.SourceRef) (*os.File, int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(src), nil)
	if err != nil {
		return nil, 0, "", &domain.FetchError{Source: src, Err: err}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, "", &domain.FetchError{Source: src, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, "", &domain.FetchError{Source: src, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	f, err := os.CreateTemp(a.tempDir, "ragbot-*")
	if err != nil {
		return nil, 0, "", &domain.FetchError{Source: src, Err: err}
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, a.cfg.MaxBytes+1))
	if err == nil && n > a.cfg.MaxBytes {
		err = fmt.Errorf("body exceeds %d bytes", a.cfg.MaxBytes)
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, "", &domain.FetchError{Source: src, Err: err}
	}
	return f, n, resp.Header.Get("Content-Type"), nil
}
