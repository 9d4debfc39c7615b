package acquire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"ragbot/internal/domain"
)

type format int

const (
	formatUnknown format = iota
	formatPDF
	formatText
)

func detectFormat(head []byte, contentType, src string) format {
	if bytes.HasPrefix(head, []byte("%PDF-")) {
		return formatPDF
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "text/") {
		return formatText
	}
	u := src
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch strings.ToLower(path.Ext(u)) {
	case ".txt", ".md":
		return formatText
	}
	if strings.HasPrefix(http.DetectContentType(head), "text/plain") {
		return formatText
	}
	return formatUnknown
}

// extractPDF reads up to maxPages pages. A broken document is an error; a
// broken page is returned in pageErrs and skipped.
func extractPDF(f *os.File, size int64, src domain.SourceRef, maxPages int) (pages []domain.PageText, pageErrs []error, err error) {
	r, total, err := openPDF(f, size)
	if err != nil {
		return nil, nil, &domain.ParseError{Source: src, Err: err}
	}
	if total > maxPages {
		total = maxPages
	}
	for i := 1; i <= total; i++ {
		text, err := pageText(r, i)
		if err != nil {
			pageErrs = append(pageErrs, &domain.ParseError{Source: src, Page: i, Err: err})
			continue
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		pages = append(pages, domain.PageText{Source: src, Page: i, Text: text})
	}
	return pages, pageErrs, nil
}

// The pdf package panics on malformed object graphs.
func openPDF(f io.ReaderAt, size int64) (r *pdf.Reader, n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed document: %v", p)
		}
	}()
	r, err = pdf.NewReader(f, size)
	if err != nil {
		return nil, 0, err
	}
	return r, r.NumPage(), nil
}

func pageText(r *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed page: %v", p)
		}
	}()
	p := r.Page(i)
	if p.V.IsNull() {
		return "", errors.New("page not found")
	}
	return p.GetPlainText(nil)
}

// extractText treats form feeds as page breaks.
func extractText(f *os.File, src domain.SourceRef, maxPages int) ([]domain.PageText, []error, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, &domain.ParseError{Source: src, Err: err}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, &domain.ParseError{Source: src, Err: err}
	}
	if !utf8.Valid(data) {
		return nil, nil, &domain.ParseError{Source: src, Err: errors.New("text is not valid UTF-8")}
	}
	var pages []domain.PageText
	for i, raw := range strings.Split(string(data), "\f") {
		if i >= maxPages {
			break
		}
		if text := strings.TrimSpace(raw); text != "" {
			pages = append(pages, domain.PageText{Source: src, Page: i + 1, Text: text})
		}
	}
	return pages, nil, nil
}
