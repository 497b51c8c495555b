package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ingester turns files and URLs into documents and records them in the
// store. Per-file failures are terminal for that file only: the document
// is recorded with Status=error and the rest of the system is unaffected.
type Ingester struct {
	store       *Store
	maxFileSize int64
	allowedExts map[string]bool
	logger      *zap.SugaredLogger
}

func NewIngester(store *Store, maxFileSize int64, allowedExts []string, logger *zap.SugaredLogger) *Ingester {
	exts := make(map[string]bool, len(allowedExts))
	for _, ext := range allowedExts {
		exts[strings.ToLower(ext)] = true
	}
	return &Ingester{
		store:       store,
		maxFileSize: maxFileSize,
		allowedExts: exts,
		logger:      logger,
	}
}

// IngestFile reads the file as raw text regardless of its declared type
// and adds it to the store. Oversize or unreadable files are still
// recorded, with Status=error and empty content.
func (ing *Ingester) IngestFile(ctx context.Context, filename string, r io.Reader, size int64) (Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !ing.allowedExts[ext] {
		return Document{}, fmt.Errorf("unsupported file type: %s", ext)
	}

	doc := Document{
		ID:        uuid.NewString(),
		Title:     filename,
		Embedding: []float32{},
		CreatedAt: time.Now().UTC(),
		Type:      strings.TrimPrefix(ext, "."),
		Size:      size,
	}

	switch {
	case size > ing.maxFileSize:
		ing.logger.Warnw("file exceeds size limit",
			"filename", filename,
			"size", size,
			"limit", ing.maxFileSize,
		)
		doc.Status = StatusError
	default:
		content, err := io.ReadAll(io.LimitReader(r, ing.maxFileSize+1))
		switch {
		case err != nil:
			ing.logger.Warnw("failed to read file", "filename", filename, "error", err)
			doc.Status = StatusError
		case int64(len(content)) > ing.maxFileSize:
			ing.logger.Warnw("file exceeds size limit", "filename", filename, "limit", ing.maxFileSize)
			doc.Status = StatusError
		default:
			doc.Content = string(content)
			doc.Size = int64(len(content))
			doc.Status = StatusReady
		}
	}

	if err := ing.store.Add(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// IngestURL fetches the page, extracts the readable text and stores it
// as a txt document titled by the article.
func (ing *Ingester) IngestURL(ctx context.Context, rawURL string) (Document, error) {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return Document{}, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return Document{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := article.Title
	if title == "" {
		title = rawURL
	}

	doc := Document{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   article.TextContent,
		Embedding: []float32{},
		CreatedAt: time.Now().UTC(),
		Status:    StatusReady,
		Type:      "txt",
		Size:      int64(len(article.TextContent)),
	}

	ing.logger.Infow("URL ingested", "url", rawURL, "title", title, "size", doc.Size)

	if err := ing.store.Add(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
