// Package archive persists raw scrape output so extractions can be
// audited and replayed without hitting the source sites again. The
// blob backends live in the gcs, local, and memory subpackages.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/civicdata/codecrawler/internal/municipal"
)

// BlobStore is the write surface a backend must provide.
type BlobStore interface {
	// PutObject stores the content at path and returns the backend URI.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Archiver writes scrape snapshots through a BlobStore.
type Archiver struct {
	blobs BlobStore
}

// New wraps a blob store.
func New(blobs BlobStore) (*Archiver, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	return &Archiver{blobs: blobs}, nil
}

// ArchiveScrape stores the full scrape result as JSON, keyed by
// jurisdiction and job so repeated sweeps never collide.
func (a *Archiver) ArchiveScrape(ctx context.Context, jobID string, result *municipal.ScrapeResult) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("job id is required")
	}
	if result == nil {
		return "", fmt.Errorf("scrape result is required")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal scrape result: %w", err)
	}
	path := scrapePath(result.JurisdictionID, jobID, result.ScrapedAt)
	uri, err := a.blobs.PutObject(ctx, path, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("archive scrape: %w", err)
	}
	return uri, nil
}

func scrapePath(jurisdictionID, jobID string, scrapedAt time.Time) string {
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}
	return fmt.Sprintf("scrapes/%s/%s/%s.json",
		jurisdictionID, scrapedAt.UTC().Format("2006-01-02"), jobID)
}
