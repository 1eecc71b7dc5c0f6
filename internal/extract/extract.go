// Package extract turns a fetched store detail page into a store.Record.
//
// Every page must carry a JSON-LD block; individual fields inside it are optional and fall back
// to empty strings. A successfully extracted page is archived gzip'd before its record is
// returned, so a persisted row always has an archive behind it.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/store-locator-crawler/internal/identifier"
	"github.com/JakeFAU/store-locator-crawler/internal/store"
)

// ArchiveSuffix is appended to the page id to name archived pages.
const ArchiveSuffix = ".html.gz"

const archiveContentType = "text/html; charset=utf-8"

// Archive stores raw pages gzip-compressed and returns where they landed.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Config carries the per-run values stamped on every record.
type Config struct {
	// ArchiveDir is the directory inside the archive that receives this run's pages.
	ArchiveDir string

	Provider string
	Category string
	Country  string
	Status   string
}

// Extractor maps store detail pages to records.
type Extractor struct {
	cfg     Config
	archive Archive
	clock   clockwork.Clock
	logger  *zap.Logger
}

// New builds an Extractor.
func New(cfg Config, archive Archive, clock clockwork.Clock, logger *zap.Logger) (*Extractor, error) {
	if archive == nil {
		return nil, fmt.Errorf("archive is required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Country == "" {
		cfg.Country = store.DefaultCountry
	}
	if cfg.Status == "" {
		cfg.Status = store.DefaultStatus
	}
	return &Extractor{cfg: cfg, archive: archive, clock: clock, logger: logger}, nil
}

// ArchivePath returns the archive-relative path for a page URL.
func (e *Extractor) ArchivePath(pageURL string) string {
	return path.Join(e.cfg.ArchiveDir, identifier.PageID(pageURL)+ArchiveSuffix)
}

// Extract parses body, archives it, and returns the record for pageURL.
// ErrNoStructuredData (wrapped) means the page was skipped and nothing was archived.
func (e *Extractor) Extract(ctx context.Context, pageURL string, body []byte) (store.Record, error) {
	if strings.TrimSpace(pageURL) == "" {
		return store.Record{}, fmt.Errorf("page url is required")
	}
	subj, err := subject(body)
	if err != nil {
		return store.Record{}, err
	}

	storeNo, _ := identifier.StoreNumber(pageURL)
	rec := store.Record{
		StoreNo:     storeNo,
		County:      store.NotAvailable,
		URL:         pageURL,
		Provider:    e.cfg.Provider,
		Category:    e.cfg.Category,
		UpdatedDate: e.clock.Now().Format(store.UpdatedDateLayout),
		Country:     e.cfg.Country,
		Status:      e.cfg.Status,
	}

	var missing []string
	for _, rule := range fieldRules {
		if !rule.apply(subj, &rec) {
			missing = append(missing, rule.field)
		}
	}
	if len(missing) > 0 {
		e.logger.Debug("structured data fields missing",
			zap.String("url", pageURL),
			zap.Strings("fields", missing),
		)
	}

	location, err := e.archive.PutObject(ctx, e.ArchivePath(pageURL), archiveContentType, bytes.NewReader(body))
	if err != nil {
		return store.Record{}, fmt.Errorf("archive page %s: %w", pageURL, err)
	}
	rec.PagesavePath = location
	return rec, nil
}
