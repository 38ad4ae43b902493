package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"arkham/apps/arkham/internal/catalog"
	"arkham/apps/arkham/internal/client"
	"arkham/apps/arkham/internal/config"
	"arkham/apps/arkham/internal/model"
	"arkham/apps/arkham/internal/progress"
)

// Consecutive equal-sized deep pages before the loop guard trips. The API
// sometimes keeps returning the same page forever near its pagination cap.
const stalledPageThreshold = 10

// Page depth below which the stalled-page guard never trips.
const stalledPageMinDepth = 1000

// PageFetcher fetches one page of addresses for a tag.
type PageFetcher interface {
	FetchTagPage(ctx context.Context, tagLink string, page int) (*client.Page, error)
}

// RecordStore persists normalized records and the seeded catalog.
type RecordStore interface {
	SeedCatalog(tags []model.TagRef) error
	UpsertRecord(record model.TaggedAddress) error
}

// ResultWriter appends a record to the flat results file.
type ResultWriter interface {
	Append(tagLink string, record model.TaggedAddress) error
}

// TagCrawler walks the catalog's tags sequentially, fetching each tag's
// address pages and persisting every record. Progress is committed to the
// tracker only after a page's writes all succeed, so a restart re-fetches
// at most one page.
type TagCrawler struct {
	config  *config.Config
	catalog *catalog.Catalog
	fetcher PageFetcher
	store   RecordStore
	sink    ResultWriter
	tracker *progress.Tracker
	logger  *zap.Logger

	// Loop-guard limits, overridable in tests.
	stalledPageThreshold int
	stalledPageMinDepth  int
}

func NewTagCrawler(
	cfg *config.Config,
	cat *catalog.Catalog,
	fetcher PageFetcher,
	store RecordStore,
	sink ResultWriter,
	tracker *progress.Tracker,
	logger *zap.Logger) *TagCrawler {
	return &TagCrawler{
		config:  cfg,
		catalog: cat,
		fetcher: fetcher,
		store:   store,
		sink:    sink,
		tracker: tracker,
		logger:  logger,

		stalledPageThreshold: stalledPageThreshold,
		stalledPageMinDepth:  stalledPageMinDepth,
	}
}

// Run seeds the catalog and crawls every incomplete tag. It returns nil on
// clean exhaustion of all tags, the context error on cancellation, or the
// first fatal error.
func (c *TagCrawler) Run(ctx context.Context) error {
	seed := make([]model.TagRef, 0, c.catalog.Len())
	for _, entry := range c.catalog.Entries() {
		seed = append(seed, model.TagRef{Tag: entry.Name, Link: entry.Link, Category: entry.Category})
	}
	if err := c.store.SeedCatalog(seed); err != nil {
		return fmt.Errorf("failed to seed tag catalog: %w", err)
	}

	completed := 0
	for _, entry := range c.catalog.Entries() {
		if c.tracker.IsCompleted(entry.Link) {
			completed++
		}
	}
	c.logger.Info("Starting crawl",
		zap.String("run_id", c.tracker.RunID()),
		zap.Int("tags_total", c.catalog.Len()),
		zap.Int("tags_completed", completed),
		zap.Int("tags_remaining", c.catalog.Len()-completed))

	for _, entry := range c.catalog.Entries() {
		if c.tracker.IsCompleted(entry.Link) {
			c.logger.Info("Tag already processed, skipping",
				zap.String("tag", entry.Link))
			continue
		}

		if err := c.crawlTag(ctx, entry); err != nil {
			return err
		}

		if err := c.tracker.CompleteTag(entry.Link); err != nil {
			return fmt.Errorf("failed to mark tag %s complete: %w", entry.Link, err)
		}
		c.logger.Info("Tag complete",
			zap.String("tag", entry.Link),
			zap.Int("total_processed", c.tracker.Processed()))
	}

	c.logger.Info("Crawl complete",
		zap.String("run_id", c.tracker.RunID()),
		zap.Int("total_processed", c.tracker.Processed()))
	return nil
}

// pageResult is the typed outcome of one page iteration.
type pageResult struct {
	processed int
	exhausted bool
}

// crawlTag runs the explicit page loop for one tag, threading the cursor
// through each iteration.
func (c *TagCrawler) crawlTag(ctx context.Context, entry catalog.Entry) error {
	cursor := parseCursor(c.tracker.ResumeCursor(entry.Link))
	previousCount := -1
	stalledPages := 0

	c.logger.Info("Crawling tag",
		zap.String("tag", entry.Link),
		zap.String("name", entry.Name),
		zap.String("category", entry.Category),
		zap.Int("start_page", cursor))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if cursor > c.config.MaxPages {
			c.logger.Warn("Reached max page limit for tag, stopping",
				zap.String("tag", entry.Link),
				zap.Int("max_pages", c.config.MaxPages))
			return nil
		}

		page, err := c.fetcher.FetchTagPage(ctx, entry.Link, cursor)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("failed to fetch tag %s page %d: %w", entry.Link, cursor, err)
		}

		c.logger.Info("Fetched page",
			zap.String("tag", entry.Link),
			zap.Int("page", cursor),
			zap.Int("addresses", len(page.Addresses)),
			zap.Bool("has_more", page.HasMore))

		result := c.processPage(entry, page)

		// Progress advances only after every record of the page has been
		// handled; a crash before this line re-fetches the same page, and
		// the upserts are idempotent.
		if err := c.tracker.CommitPage(entry.Link, formatCursor(cursor+1), result.processed); err != nil {
			return fmt.Errorf("failed to commit progress for tag %s page %d: %w", entry.Link, cursor, err)
		}

		if result.exhausted {
			return nil
		}

		if len(page.Addresses) == previousCount && cursor > 1 {
			stalledPages++
			if stalledPages > c.stalledPageThreshold && cursor > c.stalledPageMinDepth {
				c.logger.Warn("API appears to be looping, stopping tag",
					zap.String("tag", entry.Link),
					zap.Int("page", cursor),
					zap.Int("repeated_count", len(page.Addresses)))
				return nil
			}
		} else {
			stalledPages = 0
		}
		previousCount = len(page.Addresses)

		cursor++
	}
}

// processPage normalizes and persists every record in a page. Malformed
// records and per-record write failures are logged and skipped; they never
// abort the run.
func (c *TagCrawler) processPage(entry catalog.Entry, page *client.Page) pageResult {
	if len(page.Addresses) == 0 {
		c.logger.Info("No more addresses for tag", zap.String("tag", entry.Link))
		return pageResult{exhausted: true}
	}

	processed := 0
	skipped := 0
	for _, raw := range page.Addresses {
		record, err := normalizeRecord(raw, entry, c.catalog)
		if err != nil {
			skipped++
			c.logger.Warn("Skipping malformed record",
				zap.String("tag", entry.Link),
				zap.String("chain", raw.Chain),
				zap.Error(err))
			continue
		}

		if err := c.store.UpsertRecord(record); err != nil {
			skipped++
			c.logger.Error("Failed to persist record, skipping",
				zap.String("tag", entry.Link),
				zap.String("address", record.Address),
				zap.Error(err))
			continue
		}

		// The flat file is best-effort and non-transactional.
		if err := c.sink.Append(entry.Link, record); err != nil {
			c.logger.Error("Failed to append result line",
				zap.String("address", record.Address),
				zap.Error(err))
		}

		processed++
	}

	c.logger.Info("Processed page",
		zap.String("tag", entry.Link),
		zap.Int("processed", processed),
		zap.Int("skipped", skipped))

	return pageResult{processed: processed, exhausted: !page.HasMore}
}

// The cursor is an opaque token as far as the progress file is concerned;
// only these two helpers know it is a page number.
func parseCursor(cursor string) int {
	if page, err := strconv.Atoi(cursor); err == nil && page > 0 {
		return page
	}
	return 1
}

func formatCursor(page int) string {
	return strconv.Itoa(page)
}
