package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"

	"nolcrawler/logger"
	"nolcrawler/pkg/errors"
)

// DefaultCacheSize is enough for the sequential scans the worker does:
// re-reads hit the same or an adjacent page.
const DefaultCacheSize = 5

// courseTableSelector locates the listing table; the page carries
// three layout tables before it.
const courseTableSelector = "body > table:nth-of-type(4) > tbody > tr"

// Fetcher retrieves the listing page whose first record sits at
// startRec. Implementations own all transport policy including
// timeouts and cancellation.
type Fetcher interface {
	FetchPage(ctx context.Context, startRec int) (io.Reader, error)
}

// Crawler resolves a global record index to a course, fetching and
// caching whole pages. One Crawler owns its cache and its transport
// exclusively; calls must be serialized by the caller.
type Crawler struct {
	era     Era
	fetcher Fetcher
	prober  RedirectProber
	cache   *ReadCache
	log     *logger.Logger
}

// NewCrawler creates a crawler for one semester. A non-positive
// cacheSize falls back to DefaultCacheSize.
func NewCrawler(semester string, fetcher Fetcher, prober RedirectProber, cacheSize int) (*Crawler, error) {
	era, err := EraForSemester(semester)
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Crawler{
		era:     era,
		fetcher: fetcher,
		prober:  prober,
		cache:   NewReadCache(cacheSize),
		log:     logger.ForComponent("crawler").WithField("semester", semester),
	}, nil
}

// Era returns the policy regime the crawler resolved from its semester
func (c *Crawler) Era() Era {
	return c.era
}

// GetCourse returns the record at the given global index. A negative
// index yields no course and no error, without touching the transport.
func (c *Crawler) GetCourse(ctx context.Context, index int) (*Course, error) {
	if index < 0 {
		return nil, nil
	}
	addr := index / PageSize
	page, err := c.cache.Load(addr, func() (Page, error) {
		return c.loadPage(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	course := page[index%PageSize]
	return &course, nil
}

// InvalidateCourse discards the cached page holding the given index,
// if cached.
func (c *Crawler) InvalidateCourse(index int) {
	if index >= 0 {
		c.cache.Invalidate(index / PageSize)
	}
}

// InvalidateAll discards every cached page
func (c *Crawler) InvalidateAll() {
	c.cache.Reset()
}

// loadPage fetches and extracts the page at the given address, padding
// short pages with not-found placeholders up to exactly PageSize.
func (c *Crawler) loadPage(ctx context.Context, addr int) (Page, error) {
	startRec := addr * PageSize
	c.log.Debug().Int("address", addr).Int("start_rec", startRec).Msg("Cache miss, fetching page")

	body, err := c.fetcher.FetchPage(ctx, startRec)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.NewParsing("crawler", "parsing listing document", err)
	}

	rows := doc.Find(courseTableSelector)
	if rows.Length() == 0 {
		return nil, errors.NewParsing("crawler",
			fmt.Sprintf("no course table in page at offset %d", startRec), nil)
	}

	page := make(Page, 0, PageSize)
	var rowErr error
	// first row is the column header
	rows.Slice(1, rows.Length()).EachWithBreak(func(i int, row *goquery.Selection) bool {
		if len(page) == PageSize {
			return false
		}
		course, err := ExtractCourse(ctx, c.era, row, c.prober)
		if err != nil {
			rowErr = wrapRowError(startRec+i, err)
			return false
		}
		page = append(page, course)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	for len(page) < PageSize {
		page = append(page, NotFoundCourse())
	}
	return page, nil
}

// wrapRowError attaches the offending row's global index while keeping
// the inner error's type, so retryability survives the wrapping.
func wrapRowError(index int, err error) error {
	if ce, ok := err.(*errors.CrawlError); ok {
		return errors.New(ce.Type, fmt.Sprintf("row %d", index), "extracting course", err)
	}
	return errors.NewExtraction(index, "extracting course", err)
}
