package search

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/security"
)

// Fetcher retrieves result pages and extracts their readable text. Crawling
// is rate limited per domain so enrichment stays polite. Result URLs come
// from an external search engine, so every target is validated against
// private and metadata address ranges before it is fetched.
type Fetcher struct {
	parallelism int
	delay       time.Duration
	timeout     time.Duration
	urlCheck    *security.URL
	logger      log.Logger
}

// NewFetcher creates a Fetcher from config. Returns nil when fetching is
// disabled, which a Client treats as snippet-only results.
func NewFetcher(cfg config.FetcherConfig, logger log.Logger) *Fetcher {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Fetcher{
		parallelism: max(cfg.Parallelism, 1),
		delay:       time.Duration(cfg.DelayMs) * time.Millisecond,
		timeout:     time.Duration(cfg.TimeoutMs) * time.Millisecond,
		urlCheck:    security.NewURL(),
		logger:      logger,
	}
}

// Enrich fetches each result's page concurrently and fills in the readable
// text. Failures leave the result snippet-only; enrichment never fails the
// search.
func (f *Fetcher) Enrich(ctx context.Context, results []Result) {
	if len(results) == 0 || ctx.Err() != nil {
		return
	}

	collector := colly.NewCollector(colly.Async(true))
	collector.SetRequestTimeout(f.timeout)
	if f.urlCheck != nil {
		// Re-checks resolved IPs at dial time, not just the hostname.
		collector.WithTransport(f.urlCheck.SafeTransport())
	}
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.parallelism,
		Delay:       f.delay,
	}); err != nil {
		f.logger.Warn("configure crawl limits", "error", err)
		return
	}

	var mu sync.Mutex
	collector.OnResponse(func(r *colly.Response) {
		idx, err := strconv.Atoi(r.Ctx.Get("index"))
		if err != nil || idx < 0 || idx >= len(results) {
			return
		}
		article, err := readability.FromReader(bytes.NewReader(r.Body), r.Request.URL)
		if err != nil {
			f.logger.Debug("readability extraction failed", "url", r.Request.URL, "error", err)
			return
		}
		mu.Lock()
		results[idx].Page = article.TextContent
		mu.Unlock()
	})
	collector.OnError(func(r *colly.Response, err error) {
		f.logger.Debug("page fetch failed", "url", r.Request.URL, "error", err)
	})

	for i, result := range results {
		if result.URL == "" {
			continue
		}
		if f.urlCheck != nil {
			if err := f.urlCheck.Validate(result.URL); err != nil {
				f.logger.Debug("page fetch blocked", "url", result.URL, "error", err)
				continue
			}
		}
		reqCtx := colly.NewContext()
		reqCtx.Put("index", strconv.Itoa(i))
		if err := collector.Request("GET", result.URL, nil, reqCtx, nil); err != nil {
			f.logger.Debug("page fetch rejected", "url", result.URL, "error", err)
		}
	}
	collector.Wait()
}
