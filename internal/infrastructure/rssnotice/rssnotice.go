// Package rssnotice serves notice pages from RSS/Atom boards.
package rssnotice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/domain/failure"
	"github.com/tesso57/knotice/internal/domain/notice"
)

const feedAcceptHeader = "application/atom+xml, application/rss+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

const defaultCacheTTL = 5 * time.Minute

type acceptTransport struct {
	base http.RoundTripper
}

func (t acceptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", feedAcceptHeader)
	}
	return base.RoundTrip(clone)
}

// ParserFunc is exposed for testing.
var ParserFunc = defaultParser

func defaultParser(ctx context.Context, url string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "knotice/1.0"
	fp.Client = &http.Client{Transport: acceptTransport{base: http.DefaultTransport}}
	return fp.ParseURLWithContext(url, ctx)
}

type cachedFeed struct {
	items     []notice.Item
	fetchedAt time.Time
}

// Fetcher pages through RSS/Atom feeds keyed by source. Page 1 always
// re-reads the feed; later pages reuse the snapshot taken for page 1 while
// it is fresh so page windows stay stable.
type Fetcher struct {
	Now func() time.Time

	sources  map[string]string
	cacheTTL time.Duration
	log      *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedFeed
}

// NewFetcher returns a fetcher for sources (source key -> feed URL).
func NewFetcher(sources map[string]string, cacheTTL time.Duration, log *zap.Logger) *Fetcher {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	copied := make(map[string]string, len(sources))
	for k, v := range sources {
		copied[k] = strings.TrimSpace(v)
	}
	return new(Fetcher{
		sources:  copied,
		cacheTTL: cacheTTL,
		log:      log,
		cache:    make(map[string]cachedFeed),
	})
}

// Has reports whether sourceKey is served by an RSS feed.
func (f *Fetcher) Has(sourceKey string) bool {
	_, ok := f.sources[sourceKey]
	return ok
}

// Sources returns the configured source keys, sorted.
func (f *Fetcher) Sources() []string {
	keys := make([]string, 0, len(f.sources))
	for k := range f.sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FetchPage implements usecase.PageFetcher.
func (f *Fetcher) FetchPage(ctx context.Context, q notice.PageQuery) (notice.Page, error) {
	url, ok := f.sources[q.SourceKey]
	if !ok || url == "" {
		return notice.Page{}, fmt.Errorf("rss source %q is not configured", q.SourceKey)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size <= 0 {
		q.Size = 20
	}

	items, err := f.items(ctx, q.SourceKey, url, q.Page == 1)
	if err != nil {
		return notice.Page{}, err
	}
	items = filterItems(items, q.Query)
	if q.SortBy == "date" {
		sortByDate(items)
	}

	total := len(items)
	start := min((q.Page-1)*q.Size, total)
	end := min(start+q.Size, total)
	page := make([]notice.Item, end-start)
	copy(page, items[start:end])

	return notice.Page{
		Items:      page,
		Total:      total,
		Page:       q.Page,
		Size:       q.Size,
		TotalPages: (total + q.Size - 1) / q.Size,
	}, nil
}

func (f *Fetcher) items(ctx context.Context, key, url string, reload bool) ([]notice.Item, error) {
	f.mu.Lock()
	c, ok := f.cache[key]
	f.mu.Unlock()
	if ok && !reload && f.now().Sub(c.fetchedAt) < f.cacheTTL {
		return append([]notice.Item(nil), c.items...), nil
	}

	parsed, err := ParserFunc(ctx, url)
	if err != nil {
		var he gofeed.HTTPError
		if errors.As(err, &he) {
			return nil, failure.NewHTTP("rss", he.StatusCode, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if failure.KindOf(err) == failure.Network {
			return nil, failure.NewNetwork("rss", err)
		}
		return nil, failure.NewParse("rss", err)
	}

	items := convert(parsed, key)
	f.mu.Lock()
	f.cache[key] = cachedFeed{items: items, fetchedAt: f.now()}
	f.mu.Unlock()
	f.log.Debug("rss feed loaded", zap.String("source", key), zap.Int("items", len(items)))
	return append([]notice.Item(nil), items...), nil
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func convert(parsed *gofeed.Feed, sourceKey string) []notice.Item {
	out := make([]notice.Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		link := strings.TrimSpace(it.Link)
		if link == "" {
			link = strings.TrimSpace(it.GUID)
		}
		category := sourceKey
		if len(it.Categories) > 0 && strings.TrimSpace(it.Categories[0]) != "" {
			category = strings.TrimSpace(it.Categories[0])
		}
		var author string
		if len(it.Authors) > 0 && it.Authors[0] != nil {
			author = it.Authors[0].Name
		}
		out = append(out, notice.Item{
			Title:     strings.TrimSpace(it.Title),
			DetailURL: link,
			Date:      itemDate(it),
			Category:  category,
			Author:    author,
		})
	}
	return out
}

func itemDate(it *gofeed.Item) string {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.Format(time.DateOnly)
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.Format(time.DateOnly)
	case it.Published != "":
		return it.Published
	default:
		return it.Updated
	}
}

func filterItems(items []notice.Item, query string) []notice.Item {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), query) {
			out = append(out, it)
		}
	}
	return out
}

// sortByDate orders newest first. Dates are ISO strings so lexical order works.
func sortByDate(items []notice.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date > items[j].Date
	})
}
