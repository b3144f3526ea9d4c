package usecase

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/domain/failure"
	"github.com/tesso57/knotice/internal/domain/notice"
)

var (
	// ErrFetchInProgress is returned when a page is requested while the
	// previous one is still outstanding.
	ErrFetchInProgress = errors.New("page fetch already in progress")
	// ErrFeedDisabled is returned when fetching a disabled feed.
	ErrFeedDisabled = errors.New("feed is disabled")
)

// DefaultPageSize is used when FeedOptions.PageSize is not positive.
const DefaultPageSize = 20

// PageFetcher loads one page of notices.
type PageFetcher interface {
	FetchPage(ctx context.Context, q notice.PageQuery) (notice.Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, q notice.PageQuery) (notice.Page, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, q notice.PageQuery) (notice.Page, error) {
	return f(ctx, q)
}

// FeedOptions configures a FeedPager.
type FeedOptions struct {
	SourceKey string
	PageSize  int
	Query     string
	SortBy    string
	Enabled   bool
}

func (o FeedOptions) normalized() FeedOptions {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	return o
}

// Snapshot is a consistent view of a pager.
type Snapshot struct {
	SourceKey   string
	Items       []notice.Item
	NextPage    int
	HasNextPage bool
	Fetching    bool
	Enabled     bool
	Err         error
	Generation  uint64
}

// FeedPager fetches sequential pages for one configuration and merges them
// into a deduplicated list. Every configuration change bumps a generation
// counter; responses carrying an older generation are dropped.
type FeedPager struct {
	fetcher PageFetcher
	log     *zap.Logger

	mu         sync.Mutex
	opts       FeedOptions
	state      *notice.FeedState
	generation uint64
	fetching   bool
	err        error
}

// NewFeedPager creates a pager. Nothing is fetched until FetchNextPage.
func NewFeedPager(fetcher PageFetcher, opts FeedOptions, log *zap.Logger) *FeedPager {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.normalized()
	return new(FeedPager{
		fetcher: fetcher,
		log:     log,
		opts:    opts,
		state:   notice.NewFeedState(opts.SourceKey),
	})
}

// Options returns the current configuration.
func (p *FeedPager) Options() FeedOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

// Configure applies opts. Any change invalidates in-flight requests and
// discards the merged list. It reports whether anything changed.
func (p *FeedPager) Configure(opts FeedOptions) bool {
	opts = opts.normalized()
	p.mu.Lock()
	defer p.mu.Unlock()
	if opts == p.opts {
		return false
	}
	p.opts = opts
	p.resetLocked()
	p.log.Debug("feed reconfigured",
		zap.String("source", opts.SourceKey),
		zap.Bool("enabled", opts.Enabled),
		zap.Uint64("generation", p.generation))
	return true
}

// SetEnabled toggles fetching without touching the rest of the configuration.
func (p *FeedPager) SetEnabled(enabled bool) bool {
	opts := p.Options()
	opts.Enabled = enabled
	return p.Configure(opts)
}

// Snapshot returns the current state. Items is empty while disabled.
func (p *FeedPager) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := Snapshot{
		SourceKey:   p.opts.SourceKey,
		NextPage:    p.state.NextPage,
		HasNextPage: p.opts.Enabled && p.state.HasNextPage,
		Fetching:    p.fetching,
		Enabled:     p.opts.Enabled,
		Err:         p.err,
		Generation:  p.generation,
	}
	if p.opts.Enabled {
		snap.Items = p.state.Items()
	} else {
		snap.Items = []notice.Item{}
	}
	return snap
}

// FetchNextPage requests the next page and merges it. A terminal feed is a
// no-op. Failures keep everything merged so far; the same page is retried
// on the next call. A response that arrives after a configuration change is
// discarded and nil is returned.
func (p *FeedPager) FetchNextPage(ctx context.Context) error {
	p.mu.Lock()
	if !p.opts.Enabled {
		p.mu.Unlock()
		return ErrFeedDisabled
	}
	if !p.state.HasNextPage {
		p.mu.Unlock()
		return nil
	}
	if p.fetching {
		p.mu.Unlock()
		return ErrFetchInProgress
	}
	gen := p.generation
	q := notice.PageQuery{
		SourceKey: p.opts.SourceKey,
		Page:      p.state.NextPage,
		Size:      p.opts.PageSize,
		Query:     p.opts.Query,
		SortBy:    p.opts.SortBy,
	}
	p.fetching = true
	p.err = nil
	p.mu.Unlock()

	page, err := p.fetcher.FetchPage(ctx, q)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		p.log.Debug("discarding stale page",
			zap.String("source", q.SourceKey),
			zap.Int("page", q.Page),
			zap.Uint64("generation", gen),
			zap.Uint64("current", p.generation))
		return nil
	}
	p.fetching = false
	if err != nil {
		p.err = classifyFetchError(err)
		p.log.Warn("page fetch failed",
			zap.String("source", q.SourceKey),
			zap.Int("page", q.Page),
			zap.Error(p.err))
		return p.err
	}

	res := p.state.ApplyPage(page.Items, q.Size)
	p.log.Debug("page merged",
		zap.String("source", q.SourceKey),
		zap.Int("page", res.Page),
		zap.Int("returned", res.Returned),
		zap.Int("new", res.NewCount),
		zap.Bool("terminal", res.Terminal))
	return nil
}

// Refresh drops the merged list and fetches page 1 again.
func (p *FeedPager) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.resetLocked()
	p.mu.Unlock()
	return p.FetchNextPage(ctx)
}

// LoadUntil fetches pages until at least n items are merged, the feed turns
// terminal or a fetch fails.
func (p *FeedPager) LoadUntil(ctx context.Context, n int) error {
	for {
		snap := p.Snapshot()
		if !snap.Enabled {
			return ErrFeedDisabled
		}
		if len(snap.Items) >= n || !snap.HasNextPage {
			return nil
		}
		if err := p.FetchNextPage(ctx); err != nil {
			return err
		}
		if p.Snapshot().Generation != snap.Generation {
			return nil
		}
	}
}

func (p *FeedPager) resetLocked() {
	p.generation++
	p.fetching = false
	p.err = nil
	p.state = notice.NewFeedState(p.opts.SourceKey)
}

func classifyFetchError(err error) error {
	if failure.KindOf(err) != failure.Unknown || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return new(failure.Error{Kind: failure.Unknown, Op: "fetch page", Err: err})
}

// Feeds keeps one pager per observed source key. Pagers share no state.
type Feeds struct {
	fetcher PageFetcher
	log     *zap.Logger

	mu     sync.Mutex
	pagers map[string]*observedFeed
}

type observedFeed struct {
	pager *FeedPager
	refs  int
}

// NewFeeds returns an empty registry.
func NewFeeds(fetcher PageFetcher, log *zap.Logger) *Feeds {
	if log == nil {
		log = zap.NewNop()
	}
	return new(Feeds{
		fetcher: fetcher,
		log:     log,
		pagers:  make(map[string]*observedFeed),
	})
}

// Observe returns the pager for opts.SourceKey, creating it on first use.
// Query and sort changes are applied to the existing pager.
func (f *Feeds) Observe(opts FeedOptions) *FeedPager {
	f.mu.Lock()
	defer f.mu.Unlock()
	if of, ok := f.pagers[opts.SourceKey]; ok {
		of.refs++
		of.pager.Configure(opts)
		return of.pager
	}
	p := NewFeedPager(f.fetcher, opts, f.log.With(zap.String("feed", opts.SourceKey)))
	f.pagers[opts.SourceKey] = &observedFeed{pager: p, refs: 1}
	return p
}

// Release drops one observer of sourceKey. The pager and its merged list are
// discarded with the last observer.
func (f *Feeds) Release(sourceKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, ok := f.pagers[sourceKey]
	if !ok {
		return
	}
	of.refs--
	if of.refs > 0 {
		return
	}
	of.pager.SetEnabled(false)
	delete(f.pagers, sourceKey)
}

// Observed lists the source keys currently observed.
func (f *Feeds) Observed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.pagers))
	for k := range f.pagers {
		keys = append(keys, k)
	}
	return keys
}
