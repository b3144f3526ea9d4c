package usecase

import (
	"context"

	"github.com/tesso57/knotice/internal/domain/notice"
)

// SourceRouter sends page requests for selected source keys to dedicated
// fetchers and everything else to Default.
type SourceRouter struct {
	Default PageFetcher
	Routes  map[string]PageFetcher
}

// FetchPage implements PageFetcher.
func (r SourceRouter) FetchPage(ctx context.Context, q notice.PageQuery) (notice.Page, error) {
	if f, ok := r.Routes[q.SourceKey]; ok && f != nil {
		return f.FetchPage(ctx, q)
	}
	return r.Default.FetchPage(ctx, q)
}

// RouteAll maps every key to f.
func (r *SourceRouter) RouteAll(keys []string, f PageFetcher) {
	if r.Routes == nil {
		r.Routes = make(map[string]PageFetcher, len(keys))
	}
	for _, k := range keys {
		r.Routes[k] = f
	}
}
