package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/domain/notice"
)

// DetailRepository loads notice details from the backend.
type DetailRepository interface {
	Detail(ctx context.Context, detailURL string, id int64) (notice.Detail, error)
	IncrementView(ctx context.Context, id int64) (int, error)
}

// NoticeService implements the open-detail flow.
type NoticeService struct {
	Repo    DetailRepository
	Read    *ReadStatusStore
	Log     *zap.Logger
	Timeout time.Duration // bound on the view report
	cache   *expirable.LRU[string, notice.Detail]
}

// DetailCacheOptions sizes the detail cache.
type DetailCacheOptions struct {
	Size int
	TTL  time.Duration
}

// NewNoticeService returns a service with a detail cache.
func NewNoticeService(repo DetailRepository, read *ReadStatusStore, log *zap.Logger, cache DetailCacheOptions) *NoticeService {
	if log == nil {
		log = zap.NewNop()
	}
	if cache.Size <= 0 {
		cache.Size = 128
	}
	if cache.TTL <= 0 {
		cache.TTL = time.Minute
	}
	return new(NoticeService{
		Repo:    repo,
		Read:    read,
		Log:     log,
		Timeout: 5 * time.Second,
		cache:   expirable.NewLRU[string, notice.Detail](cache.Size, nil, cache.TTL),
	})
}

// OpenDetail marks item as read, reports the view to the backend when the id
// is known and returns the detail. Details are served from cache while fresh.
// The view report never fails the call.
func (s *NoticeService) OpenDetail(ctx context.Context, item notice.Item) (notice.Detail, error) {
	if item.DetailURL == "" {
		return notice.Detail{}, fmt.Errorf("open detail %q: missing detail url", item.Title)
	}
	if s.Read != nil {
		s.Read.MarkAsRead(item.DetailURL)
	}
	if item.ID > 0 {
		s.reportView(ctx, item.ID)
	}

	if d, ok := s.cache.Get(item.DetailURL); ok {
		return d, nil
	}
	d, err := s.Repo.Detail(ctx, item.DetailURL, item.ID)
	if err != nil {
		return notice.Detail{}, err
	}
	if d.DetailURL == "" {
		d.DetailURL = item.DetailURL
	}
	s.cache.Add(item.DetailURL, d)
	return d, nil
}

// CachedDetail returns a fresh cached detail, if any.
func (s *NoticeService) CachedDetail(detailURL string) (notice.Detail, bool) {
	return s.cache.Get(detailURL)
}

// Invalidate drops a cached detail.
func (s *NoticeService) Invalidate(detailURL string) {
	s.cache.Remove(detailURL)
}

func (s *NoticeService) reportView(ctx context.Context, id int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()
	views, err := s.Repo.IncrementView(ctx, id)
	if err != nil {
		s.Log.Debug("view report failed", zap.Int64("id", id), zap.Error(err))
		return
	}
	s.Log.Debug("view reported", zap.Int64("id", id), zap.Int("app_views", views))
}
