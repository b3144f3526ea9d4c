package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tesso57/knotice/internal/application/persist"
)

// Stores bundles every persisted client store. Each store owns its own key.
type Stores struct {
	Bookmarks   *BookmarkStore
	ReadStatus  *ReadStatusStore
	Theme       *ThemeStore
	Recent      *RecentSearchStore
	Departments *DepartmentStore
}

// OpenStores starts loading every store from backend.
func OpenStores(backend persist.Backend, log *zap.Logger, now func() time.Time) *Stores {
	if log == nil {
		log = zap.NewNop()
	}
	return new(Stores{
		Bookmarks:   NewBookmarkStore(backend, log, now),
		ReadStatus:  NewReadStatusStore(backend, log),
		Theme:       NewThemeStore(backend, log),
		Recent:      NewRecentSearchStore(backend, log),
		Departments: NewDepartmentStore(backend, log),
	})
}

type lifecycle interface {
	Wait(ctx context.Context) error
	Close(ctx context.Context) error
}

func (s *Stores) all() []lifecycle {
	return []lifecycle{s.Bookmarks, s.ReadStatus, s.Theme, s.Recent, s.Departments}
}

// Wait blocks until every store finished its initial load.
func (s *Stores) Wait(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, st := range s.all() {
		g.Go(func() error { return st.Wait(ctx) })
	}
	return g.Wait()
}

// Close flushes every store. All stores are closed even if one fails.
func (s *Stores) Close(ctx context.Context) error {
	var g errgroup.Group
	for _, st := range s.all() {
		g.Go(func() error { return st.Close(ctx) })
	}
	return g.Wait()
}
