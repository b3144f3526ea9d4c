// Package usecase contains application-level services.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/application/persist"
	"github.com/tesso57/knotice/internal/domain/notice"
)

// BookmarksKey is the durable key of the bookmark list.
const BookmarksKey = "@knu_bookmarks_v1"

// BookmarkStore keeps saved notices, most recently saved first.
type BookmarkStore struct {
	cell *persist.Cell[[]notice.Bookmark]
	Now  func() time.Time
}

// NewBookmarkStore opens the bookmark list on backend.
func NewBookmarkStore(backend persist.Backend, log *zap.Logger, now func() time.Time) *BookmarkStore {
	return new(BookmarkStore{
		cell: persist.Open(backend, BookmarksKey, []notice.Bookmark{}, persist.Options[[]notice.Bookmark]{
			Logger: log,
			Decode: decodeBookmarks,
		}),
		Now: now,
	})
}

// Ready reports whether the stored list has been loaded.
func (s *BookmarkStore) Ready() bool { return s.cell.Ready() }

// Wait blocks until the stored list has been loaded.
func (s *BookmarkStore) Wait(ctx context.Context) error { return s.cell.Wait(ctx) }

// Close flushes pending writes.
func (s *BookmarkStore) Close(ctx context.Context) error { return s.cell.Close(ctx) }

// List returns a copy of the bookmarks.
func (s *BookmarkStore) List() []notice.Bookmark {
	cur := s.cell.Get()
	out := make([]notice.Bookmark, len(cur))
	copy(out, cur)
	return out
}

// IsBookmarked reports whether detailURL is saved.
func (s *BookmarkStore) IsBookmarked(detailURL string) bool {
	return indexOfBookmark(s.cell.Get(), detailURL) >= 0
}

// Toggle removes the bookmark for item if present, otherwise saves a snapshot
// of item at the front of the list. It returns whether item is now bookmarked.
// Items without a detail URL cannot be bookmarked.
func (s *BookmarkStore) Toggle(item notice.Item, sourceKey string) bool {
	if item.DetailURL == "" {
		return false
	}
	saved := notice.Bookmark{Item: item, SourceKey: sourceKey, SavedAt: s.now()}
	next := s.cell.Update(func(cur []notice.Bookmark) []notice.Bookmark {
		if indexOfBookmark(cur, item.DetailURL) >= 0 {
			return withoutBookmark(cur, item.DetailURL)
		}
		out := make([]notice.Bookmark, 0, len(cur)+1)
		out = append(out, saved)
		return append(out, cur...)
	})
	return indexOfBookmark(next, item.DetailURL) >= 0
}

// Remove deletes the bookmark for detailURL.
func (s *BookmarkStore) Remove(detailURL string) {
	if !s.IsBookmarked(detailURL) && s.Ready() {
		return
	}
	s.cell.Update(func(cur []notice.Bookmark) []notice.Bookmark {
		return withoutBookmark(cur, detailURL)
	})
}

// ClearAll removes every bookmark.
func (s *BookmarkStore) ClearAll() {
	s.cell.Set([]notice.Bookmark{})
}

func (s *BookmarkStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func indexOfBookmark(list []notice.Bookmark, detailURL string) int {
	for i, b := range list {
		if b.DetailURL == detailURL {
			return i
		}
	}
	return -1
}

func withoutBookmark(list []notice.Bookmark, detailURL string) []notice.Bookmark {
	out := make([]notice.Bookmark, 0, len(list))
	for _, b := range list {
		if b.DetailURL != detailURL {
			out = append(out, b)
		}
	}
	return out
}

// decodeBookmarks drops entries without a detail URL and duplicates so a
// hand-edited blob cannot break uniqueness.
func decodeBookmarks(data []byte) ([]notice.Bookmark, bool) {
	var raw []notice.Bookmark
	if !decodeJSON(data, &raw) {
		return nil, false
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]notice.Bookmark, 0, len(raw))
	for _, b := range raw {
		if b.DetailURL == "" {
			continue
		}
		if _, dup := seen[b.DetailURL]; dup {
			continue
		}
		seen[b.DetailURL] = struct{}{}
		out = append(out, b)
	}
	return out, true
}
