package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/application/persist"
	"github.com/tesso57/knotice/internal/domain/notice"
)

// Durable keys of auxiliary preferences.
const (
	RecentSearchesKey = "@knu_recent_searches_v1"
	DepartmentKey     = "@knu_selected_dept_v1"
)

// MaxRecentSearches caps the recent search list.
const MaxRecentSearches = 10

// RecentSearchStore keeps the latest search terms, newest first.
type RecentSearchStore struct {
	cell *persist.Cell[[]string]
}

// NewRecentSearchStore opens the recent search list on backend.
func NewRecentSearchStore(backend persist.Backend, log *zap.Logger) *RecentSearchStore {
	return new(RecentSearchStore{
		cell: persist.Open(backend, RecentSearchesKey, []string{}, persist.Options[[]string]{Logger: log}),
	})
}

// Wait blocks until the stored list has been loaded.
func (s *RecentSearchStore) Wait(ctx context.Context) error { return s.cell.Wait(ctx) }

// Close flushes pending writes.
func (s *RecentSearchStore) Close(ctx context.Context) error { return s.cell.Close(ctx) }

// List returns the terms, newest first.
func (s *RecentSearchStore) List() []string {
	return append([]string(nil), s.cell.Get()...)
}

// Add moves term to the front. Blank terms are ignored.
func (s *RecentSearchStore) Add(term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	s.cell.Update(func(cur []string) []string {
		out := make([]string, 0, len(cur)+1)
		out = append(out, term)
		for _, t := range cur {
			if t != term {
				out = append(out, t)
			}
		}
		if len(out) > MaxRecentSearches {
			out = out[:MaxRecentSearches]
		}
		return out
	})
}

// Remove deletes a single term.
func (s *RecentSearchStore) Remove(term string) {
	s.cell.Update(func(cur []string) []string {
		out := make([]string, 0, len(cur))
		for _, t := range cur {
			if t != term {
				out = append(out, t)
			}
		}
		return out
	})
}

// Clear drops every term.
func (s *RecentSearchStore) Clear() {
	s.cell.Set([]string{})
}

// DepartmentStore keeps the selected department id. Empty means unset.
type DepartmentStore struct {
	cell *persist.Cell[string]
}

// NewDepartmentStore opens the department selection on backend.
func NewDepartmentStore(backend persist.Backend, log *zap.Logger) *DepartmentStore {
	return new(DepartmentStore{
		cell: persist.Open(backend, DepartmentKey, "", persist.Options[string]{
			Logger: log,
			Decode: decodeLooseString,
		}),
	})
}

// Wait blocks until the stored selection has been loaded.
func (s *DepartmentStore) Wait(ctx context.Context) error { return s.cell.Wait(ctx) }

// Close flushes pending writes.
func (s *DepartmentStore) Close(ctx context.Context) error { return s.cell.Close(ctx) }

// Selected returns the department id, or "".
func (s *DepartmentStore) Selected() string { return s.cell.Get() }

// Select stores id. An empty id clears the selection.
func (s *DepartmentStore) Select(id string) { s.cell.Set(strings.TrimSpace(id)) }

// FeedOptions returns the pager options for the department tab: the feed is
// disabled until a department is selected.
func (s *DepartmentStore) FeedOptions(pageSize int) FeedOptions {
	dept := s.Selected()
	if dept == "" {
		return FeedOptions{SourceKey: notice.UnsetDepartmentKey, PageSize: pageSize}
	}
	return FeedOptions{SourceKey: dept, PageSize: pageSize, Enabled: true}
}

func decodeJSON(data []byte, v any) bool {
	if len(bytes.TrimSpace(data)) == 0 {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// decodeLooseString accepts a JSON string or a bare, unquoted value.
func decodeLooseString(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	}
	if bytes.ContainsAny(trimmed, "{}[]") {
		return "", false
	}
	return string(trimmed), true
}
