package usecase

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/application/persist"
)

// ReadStatusKey is the durable key of the read set.
const ReadStatusKey = "@knu_read_status_v1"

// ReadSet is an insertion-ordered set of detail URLs. Values are immutable;
// adding returns a new set.
type ReadSet struct {
	urls  []string
	index map[string]struct{}
}

// NewReadSet builds a set from urls, skipping blanks and duplicates.
func NewReadSet(urls ...string) ReadSet {
	s := ReadSet{index: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := s.index[u]; ok {
			continue
		}
		s.index[u] = struct{}{}
		s.urls = append(s.urls, u)
	}
	return s
}

// Has reports membership.
func (s ReadSet) Has(url string) bool {
	_, ok := s.index[url]
	return ok
}

// Len returns the number of members.
func (s ReadSet) Len() int { return len(s.urls) }

// URLs returns a copy of the members in insertion order.
func (s ReadSet) URLs() []string {
	return append([]string(nil), s.urls...)
}

func (s ReadSet) with(url string) ReadSet {
	if s.Has(url) {
		return s
	}
	next := ReadSet{
		urls:  make([]string, 0, len(s.urls)+1),
		index: make(map[string]struct{}, len(s.index)+1),
	}
	next.urls = append(append(next.urls, s.urls...), url)
	for k := range s.index {
		next.index[k] = struct{}{}
	}
	next.index[url] = struct{}{}
	return next
}

// MarshalJSON encodes the set as a JSON array.
func (s ReadSet) MarshalJSON() ([]byte, error) {
	if s.urls == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.urls)
}

// UnmarshalJSON decodes a JSON array of URLs.
func (s *ReadSet) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return err
	}
	*s = NewReadSet(urls...)
	return nil
}

// ReadStatusStore tracks which notices have been opened. Membership only
// grows during normal use; ClearAll is an administrative reset.
type ReadStatusStore struct {
	cell *persist.Cell[ReadSet]
}

// NewReadStatusStore opens the read set on backend.
func NewReadStatusStore(backend persist.Backend, log *zap.Logger) *ReadStatusStore {
	return new(ReadStatusStore{
		cell: persist.Open(backend, ReadStatusKey, NewReadSet(), persist.Options[ReadSet]{Logger: log}),
	})
}

// Ready reports whether the stored set has been loaded.
func (s *ReadStatusStore) Ready() bool { return s.cell.Ready() }

// Wait blocks until the stored set has been loaded.
func (s *ReadStatusStore) Wait(ctx context.Context) error { return s.cell.Wait(ctx) }

// Close flushes pending writes.
func (s *ReadStatusStore) Close(ctx context.Context) error { return s.cell.Close(ctx) }

// MarkAsRead records detailURL. Repeated calls are no-ops.
func (s *ReadStatusStore) MarkAsRead(detailURL string) {
	if detailURL == "" {
		return
	}
	if s.Ready() && s.cell.Get().Has(detailURL) {
		return
	}
	s.cell.Update(func(cur ReadSet) ReadSet { return cur.with(detailURL) })
}

// IsRead reports whether detailURL was marked.
func (s *ReadStatusStore) IsRead(detailURL string) bool {
	return s.cell.Get().Has(detailURL)
}

// Len returns the number of read notices.
func (s *ReadStatusStore) Len() int {
	return s.cell.Get().Len()
}

// ClearAll empties the set.
func (s *ReadStatusStore) ClearAll() {
	s.cell.Set(NewReadSet())
}
