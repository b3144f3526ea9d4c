package notice

// FeedState is the accumulated, deduplicated list for one source key.
type FeedState struct {
	SourceKey   string
	NextPage    int
	HasNextPage bool

	items []Item
	seen  map[string]struct{}
}

// MergeResult reports how one page changed a FeedState.
type MergeResult struct {
	Page     int
	Returned int
	NewCount int
	Terminal bool
}

// NewFeedState returns an empty state positioned at page 1.
func NewFeedState(sourceKey string) *FeedState {
	return new(FeedState{
		SourceKey:   sourceKey,
		NextPage:    1,
		HasNextPage: true,
		seen:        make(map[string]struct{}),
	})
}

// ApplyPage merges the items of the page at NextPage.
// First occurrence wins and fetch order is preserved. The feed turns terminal
// when the page adds nothing new or comes back shorter than pageSize.
func (s *FeedState) ApplyPage(items []Item, pageSize int) MergeResult {
	res := MergeResult{Page: s.NextPage, Returned: len(items)}
	base := (s.NextPage - 1) * pageSize
	for i, it := range items {
		key := it.Key(base + i)
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.items = append(s.items, it)
		res.NewCount++
	}

	if res.NewCount == 0 || len(items) < pageSize {
		s.HasNextPage = false
		res.Terminal = true
		return res
	}
	s.NextPage++
	return res
}

// Items returns a copy of the merged list.
func (s *FeedState) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of merged items.
func (s *FeedState) Len() int {
	return len(s.items)
}

// Contains reports whether an item with the given key was merged.
func (s *FeedState) Contains(key string) bool {
	_, ok := s.seen[key]
	return ok
}

// Reset drops every merged page and rewinds to page 1.
func (s *FeedState) Reset() {
	s.items = nil
	s.seen = make(map[string]struct{})
	s.NextPage = 1
	s.HasNextPage = true
}
