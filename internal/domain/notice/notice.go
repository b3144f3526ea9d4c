// Package notice defines core notice board models.
package notice

import (
	"strconv"
	"time"
)

// AllSourceKey is the aggregated source covering every general category.
const AllSourceKey = "all"

// UnsetDepartmentKey is the source key used while no department is selected.
const UnsetDepartmentKey = "__unset__"

// GeneralCategories lists the non-department categories served by the board.
var GeneralCategories = []string{
	"academic",
	"scholar",
	"learning",
	"job",
	"event_internal",
	"event_external",
}

// Item represents a single notice in a list page.
type Item struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	DetailURL string `json:"detailUrl"`
	Date      string `json:"date,omitempty"`
	Category  string `json:"category,omitempty"`
	Author    string `json:"author,omitempty"`
	UnivViews int    `json:"univ_views,omitempty"`
	AppViews  int    `json:"app_views,omitempty"`
	Views     int    `json:"views,omitempty"`
	IsPinned  bool   `json:"is_pinned,omitempty"`
	IsScraped bool   `json:"is_scraped,omitempty"`
}

// Key returns the identity key of the item at the given absolute position.
// Items without a detail URL fall back to title+position, which only
// deduplicates echoes of the same slot.
func (it Item) Key(position int) string {
	if it.DetailURL != "" {
		return it.DetailURL
	}
	return "title:" + it.Title + "@" + strconv.Itoa(position)
}

// Page is the canonical result of one page fetch.
type Page struct {
	Items      []Item
	Total      int
	Page       int
	Size       int
	TotalPages int
}

// PageQuery describes one page request for a source key.
type PageQuery struct {
	SourceKey string
	Page      int
	Size      int
	Query     string
	SortBy    string
}

// Attachment is a downloadable file linked from a notice.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Detail is the full content of a notice.
type Detail struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	DetailURL   string       `json:"link"`
	Date        string       `json:"date,omitempty"`
	Category    string       `json:"category,omitempty"`
	Author      string       `json:"author,omitempty"`
	Content     string       `json:"content"`
	Images      []string     `json:"images,omitempty"`
	Files       []Attachment `json:"files,omitempty"`
	UnivViews   int          `json:"univ_views,omitempty"`
	AppViews    int          `json:"app_views,omitempty"`
	Views       int          `json:"views,omitempty"`
	IsPinned    bool         `json:"is_pinned,omitempty"`
	IsScraped   bool         `json:"is_scraped,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	IsImageOnly bool         `json:"is_image_only,omitempty"`
}

// Bookmark is a notice snapshot saved by the user.
// The embedded item is frozen at save time.
type Bookmark struct {
	Item
	SourceKey string    `json:"sourceKey"`
	SavedAt   time.Time `json:"savedAt"`
}

// FilterByCategories keeps items that belong to a general category or to one
// of the selected departments. With no departments selected, items pass through.
func FilterByCategories(items []Item, departments []string) []Item {
	if len(departments) == 0 {
		return items
	}
	allowed := make(map[string]struct{}, len(GeneralCategories)+len(departments))
	for _, c := range GeneralCategories {
		allowed[c] = struct{}{}
	}
	for _, d := range departments {
		if d != "" {
			allowed[d] = struct{}{}
		}
	}

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Category == "" {
			continue
		}
		if _, ok := allowed[it.Category]; ok {
			out = append(out, it)
		}
	}
	return out
}
