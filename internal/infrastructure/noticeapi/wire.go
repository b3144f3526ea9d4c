package noticeapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/tesso57/knotice/internal/domain/notice"
)

// wireItem is a notice as sent by the backend. Older payloads use
// detailUrl instead of link and may send null for optional fields.
type wireItem struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	DetailURL string  `json:"detailUrl"`
	Date      *string `json:"date"`
	Category  *string `json:"category"`
	Author    *string `json:"author"`
	UnivViews *int    `json:"univ_views"`
	AppViews  *int    `json:"app_views"`
	Views     *int    `json:"views"`
	IsPinned  bool    `json:"is_pinned"`
	IsScraped bool    `json:"is_scraped"`
}

func (w wireItem) toItem() notice.Item {
	it := notice.Item{
		ID:        w.ID,
		Title:     strings.TrimSpace(w.Title),
		DetailURL: strings.TrimSpace(w.Link),
		Date:      deref(w.Date),
		Category:  deref(w.Category),
		Author:    deref(w.Author),
		UnivViews: derefInt(w.UnivViews),
		AppViews:  derefInt(w.AppViews),
		IsPinned:  w.IsPinned,
		IsScraped: w.IsScraped,
	}
	if it.DetailURL == "" {
		it.DetailURL = strings.TrimSpace(w.DetailURL)
	}
	it.Views = it.UnivViews + it.AppViews
	if w.Views != nil {
		it.Views = *w.Views
	}
	return it
}

type wirePagination struct {
	Page       *int `json:"page"`
	Size       *int `json:"size"`
	TotalPages *int `json:"total_pages"`
}

// wirePage covers both wrapped list shapes:
// {items,total,page,size,total_pages} and {count,items,pagination}.
type wirePage struct {
	Items      []wireItem      `json:"items"`
	Total      *int            `json:"total"`
	Count      *int            `json:"count"`
	Page       *int            `json:"page"`
	Size       *int            `json:"size"`
	TotalPages *int            `json:"total_pages"`
	Pagination *wirePagination `json:"pagination"`
}

var errUnknownShape = errors.New("unrecognized list payload")

// decodePage normalizes any list payload into a Page. Missing fields fall
// back to the requested page and size, the item count and an unknown (zero)
// page total.
func decodePage(data []byte, page, size int) (notice.Page, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return notice.Page{}, errUnknownShape
	}

	var wp wirePage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &wp.Items); err != nil {
			return notice.Page{}, err
		}
	case '{':
		if err := json.Unmarshal(trimmed, &wp); err != nil {
			return notice.Page{}, err
		}
		if wp.Items == nil && !bytes.Contains(trimmed, []byte(`"items"`)) {
			return notice.Page{}, fmt.Errorf("%w: missing items", errUnknownShape)
		}
	default:
		if bytes.Equal(trimmed, []byte("null")) {
			break
		}
		return notice.Page{}, errUnknownShape
	}

	out := notice.Page{
		Items: make([]notice.Item, 0, len(wp.Items)),
		Page:  page,
		Size:  size,
	}
	for _, w := range wp.Items {
		out.Items = append(out.Items, w.toItem())
	}
	out.Total = len(out.Items)

	if p := wp.Pagination; p != nil {
		setIf(&out.Page, p.Page)
		setIf(&out.Size, p.Size)
		setIf(&out.TotalPages, p.TotalPages)
	}
	setIf(&out.Page, wp.Page)
	setIf(&out.Size, wp.Size)
	setIf(&out.TotalPages, wp.TotalPages)
	setIf(&out.Total, wp.Count)
	setIf(&out.Total, wp.Total)
	return out, nil
}

type wireDetail struct {
	ID          *int64              `json:"id"`
	Title       string              `json:"title"`
	Link        string              `json:"link"`
	Date        *string             `json:"date"`
	Category    *string             `json:"category"`
	Author      *string             `json:"author"`
	Content     *string             `json:"content"`
	Texts       []string            `json:"texts"`
	Images      []string            `json:"images"`
	Files       []notice.Attachment `json:"files"`
	UnivViews   *int                `json:"univ_views"`
	AppViews    *int                `json:"app_views"`
	Views       *int                `json:"views"`
	IsPinned    bool                `json:"is_pinned"`
	IsScraped   bool                `json:"is_scraped"`
	Summary     *string             `json:"summary"`
	IsImageOnly bool                `json:"is_image_only"`
}

func (w wireDetail) toDetail(policy *bluemonday.Policy) notice.Detail {
	content := deref(w.Content)
	if content == "" && len(w.Texts) > 0 {
		content = strings.Join(w.Texts, "\n\n")
	}
	d := notice.Detail{
		Title:       strings.TrimSpace(w.Title),
		DetailURL:   strings.TrimSpace(w.Link),
		Date:        deref(w.Date),
		Category:    deref(w.Category),
		Author:      deref(w.Author),
		Content:     plainText(policy, content),
		Images:      w.Images,
		UnivViews:   derefInt(w.UnivViews),
		AppViews:    derefInt(w.AppViews),
		IsPinned:    w.IsPinned,
		IsScraped:   w.IsScraped,
		Summary:     deref(w.Summary),
		IsImageOnly: w.IsImageOnly,
	}
	if w.ID != nil {
		d.ID = *w.ID
	}
	for _, f := range w.Files {
		if strings.TrimSpace(f.URL) == "" {
			continue
		}
		d.Files = append(d.Files, f)
	}
	d.Views = d.UnivViews + d.AppViews
	if w.Views != nil {
		d.Views = *w.Views
	}
	return d
}

// plainText strips markup line by line so paragraph breaks survive.
func plainText(policy *bluemonday.Policy, s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		text := strings.TrimSpace(html.UnescapeString(policy.Sanitize(line)))
		if text == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, text)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func setIf(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
