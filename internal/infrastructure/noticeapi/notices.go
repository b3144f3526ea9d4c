package noticeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/tesso57/knotice/internal/domain/failure"
	"github.com/tesso57/knotice/internal/domain/notice"
)

var contentPolicy = bluemonday.StrictPolicy()

// Notices fetches one list page. SourceKey maps to the category parameter.
func (c *Client) Notices(ctx context.Context, q notice.PageQuery) (notice.Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	params := url.Values{}
	category := q.SourceKey
	if category == "" {
		category = notice.AllSourceKey
	}
	params.Set("category", category)
	params.Set("page", strconv.Itoa(q.Page))
	if q.Size > 0 {
		params.Set("size", strconv.Itoa(q.Size))
	}
	if s := strings.TrimSpace(q.Query); s != "" {
		params.Set("q", s)
	}
	if q.SortBy != "" {
		params.Set("sort_by", q.SortBy)
	}
	return c.getPage(ctx, "notices", "/notices", c.withToken(params), q.Page, q.Size)
}

// FetchPage implements usecase.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, q notice.PageQuery) (notice.Page, error) {
	return c.Notices(ctx, q)
}

func (c *Client) getPage(ctx context.Context, op, path string, params url.Values, page, size int) (notice.Page, error) {
	var raw json.RawMessage
	if err := c.do(ctx, op, http.MethodGet, path, params, nil, &raw); err != nil {
		return notice.Page{}, err
	}
	p, err := decodePage(raw, page, size)
	if err != nil {
		return notice.Page{}, failure.NewParse(op, err)
	}
	return p, nil
}

// Detail fetches the full notice at detailURL. id is sent when positive so the
// backend can serve its stored copy and scrap flag.
func (c *Client) Detail(ctx context.Context, detailURL string, id int64) (notice.Detail, error) {
	detailURL = strings.TrimSpace(detailURL)
	if detailURL == "" {
		return notice.Detail{}, errors.New("detail url is empty")
	}
	params := url.Values{}
	params.Set("url", detailURL)
	if id > 0 {
		params.Set("notice_id", strconv.FormatInt(id, 10))
	}

	var w wireDetail
	if err := c.do(ctx, "detail", http.MethodGet, "/notice/detail", c.withToken(params), nil, &w); err != nil {
		return notice.Detail{}, err
	}
	d := w.toDetail(contentPolicy)
	if d.DetailURL == "" {
		d.DetailURL = detailURL
	}
	if d.ID == 0 {
		d.ID = id
	}
	return d, nil
}

// IncrementView reports a view and returns the new app view count.
func (c *Client) IncrementView(ctx context.Context, id int64) (int, error) {
	var out struct {
		Success  bool `json:"success"`
		AppViews int  `json:"app_views"`
	}
	path := "/notice/" + strconv.FormatInt(id, 10) + "/view"
	if err := c.do(ctx, "view", http.MethodPost, path, nil, nil, &out); err != nil {
		return 0, err
	}
	return out.AppViews, nil
}

// ToggleScrap flips the server-side scrap of id for the configured token and
// reports whether it is now scrapped.
func (c *Client) ToggleScrap(ctx context.Context, id int64) (bool, error) {
	if c.token == "" {
		return false, errors.New("scrap requires a device token")
	}
	body := map[string]string{"token": c.token}
	var out struct {
		Status string `json:"status"`
	}
	path := "/scrap/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, "scrap", http.MethodPost, path, nil, body, &out); err != nil {
		return false, err
	}
	switch out.Status {
	case "added":
		return true, nil
	case "removed":
		return false, nil
	default:
		return false, failure.NewParse("scrap", errors.New("unexpected status "+strconv.Quote(out.Status)))
	}
}

// Scraps lists the notices scrapped with the configured token.
func (c *Client) Scraps(ctx context.Context) ([]notice.Item, error) {
	if c.token == "" {
		return []notice.Item{}, nil
	}
	p, err := c.getPage(ctx, "scraps", "/scraps", c.withToken(nil), 1, 0)
	if err != nil {
		return nil, err
	}
	for i := range p.Items {
		p.Items[i].IsScraped = true
	}
	return p.Items, nil
}

// Category is a backend category key with its display name.
type Category struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Categories lists the categories known to the backend.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.do(ctx, "categories", http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats is the backend's aggregate counters.
type Stats struct {
	TotalNotices int            `json:"total_notices"`
	ByCategory   map[string]int `json:"by_category"`
	TodayCrawled int            `json:"today_crawled"`
	TotalDevices int            `json:"total_devices"`
}

// Stats fetches aggregate counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	if err := c.do(ctx, "stats", http.MethodGet, "/stats", nil, nil, &out); err != nil {
		return Stats{}, err
	}
	return out, nil
}

// SearchParams filters an advanced search.
type SearchParams struct {
	Query    string
	Category string
	DateFrom string
	DateTo   string
	Page     int
	Size     int
}

// SearchAdvanced runs a filtered search.
func (c *Client) SearchAdvanced(ctx context.Context, p SearchParams) (notice.Page, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	params := url.Values{}
	for k, v := range map[string]string{
		"q":         strings.TrimSpace(p.Query),
		"category":  p.Category,
		"date_from": p.DateFrom,
		"date_to":   p.DateTo,
	} {
		if v != "" {
			params.Set(k, v)
		}
	}
	params.Set("page", strconv.Itoa(p.Page))
	if p.Size > 0 {
		params.Set("size", strconv.Itoa(p.Size))
	}
	return c.getPage(ctx, "search", "/search/advanced", c.withToken(params), p.Page, p.Size)
}
