// Package cli provides the knotice command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/application/usecase"
	"github.com/tesso57/knotice/internal/domain/notice"
	"github.com/tesso57/knotice/internal/infrastructure/noticeapi"
)

// RemoteAPI is the subset of the backend used directly by commands.
type RemoteAPI interface {
	Categories(ctx context.Context) ([]noticeapi.Category, error)
	Stats(ctx context.Context) (noticeapi.Stats, error)
	SearchAdvanced(ctx context.Context, p noticeapi.SearchParams) (notice.Page, error)
	ToggleScrap(ctx context.Context, id int64) (bool, error)
	Scraps(ctx context.Context) ([]notice.Item, error)
}

// TokenStore persists the device token.
type TokenStore interface {
	SetToken(token string) error
}

// ErrNoBackend is returned by commands that need the backend when none is configured.
var ErrNoBackend = errors.New("no backend configured: set api_base_url or KNOTICE_API_BASE_URL")

// App carries the dependencies commands run against.
type App struct {
	Ctx      context.Context
	Out      io.Writer
	Stores   *usecase.Stores
	Feeds    *usecase.Feeds
	Notices  *usecase.NoticeService
	API      RemoteAPI
	Sources  usecase.SourceService
	Tokens   TokenStore
	PageSize int
	Width    int
	Log      *zap.Logger
}

func (a *App) palette() Palette {
	return PaletteFor(a.Stores.Theme.Theme())
}

func (a *App) remote() (RemoteAPI, error) {
	if a.API == nil {
		return nil, ErrNoBackend
	}
	return a.API, nil
}

func (a *App) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.Out, format, args...)
}

func (a *App) println(s string) {
	_, _ = fmt.Fprintln(a.Out, s)
}

// CLI is the kong command tree.
type CLI struct {
	Config string `help:"Config file path" type:"path" short:"c"`
	Width  int    `help:"Truncate notice rows to this many columns (0 disables)" env:"COLUMNS" default:"0"`

	List       ListCmd       `cmd:"" help:"List notices of a source"`
	Open       OpenCmd       `cmd:"" help:"Show a notice and mark it read"`
	Bookmark   BookmarkCmd   `cmd:"" help:"Toggle a bookmark"`
	Bookmarks  BookmarksCmd  `cmd:"" help:"List saved bookmarks"`
	Theme      ThemeCmd      `cmd:"" help:"Show or change the theme"`
	Dept       DeptCmd       `cmd:"" help:"Show or select the department"`
	Recent     RecentCmd     `cmd:"" help:"Show recent searches"`
	Search     SearchCmd     `cmd:"" help:"Advanced search"`
	Scrap      ScrapCmd      `cmd:"" help:"Toggle a server-side scrap"`
	Categories CategoriesCmd `cmd:"" help:"List backend categories"`
	Stats      StatsCmd      `cmd:"" help:"Show backend statistics"`
	Source     SourceCmd     `cmd:"" help:"Manage RSS notice sources"`
	Token      TokenCmd      `cmd:"" help:"Set the device token"`
}

// NewParser builds the kong parser for c.
func NewParser(c *CLI, opts ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("knotice"),
		kong.Description("University notice board client."),
		kong.UsageOnError(),
	}
	return kong.New(c, append(base, opts...)...)
}

// ListCmd prints merged pages of a source.
type ListCmd struct {
	Source string `arg:"" optional:"" help:"Source key (all, a category, dept or an RSS source)" default:"all"`
	Pages  int    `help:"Pages to load" default:"1"`
	Query  string `short:"q" help:"Search text"`
	Sort   string `help:"Sort order (date, views)"`
}

// Run executes the command.
func (c *ListCmd) Run(app *App) error {
	opts, err := app.feedOptions(c.Source, c.Query, c.Sort)
	if err != nil {
		return err
	}
	if c.Query != "" {
		app.Stores.Recent.Add(c.Query)
	}

	pager := app.Feeds.Observe(opts)
	defer app.Feeds.Release(opts.SourceKey)

	pal := app.palette()
	var fetchErr error
	for range max(c.Pages, 1) {
		if !pager.Snapshot().HasNextPage {
			break
		}
		if fetchErr = pager.FetchNextPage(app.Ctx); fetchErr != nil {
			break
		}
	}

	snap := pager.Snapshot()
	items := snap.Items
	if opts.SourceKey == notice.AllSourceKey {
		if dept := app.Stores.Departments.Selected(); dept != "" {
			items = notice.FilterByCategories(items, []string{dept})
		}
	}
	for i, it := range items {
		app.println(RenderRow(pal, Row{
			Index:      i + 1,
			Item:       it,
			Bookmarked: app.Stores.Bookmarks.IsBookmarked(it.DetailURL),
			Read:       app.Stores.ReadStatus.IsRead(it.DetailURL),
			Width:      app.Width,
		}))
	}
	if len(items) == 0 && fetchErr == nil {
		app.println(pal.Meta.Render("no notices"))
	}
	if fetchErr != nil {
		app.println(RenderError(pal, fetchErr))
		return fetchErr
	}
	if snap.HasNextPage {
		app.println(pal.Meta.Render(fmt.Sprintf("more available from page %d", snap.NextPage)))
	}
	return nil
}

func (a *App) feedOptions(source, query, sortBy string) (usecase.FeedOptions, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		source = notice.AllSourceKey
	}
	if source == "dept" {
		opts := a.Stores.Departments.FeedOptions(a.PageSize)
		if !opts.Enabled {
			return opts, fmt.Errorf("no department selected: run `knotice dept <id>` first: %w", usecase.ErrFeedDisabled)
		}
		opts.Query, opts.SortBy = query, sortBy
		return opts, nil
	}
	return usecase.FeedOptions{
		SourceKey: source,
		PageSize:  a.PageSize,
		Query:     query,
		SortBy:    sortBy,
		Enabled:   true,
	}, nil
}

// findItem looks for detailURL in the first pages of source.
func (a *App) findItem(source, detailURL string, pages int) (notice.Item, bool, error) {
	opts, err := a.feedOptions(source, "", "")
	if err != nil {
		return notice.Item{}, false, err
	}
	pager := a.Feeds.Observe(opts)
	defer a.Feeds.Release(opts.SourceKey)

	for range pages {
		for _, it := range pager.Snapshot().Items {
			if it.DetailURL == detailURL {
				return it, true, nil
			}
		}
		if !pager.Snapshot().HasNextPage {
			break
		}
		if err := pager.FetchNextPage(a.Ctx); err != nil {
			return notice.Item{}, false, err
		}
	}
	for _, it := range pager.Snapshot().Items {
		if it.DetailURL == detailURL {
			return it, true, nil
		}
	}
	return notice.Item{}, false, nil
}

// OpenCmd opens a notice detail.
type OpenCmd struct {
	URL    string `arg:"" help:"Detail URL"`
	Source string `help:"Source to look the notice up in" default:"all"`
	Pages  int    `help:"Pages to search for the notice" default:"3"`
}

// Run executes the command.
func (c *OpenCmd) Run(app *App) error {
	it := notice.Item{DetailURL: c.URL}
	if found, ok, err := app.findItem(c.Source, c.URL, c.Pages); err == nil && ok {
		it = found
	} else if err != nil {
		app.logger().Debug("lookup before open failed", zap.Error(err))
	}

	d, err := app.Notices.OpenDetail(app.Ctx, it)
	if err != nil {
		app.println(RenderError(app.palette(), err))
		return err
	}
	app.println(RenderDetail(app.palette(), d))
	return nil
}

// BookmarkCmd toggles a bookmark.
type BookmarkCmd struct {
	URL    string `arg:"" help:"Detail URL"`
	Source string `help:"Source the notice belongs to" default:"all"`
	Pages  int    `help:"Pages to search for the notice" default:"3"`
}

// Run executes the command.
func (c *BookmarkCmd) Run(app *App) error {
	if app.Stores.Bookmarks.IsBookmarked(c.URL) {
		app.Stores.Bookmarks.Remove(c.URL)
		app.printf("removed bookmark %s\n", c.URL)
		return nil
	}
	it, ok, err := app.findItem(c.Source, c.URL, c.Pages)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("notice %s not found in the first %d pages of %q", c.URL, c.Pages, c.Source)
	}
	app.Stores.Bookmarks.Toggle(it, c.Source)
	app.printf("bookmarked %s\n", it.Title)
	return nil
}

// BookmarksCmd lists bookmarks.
type BookmarksCmd struct {
	Clear bool `help:"Remove every bookmark"`
}

// Run executes the command.
func (c *BookmarksCmd) Run(app *App) error {
	if c.Clear {
		app.Stores.Bookmarks.ClearAll()
		app.println("bookmarks cleared")
		return nil
	}
	pal := app.palette()
	list := app.Stores.Bookmarks.List()
	if len(list) == 0 {
		app.println(pal.Meta.Render("no bookmarks"))
		return nil
	}
	for i, b := range list {
		app.println(RenderRow(pal, Row{
			Index:      i + 1,
			Item:       b.Item,
			Bookmarked: true,
			Read:       app.Stores.ReadStatus.IsRead(b.DetailURL),
			Width:      app.Width,
		}))
	}
	return nil
}

// ThemeCmd shows or changes the theme.
type ThemeCmd struct {
	Value string `arg:"" optional:"" help:"light, dark or toggle"`
}

// Run executes the command.
func (c *ThemeCmd) Run(app *App) error {
	switch c.Value {
	case "":
	case "toggle":
		app.Stores.Theme.Toggle()
	default:
		if !app.Stores.Theme.SetTheme(notice.Theme(c.Value)) {
			return fmt.Errorf("unknown theme %q", c.Value)
		}
	}
	app.println(app.palette().Accent.Render(string(app.Stores.Theme.Theme())))
	return nil
}

// DeptCmd shows or selects the department.
type DeptCmd struct {
	ID    string `arg:"" optional:"" help:"Department id"`
	Clear bool   `help:"Clear the selection"`
}

// Run executes the command.
func (c *DeptCmd) Run(app *App) error {
	switch {
	case c.Clear:
		app.Stores.Departments.Select("")
	case c.ID != "":
		app.Stores.Departments.Select(c.ID)
	}
	if dept := app.Stores.Departments.Selected(); dept != "" {
		app.println(dept)
	} else {
		app.println(app.palette().Meta.Render("no department selected"))
	}
	return nil
}

// RecentCmd lists recent searches.
type RecentCmd struct {
	Clear bool `help:"Forget recent searches"`
}

// Run executes the command.
func (c *RecentCmd) Run(app *App) error {
	if c.Clear {
		app.Stores.Recent.Clear()
		return nil
	}
	for _, term := range app.Stores.Recent.List() {
		app.println(term)
	}
	return nil
}

// SearchCmd runs an advanced search.
type SearchCmd struct {
	Query    string `arg:"" help:"Search text"`
	Category string `help:"Category filter"`
	From     string `help:"Start date (YYYY-MM-DD)"`
	To       string `help:"End date (YYYY-MM-DD)"`
	Page     int    `help:"Result page" default:"1"`
}

// Run executes the command.
func (c *SearchCmd) Run(app *App) error {
	api, err := app.remote()
	if err != nil {
		return err
	}
	app.Stores.Recent.Add(c.Query)
	page, err := api.SearchAdvanced(app.Ctx, noticeapi.SearchParams{
		Query:    c.Query,
		Category: c.Category,
		DateFrom: c.From,
		DateTo:   c.To,
		Page:     c.Page,
		Size:     app.PageSize,
	})
	pal := app.palette()
	if err != nil {
		app.println(RenderError(pal, err))
		return err
	}
	for i, it := range page.Items {
		app.println(RenderRow(pal, Row{
			Index:      (page.Page-1)*max(page.Size, len(page.Items)) + i + 1,
			Item:       it,
			Bookmarked: app.Stores.Bookmarks.IsBookmarked(it.DetailURL),
			Read:       app.Stores.ReadStatus.IsRead(it.DetailURL),
			Width:      app.Width,
		}))
	}
	return nil
}

// ScrapCmd toggles a server-side scrap, or lists scraps without an id.
type ScrapCmd struct {
	ID string `arg:"" optional:"" help:"Notice id"`
}

// Run executes the command.
func (c *ScrapCmd) Run(app *App) error {
	api, err := app.remote()
	if err != nil {
		return err
	}
	if c.ID == "" {
		items, err := api.Scraps(app.Ctx)
		if err != nil {
			return err
		}
		for i, it := range items {
			app.println(RenderRow(app.palette(), Row{Index: i + 1, Item: it, Width: app.Width}))
		}
		return nil
	}
	id, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil || id <= 0 {
		return errors.New("notice id must be a positive integer")
	}
	added, err := api.ToggleScrap(app.Ctx, id)
	if err != nil {
		return err
	}
	if added {
		app.printf("scrapped %d\n", id)
	} else {
		app.printf("unscrapped %d\n", id)
	}
	return nil
}

// CategoriesCmd lists backend categories.
type CategoriesCmd struct{}

// Run executes the command.
func (c *CategoriesCmd) Run(app *App) error {
	api, err := app.remote()
	if err != nil {
		return err
	}
	cats, err := api.Categories(app.Ctx)
	if err != nil {
		return err
	}
	for _, cat := range cats {
		app.printf("%-20s %s\n", cat.Key, cat.Name)
	}
	return nil
}

// StatsCmd prints backend statistics.
type StatsCmd struct{}

// Run executes the command.
func (c *StatsCmd) Run(app *App) error {
	api, err := app.remote()
	if err != nil {
		return err
	}
	s, err := api.Stats(app.Ctx)
	if err != nil {
		return err
	}
	app.printf("notices: %d (today %d)\ndevices: %d\n", s.TotalNotices, s.TodayCrawled, s.TotalDevices)
	return nil
}

// SourceCmd groups RSS source management.
type SourceCmd struct {
	List SourceListCmd `cmd:"" default:"1" help:"List RSS sources"`
	Add  SourceAddCmd  `cmd:"" help:"Add or replace an RSS source"`
	Rm   SourceRmCmd   `cmd:"" aliases:"remove" help:"Remove an RSS source"`
}

// SourceListCmd lists RSS sources.
type SourceListCmd struct{}

// Run executes the command.
func (c *SourceListCmd) Run(app *App) error {
	list, err := app.Sources.List()
	if err != nil {
		return err
	}
	app.printSources(list)
	return nil
}

// SourceAddCmd registers an RSS source.
type SourceAddCmd struct {
	Key string `arg:"" help:"Source key used with list"`
	URL string `arg:"" help:"RSS or Atom feed URL"`
}

// Run executes the command.
func (c *SourceAddCmd) Run(app *App) error {
	list, err := app.Sources.Add(c.Key, c.URL)
	if err != nil {
		return err
	}
	app.printSources(list)
	return nil
}

// SourceRmCmd removes an RSS source.
type SourceRmCmd struct {
	Key string `arg:"" help:"Source key"`
}

// Run executes the command.
func (c *SourceRmCmd) Run(app *App) error {
	list, err := app.Sources.Remove(c.Key)
	if err != nil {
		return err
	}
	app.printSources(list)
	return nil
}

func (a *App) printSources(list []usecase.Source) {
	if len(list) == 0 {
		a.println(a.palette().Meta.Render("no rss sources"))
		return
	}
	for _, src := range list {
		a.printf("%-16s %s\n", src.Key, src.URL)
	}
}

// TokenCmd stores the device token sent with scrap requests.
type TokenCmd struct {
	Value string `arg:"" help:"Device token"`
}

// Run executes the command.
func (c *TokenCmd) Run(app *App) error {
	if app.Tokens == nil {
		return errors.New("token storage is not available")
	}
	if err := app.Tokens.SetToken(c.Value); err != nil {
		return err
	}
	app.println("token saved")
	return nil
}
