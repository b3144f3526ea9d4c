package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesso57/knotice/internal/application/usecase"
	"github.com/tesso57/knotice/internal/domain/failure"
	"github.com/tesso57/knotice/internal/domain/notice"
	"github.com/tesso57/knotice/internal/infrastructure/blobstore"
	"github.com/tesso57/knotice/internal/infrastructure/noticeapi"
)

type fakeAPI struct {
	mu       sync.Mutex
	scrapped []int64
	searched []noticeapi.SearchParams
}

func (f *fakeAPI) Categories(context.Context) ([]noticeapi.Category, error) {
	return []noticeapi.Category{{Key: "academic", Name: "Academic"}}, nil
}

func (f *fakeAPI) Stats(context.Context) (noticeapi.Stats, error) {
	return noticeapi.Stats{TotalNotices: 42, TodayCrawled: 3, TotalDevices: 7}, nil
}

func (f *fakeAPI) SearchAdvanced(_ context.Context, p noticeapi.SearchParams) (notice.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, p)
	return notice.Page{Page: 1, Size: p.Size, Items: []notice.Item{{Title: "Found " + p.Query, DetailURL: "https://board/s1"}}}, nil
}

func (f *fakeAPI) ToggleScrap(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrapped = append(f.scrapped, id)
	return len(f.scrapped)%2 == 1, nil
}

func (f *fakeAPI) Scraps(context.Context) ([]notice.Item, error) {
	return []notice.Item{{Title: "Scrapped", DetailURL: "https://board/x"}}, nil
}

type fakeConfig struct {
	entries []string
	token   string
}

func (f *fakeConfig) RSSSources() ([]string, error) { return append([]string(nil), f.entries...), nil }

func (f *fakeConfig) AddRSSSource(key, url string) error {
	f.entries = append(f.entries, key+"="+url)
	return nil
}

func (f *fakeConfig) RemoveRSSSource(key string) error {
	for i, e := range f.entries {
		if strings.HasPrefix(e, key+"=") {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeConfig) SetToken(token string) error {
	f.token = token
	return nil
}

type fakeRepo struct{}

func (fakeRepo) Detail(_ context.Context, detailURL string, id int64) (notice.Detail, error) {
	return notice.Detail{ID: id, Title: "Detail of " + detailURL, DetailURL: detailURL, Content: "body text"}, nil
}

func (fakeRepo) IncrementView(context.Context, int64) (int, error) { return 1, nil }

var boardPages = map[string][][]notice.Item{
	"all": {
		{
			{ID: 1, Title: "Tuition notice", DetailURL: "https://board/1", Category: "academic", Date: "2026-03-01"},
			{ID: 2, Title: "Lab seminar", DetailURL: "https://board/2", Category: "computer"},
			{ID: 3, Title: "Chem safety", DetailURL: "https://board/3", Category: "chemistry"},
		},
		{
			{ID: 4, Title: "Career fair", DetailURL: "https://board/4", Category: "job"},
		},
	},
	"computer": {
		{{ID: 2, Title: "Lab seminar", DetailURL: "https://board/2", Category: "computer"}},
	},
}

func newTestApp(t *testing.T, fetcher usecase.PageFetcher) (*App, *bytes.Buffer, *fakeAPI) {
	t.Helper()
	stores := usecase.OpenStores(blobstore.NewMemoryStore(), nil, time.Now)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, stores.Wait(ctx))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = stores.Close(ctx)
	})

	if fetcher == nil {
		fetcher = usecase.PageFetcherFunc(func(_ context.Context, q notice.PageQuery) (notice.Page, error) {
			pages := boardPages[q.SourceKey]
			if q.Page > len(pages) {
				return notice.Page{Page: q.Page, Size: q.Size}, nil
			}
			return notice.Page{Items: pages[q.Page-1], Page: q.Page, Size: q.Size}, nil
		})
	}

	var out bytes.Buffer
	api := &fakeAPI{}
	conf := &fakeConfig{}
	app := &App{
		Ctx:      context.Background(),
		Out:      &out,
		Stores:   stores,
		Feeds:    usecase.NewFeeds(fetcher, nil),
		Notices:  usecase.NewNoticeService(fakeRepo{}, stores.ReadStatus, nil, usecase.DetailCacheOptions{}),
		API:      api,
		Sources:  usecase.NewSourceService(conf),
		Tokens:   conf,
		PageSize: 3,
		Log:      nil,
	}
	return app, &out, api
}

func run(t *testing.T, app *App, args ...string) error {
	t.Helper()
	var c CLI
	parser, err := NewParser(&c, kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return ctx.Run(app)
}

func TestList_PrintsMergedPages(t *testing.T) {
	app, out, _ := newTestApp(t, nil)

	require.NoError(t, run(t, app, "list", "all", "--pages", "3"))

	got := out.String()
	for _, title := range []string{"Tuition notice", "Lab seminar", "Chem safety", "Career fair"} {
		assert.Contains(t, got, title)
	}
	assert.Contains(t, got, "  4. Career fair")
	assert.Empty(t, app.Feeds.Observed(), "list must release its feed")
}

func TestList_AllSourceFiltersBySelectedDepartment(t *testing.T) {
	app, out, _ := newTestApp(t, nil)
	app.Stores.Departments.Select("computer")

	require.NoError(t, run(t, app, "list"))

	got := out.String()
	assert.Contains(t, got, "Tuition notice")
	assert.Contains(t, got, "Lab seminar")
	assert.NotContains(t, got, "Chem safety")
}

func TestList_DepartmentSource(t *testing.T) {
	app, out, _ := newTestApp(t, nil)

	err := run(t, app, "list", "dept")
	require.ErrorIs(t, err, usecase.ErrFeedDisabled)

	require.NoError(t, run(t, app, "dept", "computer"))
	out.Reset()
	require.NoError(t, run(t, app, "list", "dept"))
	assert.Contains(t, out.String(), "Lab seminar")
}

func TestList_QueryIsRemembered(t *testing.T) {
	var queries []string
	var mu sync.Mutex
	fetcher := usecase.PageFetcherFunc(func(_ context.Context, q notice.PageQuery) (notice.Page, error) {
		mu.Lock()
		queries = append(queries, q.Query)
		mu.Unlock()
		return notice.Page{}, nil
	})
	app, out, _ := newTestApp(t, fetcher)

	require.NoError(t, run(t, app, "list", "all", "-q", "scholarship"))
	require.NoError(t, run(t, app, "list", "all", "-q", "dorm"))

	assert.Equal(t, []string{"scholarship", "dorm"}, queries)
	assert.Equal(t, []string{"dorm", "scholarship"}, app.Stores.Recent.List())
	assert.Contains(t, out.String(), "no notices")

	out.Reset()
	require.NoError(t, run(t, app, "recent"))
	assert.Equal(t, "dorm\nscholarship\n", out.String())
}

func TestList_FetchErrorShowsBanner(t *testing.T) {
	fetcher := usecase.PageFetcherFunc(func(context.Context, notice.PageQuery) (notice.Page, error) {
		return notice.Page{}, failure.NewNetwork("fetch notices", errors.New("connection refused"))
	})
	app, out, _ := newTestApp(t, fetcher)

	err := run(t, app, "list")
	require.Error(t, err)
	assert.Equal(t, failure.Network, failure.KindOf(err))
	assert.Contains(t, out.String(), failure.MsgConnection)
}

func TestBookmark_ToggleAndList(t *testing.T) {
	app, out, _ := newTestApp(t, nil)

	require.NoError(t, run(t, app, "bookmark", "https://board/4"))
	assert.Contains(t, out.String(), "bookmarked Career fair")
	list := app.Stores.Bookmarks.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Career fair", list[0].Title)
	assert.Equal(t, "all", list[0].SourceKey)

	out.Reset()
	require.NoError(t, run(t, app, "bookmarks"))
	assert.Contains(t, out.String(), "[B] Career fair")

	require.NoError(t, run(t, app, "bookmark", "https://board/4"))
	assert.Empty(t, app.Stores.Bookmarks.List())
}

func TestBookmark_UnknownURL(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	err := run(t, app, "bookmark", "https://board/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Empty(t, app.Stores.Bookmarks.List())
}

func TestOpen_MarksReadAndRendersDetail(t *testing.T) {
	app, out, _ := newTestApp(t, nil)

	require.NoError(t, run(t, app, "open", "https://board/2"))

	assert.True(t, app.Stores.ReadStatus.IsRead("https://board/2"))
	assert.Contains(t, out.String(), "Detail of https://board/2")
	assert.Contains(t, out.String(), "body text")
	_, cached := app.Notices.CachedDetail("https://board/2")
	assert.True(t, cached)
}

func TestTheme(t *testing.T) {
	app, out, _ := newTestApp(t, nil)

	require.NoError(t, run(t, app, "theme"))
	assert.Equal(t, "light\n", out.String())

	out.Reset()
	require.NoError(t, run(t, app, "theme", "toggle"))
	assert.Equal(t, "dark\n", out.String())
	assert.True(t, app.Stores.Theme.IsDark())

	require.NoError(t, run(t, app, "theme", "light"))
	assert.False(t, app.Stores.Theme.IsDark())

	require.Error(t, run(t, app, "theme", "sepia"))
}

func TestBackendCommands(t *testing.T) {
	app, out, api := newTestApp(t, nil)

	require.NoError(t, run(t, app, "scrap", "12"))
	require.NoError(t, run(t, app, "scrap", "12"))
	assert.Equal(t, []int64{12, 12}, api.scrapped)
	assert.Contains(t, out.String(), "scrapped 12\nunscrapped 12\n")

	require.Error(t, run(t, app, "scrap", "abc"))

	out.Reset()
	require.NoError(t, run(t, app, "search", "exam", "--category", "academic"))
	require.Len(t, api.searched, 1)
	assert.Equal(t, "academic", api.searched[0].Category)
	assert.Equal(t, 3, api.searched[0].Size)
	assert.Contains(t, out.String(), "Found exam")
	assert.Equal(t, []string{"exam"}, app.Stores.Recent.List())

	out.Reset()
	require.NoError(t, run(t, app, "stats"))
	assert.Contains(t, out.String(), "notices: 42 (today 3)")

	out.Reset()
	require.NoError(t, run(t, app, "categories"))
	assert.True(t, strings.HasPrefix(out.String(), "academic"))
}

func TestBackendCommands_WithoutBackend(t *testing.T) {
	app, _, _ := newTestApp(t, nil)
	app.API = nil

	for _, args := range [][]string{{"stats"}, {"categories"}, {"scrap", "1"}, {"search", "exam"}} {
		require.ErrorIs(t, run(t, app, args...), ErrNoBackend, "%v", args)
	}
	assert.Empty(t, app.Stores.Recent.List())
}

func TestSourceAndTokenCommands(t *testing.T) {
	app, out, _ := newTestApp(t, nil)

	require.NoError(t, run(t, app, "source"))
	assert.Contains(t, out.String(), "no rss sources")

	out.Reset()
	require.NoError(t, run(t, app, "source", "add", "computer", "https://cse.knu.ac.kr/rss"))
	assert.Contains(t, out.String(), "https://cse.knu.ac.kr/rss")

	require.Error(t, run(t, app, "source", "add", "all", "https://cse.knu.ac.kr/rss"))

	out.Reset()
	require.NoError(t, run(t, app, "source", "rm", "computer"))
	assert.Contains(t, out.String(), "no rss sources")

	require.NoError(t, run(t, app, "token", "device-1"))
	assert.Equal(t, "device-1", app.Tokens.(*fakeConfig).token)
}
