package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesso57/knotice/internal/domain/notice"
)

func TestSourceRouter(t *testing.T) {
	api := &scriptedFetcher{pages: map[string][][]notice.Item{"all": {itemsOf("api")}}}
	rss := &scriptedFetcher{pages: map[string][][]notice.Item{"computer": {itemsOf("rss")}}}

	var r SourceRouter
	r.Default = api
	r.RouteAll([]string{"computer"}, rss)

	p, err := r.FetchPage(context.Background(), notice.PageQuery{SourceKey: "computer", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, "rss", p.Items[0].DetailURL)

	p, err = r.FetchPage(context.Background(), notice.PageQuery{SourceKey: "all", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, "api", p.Items[0].DetailURL)

	assert.Equal(t, 1, api.callCount())
	assert.Equal(t, 1, rss.callCount())
}
