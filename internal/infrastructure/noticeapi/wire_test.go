package noticeapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantURLs       []string
		wantTotal      int
		wantPage       int
		wantSize       int
		wantTotalPages int
		wantErr        bool
	}{
		{
			name:      "bare array",
			body:      `[{"id":1,"title":"a","link":"u1"},{"id":2,"title":"b","link":"u2"}]`,
			wantURLs:  []string{"u1", "u2"},
			wantTotal: 2, wantPage: 3, wantSize: 20,
		},
		{
			name:      "wrapped with totals",
			body:      `{"items":[{"id":1,"title":"a","link":"u1"}],"total":41,"page":1,"size":20,"total_pages":3}`,
			wantURLs:  []string{"u1"},
			wantTotal: 41, wantPage: 1, wantSize: 20, wantTotalPages: 3,
		},
		{
			name:      "count with pagination",
			body:      `{"count":7,"items":[{"id":1,"title":"a","detailUrl":"u1"}],"pagination":{"page":2,"size":5,"total_pages":2}}`,
			wantURLs:  []string{"u1"},
			wantTotal: 7, wantPage: 2, wantSize: 5, wantTotalPages: 2,
		},
		{
			name:      "wrapped without metadata",
			body:      `{"items":[]}`,
			wantURLs:  []string{},
			wantTotal: 0, wantPage: 3, wantSize: 20,
		},
		{
			name:      "null body",
			body:      ` null `,
			wantURLs:  []string{},
			wantTotal: 0, wantPage: 3, wantSize: 20,
		},
		{name: "object without items", body: `{"detail":"x"}`, wantErr: true},
		{name: "html", body: `<html></html>`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
		{name: "truncated", body: `[{"id":1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodePage([]byte(tt.body), 3, 20)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			urls := make([]string, 0, len(got.Items))
			for _, it := range got.Items {
				urls = append(urls, it.DetailURL)
			}
			assert.Equal(t, tt.wantURLs, urls)
			assert.Equal(t, tt.wantTotal, got.Total)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantSize, got.Size)
			assert.Equal(t, tt.wantTotalPages, got.TotalPages)
		})
	}
}

func TestWireItem_Defaults(t *testing.T) {
	got, err := decodePage([]byte(`[{"id":9,"title":" Notice ","link":" u9 ","author":null,"univ_views":5,"views":11,"is_pinned":true}]`), 1, 20)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)

	it := got.Items[0]
	assert.Equal(t, "Notice", it.Title)
	assert.Equal(t, "u9", it.DetailURL)
	assert.Empty(t, it.Author)
	assert.Equal(t, 11, it.Views, "explicit views wins over the sum")
	assert.True(t, it.IsPinned)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "plain", want: "plain"},
		{in: "<b>bold</b> &amp; more", want: "bold & more"},
		{in: "a\r\n\r\n\r\nb", want: "a\n\nb"},
		{in: "\n\n<p></p>\ntext\n\n", want: "text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, plainText(contentPolicy, tt.in), "input %q", tt.in)
	}
}
