package usecase

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubSourceRepo struct {
	mock.Mock
	entries []string
}

func (s *stubSourceRepo) RSSSources() ([]string, error) {
	if len(s.ExpectedCalls) > 0 {
		args := s.Called()
		entries, _ := args.Get(0).([]string)
		return entries, args.Error(1)
	}
	return append([]string(nil), s.entries...), nil
}

func (s *stubSourceRepo) AddRSSSource(key, url string) error {
	if len(s.ExpectedCalls) > 0 {
		return s.Called(key, url).Error(0)
	}
	s.entries = append(s.without(key), key+"="+url)
	return nil
}

func (s *stubSourceRepo) RemoveRSSSource(key string) error {
	if len(s.ExpectedCalls) > 0 {
		return s.Called(key).Error(0)
	}
	kept := s.without(key)
	if len(kept) == len(s.entries) {
		return errors.New("not found")
	}
	s.entries = kept
	return nil
}

func (s *stubSourceRepo) without(key string) []string {
	var kept []string
	for _, e := range s.entries {
		if !strings.HasPrefix(e, key+"=") {
			kept = append(kept, e)
		}
	}
	return kept
}

func TestSourceService_AddReplacesAndLists(t *testing.T) {
	repo := &stubSourceRepo{entries: []string{"physics=https://physics.knu.ac.kr/rss"}}
	svc := NewSourceService(repo)

	got, err := svc.Add(" computer ", " https://cse.knu.ac.kr/rss ")
	require.NoError(t, err)
	assert.Equal(t, []Source{
		{Key: "physics", URL: "https://physics.knu.ac.kr/rss"},
		{Key: "computer", URL: "https://cse.knu.ac.kr/rss"},
	}, got)

	got, err = svc.Add("physics", "https://physics.knu.ac.kr/atom")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Source{Key: "physics", URL: "https://physics.knu.ac.kr/atom"}, got[1])

	got, err = svc.Remove("computer")
	require.NoError(t, err)
	assert.Equal(t, []Source{{Key: "physics", URL: "https://physics.knu.ac.kr/atom"}}, got)

	_, err = svc.Remove("computer")
	require.Error(t, err)
}

func TestSourceService_AddValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		url  string
	}{
		{name: "empty key", key: " ", url: "https://x.kr/rss"},
		{name: "key with equals", key: "a=b", url: "https://x.kr/rss"},
		{name: "reserved all", key: "all", url: "https://x.kr/rss"},
		{name: "reserved dept", key: "dept", url: "https://x.kr/rss"},
		{name: "whitespace url", key: "cs", url: "https://x.kr/a b"},
		{name: "relative url", key: "cs", url: "/rss"},
		{name: "ftp url", key: "cs", url: "ftp://x.kr/rss"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubSourceRepo{}
			repo.On("AddRSSSource", mock.Anything, mock.Anything).Return(nil)
			_, err := NewSourceService(repo).Add(tt.key, tt.url)
			require.Error(t, err)
			repo.AssertNotCalled(t, "AddRSSSource", mock.Anything, mock.Anything)
		})
	}
}

func TestSourceService_RepoErrors(t *testing.T) {
	repo := &stubSourceRepo{}
	repo.On("AddRSSSource", "cs", "https://cse.knu.ac.kr/rss").Return(errors.New("disk full"))
	_, err := NewSourceService(repo).Add("cs", "https://cse.knu.ac.kr/rss")
	require.EqualError(t, err, "disk full")
	repo.AssertExpectations(t)
}
