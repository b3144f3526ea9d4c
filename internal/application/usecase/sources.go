package usecase

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tesso57/knotice/internal/domain/notice"
)

// SourceRepository abstracts persistence for RSS notice sources stored as
// key=url entries.
type SourceRepository interface {
	RSSSources() ([]string, error)
	AddRSSSource(key, url string) error
	RemoveRSSSource(key string) error
}

// Source is one RSS notice source.
type Source struct {
	Key string
	URL string
}

// SourceService manages the RSS sources served next to the backend feeds.
type SourceService struct {
	Repo SourceRepository
}

// NewSourceService constructs a SourceService.
func NewSourceService(repo SourceRepository) SourceService {
	return SourceService{Repo: repo}
}

// List returns the configured sources in file order.
func (s SourceService) List() ([]Source, error) {
	entries, err := s.Repo.RSSSources()
	if err != nil {
		return nil, err
	}
	out := make([]Source, 0, len(entries))
	for _, entry := range entries {
		key, u, _ := strings.Cut(entry, "=")
		out = append(out, Source{Key: strings.TrimSpace(key), URL: strings.TrimSpace(u)})
	}
	return out, nil
}

// Add registers url under key, replacing any previous url, and returns the
// updated list. Keys used by the built-in feeds are rejected.
func (s SourceService) Add(key, rawURL string) ([]Source, error) {
	key = strings.TrimSpace(key)
	rawURL = strings.TrimSpace(rawURL)
	switch {
	case key == "":
		return nil, fmt.Errorf("source key is empty")
	case strings.ContainsAny(key, "= \t\r\n"):
		return nil, fmt.Errorf("source key %q contains '=' or whitespace", key)
	case key == notice.AllSourceKey || key == "dept" || key == notice.UnsetDepartmentKey:
		return nil, fmt.Errorf("source key %q is reserved", key)
	}
	if strings.ContainsAny(rawURL, " \t\r\n") {
		return nil, fmt.Errorf("feed url contains whitespace")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("feed url %q must be an absolute http(s) url", rawURL)
	}
	if err := s.Repo.AddRSSSource(key, rawURL); err != nil {
		return nil, err
	}
	return s.List()
}

// Remove deletes the source registered under key and returns the updated list.
func (s SourceService) Remove(key string) ([]Source, error) {
	if err := s.Repo.RemoveRSSSource(strings.TrimSpace(key)); err != nil {
		return nil, err
	}
	return s.List()
}
