// Package settings defines application-level configuration data.
package settings

import (
	"fmt"
	"strings"
	"time"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// LogConfig defines logging output.
type LogConfig struct {
	Level      string `yaml:"level" kong:"help='Log level (debug/info/warn/error)',default='info'"`
	File       string `yaml:"file" kong:"help='Log file path; empty writes to stderr'"`
	MaxSizeMB  int    `yaml:"max_size_mb" kong:"help='Rotate after this many megabytes',default='10'"`
	MaxBackups int    `yaml:"max_backups" kong:"help='Rotated files to keep',default='3'"`
	MaxAgeDays int    `yaml:"max_age_days" kong:"help='Days to keep rotated files',default='28'"`
}

// Settings represents the application configuration.
type Settings struct {
	APIBaseURL            string    `yaml:"api_base_url" kong:"help='Backend base URL (overridden by KNOTICE_API_BASE_URL)'"`
	Token                 string    `yaml:"token" kong:"help='Device token used for scrap state'"`
	PageSize              int       `yaml:"page_size" kong:"help='Notices per page',default='20'"`
	RequestTimeoutSeconds int       `yaml:"request_timeout_seconds" kong:"help='HTTP request timeout in seconds',default='10'"`
	RequestsPerSecond     int       `yaml:"requests_per_second" kong:"help='Client-side request rate limit',default='5'"`
	DataDir               string    `yaml:"data_dir" kong:"help='Directory for local stores'"`
	StoreBackend          string    `yaml:"store_backend" kong:"help='Local store backend (file/sqlite/memory)',enum='file,sqlite,memory',default='file'"`
	DetailCacheSize       int       `yaml:"detail_cache_size" kong:"help='Cached notice details',default='128'"`
	DetailCacheTTLSeconds int       `yaml:"detail_cache_ttl_seconds" kong:"help='Seconds a cached detail stays fresh',default='60'"`
	RSSSources            []string  `yaml:"rss_sources" kong:"help='RSS/Atom sources as key=url'"`
	Log                   LogConfig `yaml:"log" kong:"embed,prefix='log.'"`
}

// RequestTimeout returns the HTTP timeout.
func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// DetailCacheTTL returns how long a cached detail stays fresh.
func (s Settings) DetailCacheTTL() time.Duration {
	return time.Duration(s.DetailCacheTTLSeconds) * time.Second
}

// RSSSourceMap parses RSSSources into source key -> URL. Later entries win.
func (s Settings) RSSSourceMap() (map[string]string, error) {
	out := make(map[string]string, len(s.RSSSources))
	for _, entry := range s.RSSSources {
		key, url, ok := strings.Cut(entry, "=")
		key, url = strings.TrimSpace(key), strings.TrimSpace(url)
		if !ok || key == "" || url == "" {
			return nil, fmt.Errorf("invalid rss source %q: want key=url", entry)
		}
		out[key] = url
	}
	return out, nil
}

// Validate reports settings that cannot work.
func (s Settings) Validate() error {
	if s.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", s.PageSize)
	}
	switch s.StoreBackend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown store_backend %q", s.StoreBackend)
	}
	if s.StoreBackend != BackendMemory && strings.TrimSpace(s.DataDir) == "" {
		return fmt.Errorf("data_dir is required for the %s backend", s.StoreBackend)
	}
	if _, err := s.RSSSourceMap(); err != nil {
		return err
	}
	return nil
}
