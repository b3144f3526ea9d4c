// Package config handles configuration loading and saving.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tesso57/knotice/internal/application/settings"
)

// Environment overrides. A .env file next to the config file or in the
// working directory supplies values missing from the process environment.
const (
	EnvAPIBaseURL = "KNOTICE_API_BASE_URL"
	EnvToken      = "KNOTICE_TOKEN"
)

// Store manages persisted application settings. Settings holds the
// effective values; environment overrides never reach the file.
type Store struct {
	Settings   settings.Settings
	file       settings.Settings
	configPath string
}

// Path returns the config file location.
func (s *Store) Path() string {
	return s.configPath
}

// Load loads the configuration from the specified path or default location.
func Load(customPath ...string) (*Store, error) {
	var configPath string
	if len(customPath) > 0 && customPath[0] != "" {
		configPath = customPath[0]
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(home, ".config", "knotice", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := settings.Settings{}
	store := &Store{configPath: configPath}

	var options []kong.Option
	_, statErr := os.Stat(configPath)
	if statErr == nil {
		options = append(options, kong.Configuration(yamlKongLoader, configPath))
	}

	parser, err := kong.New(&cfg, options...)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse([]string{}); err != nil {
		return nil, err
	}

	store.Settings = cfg
	store.Settings.RSSSources = normalizeSources(store.Settings.RSSSources)
	store.Settings.APIBaseURL = strings.TrimSpace(store.Settings.APIBaseURL)
	if store.Settings.DataDir == "" {
		store.Settings.DataDir = filepath.Join(defaultDataHome(), "knotice")
	}
	store.file = store.Settings

	if os.IsNotExist(statErr) {
		if err := store.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	env, err := dotenv(filepath.Dir(configPath), ".")
	if err != nil {
		return nil, err
	}
	if v := lookupEnv(env, EnvAPIBaseURL); v != "" {
		store.Settings.APIBaseURL = v
	}
	if v := lookupEnv(env, EnvToken); v != "" {
		store.Settings.Token = v
	}

	if err := store.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return store, nil
}

// dotenv merges the .env files found in dirs. Earlier directories win.
func dotenv(dirs ...string) (map[string]string, error) {
	out := map[string]string{}
	for i := len(dirs) - 1; i >= 0; i-- {
		path := filepath.Join(dirs[i], ".env")
		values, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range values {
			out[k] = v
		}
	}
	return out, nil
}

func lookupEnv(dotenv map[string]string, key string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(dotenv[key])
}

func normalizeSources(sources []string) []string {
	if len(sources) == 0 {
		return sources
	}
	normalized := make([]string, 0, len(sources))
	for _, src := range sources {
		for item := range strings.FieldsSeq(src) {
			if item != "" {
				normalized = append(normalized, item)
			}
		}
	}
	return normalized
}

func defaultDataHome() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome != "" {
		return dataHome
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

func yamlKongLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		names := []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")}
		for _, name := range names {
			if v, ok := values[name]; ok {
				return v, nil
			}

			parts := strings.Split(name, ".")
			if len(parts) < 2 {
				continue
			}
			curr := values
			for i, part := range parts {
				if i == len(parts)-1 {
					if v, ok := curr[part]; ok {
						return v, nil
					}
					break
				}
				next, ok := curr[part].(map[string]any)
				if !ok {
					break
				}
				curr = next
			}
		}
		return nil, nil
	}
	return f, nil
}

// SetToken stores the device token and saves the configuration.
func (s *Store) SetToken(token string) error {
	token = strings.TrimSpace(token)
	s.file.Token = token
	s.Settings.Token = token
	return s.Save()
}

// RSSSources returns the configured key=url entries.
func (s *Store) RSSSources() ([]string, error) {
	return slices.Clone(s.file.RSSSources), nil
}

// AddRSSSource maps key to url and saves the configuration.
func (s *Store) AddRSSSource(key, url string) error {
	entry := strings.TrimSpace(key) + "=" + strings.TrimSpace(url)
	next := settings.Settings{RSSSources: []string{entry}}
	if _, err := next.RSSSourceMap(); err != nil {
		return err
	}
	s.setSources(append(withoutSource(s.file.RSSSources, key), entry))
	return s.Save()
}

// RemoveRSSSource drops key and saves the configuration.
func (s *Store) RemoveRSSSource(key string) error {
	kept := withoutSource(s.file.RSSSources, key)
	if len(kept) == len(s.file.RSSSources) {
		return fmt.Errorf("rss source %q not found", strings.TrimSpace(key))
	}
	s.setSources(kept)
	return s.Save()
}

func (s *Store) setSources(sources []string) {
	s.file.RSSSources = sources
	s.Settings.RSSSources = slices.Clone(sources)
}

func withoutSource(sources []string, key string) []string {
	key = strings.TrimSpace(key)
	kept := make([]string, 0, len(sources))
	for _, existing := range sources {
		k, _, _ := strings.Cut(existing, "=")
		if strings.TrimSpace(k) != key {
			kept = append(kept, existing)
		}
	}
	return kept
}

// Save writes the current settings to the config file.
func (s *Store) Save() error {
	f, err := os.Create(s.configPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return yaml.NewEncoder(f).Encode(s.file)
}
