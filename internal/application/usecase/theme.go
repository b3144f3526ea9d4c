package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/application/persist"
	"github.com/tesso57/knotice/internal/domain/notice"
)

// ThemeKey is the durable key of the theme.
const ThemeKey = "@knu_theme_mode"

// ThemeStore persists the color scheme. The default is light.
type ThemeStore struct {
	cell *persist.Cell[notice.Theme]
}

// NewThemeStore opens the theme on backend.
func NewThemeStore(backend persist.Backend, log *zap.Logger) *ThemeStore {
	return new(ThemeStore{
		cell: persist.Open(backend, ThemeKey, notice.ThemeLight, persist.Options[notice.Theme]{
			Logger: log,
			Decode: decodeTheme,
		}),
	})
}

// Ready reports whether the stored theme has been loaded.
func (s *ThemeStore) Ready() bool { return s.cell.Ready() }

// Wait blocks until the stored theme has been loaded.
func (s *ThemeStore) Wait(ctx context.Context) error { return s.cell.Wait(ctx) }

// Close flushes pending writes.
func (s *ThemeStore) Close(ctx context.Context) error { return s.cell.Close(ctx) }

// Theme returns the current theme.
func (s *ThemeStore) Theme() notice.Theme { return s.cell.Get() }

// IsDark reports whether the dark theme is active.
func (s *ThemeStore) IsDark() bool { return s.cell.Get().IsDark() }

// Toggle flips between light and dark and returns the new theme.
func (s *ThemeStore) Toggle() notice.Theme {
	return s.cell.Update(func(cur notice.Theme) notice.Theme { return cur.Toggled() })
}

// SetTheme sets the theme explicitly. Unknown values are ignored.
func (s *ThemeStore) SetTheme(t notice.Theme) bool {
	if !t.Valid() {
		return false
	}
	s.cell.Set(t)
	return true
}

// decodeTheme accepts the JSON form and the bare string written by older clients.
func decodeTheme(data []byte) (notice.Theme, bool) {
	v, ok := decodeLooseString(data)
	if !ok {
		return "", false
	}
	t := notice.Theme(v)
	return t, t.Valid()
}
