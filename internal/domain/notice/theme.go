package notice

// Theme is the persisted color scheme.
type Theme string

const (
	// ThemeLight is the default scheme.
	ThemeLight Theme = "light"
	// ThemeDark is the dark scheme.
	ThemeDark Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Toggled returns the opposite theme. Unknown values toggle to dark.
func (t Theme) Toggled() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// IsDark reports whether t is the dark theme.
func (t Theme) IsDark() bool {
	return t == ThemeDark
}
