package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/tesso57/knotice/internal/domain/failure"
	"github.com/tesso57/knotice/internal/domain/notice"
)

// Palette holds the styles for one theme.
type Palette struct {
	Title  lipgloss.Style
	Meta   lipgloss.Style
	Accent lipgloss.Style
	Error  lipgloss.Style
}

// PaletteFor derives the styles for t.
func PaletteFor(t notice.Theme) Palette {
	if t.IsDark() {
		return Palette{
			Title:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
			Meta:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
			Accent: lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true),
			Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		}
	}
	return Palette{
		Title:  lipgloss.NewStyle().Foreground(lipgloss.Color("235")),
		Meta:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Accent: lipgloss.NewStyle().Foreground(lipgloss.Color("25")).Bold(true),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
	}
}

// Row is one decorated notice line. Width > 0 truncates both lines.
type Row struct {
	Index      int
	Item       notice.Item
	Bookmarked bool
	Read       bool
	Width      int
}

// RenderRow renders a notice as a title line plus a meta line.
func RenderRow(p Palette, r Row) string {
	title := singleLine(r.Item.Title)
	if r.Item.IsPinned {
		title = "[P] " + title
	}
	if r.Bookmarked {
		title = "[B] " + title
	}
	title = truncate(fmt.Sprintf("%3d. %s", r.Index, title), r.Width)
	style := p.Title
	if r.Read {
		style = style.Faint(true)
	}

	meta := make([]string, 0, 4)
	for _, part := range []string{r.Item.Date, r.Item.Category, r.Item.Author} {
		if part != "" {
			meta = append(meta, part)
		}
	}
	if r.Item.Views > 0 {
		meta = append(meta, fmt.Sprintf("%d views", r.Item.Views))
	}

	var b strings.Builder
	b.WriteString(style.Render(title))
	if len(meta) > 0 {
		b.WriteString("\n     ")
		b.WriteString(p.Meta.Render(truncate(strings.Join(meta, " · "), r.Width-5)))
	}
	return b.String()
}

// RenderDetail renders a notice detail.
func RenderDetail(p Palette, d notice.Detail) string {
	var b strings.Builder
	b.WriteString(p.Accent.Render(d.Title))
	b.WriteString("\n")
	b.WriteString(p.Meta.Render(fmt.Sprintf("🔗 %s", d.DetailURL)))
	if d.Date != "" || d.Views > 0 {
		b.WriteString("\n")
		b.WriteString(p.Meta.Render(fmt.Sprintf("%s · %d views", d.Date, d.Views)))
	}
	if d.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Accent.Render("Summary"))
		b.WriteString("\n")
		b.WriteString(d.Summary)
	}
	if d.Content != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Title.Render(d.Content))
	}
	for _, img := range d.Images {
		b.WriteString("\n")
		b.WriteString(p.Meta.Render("🖼  " + img))
	}
	for _, f := range d.Files {
		b.WriteString("\n")
		b.WriteString(p.Meta.Render(fmt.Sprintf("📎 %s <%s>", f.Name, f.URL)))
	}
	return b.String()
}

// RenderError renders err as a retry banner.
func RenderError(p Palette, err error) string {
	return p.Error.Render("! " + failure.UserMessage(err))
}

// singleLine collapses whitespace into single spaces.
func singleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// truncate trims text to width cells with an ellipsis. Non-positive widths
// leave text untouched.
func truncate(text string, width int) string {
	if width <= 0 {
		return text
	}
	return ansi.Truncate(text, width, "...")
}
