package term

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles are the lipgloss styles a Screen renders with.
type Styles struct {
	Heading      lipgloss.Style
	Link         lipgloss.Style
	Focused      lipgloss.Style
	Field        lipgloss.Style
	Button       lipgloss.Style
	Rule         lipgloss.Style
	Bullet       string
	FieldWidth   int
	PasswordMask rune
}

// DefaultStyles returns the default terminal styles.
func DefaultStyles() Styles {
	return Styles{
		Heading:      lipgloss.NewStyle().Bold(true),
		Link:         lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("12")),
		Focused:      lipgloss.NewStyle().Reverse(true),
		Field:        lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Button:       lipgloss.NewStyle().Bold(true),
		Rule:         lipgloss.NewStyle().Faint(true),
		Bullet:       "• ",
		FieldWidth:   20,
		PasswordMask: '*',
	}
}

// View renders the screen at the given width.
func (s *Screen) View(width int) string {
	return s.ViewStyled(width, DefaultStyles())
}

// ViewStyled renders the screen with custom styles.
func (s *Screen) ViewStyled(width int, st Styles) string {
	if width <= 0 {
		width = 80
	}
	l := &layout{width: width, styles: st, focus: s.focus}
	for _, c := range s.root.Children {
		l.render(c, lipgloss.NewStyle())
	}
	l.flush()
	return strings.Join(l.lines, "\n")
}

type layout struct {
	width  int
	styles Styles
	focus  *Widget
	lines  []string
	cur    strings.Builder
}

// flush ends the current line, wrapping it to the width.
func (l *layout) flush() {
	if l.cur.Len() == 0 {
		return
	}
	wrapped := lipgloss.NewStyle().Width(l.width).Render(l.cur.String())
	for _, line := range strings.Split(wrapped, "\n") {
		l.lines = append(l.lines, strings.TrimRight(line, " "))
	}
	l.cur.Reset()
}

func (l *layout) inline(s string) {
	if s == "" {
		return
	}
	if l.cur.Len() > 0 {
		l.cur.WriteByte(' ')
	}
	l.cur.WriteString(s)
}

func (l *layout) styleFor(w *Widget, base lipgloss.Style) lipgloss.Style {
	if w == l.focus {
		return l.styles.Focused.Inherit(base)
	}
	return base
}

func (l *layout) render(w *Widget, st lipgloss.Style) {
	switch w.Kind {
	case KindHidden:
		return
	case KindText:
		l.inline(st.Render(w.Text))
	case KindHeading:
		l.flush()
		l.inline(l.styles.Heading.Render(strings.Repeat("#", w.Level)))
		l.children(w, l.styles.Heading.Inherit(st))
		l.flush()
	case KindLink:
		l.children(w, l.styleFor(w, l.styles.Link.Inherit(st)))
	case KindField:
		l.inline(l.styleFor(w, l.styles.Field).Render(l.field(w)))
	case KindButton:
		l.inline(l.styleFor(w, l.styles.Button).Render("[ " + w.Label() + " ]"))
	case KindBreak:
		l.flush()
	case KindRule:
		l.flush()
		l.lines = append(l.lines, l.styles.Rule.Render(strings.Repeat("─", l.width)))
	case KindListItem:
		l.flush()
		l.inline(strings.TrimSpace(l.styles.Bullet))
		l.children(w, st)
		l.flush()
	default:
		if w.block() {
			l.flush()
		}
		l.children(w, st)
		if w.block() {
			l.flush()
		}
	}
}

func (l *layout) children(w *Widget, st lipgloss.Style) {
	for _, c := range w.Children {
		l.render(c, st)
	}
}

// field renders a field as a fixed-width box.
func (l *layout) field(w *Widget) string {
	v := w.FieldValue()
	if w.InputType() == "password" {
		v = strings.Repeat(string(l.styles.PasswordMask), len([]rune(v)))
	}
	if v == "" {
		v = w.Attrs["placeholder"]
	}
	r := []rune(v)
	if len(r) > l.styles.FieldWidth {
		r = r[len(r)-l.styles.FieldWidth:]
	}
	return "[" + string(r) + strings.Repeat("_", l.styles.FieldWidth-len(r)) + "]"
}
