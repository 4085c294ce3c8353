package term

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/prowser-dev/prowser/pkg/page"
	"github.com/prowser-dev/prowser/pkg/source"
)

var statusStyle = lipgloss.NewStyle().Faint(true)

// loadedMsg carries a fetched document back to the update loop, which is
// the only goroutine that touches the screen.
type loadedMsg struct {
	doc     *source.Document
	remount bool
}

type failedMsg struct {
	err error
}

// Browser is a bubbletea model: a URL bar above a scrollable page.
//
// Keys: tab and shift+tab move focus between links and form controls,
// enter follows a link or submits the focused control's form, ctrl+r
// reloads, ctrl+l edits the URL, ctrl+c or q quits.
type Browser struct {
	ctx    context.Context
	ctrl   *page.Controller[*Widget]
	screen *Screen
	home   string

	url      textinput.Model
	viewport viewport.Model
	status   string
	loading  bool
}

var _ tea.Model = (*Browser)(nil)

// NewBrowser returns a browser showing ctrl's pages on screen. The home
// location, if any, is opened on start.
func NewBrowser(ctx context.Context, ctrl *page.Controller[*Widget], screen *Screen, home string) *Browser {
	in := textinput.New()
	in.Prompt = "url: "
	in.Placeholder = "https://example.com"
	return &Browser{
		ctx:      ctx,
		ctrl:     ctrl,
		screen:   screen,
		home:     home,
		url:      in,
		viewport: viewport.New(80, 22),
	}
}

// Run starts an interactive browser on the terminal and blocks until the
// user quits.
func Run(ctx context.Context, ctrl *page.Controller[*Widget], screen *Screen, home string) error {
	_, err := tea.NewProgram(NewBrowser(ctx, ctrl, screen, home),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	).Run()
	return err
}

// Status returns the status line text.
func (b *Browser) Status() string {
	return b.status
}

// Init implements tea.Model.
func (b *Browser) Init() tea.Cmd {
	if b.home == "" {
		return b.url.Focus()
	}
	return b.open(b.home)
}

// Update implements tea.Model.
func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.viewport.Width = msg.Width
		b.viewport.Height = max(msg.Height-2, 1)
		b.url.Width = max(msg.Width-lipgloss.Width(b.url.Prompt)-1, 1)
		b.refresh()
		return b, nil

	case loadedMsg:
		b.loading = false
		patches, err := b.ctrl.Render(b.ctx, msg.doc, msg.remount)
		if err != nil {
			b.status = "error: " + err.Error()
			b.refresh()
			return b, nil
		}
		b.url.SetValue(msg.doc.URL.String())
		if msg.remount {
			b.screen.SetFocus(nil)
			b.viewport.GotoTop()
			b.status = fmt.Sprintf("%d nodes", b.ctrl.Tree().Len())
		} else {
			b.status = fmt.Sprintf("%d nodes, %d patches", b.ctrl.Tree().Len(), len(patches))
		}
		b.refresh()
		return b, nil

	case failedMsg:
		b.loading = false
		b.status = "error: " + msg.err.Error()
		return b, nil

	case tea.KeyMsg:
		return b.handleKey(msg)
	}
	return b, nil
}

func (b *Browser) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return b, tea.Quit
	case "ctrl+l":
		b.screen.SetFocus(nil)
		b.refresh()
		return b, b.url.Focus()
	case "ctrl+r":
		return b, b.reload()
	}

	if b.url.Focused() {
		switch msg.String() {
		case "enter":
			b.url.Blur()
			return b, b.open(b.url.Value())
		case "esc":
			b.url.Blur()
			return b, nil
		}
		var cmd tea.Cmd
		b.url, cmd = b.url.Update(msg)
		return b, cmd
	}

	switch msg.String() {
	case "tab":
		b.screen.MoveFocus(1)
		b.refresh()
		return b, nil
	case "shift+tab":
		b.screen.MoveFocus(-1)
		b.refresh()
		return b, nil
	case "esc":
		b.screen.SetFocus(nil)
		b.refresh()
		return b, nil
	case "enter":
		return b, b.activate(b.screen.Focused())
	}

	if f := b.screen.Focused(); f != nil && f.Kind == KindField {
		switch msg.Type {
		case tea.KeyBackspace:
			if r := []rune(f.FieldValue()); len(r) > 0 {
				f.SetValue(string(r[:len(r)-1]))
			}
		case tea.KeySpace:
			f.SetValue(f.FieldValue() + " ")
		case tea.KeyRunes:
			f.SetValue(f.FieldValue() + string(msg.Runes))
		}
		b.refresh()
		return b, nil
	}

	if msg.String() == "q" {
		return b, tea.Quit
	}
	var cmd tea.Cmd
	b.viewport, cmd = b.viewport.Update(msg)
	return b, cmd
}

// View implements tea.Model.
func (b *Browser) View() string {
	status := b.status
	if b.loading {
		status = "loading... " + status
	}
	return b.url.View() + "\n" + b.viewport.View() + "\n" + statusStyle.Render(status)
}

func (b *Browser) refresh() {
	b.viewport.SetContent(b.screen.View(b.viewport.Width))
}

// activate follows a link or submits the form of a control.
func (b *Browser) activate(w *Widget) tea.Cmd {
	if w == nil {
		return nil
	}
	if w.Kind == KindLink {
		u, err := source.Resolve(b.ctrl.URL(), w.Href())
		if errors.Is(err, source.ErrFragmentLink) {
			return nil
		}
		if err != nil {
			return fail(err)
		}
		return b.fetch(u, true)
	}
	form := w.Form()
	if form == nil {
		return nil
	}
	sub := Submission(form)
	b.loading = true
	b.status = fmt.Sprintf("submitting %s", sub.Method)
	ctx, ctrl := b.ctx, b.ctrl
	return func() tea.Msg {
		doc, err := ctrl.Send(ctx, sub)
		if err != nil {
			return failedMsg{err}
		}
		return loadedMsg{doc: doc}
	}
}

func (b *Browser) open(location string) tea.Cmd {
	u, err := source.Normalize(location)
	if err != nil {
		return fail(err)
	}
	return b.fetch(u, true)
}

func (b *Browser) reload() tea.Cmd {
	u := b.ctrl.URL()
	if u == nil {
		return fail(page.ErrNoDocument)
	}
	return b.fetch(u, false)
}

func (b *Browser) fetch(u *url.URL, remount bool) tea.Cmd {
	b.loading = true
	b.status = u.Redacted()
	ctx, ctrl := b.ctx, b.ctrl
	return func() tea.Msg {
		doc, err := ctrl.Fetch(ctx, u)
		if err != nil {
			return failedMsg{err}
		}
		return loadedMsg{doc: doc, remount: remount}
	}
}

func fail(err error) tea.Cmd {
	return func() tea.Msg {
		return failedMsg{err}
	}
}
