package term

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/prowser-dev/prowser/pkg/page"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

var (
	ErrDestroyed  = errors.New("term: widget destroyed")
	ErrIndexRange = errors.New("term: child index out of range")
)

// Screen is a vdom.Adapter that keeps a widget tree for the terminal.
// It is not safe for concurrent use.
type Screen struct {
	root  *Widget
	live  int
	focus *Widget
}

var _ vdom.Adapter[*Widget] = (*Screen)(nil)

// NewScreen returns an empty screen.
func NewScreen() *Screen {
	return &Screen{root: &Widget{Kind: KindContainer, Tag: "#screen"}}
}

// Root returns the container documents are mounted under.
func (s *Screen) Root() *Widget {
	return s.root
}

// Live returns the number of mounted widgets.
func (s *Screen) Live() int {
	return s.live
}

// Mount implements vdom.Adapter.
func (s *Screen) Mount(parent *Widget, n vdom.Node, index int) (*Widget, error) {
	if parent == nil || parent.destroyed {
		return nil, ErrDestroyed
	}
	if index < 0 || index > len(parent.Children) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexRange, index, len(parent.Children))
	}
	w := newWidget(n)
	w.Parent = parent
	parent.Children = slices.Insert(parent.Children, index, w)
	s.live++
	return w, nil
}

// UpdateAttrs implements vdom.Adapter. A changed value attribute discards
// what the user typed into the field.
func (s *Screen) UpdateAttrs(w *Widget, n vdom.Node, delta vdom.AttrDelta) error {
	if w == nil || w.destroyed {
		return ErrDestroyed
	}
	w.configure(n)
	if _, ok := delta["value"]; ok {
		w.edited = false
		w.Value = ""
	}
	return nil
}

// Destroy implements vdom.Adapter.
func (s *Screen) Destroy(w *Widget) error {
	if w == nil || w.destroyed {
		return ErrDestroyed
	}
	if p := w.Parent; p != nil {
		if i := slices.Index(p.Children, w); i >= 0 {
			p.Children = slices.Delete(p.Children, i, i+1)
		}
	}
	if s.focus == w {
		s.focus = nil
	}
	w.destroyed = true
	w.Parent = nil
	s.live--
	return nil
}

// Links returns the links on screen in document order.
func (s *Screen) Links() []*Widget {
	var links []*Widget
	s.root.walk(func(w *Widget) {
		if w.Kind == KindLink {
			links = append(links, w)
		}
	})
	return links
}

// Focusables returns the widgets focus can move to, in document order.
func (s *Screen) Focusables() []*Widget {
	var out []*Widget
	s.root.walk(func(w *Widget) {
		if w.Focusable() && !w.hiddenByAncestor() {
			out = append(out, w)
		}
	})
	return out
}

// Focused returns the focused widget, or nil.
func (s *Screen) Focused() *Widget {
	return s.focus
}

// SetFocus moves focus to w. Nil clears it.
func (s *Screen) SetFocus(w *Widget) {
	s.focus = w
}

// MoveFocus moves focus delta steps through Focusables, wrapping around.
func (s *Screen) MoveFocus(delta int) *Widget {
	items := s.Focusables()
	if len(items) == 0 {
		s.focus = nil
		return nil
	}
	i := slices.Index(items, s.focus)
	switch {
	case i < 0 && delta < 0:
		i = len(items) - 1
	case i < 0:
		i = 0
	default:
		i = ((i+delta)%len(items) + len(items)) % len(items)
	}
	s.focus = items[i]
	return s.focus
}

// Submission collects the fields of form and the values on screen. A
// checkbox or radio button counts only when checked.
func Submission(form *Widget) page.FormSubmission {
	values := url.Values{}
	form.walk(func(w *Widget) {
		if w.Kind != KindField || w.Name() == "" {
			return
		}
		switch w.InputType() {
		case "checkbox", "radio":
			if _, checked := w.Attrs["checked"]; !checked {
				return
			}
			v := w.Attrs["value"]
			if v == "" {
				v = "on"
			}
			values.Add(w.Name(), v)
		default:
			values.Add(w.Name(), w.FieldValue())
		}
	})
	return page.FormSubmission{
		Action: form.Attrs["action"],
		Method: strings.ToUpper(form.Attrs["method"]),
		Values: values,
	}
}

func (w *Widget) hiddenByAncestor() bool {
	for p := w.Parent; p != nil; p = p.Parent {
		if p.Kind == KindHidden {
			return true
		}
	}
	return false
}
