package term

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/prowser-dev/prowser/pkg/markup"
	"github.com/prowser-dev/prowser/pkg/vdom"
	"github.com/prowser-dev/prowser/pkg/vtest"
)

// plainStyles renders without escape codes so views compare as text.
func plainStyles() Styles {
	return Styles{Bullet: "• ", FieldWidth: 10, PasswordMask: '*'}
}

func mount(t *testing.T, body string) (*Screen, *vdom.Reconciler[*Widget]) {
	t.Helper()
	tree, err := markup.Build(vdom.NewBuilder(), []byte(body))
	if err != nil {
		t.Fatal(err)
	}
	s := NewScreen()
	r := vdom.NewReconciler[*Widget](s, s.Root())
	if err := r.Mount(tree); err != nil {
		t.Fatal(err)
	}
	return s, r
}

func find(s *Screen, tag string) *Widget {
	var found *Widget
	s.Root().walk(func(w *Widget) {
		if found == nil && w.Tag == tag {
			found = w
		}
	})
	return found
}

func TestWidgetKinds(t *testing.T) {
	s, _ := mount(t, `<h3>t</h3><a href="/x">x</a><input name="q"><input type="submit">
		<button>b</button><textarea name="n"></textarea><form></form><ul><li>i</li></ul><br><hr><span>s</span>`)

	tests := []struct {
		tag  string
		want Kind
	}{
		{"h3", KindHeading},
		{"a", KindLink},
		{"textarea", KindField},
		{"button", KindButton},
		{"form", KindForm},
		{"li", KindListItem},
		{"br", KindBreak},
		{"hr", KindRule},
		{"span", KindContainer},
		{vdom.TextTag, KindText},
	}
	for _, tt := range tests {
		w := find(s, tt.tag)
		if w == nil {
			t.Errorf("no widget for <%s>", tt.tag)
			continue
		}
		if w.Kind != tt.want {
			t.Errorf("<%s> kind = %v, want %v", tt.tag, w.Kind, tt.want)
		}
	}
	if h := find(s, "h3"); h.Level != 3 {
		t.Errorf("h3 level = %d", h.Level)
	}
	var inputs []Kind
	s.Root().walk(func(w *Widget) {
		if w.Tag == "input" {
			inputs = append(inputs, w.Kind)
		}
	})
	if want := []Kind{KindField, KindButton}; !reflect.DeepEqual(inputs, want) {
		t.Errorf("input kinds = %v, want %v", inputs, want)
	}
	if b := find(s, "button"); b.Label() != "b" {
		t.Errorf("button label = %q", b.Label())
	}
}

func TestView(t *testing.T) {
	s, _ := mount(t, `<h1>Welcome</h1><p>Read the <a href="/docs">docs</a> now.</p>
		<ul><li>one</li><li>two</li></ul><hr>
		<form><input name="q" placeholder="search"><input type="submit" value="Go"></form>`)

	got := s.ViewStyled(40, plainStyles())
	want := strings.Join([]string{
		"# Welcome",
		"Read the docs now.",
		"• one",
		"• two",
		strings.Repeat("─", 40),
		"[search____] [ Go ]",
	}, "\n")
	if got != want {
		t.Errorf("View:\n%s\nwant:\n%s", got, want)
	}
}

func TestViewWraps(t *testing.T) {
	s, _ := mount(t, `<p>the quick brown fox jumps over the lazy dog</p>`)
	view := s.ViewStyled(12, plainStyles())
	lines := strings.Split(view, "\n")
	if len(lines) < 4 {
		t.Errorf("expected wrapping, got %q", view)
	}
	for _, l := range lines {
		if w := lipgloss.Width(l); w > 12 {
			t.Errorf("line %q is %d wide", l, w)
		}
	}
}

func TestViewHidesHead(t *testing.T) {
	s, _ := mount(t, `<!doctype html><html><head><title>Secret</title></head><body><p>shown</p></body></html>`)
	view := s.ViewStyled(40, plainStyles())
	if strings.Contains(view, "Secret") || !strings.Contains(view, "shown") {
		t.Errorf("View = %q", view)
	}
}

func TestFieldRendering(t *testing.T) {
	s, _ := mount(t, `<input name="p" type="password" value="hunter2"><input name="long">`)
	long := find(s, "input").Parent.Children[1]
	long.SetValue("abcdefghijklmnop")

	got := s.ViewStyled(60, plainStyles())
	if want := "[*******___] [ghijklmnop]"; got != want {
		t.Errorf("View = %q, want %q", got, want)
	}
}

// checkWidgets verifies that the screen holds exactly the nodes of tree.
func checkWidgets(s *Screen, tree *vdom.Tree) error {
	if s.Live() != tree.Len() {
		return fmt.Errorf("%d widgets for %d nodes", s.Live(), tree.Len())
	}
	var check func(w *Widget, id vdom.NodeID) error
	check = func(w *Widget, id vdom.NodeID) error {
		n := tree.MustNode(id)
		if w.Tag != n.Tag || !w.Attrs.Equal(n.Attrs) {
			return fmt.Errorf("widget <%s> %v for node %s %v", w.Tag, w.Attrs, n, n.Attrs)
		}
		if len(w.Children) != len(n.Children) {
			return fmt.Errorf("%s: %d children, want %d", n, len(w.Children), len(n.Children))
		}
		for i, c := range n.Children {
			if err := check(w.Children[i], c); err != nil {
				return err
			}
		}
		return nil
	}
	if len(s.Root().Children) != 1 {
		return fmt.Errorf("screen has %d roots", len(s.Root().Children))
	}
	return check(s.Root().Children[0], tree.Root())
}

func TestScreenFollowsReconciler(t *testing.T) {
	s := NewScreen()
	r := vdom.NewReconciler[*Widget](s, s.Root())

	for seed := range uint64(40) {
		tree := vtest.RandomTree(seed)
		if _, err := r.Update(tree); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if err := checkWidgets(s, tree); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
	}
	if err := r.Unmount(); err != nil {
		t.Fatal(err)
	}
	if s.Live() != 0 || len(s.Root().Children) != 0 {
		t.Errorf("after Unmount: %d live, %d roots", s.Live(), len(s.Root().Children))
	}
}

func TestFocus(t *testing.T) {
	s, r := mount(t, `<a href="/a">a</a><input type="hidden" name="h"><input name="q"><a href="/b">b</a>`)

	var hrefs []string
	for _, l := range s.Links() {
		hrefs = append(hrefs, l.Href())
	}
	if want := []string{"/a", "/b"}; !reflect.DeepEqual(hrefs, want) {
		t.Errorf("Links = %v", hrefs)
	}
	if n := len(s.Focusables()); n != 3 {
		t.Fatalf("Focusables = %d, want 3", n)
	}

	if w := s.MoveFocus(1); w.Href() != "/a" {
		t.Errorf("first focus = %v", w)
	}
	if w := s.MoveFocus(1); w.Name() != "q" {
		t.Errorf("second focus = %v", w)
	}
	s.MoveFocus(1)
	if w := s.MoveFocus(1); w.Href() != "/a" {
		t.Errorf("focus did not wrap: %v", w)
	}
	if w := s.MoveFocus(-1); w.Href() != "/b" {
		t.Errorf("backwards focus = %v", w)
	}

	if err := r.Unmount(); err != nil {
		t.Fatal(err)
	}
	if s.Focused() != nil {
		t.Error("destroying the focused widget kept focus")
	}
}

func TestSubmission(t *testing.T) {
	s, _ := mount(t, `<form action="/login" method="post">
		<input name="user" value="ann">
		<input name="pass" type="password">
		<input type="checkbox" name="remember" checked>
		<input type="checkbox" name="spam">
		<textarea name="note">hi</textarea>
		<input type="submit" value="Log in">
	</form>`)
	var pass *Widget
	s.Root().walk(func(w *Widget) {
		if w.Name() == "pass" {
			pass = w
		}
	})
	pass.SetValue("secret")

	sub := Submission(find(s, "form"))
	if sub.Action != "/login" || sub.Method != "POST" {
		t.Errorf("submission = %+v", sub)
	}
	want := map[string][]string{
		"user":     {"ann"},
		"pass":     {"secret"},
		"remember": {"on"},
		"note":     {"hi"},
	}
	if !reflect.DeepEqual(map[string][]string(sub.Values), want) {
		t.Errorf("Values = %v, want %v", sub.Values, want)
	}
}

func TestUpdateAttrsDiscardsTypedValue(t *testing.T) {
	s := NewScreen()
	r := vdom.NewReconciler[*Widget](s, s.Root())
	build := func(value string) *vdom.Tree {
		return vdom.MustBuild(vdom.Element("form", nil,
			vdom.Element("input", []string{"name", "q", "value", value, "class", "x"})))
	}
	if err := r.Mount(build("a")); err != nil {
		t.Fatal(err)
	}
	in := find(s, "input")
	in.SetValue("typed")

	if _, err := r.Update(build("a")); err != nil {
		t.Fatal(err)
	}
	if in.FieldValue() != "typed" {
		t.Errorf("unchanged value reset to %q", in.FieldValue())
	}
	if _, err := r.Update(build("b")); err != nil {
		t.Fatal(err)
	}
	if in.FieldValue() != "b" {
		t.Errorf("FieldValue = %q, want b", in.FieldValue())
	}
}
