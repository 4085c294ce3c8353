package remote

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/prowser-dev/prowser/pkg/protocol"
	"github.com/prowser-dev/prowser/pkg/vdom"
	"github.com/prowser-dev/prowser/pkg/vtest"
)

type recordingConn struct {
	messages [][]byte
	err      error
}

func (c *recordingConn) WriteMessage(mt int, data []byte) error {
	if c.err != nil {
		return c.err
	}
	if mt != BinaryMessage {
		return fmt.Errorf("message type %d", mt)
	}
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

// client replays command batches the way the browser client does.
type client struct {
	nodes    map[uint32]*clientNode
	batches  int
	lastSeq  uint64
	resets   int
	buffered []protocol.Command
}

type clientNode struct {
	tag      string
	attrs    map[string]string
	children []*clientNode
	parent   *clientNode
}

func newClient() *client {
	return &client{nodes: map[uint32]*clientNode{Container: {tag: "#container"}}}
}

func (c *client) receive(t *testing.T, msgs [][]byte) {
	t.Helper()
	for _, m := range msgs {
		f, err := protocol.DecodeFrame(m)
		if err != nil {
			t.Fatal(err)
		}
		if f.Type != protocol.FrameCommands {
			t.Fatalf("frame type %s", f.Type)
		}
		b, err := protocol.DecodeBatch(f.Payload)
		if err != nil {
			t.Fatal(err)
		}
		if f.Flags.Has(protocol.FlagReset) {
			c.nodes = map[uint32]*clientNode{Container: {tag: "#container"}}
			c.resets++
		}
		c.buffered = append(c.buffered, b.Commands...)
		if !f.Flags.Has(protocol.FlagFinal) {
			continue
		}
		c.lastSeq = b.Seq
		c.batches++
		for _, cmd := range c.buffered {
			c.apply(t, cmd)
		}
		c.buffered = nil
	}
}

func (c *client) apply(t *testing.T, cmd protocol.Command) {
	t.Helper()
	switch cmd.Op {
	case protocol.CmdMount:
		parent, ok := c.nodes[cmd.Parent]
		if !ok {
			t.Fatalf("%s: no parent", cmd)
		}
		n := &clientNode{tag: cmd.Tag, attrs: map[string]string{}, parent: parent}
		for _, a := range cmd.Set {
			n.attrs[a.Name] = a.Value
		}
		parent.children = slices.Insert(parent.children, cmd.Index, n)
		c.nodes[cmd.ID] = n
	case protocol.CmdUpdate:
		n, ok := c.nodes[cmd.ID]
		if !ok {
			t.Fatalf("%s: unknown handle", cmd)
		}
		for _, a := range cmd.Set {
			n.attrs[a.Name] = a.Value
		}
		for _, name := range cmd.Remove {
			delete(n.attrs, name)
		}
	case protocol.CmdDestroy:
		n, ok := c.nodes[cmd.ID]
		if !ok {
			t.Fatalf("%s: unknown handle", cmd)
		}
		if len(n.children) > 0 {
			t.Fatalf("%s: has children", cmd)
		}
		p := n.parent
		p.children = slices.DeleteFunc(p.children, func(c *clientNode) bool { return c == n })
		delete(c.nodes, cmd.ID)
	}
}

func (c *client) snapshot() string {
	var b strings.Builder
	var write func(n *clientNode)
	write = func(n *clientNode) {
		if n.tag == vdom.TextTag {
			fmt.Fprintf(&b, "%q", n.attrs[vdom.ContentAttr])
			return
		}
		b.WriteString("<" + n.tag)
		keys := make([]string, 0, len(n.attrs))
		for k := range n.attrs {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%q", k, n.attrs[k])
		}
		b.WriteString(">")
		for _, ch := range n.children {
			write(ch)
		}
		b.WriteString("</" + n.tag + ">")
	}
	for _, ch := range c.nodes[Container].children {
		write(ch)
	}
	return b.String()
}

func TestAdapterRoundTrip(t *testing.T) {
	conn := &recordingConn{}
	a := New(conn, nil)
	r := vdom.NewReconciler[uint32](a, Container)
	cl := newClient()

	for seed := uint64(1); seed <= 25; seed++ {
		tree := vtest.RandomTree(seed)
		if _, err := r.Update(tree); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if err := a.Flush(); err != nil {
			t.Fatal(err)
		}
		cl.receive(t, conn.messages)
		conn.messages = nil

		if got, want := cl.snapshot(), vtest.Render(tree); got != want {
			t.Fatalf("seed %d: client output\n got %s\nwant %s", seed, got, want)
		}
		if a.Live() != tree.Len() {
			t.Fatalf("seed %d: Live() = %d, want %d", seed, a.Live(), tree.Len())
		}
	}
	if cl.resets != 1 {
		t.Errorf("resets = %d, want only the first batch", cl.resets)
	}
}

func TestAdapterUpdateCommand(t *testing.T) {
	conn := &recordingConn{}
	a := New(conn, nil)
	r := vdom.NewReconciler[uint32](a, Container)

	prev := vdom.MustBuild(vdom.Element("p", []string{"class", "a", "title", "t"}))
	next := vdom.MustBuild(vdom.Element("p", []string{"class", "b"}))
	if err := r.Mount(prev); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	conn.messages = nil

	if _, err := r.Update(next); err != nil {
		t.Fatal(err)
	}
	if a.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", a.Pending())
	}
	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	f, err := protocol.DecodeFrame(conn.messages[0])
	if err != nil {
		t.Fatal(err)
	}
	b, err := protocol.DecodeBatch(f.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := b.Commands[0].String(), "Update(1 class=b -title)"; got != want {
		t.Errorf("command = %s, want %s", got, want)
	}
	if f.Flags.Has(protocol.FlagReset) {
		t.Error("second batch carried FlagReset")
	}
	if tag, attrs, ok := a.Lookup(1); !ok || tag != "p" || attrs["class"] != "b" {
		t.Errorf("Lookup(1) = %s %v %v", tag, attrs, ok)
	}
}

func TestAdapterErrors(t *testing.T) {
	a := New(&recordingConn{}, nil)
	if _, err := a.Mount(42, vdom.Node{Tag: "p"}, 0); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Mount under unknown = %v", err)
	}
	if err := a.Destroy(Container); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Destroy(container) = %v", err)
	}
	if err := a.UpdateAttrs(7, vdom.Node{}, nil); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("UpdateAttrs unknown = %v", err)
	}
}

func TestAdapterWriteFailureCloses(t *testing.T) {
	conn := &recordingConn{err: errors.New("broken pipe")}
	a := New(conn, nil)
	if _, err := a.Mount(Container, vdom.Node{Tag: "p"}, 0); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(); err == nil {
		t.Fatal("Flush succeeded on a broken connection")
	}
	if _, err := a.Mount(Container, vdom.Node{Tag: "p"}, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Mount after failure = %v, want ErrClosed", err)
	}
}

func TestAdapterReset(t *testing.T) {
	conn := &recordingConn{}
	a := New(conn, nil)
	if _, err := a.Mount(Container, vdom.Node{Tag: "p"}, 0); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	a.Reset()
	if a.Live() != 0 {
		t.Errorf("Live() = %d after Reset", a.Live())
	}
	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(conn.messages) != 2 {
		t.Fatalf("sent %d messages, want 2", len(conn.messages))
	}
	f, _ := protocol.DecodeFrame(conn.messages[1])
	if !f.Flags.Has(protocol.FlagReset) {
		t.Error("batch after Reset lacks FlagReset")
	}
}
