// Package remote implements a vdom.Adapter whose output lives in another
// process. Adapter calls are queued as protocol commands and sent in one
// batch when the reconciliation pass completes.
package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prowser-dev/prowser/pkg/protocol"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

// Container is the handle of the client's root container.
const Container uint32 = 0

var (
	ErrUnknownHandle = errors.New("remote: unknown handle")
	ErrClosed        = errors.New("remote: adapter closed")
)

// Conn sends binary messages. *websocket.Conn from gorilla/websocket
// satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

// BinaryMessage is the websocket binary message type.
const BinaryMessage = 2

// element is the adapter's record of a handle the client holds.
type element struct {
	tag    string
	attrs  vdom.Attrs
	parent uint32
}

// Adapter queues rendering commands for a remote client. It implements
// vdom.Adapter[uint32].
type Adapter struct {
	mu       sync.Mutex
	conn     Conn
	next     uint32
	seq      uint64
	pending  []protocol.Command
	elements map[uint32]*element
	reset    bool
	closed   bool
	logger   *slog.Logger
}

// New returns an adapter writing to conn.
func New(conn Conn, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		conn:     conn,
		elements: map[uint32]*element{Container: {tag: "#container"}},
		reset:    true,
		logger:   logger.With("component", "remote.adapter"),
	}
}

// Mount implements vdom.Adapter.
func (a *Adapter) Mount(parent uint32, n vdom.Node, index int) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}
	if _, ok := a.elements[parent]; !ok {
		return 0, fmt.Errorf("%w: parent %d", ErrUnknownHandle, parent)
	}
	a.next++
	id := a.next
	a.elements[id] = &element{tag: n.Tag, attrs: n.Attrs.Clone(), parent: parent}
	a.pending = append(a.pending, protocol.Command{
		Op:     protocol.CmdMount,
		ID:     id,
		Parent: parent,
		Index:  index,
		Tag:    n.Tag,
		Set:    setAttrs(n.Attrs),
	})
	return id, nil
}

// UpdateAttrs implements vdom.Adapter.
func (a *Adapter) UpdateAttrs(h uint32, n vdom.Node, delta vdom.AttrDelta) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	el, ok := a.elements[h]
	if !ok || h == Container {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	el.attrs = n.Attrs.Clone()

	cmd := protocol.Command{Op: protocol.CmdUpdate, ID: h}
	for _, name := range delta.Keys() {
		v := delta[name]
		if v.Present {
			cmd.Set = append(cmd.Set, protocol.Attr{Name: name, Value: v.Value})
		} else {
			cmd.Remove = append(cmd.Remove, name)
		}
	}
	a.pending = append(a.pending, cmd)
	return nil
}

// Destroy implements vdom.Adapter.
func (a *Adapter) Destroy(h uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if _, ok := a.elements[h]; !ok || h == Container {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(a.elements, h)
	a.pending = append(a.pending, protocol.Command{Op: protocol.CmdDestroy, ID: h})
	return nil
}

// Pending returns the number of queued commands.
func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Live returns the number of handles the client holds, excluding the
// container.
func (a *Adapter) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.elements) - 1
}

// Lookup returns the tag and attributes last sent for h.
func (a *Adapter) Lookup(h uint32) (string, vdom.Attrs, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	el, ok := a.elements[h]
	if !ok {
		return "", nil, false
	}
	return el.tag, el.attrs.Clone(), true
}

// Flush sends the queued commands as one batch. The first batch after New
// or Reset carries FlagReset so the client clears stale output.
func (a *Adapter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if len(a.pending) == 0 && !a.reset {
		return nil
	}
	a.seq++
	var flags protocol.FrameFlags
	if a.reset {
		flags |= protocol.FlagReset
	}
	frames, err := protocol.EncodeBatchFrames(&protocol.Batch{Seq: a.seq, Commands: a.pending}, flags)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := a.conn.WriteMessage(BinaryMessage, f.Encode()); err != nil {
			a.closed = true
			return fmt.Errorf("remote: write batch %d: %w", a.seq, err)
		}
	}
	a.logger.Debug("batch sent",
		"seq", a.seq,
		"commands", len(a.pending),
		"frames", len(frames))
	a.pending = a.pending[:0]
	a.reset = false
	return nil
}

// Reset forgets every handle and queued command. The next Flush tells the
// client to clear its output.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = a.pending[:0]
	clear(a.elements)
	a.elements[Container] = &element{tag: "#container"}
	a.reset = true
}

// Close marks the adapter closed. Later calls fail with ErrClosed.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

func setAttrs(attrs vdom.Attrs) []protocol.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]protocol.Attr, 0, len(attrs))
	for _, k := range attrs.Keys() {
		out = append(out, protocol.Attr{Name: k, Value: attrs[k]})
	}
	return out
}
