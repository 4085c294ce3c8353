package protocol

import "fmt"

// EventKind identifies a client interaction.
type EventKind uint8

const (
	// EventFollow is a click on a link. Href is the raw href attribute.
	EventFollow EventKind = 0x01

	// EventSubmit is a form submission. Handle names the form and Values
	// carries its named fields in document order.
	EventSubmit EventKind = 0x02

	// EventReload asks the server to refetch the current document.
	EventReload EventKind = 0x03
)

func (k EventKind) String() string {
	switch k {
	case EventFollow:
		return "Follow"
	case EventSubmit:
		return "Submit"
	case EventReload:
		return "Reload"
	default:
		return "Unknown"
	}
}

// Event is the payload of FrameEvent.
type Event struct {
	Kind   EventKind
	Handle uint32
	Href   string
	Values []Attr
}

// Frame wraps the event in a FrameEvent.
func (ev *Event) Frame() *Frame {
	e := NewEncoder()
	e.WriteByte(byte(ev.Kind))
	e.WriteUvarint(uint64(ev.Handle))
	switch ev.Kind {
	case EventFollow:
		e.WriteString(ev.Href)
	case EventSubmit:
		encodeAttrs(e, ev.Values)
	}
	return NewFrame(FrameEvent, e.Bytes())
}

// DecodeEvent decodes a FrameEvent payload.
func DecodeEvent(data []byte) (*Event, error) {
	d := NewDecoder(data)
	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ev := &Event{Kind: EventKind(kind)}
	if ev.Handle, err = readHandle(d); err != nil {
		return nil, err
	}
	switch ev.Kind {
	case EventFollow:
		ev.Href, err = d.ReadString()
	case EventSubmit:
		ev.Values, err = decodeAttrs(d)
	case EventReload:
	default:
		return nil, fmt.Errorf("protocol: unknown event kind 0x%02x", kind)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Hello is the payload of FrameHello, the first frame of a session.
type Hello struct {
	Session string
	URL     string
}

// Frame wraps the greeting in a FrameHello.
func (h *Hello) Frame() *Frame {
	e := NewEncoder()
	e.WriteString(h.Session)
	e.WriteString(h.URL)
	return NewFrame(FrameHello, e.Bytes())
}

// DecodeHello decodes a FrameHello payload.
func DecodeHello(data []byte) (*Hello, error) {
	d := NewDecoder(data)
	session, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	url, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &Hello{Session: session, URL: url}, nil
}
