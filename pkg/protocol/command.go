package protocol

import (
	"fmt"
	"slices"
	"strings"
)

// CommandOp is the kind of a rendering command.
type CommandOp uint8

const (
	// CmdMount creates handle ID as child Index of Parent. Parent 0 is the
	// client's container.
	CmdMount CommandOp = 0x01

	// CmdUpdate sets and removes attributes of handle ID.
	CmdUpdate CommandOp = 0x02

	// CmdDestroy removes handle ID. Its children have already been
	// destroyed by earlier commands.
	CmdDestroy CommandOp = 0x03
)

func (op CommandOp) String() string {
	switch op {
	case CmdMount:
		return "Mount"
	case CmdUpdate:
		return "Update"
	case CmdDestroy:
		return "Destroy"
	default:
		return "Unknown"
	}
}

// Attr is a name/value pair on the wire.
type Attr struct {
	Name  string
	Value string
}

// Command is one rendering instruction for a remote client.
type Command struct {
	Op     CommandOp
	ID     uint32
	Parent uint32 // Mount
	Index  int    // Mount
	Tag    string // Mount
	Set    []Attr // Mount, Update
	Remove []string
}

func (c Command) String() string {
	switch c.Op {
	case CmdMount:
		return fmt.Sprintf("Mount(%d <%s> under %d @%d)", c.ID, c.Tag, c.Parent, c.Index)
	case CmdUpdate:
		var parts []string
		for _, a := range c.Set {
			parts = append(parts, a.Name+"="+a.Value)
		}
		for _, name := range c.Remove {
			parts = append(parts, "-"+name)
		}
		return fmt.Sprintf("Update(%d %s)", c.ID, strings.Join(parts, " "))
	case CmdDestroy:
		return fmt.Sprintf("Destroy(%d)", c.ID)
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(c.Op))
	}
}

// Batch is a sequence-numbered list of commands the client applies in
// order.
type Batch struct {
	Seq      uint64
	Commands []Command
}

// EncodeCommandTo appends one command to e.
func EncodeCommandTo(e *Encoder, c *Command) {
	e.WriteByte(byte(c.Op))
	e.WriteUvarint(uint64(c.ID))
	switch c.Op {
	case CmdMount:
		e.WriteUvarint(uint64(c.Parent))
		e.WriteUvarint(uint64(c.Index))
		e.WriteString(c.Tag)
		encodeAttrs(e, c.Set)
	case CmdUpdate:
		encodeAttrs(e, c.Set)
		e.WriteUvarint(uint64(len(c.Remove)))
		for _, name := range c.Remove {
			e.WriteString(name)
		}
	}
}

func encodeAttrs(e *Encoder, attrs []Attr) {
	e.WriteUvarint(uint64(len(attrs)))
	for _, a := range attrs {
		e.WriteString(a.Name)
		e.WriteString(a.Value)
	}
}

// EncodeBatch encodes b as one payload.
func EncodeBatch(b *Batch) []byte {
	e := NewEncoder()
	e.WriteUvarint(b.Seq)
	e.WriteUvarint(uint64(len(b.Commands)))
	for i := range b.Commands {
		EncodeCommandTo(e, &b.Commands[i])
	}
	return e.Bytes()
}

// EncodeBatchFrames encodes b into frames of at most MaxPayloadSize bytes.
// Every frame repeats the sequence number; the last carries FlagFinal. A
// single command larger than a frame is an error.
func EncodeBatchFrames(b *Batch, flags FrameFlags) ([]*Frame, error) {
	var (
		frames []*Frame
		chunk  []Command
		size   int
	)
	cmd := NewEncoder()
	emit := func() {
		payload := EncodeBatch(&Batch{Seq: b.Seq, Commands: chunk})
		frames = append(frames, &Frame{Type: FrameCommands, Flags: flags &^ FlagFinal, Payload: payload})
		chunk, size = nil, 0
	}

	// Sequence number and count prefixes take at most 10 bytes each.
	const overhead = 20
	for _, c := range b.Commands {
		cmd.Reset()
		EncodeCommandTo(cmd, &c)
		if cmd.Len()+overhead > MaxPayloadSize {
			return nil, fmt.Errorf("%w: command %s encodes to %d bytes", ErrFrameTooLarge, c.Op, cmd.Len())
		}
		if size+cmd.Len()+overhead > MaxPayloadSize {
			emit()
		}
		chunk = append(chunk, c)
		size += cmd.Len()
	}
	emit()
	// Only the first frame resets the client.
	for _, f := range frames[1:] {
		f.Flags &^= FlagReset
	}
	frames[len(frames)-1].Flags |= FlagFinal
	return frames, nil
}

// DecodeBatch decodes a FrameCommands payload.
func DecodeBatch(data []byte) (*Batch, error) {
	d := NewDecoder(data)
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	b := &Batch{Seq: seq, Commands: make([]Command, 0, count)}
	for range count {
		c, err := DecodeCommandFrom(d)
		if err != nil {
			return nil, err
		}
		b.Commands = append(b.Commands, c)
	}
	if !d.EOF() {
		return nil, fmt.Errorf("protocol: %d trailing bytes after batch", d.Remaining())
	}
	return b, nil
}

// DecodeCommandFrom decodes one command.
func DecodeCommandFrom(d *Decoder) (Command, error) {
	var c Command
	op, err := d.ReadByte()
	if err != nil {
		return c, err
	}
	c.Op = CommandOp(op)
	if c.ID, err = readHandle(d); err != nil {
		return c, err
	}
	switch c.Op {
	case CmdMount:
		if c.Parent, err = readHandle(d); err != nil {
			return c, err
		}
		index, err := d.ReadUvarint()
		if err != nil {
			return c, err
		}
		if index > MaxCollectionCount {
			return c, ErrCollectionTooLarge
		}
		c.Index = int(index)
		if c.Tag, err = d.ReadString(); err != nil {
			return c, err
		}
		c.Set, err = decodeAttrs(d)
		return c, err
	case CmdUpdate:
		if c.Set, err = decodeAttrs(d); err != nil {
			return c, err
		}
		n, err := d.ReadCollectionCount()
		if err != nil {
			return c, err
		}
		for range n {
			name, err := d.ReadString()
			if err != nil {
				return c, err
			}
			c.Remove = append(c.Remove, name)
		}
		return c, nil
	case CmdDestroy:
		return c, nil
	default:
		return c, fmt.Errorf("protocol: unknown command op 0x%02x", op)
	}
}

func readHandle(d *Decoder) (uint32, error) {
	v, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if v > 1<<32-1 {
		return 0, ErrVarintOverflow
	}
	return uint32(v), nil
}

func decodeAttrs(d *Decoder) ([]Attr, error) {
	n, err := d.ReadCollectionCount()
	if err != nil || n == 0 {
		return nil, err
	}
	attrs := make([]Attr, 0, n)
	for range n {
		var a Attr
		if a.Name, err = d.ReadString(); err != nil {
			return nil, err
		}
		if a.Value, err = d.ReadString(); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

// SortAttrs orders attrs by name so encodings are deterministic.
func SortAttrs(attrs []Attr) {
	slices.SortFunc(attrs, func(a, b Attr) int {
		return strings.Compare(a.Name, b.Name)
	})
}
