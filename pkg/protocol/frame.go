package protocol

import (
	"errors"
	"io"
)

const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 4

	// MaxPayloadSize is the largest payload one frame can carry. Larger
	// command batches are split across frames.
	MaxPayloadSize = 65535
)

// FrameType identifies the payload of a frame.
type FrameType uint8

const (
	FrameHello    FrameType = 0x00 // Server → client session greeting
	FrameCommands FrameType = 0x01 // Server → client command batch
	FrameEvent    FrameType = 0x02 // Client → server navigation event
	FrameError    FrameType = 0x03 // Error report, either direction
)

func (ft FrameType) String() string {
	switch ft {
	case FrameHello:
		return "Hello"
	case FrameCommands:
		return "Commands"
	case FrameEvent:
		return "Event"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// FrameFlags modify how a frame is processed.
type FrameFlags uint8

const (
	// FlagFinal marks the last frame of a command batch. A client applies a
	// batch only after its final frame arrives.
	FlagFinal FrameFlags = 0x01

	// FlagReset tells the client to drop its rendered output and handle
	// table before applying the batch.
	FlagReset FrameFlags = 0x02
)

// Has reports whether ff contains flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is one message on the wire.
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame returns a frame without flags.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode returns the frame's wire bytes.
func (f *Frame) Encode() []byte {
	e := &Encoder{buf: make([]byte, 0, FrameHeaderSize+len(f.Payload))}
	f.EncodeTo(e)
	return e.Bytes()
}

// EncodeTo appends the frame's wire bytes to e.
func (f *Frame) EncodeTo(e *Encoder) {
	e.WriteByte(byte(f.Type))
	e.WriteByte(byte(f.Flags))
	e.WriteUint16(uint16(len(f.Payload)))
	e.WriteBytes(f.Payload)
}

// DecodeFrame decodes exactly one frame from data. Trailing bytes are an
// error.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder(data)
	ft, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if FrameType(ft) > FrameError {
		return nil, ErrInvalidFrameType
	}
	flags, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	length, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	payload, err := d.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return nil, errors.New("protocol: trailing bytes after frame")
	}
	return &Frame{
		Type:    FrameType(ft),
		Flags:   FrameFlags(flags),
		Payload: append([]byte(nil), payload...),
	}, nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if FrameType(header[0]) > FrameError {
		return nil, ErrInvalidFrameType
	}
	length := int(header[2])<<8 | int(header[3])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return &Frame{
		Type:    FrameType(header[0]),
		Flags:   FrameFlags(header[1]),
		Payload: payload,
	}, nil
}

// WriteFrame writes f to w.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}
