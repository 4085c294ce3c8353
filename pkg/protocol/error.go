package protocol

import "fmt"

// ErrorCode classifies an error frame.
type ErrorCode uint16

const (
	ErrUnknown      ErrorCode = 0x0000
	ErrInvalidFrame ErrorCode = 0x0001 // Malformed frame or payload
	ErrInvalidEvent ErrorCode = 0x0002 // Event names an unknown handle
	ErrLoadFailed   ErrorCode = 0x0100 // Document could not be fetched or parsed
	ErrReconcile    ErrorCode = 0x0101 // Output could not be brought up to date
	ErrServerError  ErrorCode = 0x01FF
)

func (ec ErrorCode) String() string {
	switch ec {
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrInvalidEvent:
		return "InvalidEvent"
	case ErrLoadFailed:
		return "LoadFailed"
	case ErrReconcile:
		return "Reconcile"
	case ErrServerError:
		return "ServerError"
	default:
		return "Unknown"
	}
}

// ErrorMessage is the payload of FrameError. A fatal error is followed by
// the sender closing the connection.
type ErrorMessage struct {
	Code    ErrorCode
	Message string
	Fatal   bool
}

// NewError returns a non-fatal error message.
func NewError(code ErrorCode, format string, args ...any) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code.String() + ": " + em.Message
	}
	return em.Code.String() + ": " + em.Message
}

// Frame wraps the message in a FrameError.
func (em *ErrorMessage) Frame() *Frame {
	e := NewEncoder()
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return NewFrame(FrameError, e.Bytes())
}

// DecodeErrorMessage decodes a FrameError payload.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	message, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{Code: ErrorCode(code), Message: message, Fatal: fatal}, nil
}
