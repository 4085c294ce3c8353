// Package protocol implements the binary wire protocol between the preview
// server and a remote rendering client.
//
// The server runs the reconciler and sends the client the adapter calls it
// made, as commands against small integer handles. The client keeps a table
// from handle to DOM node and applies commands in order. It sends back
// navigation events for link clicks and form submissions.
//
// # Wire Format
//
// All messages are framed with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// Frame types:
//
//   - FrameHello (0x00): session ID and document URL
//   - FrameCommands (0x01): a command batch, possibly split across frames
//   - FrameEvent (0x02): a client interaction
//   - FrameError (0x03): an error report
//
// # Encoding
//
// Integers are unsigned varints and strings carry a varint length prefix.
// The frame length and error codes are big-endian uint16. The
// decoder bounds every length prefix and collection count before
// allocating.
//
// # Commands
//
//	Mount:   [0x01][ID][Parent][Index][Tag][n][name value]*
//	Update:  [0x02][ID][n][name value]*[m][name]*
//	Destroy: [0x03][ID]
package protocol
