package protocol

import (
	"reflect"
	"strings"
	"testing"
)

func TestBatchRoundTrip(t *testing.T) {
	b := &Batch{
		Seq: 7,
		Commands: []Command{
			{Op: CmdMount, ID: 1, Parent: 0, Index: 0, Tag: "div", Set: []Attr{{"class", "card"}}},
			{Op: CmdMount, ID: 2, Parent: 1, Index: 0, Tag: "#text", Set: []Attr{{"content", "héllo"}}},
			{Op: CmdUpdate, ID: 1, Set: []Attr{{"title", "t"}}, Remove: []string{"class"}},
			{Op: CmdDestroy, ID: 2},
		},
	}

	got, err := DecodeBatch(EncodeBatch(b))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, b) {
		t.Errorf("DecodeBatch =\n%+v\nwant\n%+v", got, b)
	}
}

func TestDecodeBatchRejectsGarbage(t *testing.T) {
	data := EncodeBatch(&Batch{Seq: 1, Commands: []Command{{Op: CmdDestroy, ID: 3}}})

	if _, err := DecodeBatch(append(data, 0x00)); err == nil {
		t.Error("trailing byte accepted")
	}
	if _, err := DecodeBatch(data[:len(data)-1]); err == nil {
		t.Error("truncated batch accepted")
	}

	e := NewEncoder()
	e.WriteUvarint(1)
	e.WriteUvarint(1)
	e.WriteByte(0x99)
	e.WriteUvarint(1)
	if _, err := DecodeBatch(e.Bytes()); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown op: %v", err)
	}
}

func TestEncodeBatchFramesSplits(t *testing.T) {
	value := strings.Repeat("x", 1000)
	var cmds []Command
	for i := range 200 {
		cmds = append(cmds, Command{Op: CmdMount, ID: uint32(i + 1), Tag: "p", Set: []Attr{{"title", value}}})
	}

	frames, err := EncodeBatchFrames(&Batch{Seq: 3, Commands: cmds}, FlagReset)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) < 3 {
		t.Fatalf("got %d frames, want the batch split", len(frames))
	}

	var all []Command
	for i, f := range frames {
		if len(f.Payload) > MaxPayloadSize {
			t.Errorf("frame %d payload %d bytes", i, len(f.Payload))
		}
		last := i == len(frames)-1
		if f.Flags.Has(FlagFinal) != last {
			t.Errorf("frame %d FlagFinal = %v", i, f.Flags.Has(FlagFinal))
		}
		if f.Flags.Has(FlagReset) != (i == 0) {
			t.Errorf("frame %d FlagReset = %v", i, f.Flags.Has(FlagReset))
		}
		b, err := DecodeBatch(f.Payload)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if b.Seq != 3 {
			t.Errorf("frame %d Seq = %d", i, b.Seq)
		}
		all = append(all, b.Commands...)
	}
	if !reflect.DeepEqual(all, cmds) {
		t.Error("split frames do not reassemble to the batch")
	}
}

func TestEncodeBatchFramesEmpty(t *testing.T) {
	frames, err := EncodeBatchFrames(&Batch{Seq: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || !frames[0].Flags.Has(FlagFinal) {
		t.Errorf("frames = %+v", frames)
	}
}

func TestEncodeBatchFramesOversizedCommand(t *testing.T) {
	huge := Command{Op: CmdMount, ID: 1, Tag: "p", Set: []Attr{{"content", strings.Repeat("x", MaxPayloadSize)}}}
	if _, err := EncodeBatchFrames(&Batch{Commands: []Command{huge}}, 0); err == nil {
		t.Error("oversized command accepted")
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Op: CmdMount, ID: 2, Parent: 1, Index: 3, Tag: "li"}, "Mount(2 <li> under 1 @3)"},
		{Command{Op: CmdUpdate, ID: 2, Set: []Attr{{"a", "1"}}, Remove: []string{"b"}}, "Update(2 a=1 -b)"},
		{Command{Op: CmdDestroy, ID: 9}, "Destroy(9)"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestSortAttrs(t *testing.T) {
	attrs := []Attr{{"z", "1"}, {"a", "2"}, {"m", "3"}}
	SortAttrs(attrs)
	if attrs[0].Name != "a" || attrs[1].Name != "m" || attrs[2].Name != "z" {
		t.Errorf("SortAttrs = %v", attrs)
	}
}

func TestEventRoundTrip(t *testing.T) {
	tests := []*Event{
		{Kind: EventFollow, Handle: 12, Href: "/next?page=2"},
		{Kind: EventSubmit, Handle: 4, Values: []Attr{{"q", "go"}, {"lang", "en"}}},
		{Kind: EventReload},
	}
	for _, ev := range tests {
		f := ev.Frame()
		if f.Type != FrameEvent {
			t.Errorf("%s: frame type %s", ev.Kind, f.Type)
		}
		got, err := DecodeEvent(f.Payload)
		if err != nil {
			t.Fatalf("%s: %v", ev.Kind, err)
		}
		if !reflect.DeepEqual(got, ev) {
			t.Errorf("%s: got %+v, want %+v", ev.Kind, got, ev)
		}
	}
	if _, err := DecodeEvent([]byte{0x7F, 0x00}); err == nil {
		t.Error("unknown event kind accepted")
	}
}

func TestHelloAndErrorRoundTrip(t *testing.T) {
	h := &Hello{Session: "01HZX", URL: "file:///tmp/a.html"}
	got, err := DecodeHello(h.Frame().Payload)
	if err != nil || *got != *h {
		t.Errorf("DecodeHello = %+v, %v", got, err)
	}

	em := NewError(ErrLoadFailed, "fetch %s: %s", "x", "timeout")
	em.Fatal = true
	dec, err := DecodeErrorMessage(em.Frame().Payload)
	if err != nil || *dec != *em {
		t.Errorf("DecodeErrorMessage = %+v, %v", dec, err)
	}
	if want := "fatal: LoadFailed: fetch x: timeout"; dec.Error() != want {
		t.Errorf("Error() = %q, want %q", dec.Error(), want)
	}
}
