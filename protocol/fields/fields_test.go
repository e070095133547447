package fields

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gsaluja9/aperturedb-go/protocol"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	in := []Field{
		String(1, "[]"),
		Bytes(2, []byte{0xAA, 0xBB}),
		Varint(9999, 42), // unknown field number
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(out))
	}
	if out[1].Num != 2 || out[1].Type != protowire.BytesType || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("bytes field mismatch: %+v", out[1])
	}
	if out[2].Num != 9999 || out[2].Type != protowire.VarintType || out[2].Scalar != 42 {
		t.Fatalf("unknown field not preserved: %+v", out[2])
	}
}

func TestEncodeFieldsSizeMatchesOutput(t *testing.T) {
	in := []Field{String(1, "abc"), Bytes(2, make([]byte, 300)), Varint(3, 1<<40)}
	want := 0
	for _, f := range in {
		want += Size(f)
	}
	if got := len(EncodeFields(in)); got != want {
		t.Fatalf("encoded size=%d want %d", got, want)
	}
}

func TestDecodeFieldsMalformedTag(t *testing.T) {
	// a lone continuation byte never terminates the tag varint
	_, err := DecodeFields([]byte{0x80})
	if !errors.Is(err, protocol.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDecodeFieldsShortValue(t *testing.T) {
	// field 1, bytes, declared length 5, only 2 bytes present
	payload := []byte{0x0a, 0x05, 'a', 'b'}
	_, err := DecodeFields(payload)
	var decodeErr *protocol.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.Offset != 0 {
		t.Fatalf("unexpected offset: %d", decodeErr.Offset)
	}
}

func TestGetFieldLastOneWins(t *testing.T) {
	fs := []Field{String(1, "first"), String(3, "tok"), String(1, "second")}
	f, ok := GetField(fs, 1)
	if !ok || string(f.Value) != "second" {
		t.Fatalf("expected last occurrence, got %+v ok=%v", f, ok)
	}
	if got := All(fs, 1); len(got) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(got))
	}
	if _, ok := GetField(fs, 2); ok {
		t.Fatalf("expected field 2 to be absent")
	}
}
