// Package envelope encodes and decodes the {json, blobs, token} message the
// client and server exchange.
//
// Marshal/Unmarshal produce the bare queryMessage protobuf. Encode/Decode add
// the stream length prefix and are the unit handed to a transport.
package envelope

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gsaluja9/aperturedb-go/protocol"
	"github.com/gsaluja9/aperturedb-go/protocol/fields"
	"github.com/gsaluja9/aperturedb-go/protocol/frame"
	"github.com/gsaluja9/aperturedb-go/protocol/schema"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protowire"
)

const wireBytes = protowire.BytesType

// Message is one envelope. A nil Blobs slice encodes like an empty one.
type Message struct {
	JSON  string
	Blobs [][]byte
	Token string
}

// New builds a message, defaulting blobs to an empty sequence.
func New(json string, blobs [][]byte, token string) Message {
	if blobs == nil {
		blobs = [][]byte{}
	}
	return Message{JSON: json, Blobs: blobs, Token: token}
}

// AddBlob appends b to the blob sequence.
func (m *Message) AddBlob(b []byte) {
	m.Blobs = append(m.Blobs, b)
}

// Equal reports field-wise equality, comparing blobs by content and order.
func (m Message) Equal(o Message) bool {
	if m.JSON != o.JSON || m.Token != o.Token || len(m.Blobs) != len(o.Blobs) {
		return false
	}
	for i := range m.Blobs {
		if !bytes.Equal(m.Blobs[i], o.Blobs[i]) {
			return false
		}
	}
	return true
}

// Codec carries the size limits applied on both directions. The zero value
// uses frame.DefaultLimits. A Codec holds no mutable state.
type Codec struct {
	Limits frame.Limits
}

var defaultCodec = Codec{Limits: frame.DefaultLimits()}

func (c Codec) limits() frame.Limits {
	if c.Limits == (frame.Limits{}) {
		return frame.DefaultLimits()
	}
	return c.Limits
}

func Verify(m Message) error { return defaultCodec.Verify(m) }
func Marshal(m Message) ([]byte, error) { return defaultCodec.Marshal(m) }
func Unmarshal(b []byte) (Message, error) { return defaultCodec.Unmarshal(b) }
func Encode(m Message) ([]byte, error) { return defaultCodec.Encode(m) }
func Decode(b []byte) (Message, error) { return defaultCodec.Decode(b) }
func WriteMessage(w io.Writer, m Message) error { return defaultCodec.WriteMessage(w, m) }
func ReadMessage(r io.Reader) (Message, error) { return defaultCodec.ReadMessage(r) }

// Verify checks m against the wire schema without producing bytes.
func (c Codec) Verify(m Message) error {
	_, err := c.verify(m)
	return err
}

func (c Codec) verify(m Message) ([]fields.Field, error) {
	fs := toFields(m)
	if err := schema.Validate(fs); err != nil {
		var verr schema.ValidationError
		if errors.As(err, &verr) {
			return nil, &protocol.SchemaViolation{Field: verr.Name, Reason: verr.Reason}
		}
		return nil, &protocol.SchemaViolation{Reason: err.Error()}
	}
	size := 0
	for _, f := range fs {
		size += fields.Size(f)
	}
	if max := c.limits().MaxPayloadBytes; max > 0 && uint64(size) > max {
		return nil, &protocol.SchemaViolation{
			Reason: fmt.Sprintf("encoded size %d exceeds limit %d", size, max),
		}
	}
	return fs, nil
}

// Marshal validates m and returns its queryMessage protobuf bytes. No output
// is allocated when validation fails.
func (c Codec) Marshal(m Message) ([]byte, error) {
	fs, err := c.verify(m)
	if err != nil {
		return nil, err
	}
	out := fields.EncodeFields(fs)
	log.Trace().Int("bytes", len(out)).Int("blobs", len(m.Blobs)).Msg("envelope.Marshal")
	return out, nil
}

// Unmarshal parses queryMessage protobuf bytes. Unknown fields are skipped.
func (c Codec) Unmarshal(b []byte) (Message, error) {
	fs, err := fields.DecodeFields(b)
	if err != nil {
		return Message{}, err
	}
	if err := schema.Validate(fs); err != nil {
		return Message{}, &protocol.DecodeError{Reason: "schema", Err: err}
	}
	msg := New("", nil, "")
	if f, ok := fields.GetField(fs, schema.FieldJSON); ok {
		msg.JSON = string(f.Value)
	}
	if f, ok := fields.GetField(fs, schema.FieldToken); ok {
		msg.Token = string(f.Value)
	}
	for _, f := range fields.All(fs, schema.FieldBlobs) {
		msg.Blobs = append(msg.Blobs, f.Value)
	}
	log.Trace().Int("bytes", len(b)).Int("blobs", len(msg.Blobs)).Msg("envelope.Unmarshal")
	return msg, nil
}

// Encode returns the length-prefixed wire form of m.
func (c Codec) Encode(m Message) ([]byte, error) {
	payload, err := c.Marshal(m)
	if err != nil {
		return nil, err
	}
	return frame.Append(make([]byte, 0, frame.HeaderLen+len(payload)), payload, c.limits())
}

// Decode parses exactly one length-prefixed message. Truncated input and
// trailing bytes are both decode errors.
func (c Codec) Decode(b []byte) (Message, error) {
	payload, err := frame.Split(b, c.limits())
	if err != nil {
		return Message{}, &protocol.DecodeError{Offset: 0, Reason: "frame", Err: err}
	}
	msg, err := c.Unmarshal(payload)
	if err != nil {
		var derr *protocol.DecodeError
		if errors.As(err, &derr) {
			derr.Offset += frame.HeaderLen
		}
		return Message{}, err
	}
	return msg, nil
}

func (c Codec) WriteMessage(w io.Writer, m Message) error {
	payload, err := c.Marshal(m)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, payload, c.limits())
}

// ReadMessage reads one framed message from r. Stream errors other than a
// short or oversized frame are returned unwrapped.
func (c Codec) ReadMessage(r io.Reader) (Message, error) {
	payload, err := frame.ReadFrame(r, c.limits())
	if err != nil {
		if errors.Is(err, frame.ErrShortHeader) ||
			errors.Is(err, frame.ErrShortPayload) ||
			errors.Is(err, frame.ErrPayloadTooLarge) {
			return Message{}, &protocol.DecodeError{Reason: "frame", Err: err}
		}
		return Message{}, err
	}
	return c.Unmarshal(payload)
}

func toFields(m Message) []fields.Field {
	fs := make([]fields.Field, 0, len(m.Blobs)+2)
	if m.JSON != "" {
		fs = append(fs, fields.Field{Num: schema.FieldJSON, Type: wireBytes, Value: []byte(m.JSON)})
	}
	for _, b := range m.Blobs {
		fs = append(fs, fields.Field{Num: schema.FieldBlobs, Type: wireBytes, Value: b})
	}
	if m.Token != "" {
		fs = append(fs, fields.Field{Num: schema.FieldToken, Type: wireBytes, Value: []byte(m.Token)})
	}
	return fs
}
