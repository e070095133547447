// Package fields walks and emits protobuf fields without a generated message type.
package fields

import (
	"fmt"

	"github.com/gsaluja9/aperturedb-go/protocol"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded protobuf field.
// Value holds the payload of length-delimited and group fields; Scalar holds
// varint, fixed32 and fixed64 values.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Value  []byte
	Scalar uint64
}

// Bytes builds a length-delimited field.
func Bytes(num protowire.Number, v []byte) Field {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Field{Num: num, Type: protowire.BytesType, Value: buf}
}

// String builds a length-delimited text field.
func String(num protowire.Number, v string) Field {
	return Field{Num: num, Type: protowire.BytesType, Value: []byte(v)}
}

// Varint builds a varint field.
func Varint(num protowire.Number, v uint64) Field {
	return Field{Num: num, Type: protowire.VarintType, Scalar: v}
}

// Size returns the encoded size of f.
func Size(f Field) int {
	n := protowire.SizeTag(f.Num)
	switch f.Type {
	case protowire.VarintType:
		n += protowire.SizeVarint(f.Scalar)
	case protowire.Fixed32Type:
		n += protowire.SizeFixed32()
	case protowire.Fixed64Type:
		n += protowire.SizeFixed64()
	case protowire.BytesType:
		n += protowire.SizeBytes(len(f.Value))
	case protowire.StartGroupType:
		n += len(f.Value) + protowire.SizeTag(f.Num)
	}
	return n
}

// AppendField appends the wire form of f to b.
func AppendField(b []byte, f Field) []byte {
	b = protowire.AppendTag(b, f.Num, f.Type)
	switch f.Type {
	case protowire.VarintType:
		b = protowire.AppendVarint(b, f.Scalar)
	case protowire.Fixed32Type:
		b = protowire.AppendFixed32(b, uint32(f.Scalar))
	case protowire.Fixed64Type:
		b = protowire.AppendFixed64(b, f.Scalar)
	case protowire.BytesType:
		b = protowire.AppendBytes(b, f.Value)
	case protowire.StartGroupType:
		b = append(b, f.Value...)
		b = protowire.AppendTag(b, f.Num, protowire.EndGroupType)
	}
	return b
}

// EncodeFields encodes fields in order into one preallocated buffer.
func EncodeFields(fields []Field) []byte {
	total := 0
	for _, f := range fields {
		total += Size(f)
	}
	out := make([]byte, 0, total)
	for _, f := range fields {
		out = AppendField(out, f)
	}
	return out
}

// DecodeFields parses every field in b, preserving order and unknown numbers.
func DecodeFields(b []byte) ([]Field, error) {
	out := make([]Field, 0, 4)
	for i := 0; i < len(b); {
		num, typ, n := protowire.ConsumeTag(b[i:])
		if n < 0 {
			return nil, &protocol.DecodeError{Offset: i, Reason: "field tag", Err: protowire.ParseError(n)}
		}
		start := i
		i += n
		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b[i:])
			if m < 0 {
				return nil, valueError(start, num, m)
			}
			f.Scalar = v
			i += m
		case protowire.Fixed32Type:
			v, m := protowire.ConsumeFixed32(b[i:])
			if m < 0 {
				return nil, valueError(start, num, m)
			}
			f.Scalar = uint64(v)
			i += m
		case protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b[i:])
			if m < 0 {
				return nil, valueError(start, num, m)
			}
			f.Scalar = v
			i += m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b[i:])
			if m < 0 {
				return nil, valueError(start, num, m)
			}
			f.Value = make([]byte, len(v))
			copy(f.Value, v)
			i += m
		case protowire.StartGroupType:
			v, m := protowire.ConsumeGroup(num, b[i:])
			if m < 0 {
				return nil, valueError(start, num, m)
			}
			f.Value = make([]byte, len(v))
			copy(f.Value, v)
			i += m
		default:
			return nil, &protocol.DecodeError{
				Offset: start,
				Reason: fmt.Sprintf("field %d: unsupported wire type %d", num, typ),
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func valueError(offset int, num protowire.Number, code int) error {
	return &protocol.DecodeError{
		Offset: offset,
		Reason: fmt.Sprintf("field %d value", num),
		Err:    protowire.ParseError(code),
	}
}

// GetField returns the last occurrence of num, matching protobuf's
// last-one-wins rule for singular fields.
func GetField(fields []Field, num protowire.Number) (Field, bool) {
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].Num == num {
			return fields[i], true
		}
	}
	return Field{}, false
}

// All returns every occurrence of num in wire order.
func All(fields []Field, num protowire.Number) []Field {
	out := make([]Field, 0)
	for _, f := range fields {
		if f.Num == num {
			out = append(out, f)
		}
	}
	return out
}
