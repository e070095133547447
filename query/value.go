package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	NullValue ValueKind = iota
	StringValue
	NumberValue
	BoolValue
	DocumentValue
	ListValue
)

func (k ValueKind) String() string {
	switch k {
	case NullValue:
		return "null"
	case StringValue:
		return "string"
	case NumberValue:
		return "number"
	case BoolValue:
		return "bool"
	case DocumentValue:
		return "document"
	case ListValue:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a JSON value that keeps document keys in wire order and numbers
// in their literal form.
type Value struct {
	kind ValueKind
	text string
	flag bool
	doc  Properties
	list []Value
}

// DateKey is the document key the server uses for date values.
const DateKey = "_date"

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: StringValue, text: s} }
func Bool(b bool) Value { return Value{kind: BoolValue, flag: b} }
func Int(i int64) Value { return Value{kind: NumberValue, text: strconv.FormatInt(i, 10)} }
func Doc(p Properties) Value { return Value{kind: DocumentValue, doc: p} }
func List(vs ...Value) Value { return Value{kind: ListValue, list: vs} }
func Number(n json.Number) Value { return Value{kind: NumberValue, text: string(n)} }

func Float(f float64) Value {
	return Value{kind: NumberValue, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Date encodes t the way the server expects: {"_date": "<RFC 3339>"}.
func Date(t time.Time) Value {
	var p Properties
	p.Set(DateKey, String(t.Format(time.RFC3339Nano)))
	return Doc(p)
}

func Strings(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return List(vs...)
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == NullValue }

func (v Value) AsString() (string, bool) {
	return v.text, v.kind == StringValue
}

func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == BoolValue
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != NumberValue {
		return 0, false
	}
	if i, err := strconv.ParseInt(v.text, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func (v Value) AsFloat() (float64, bool) {
	if v.kind != NumberValue {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	return f, err == nil
}

func (v Value) AsNumber() (json.Number, bool) {
	return json.Number(v.text), v.kind == NumberValue
}

func (v Value) AsDoc() (Properties, bool) {
	return v.doc, v.kind == DocumentValue
}

func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == ListValue
}

// AsTime accepts {"_date": "..."} documents and bare RFC 3339 strings.
func (v Value) AsTime() (time.Time, bool) {
	s, ok := v.AsString()
	if !ok {
		doc, isDoc := v.AsDoc()
		if !isDoc || len(doc) != 1 {
			return time.Time{}, false
		}
		inner, found := doc.Get(DateKey)
		if !found {
			return time.Time{}, false
		}
		if s, ok = inner.AsString(); !ok {
			return time.Time{}, false
		}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999Z0700", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Equal reports deep equality; document key order is significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NullValue:
		return true
	case StringValue, NumberValue:
		return v.text == o.text
	case BoolValue:
		return v.flag == o.flag
	case DocumentValue:
		return v.doc.Equal(o.doc)
	case ListValue:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case DocumentValue:
		return Doc(v.doc.Clone())
	case ListValue:
		out := make([]Value, len(v.list))
		for i := range v.list {
			out[i] = v.list[i].Clone()
		}
		return List(out...)
	}
	return v
}

// Any converts v back to plain Go values (map[string]any loses key order).
func (v Value) Any() any {
	switch v.kind {
	case StringValue:
		return v.text
	case NumberValue:
		return json.Number(v.text)
	case BoolValue:
		return v.flag
	case DocumentValue:
		m := make(map[string]any, len(v.doc))
		for _, p := range v.doc {
			m[p.Key] = p.Value.Any()
		}
		return m
	case ListValue:
		out := make([]any, len(v.list))
		for i := range v.list {
			out[i] = v.list[i].Any()
		}
		return out
	}
	return nil
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid %s>", v.kind)
	}
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := appendJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return err
		}
		return &trailingDataError{Offset: dec.InputOffset()}
	}
	*v = out
	return nil
}

// trailingDataError reports a second value after the top-level one.
type trailingDataError struct {
	Offset int64
}

func (e *trailingDataError) Error() string {
	return fmt.Sprintf("invalid data after top-level value at offset %d", e.Offset)
}

// ParseValue decodes one JSON document.
func ParseValue(b []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(b); err != nil {
		return Value{}, err
	}
	return v, nil
}

func appendJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case NullValue:
		buf.WriteString("null")
	case StringValue:
		b, err := json.Marshal(v.text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case NumberValue:
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("query: invalid number literal %q", v.text)
		}
		buf.WriteString(v.text)
	case BoolValue:
		buf.WriteString(strconv.FormatBool(v.flag))
	case DocumentValue:
		buf.WriteByte('{')
		for i, p := range v.doc {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(p.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := appendJSON(buf, p.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case ListValue:
		buf.WriteByte('[')
		for i := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendJSON(buf, v.list[i]); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("query: unknown value kind %d", v.kind)
	}
	return nil
}

var errUnexpectedDelim = errors.New("query: unexpected json delimiter")

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case json.Delim:
		switch t {
		case '{':
			var doc Properties
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("query: non-string document key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				doc.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			if doc == nil {
				doc = Properties{}
			}
			return Doc(doc), nil
		case '[':
			list := make([]Value, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				list = append(list, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(list...), nil
		}
	}
	return Value{}, errUnexpectedDelim
}

// Valuer is implemented by types that know their own wire form.
type Valuer interface {
	QueryValue() (Value, error)
}

// ValueOf converts a Go value into a Value. Maps are emitted with sorted
// keys; use Properties for caller-controlled order. Byte slices are
// rejected: binary content travels as a blob, never inline.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return Null(), nil
		}
		return *t, nil
	case Valuer:
		return t.QueryValue()
	case Properties:
		return Doc(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Number(json.Number(strconv.FormatUint(uint64(t), 10))), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Number(json.Number(strconv.FormatUint(t, 10))), nil
	case float32:
		return floatValue(float64(t))
	case float64:
		return floatValue(t)
	case json.Number:
		if _, err := t.Float64(); err != nil {
			return Value{}, fmt.Errorf("query: invalid number %q", t)
		}
		return Number(t), nil
	case time.Time:
		return Date(t), nil
	case []byte:
		return Value{}, errors.New("query: binary values must be sent as blobs")
	case []string:
		return Strings(t...), nil
	case []Value:
		return List(t...), nil
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			v, err := ValueOf(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return List(out...), nil
	case map[string]any:
		return mapValue(t)
	}
	return reflectValue(x)
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("query: non-finite number %v", f)
	}
	return Float(f), nil
}

func mapValue(m map[string]any) (Value, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := make(Properties, 0, len(keys))
	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", k, err)
		}
		doc = append(doc, Property{Key: k, Value: v})
	}
	return Doc(doc), nil
}

// reflectValue covers typed slices and string-keyed maps; anything else goes
// through encoding/json.
func reflectValue(x any) (Value, error) {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		out := make([]Value, rv.Len())
		for i := range out {
			v, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return List(out...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("query: unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return mapValue(m)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	}
	b, err := json.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("query: unsupported value %T: %w", x, err)
	}
	return ParseValue(b)
}
