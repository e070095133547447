package query

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/gsaluja9/aperturedb-go/internal/testutil/testlog"
)

func TestValueJSONPreservesKeyOrderAndNumbers(t *testing.T) {
	testlog.Start(t)
	in := `{"zeta":1,"alpha":{"b":[1,2.5,"x"],"a":null},"big":12345678901234567890,"ok":true}`
	v, err := ParseValue([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc, ok := v.AsDoc()
	if !ok {
		t.Fatalf("expected document, got %s", v.Kind())
	}
	if got := doc.Keys(); len(got) != 4 || got[0] != "zeta" || got[1] != "alpha" {
		t.Fatalf("key order lost: %v", got)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("re-encoded json differs:\n got=%s\nwant=%s", out, in)
	}
	big, _ := doc.Get("big")
	if n, _ := big.AsNumber(); n != "12345678901234567890" {
		t.Fatalf("number literal not preserved: %s", n)
	}
}

func TestParseValueRejectsTrailingData(t *testing.T) {
	testlog.Start(t)
	for _, in := range []string{`{"a":1}{"b":2}`, `[1] 2`, `"x" garbage`} {
		if _, err := ParseValue([]byte(in)); err == nil {
			t.Fatalf("%q: expected error for trailing data", in)
		}
	}
	if _, err := ParseValue([]byte("[1]\n ")); err != nil {
		t.Fatalf("trailing whitespace must be accepted: %v", err)
	}
}

func TestValueOf(t *testing.T) {
	testlog.Start(t)
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: `null`},
		{name: "string", in: "a\"b", want: `"a\"b"`},
		{name: "int", in: 42, want: `42`},
		{name: "uint64", in: uint64(math.MaxUint64), want: `18446744073709551615`},
		{name: "float", in: 2.5, want: `2.5`},
		{name: "bool", in: false, want: `false`},
		{name: "date", in: when, want: `{"_date":"2024-05-06T07:08:09Z"}`},
		{name: "string slice", in: []string{"a", "b"}, want: `["a","b"]`},
		{name: "typed slice", in: []int{1, 2}, want: `[1,2]`},
		{name: "map sorted", in: map[string]any{"b": 1, "a": "x"}, want: `{"a":"x","b":1}`},
		{name: "string map", in: map[string]string{"k": "v"}, want: `{"k":"v"}`},
		{name: "struct via json", in: struct {
			X int `json:"x"`
		}{X: 3}, want: `{"x":3}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ValueOf(tc.in)
			if err != nil {
				t.Fatalf("ValueOf: %v", err)
			}
			if got := v.String(); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestValueOfRejects(t *testing.T) {
	testlog.Start(t)
	for name, in := range map[string]any{
		"bytes": []byte{1},
		"nan":   math.NaN(),
		"inf":   math.Inf(1),
		"func":  func() {},
	} {
		if _, err := ValueOf(in); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValueAccessors(t *testing.T) {
	testlog.Start(t)
	if i, ok := Number("7").AsInt(); !ok || i != 7 {
		t.Fatalf("AsInt: %d %v", i, ok)
	}
	if i, ok := Number("7.0").AsInt(); !ok || i != 7 {
		t.Fatalf("AsInt from float literal: %d %v", i, ok)
	}
	if _, ok := Number("7.5").AsInt(); ok {
		t.Fatalf("fractional number must not convert to int")
	}
	if _, ok := String("7").AsInt(); ok {
		t.Fatalf("string must not convert to int")
	}
	ts, ok := Date(time.Unix(0, 0).UTC()).AsTime()
	if !ok || !ts.Equal(time.Unix(0, 0)) {
		t.Fatalf("AsTime from date doc: %v %v", ts, ok)
	}
	if _, ok := String("2024-01-02T03:04:05Z").AsTime(); !ok {
		t.Fatalf("AsTime from bare string failed")
	}
}

func TestValueCloneIsDeep(t *testing.T) {
	testlog.Start(t)
	orig := Doc(MustProps("list", []any{1, 2}))
	clone := orig.Clone()
	doc, _ := clone.AsDoc()
	doc.Set("list", String("changed"))
	if !orig.Equal(Doc(MustProps("list", []any{1, 2}))) {
		t.Fatalf("clone aliases the original")
	}
}

func TestPropertiesSetReplacesInPlace(t *testing.T) {
	testlog.Start(t)
	p := MustProps("a", 1, "b", 2)
	p.Set("a", String("x"))
	p.Set("c", Bool(true))
	if got := p.Keys(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected keys: %v", got)
	}
	if _, ok := p.Delete("b"); !ok || p.Has("b") {
		t.Fatalf("delete failed")
	}
	if _, err := Props("odd"); err == nil {
		t.Fatalf("expected odd argument error")
	}
	if _, err := Props(1, 2); err == nil {
		t.Fatalf("expected non-string key error")
	}
}

func TestPropertiesUnmarshalRejectsNonObject(t *testing.T) {
	testlog.Start(t)
	var p Properties
	if err := json.Unmarshal([]byte(`[1]`), &p); err == nil {
		t.Fatalf("expected error for array")
	}
	if err := json.Unmarshal([]byte(`{"k":[1,{"z":0,"a":1}]}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := json.Marshal(p)
	if string(b) != `{"k":[1,{"z":0,"a":1}]}` {
		t.Fatalf("unexpected re-encoding: %s", b)
	}
}
