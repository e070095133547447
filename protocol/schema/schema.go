// Package schema holds the queryMessage wire schema shared with the server:
//
//	message queryMessage {
//	  string json = 1;
//	  repeated bytes blobs = 2;
//	  string token = 3;
//	}
package schema

import (
	"fmt"
	"unicode/utf8"

	"github.com/gsaluja9/aperturedb-go/protocol/fields"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from the queryMessage contract.
const (
	FieldJSON  protowire.Number = 1
	FieldBlobs protowire.Number = 2
	FieldToken protowire.Number = 3
)

// Requirement describes one known field.
type Requirement struct {
	Num      protowire.Number
	Name     string
	Type     protowire.Type
	Repeated bool
	Text     bool
}

type ValidationError struct {
	Num    protowire.Number
	Name   string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Num == 0 {
		return fmt.Sprintf("schema: queryMessage: %s", e.Reason)
	}
	return fmt.Sprintf("schema: queryMessage field=%d(%s): %s", e.Num, e.Name, e.Reason)
}

var queryMessage = []Requirement{
	{Num: FieldJSON, Name: "json", Type: protowire.BytesType, Text: true},
	{Num: FieldBlobs, Name: "blobs", Type: protowire.BytesType, Repeated: true},
	{Num: FieldToken, Name: "token", Type: protowire.BytesType, Text: true},
}

// Requirements returns a copy of the queryMessage field table.
func Requirements() []Requirement {
	out := make([]Requirement, len(queryMessage))
	copy(out, queryMessage)
	return out
}

// Lookup returns the requirement for num.
func Lookup(num protowire.Number) (Requirement, bool) {
	for _, req := range queryMessage {
		if req.Num == num {
			return req, true
		}
	}
	return Requirement{}, false
}

// CheckText enforces the proto3 rule that string fields carry valid UTF-8.
func CheckText(req Requirement, v []byte) error {
	if req.Text && !utf8.Valid(v) {
		return ValidationError{Num: req.Num, Name: req.Name, Reason: "string field is not valid utf-8"}
	}
	return nil
}

// Validate enforces wire types and text encoding for known fields.
// Unknown fields are skipped so newer servers can add fields.
func Validate(fs []fields.Field) error {
	log.Trace().Int("fields", len(fs)).Msg("schema.Validate")
	for _, f := range fs {
		req, ok := Lookup(f.Num)
		if !ok {
			continue
		}
		if f.Type != req.Type {
			log.Debug().
				Int32("field", int32(f.Num)).
				Int8("got", int8(f.Type)).
				Int8("want", int8(req.Type)).
				Msg("schema.Validate wire type mismatch")
			return ValidationError{
				Num:    req.Num,
				Name:   req.Name,
				Reason: fmt.Sprintf("wire type mismatch: got %d want %d", f.Type, req.Type),
			}
		}
		if err := CheckText(req, f.Value); err != nil {
			log.Debug().Int32("field", int32(f.Num)).Msg("schema.Validate invalid text")
			return err
		}
	}
	return nil
}
