package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaViolation  = errors.New("protocol: schema violation")
	ErrDecode           = errors.New("protocol: decode error")
	ErrProtocolMismatch = errors.New("protocol: protocol mismatch")
)

// SchemaViolation reports a message or query document that failed validation
// before anything was written to the wire.
type SchemaViolation struct {
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("protocol: schema violation: %s", e.Reason)
	}
	return fmt.Sprintf("protocol: schema violation: field=%s: %s", e.Field, e.Reason)
}

func (e *SchemaViolation) Is(target error) bool {
	return target == ErrSchemaViolation
}

// DecodeError reports received bytes that do not parse per the wire schema.
type DecodeError struct {
	Offset int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("protocol: decode error at offset %d: %s", e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ProtocolMismatch reports a response that decoded cleanly but disagrees with
// the request about how results and blobs line up.
type ProtocolMismatch struct {
	Command string
	Index   int
	Reason  string
}

func (e *ProtocolMismatch) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("protocol: protocol mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("protocol: protocol mismatch: command[%d]=%s: %s", e.Index, e.Command, e.Reason)
}

func (e *ProtocolMismatch) Is(target error) bool {
	return target == ErrProtocolMismatch
}

// Violationf builds a SchemaViolation for field.
func Violationf(field, format string, args ...any) error {
	return &SchemaViolation{Field: field, Reason: fmt.Sprintf(format, args...)}
}
