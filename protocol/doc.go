// Package protocol owns the wire contract shared with the server.
//
// Ownership boundary:
// - fields: protobuf field-level walk and emit primitives
// - schema: the queryMessage field table and per-field validation
// - frame: length-prefixed framing of one message on a stream
// - envelope: the {json, blobs, token} codec
//
// This package holds the error taxonomy every layer reports through.
package protocol
