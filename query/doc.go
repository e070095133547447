// Package query maps typed entity operations onto the server's command-list
// protocol and maps responses back onto typed entities.
//
// A Query collects operations in order. Build emits the JSON command array
// and the blob sequence that travels with it; every blob belongs to the
// command that appended it, and the server consumes them left to right.
// Parse walks a response in command order and hands each blob-bearing result
// the next unconsumed blob. Any disagreement between the two sides is a
// protocol.ProtocolMismatch.
//
// Nothing in this package holds state between calls; a Query is owned by one
// goroutine while it is built, and Build/Parse allocate fresh values.
package query
