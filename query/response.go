package query

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gsaluja9/aperturedb-go/protocol"
	"github.com/rs/zerolog/log"
)

// Record is one returned entity with the blob the server sent for it.
type Record struct {
	Properties Properties
	Blob       []byte
}

// Result is the server's answer to one command.
type Result struct {
	Command  string
	Status   int
	Info     string
	Returned int
	Entities []Record
	// Extra holds every other key of the result object, in wire order.
	Extra Properties
	// Blobs are the blobs consumed by this result, in order.
	Blobs [][]byte
}

// StatusError is a non-zero command status turned into an error.
type StatusError struct {
	Command string
	Status  int
	Info    string
}

func (e *StatusError) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("query: %s failed with status %d", e.Command, e.Status)
	}
	return fmt.Sprintf("query: %s failed with status %d: %s", e.Command, e.Status, e.Info)
}

// Err returns a *StatusError when the command did not succeed.
func (r Result) Err() error {
	if r.Status == 0 {
		return nil
	}
	return &StatusError{Command: r.Command, Status: r.Status, Info: r.Info}
}

// Response is a parsed query response. A server that rejects the whole
// query answers with a single status object; Results is empty then.
type Response struct {
	Status  int
	Info    string
	Results []Result
}

// Err reports the first failure in the response.
func (r *Response) Err() error {
	if r.Status != 0 {
		return &StatusError{Command: "query", Status: r.Status, Info: r.Info}
	}
	for _, res := range r.Results {
		if err := res.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Result returns the result of the command an operation produced.
func (r *Response) Result(s Span) (Result, error) {
	i := s.Primary()
	if i < 0 || i >= len(r.Results) {
		return Result{}, fmt.Errorf("query: span %v outside %d results", s, len(r.Results))
	}
	return r.Results[i], nil
}

// ResultOf returns the last result named command inside s. Operations
// that resolve raw ids emit lookups before their own command, and some
// emit follow-ups after it, so the position alone is not enough.
func (r *Response) ResultOf(s Span, command string) (Result, error) {
	end := min(s.End, len(r.Results))
	for i := end - 1; i >= s.Start && i >= 0; i-- {
		if r.Results[i].Command == command {
			return r.Results[i], nil
		}
	}
	return Result{}, &protocol.ProtocolMismatch{Command: command, Index: s.Start, Reason: "no result for command in span"}
}

// Parse maps a response onto the commands of doc. Results must match the
// commands one to one and in order, and blobs are handed out in result
// order to the commands that asked for them. Any disagreement is a
// ProtocolMismatch. Parse never aliases data or blobs.
func Parse(doc Document, data []byte, blobs [][]byte) (*Response, error) {
	v, err := ParseValue(data)
	if err != nil {
		return nil, decodeError(data, err)
	}
	if top, ok := v.AsDoc(); ok {
		resp := &Response{}
		if err := readStatus(top, &resp.Status, &resp.Info); err != nil {
			return nil, err
		}
		if len(blobs) > 0 {
			return nil, &protocol.ProtocolMismatch{Reason: fmt.Sprintf("status response carries %d blobs", len(blobs))}
		}
		log.Debug().Int("status", resp.Status).Str("info", resp.Info).Msg("query.Parse status response")
		return resp, nil
	}
	list, ok := v.AsList()
	if !ok {
		return nil, &protocol.DecodeError{Reason: fmt.Sprintf("response is a json %s, want array or object", v.Kind())}
	}
	if len(list) != len(doc.Commands) {
		return nil, &protocol.ProtocolMismatch{Reason: fmt.Sprintf("%d results for %d commands", len(list), len(doc.Commands))}
	}
	cur := blobCursor{blobs: blobs}
	resp := &Response{Results: make([]Result, len(list))}
	for i, item := range list {
		cmd := doc.Commands[i]
		res, counted, err := parseResult(i, cmd, item)
		if err != nil {
			return nil, err
		}
		if cmd.ReturnsBlobs && res.Status == 0 {
			if !counted {
				return nil, &protocol.ProtocolMismatch{Command: cmd.Name, Index: i, Reason: "blob-bearing result reports neither returned nor entities"}
			}
			if err := cur.attach(i, &res); err != nil {
				return nil, err
			}
		}
		resp.Results[i] = res
	}
	if left := cur.remaining(); left > 0 {
		return nil, &protocol.ProtocolMismatch{Reason: fmt.Sprintf("%d blobs left after the last result", left)}
	}
	log.Debug().Int("results", len(resp.Results)).Int("blobs", len(blobs)).Msg("query.Parse")
	return resp, nil
}

func decodeError(data []byte, err error) error {
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return &protocol.DecodeError{Offset: int(syntax.Offset), Reason: "invalid json", Err: err}
	}
	var trailing *trailingDataError
	if errors.As(err, &trailing) {
		return &protocol.DecodeError{Offset: int(trailing.Offset), Reason: "trailing data", Err: err}
	}
	return &protocol.DecodeError{Offset: len(data), Reason: "invalid json", Err: err}
}

// parseResult also reports whether the result says how many entities it
// returned, either as a returned count or as an entity list.
func parseResult(i int, cmd Command, item Value) (Result, bool, error) {
	wrapper, ok := item.AsDoc()
	if !ok || len(wrapper) != 1 {
		return Result{}, false, &protocol.ProtocolMismatch{Command: cmd.Name, Index: i, Reason: "result is not a single-key object"}
	}
	if wrapper[0].Key != cmd.Name {
		return Result{}, false, &protocol.ProtocolMismatch{Command: cmd.Name, Index: i, Reason: fmt.Sprintf("result is for %s", wrapper[0].Key)}
	}
	body, ok := wrapper[0].Value.AsDoc()
	if !ok {
		return Result{}, false, &protocol.ProtocolMismatch{Command: cmd.Name, Index: i, Reason: "result body is not an object"}
	}
	res := Result{Command: cmd.Name, Blobs: [][]byte{}}
	counted := false
	if err := readStatus(body, &res.Status, &res.Info); err != nil {
		return Result{}, false, err
	}
	for _, kv := range body {
		switch kv.Key {
		case "status", "info":
		case "returned":
			n, ok := kv.Value.AsInt()
			if !ok {
				return Result{}, false, &protocol.ProtocolMismatch{Command: cmd.Name, Index: i, Reason: "returned is not an integer"}
			}
			res.Returned = int(n)
			counted = true
		case "entities":
			list, ok := kv.Value.AsList()
			if !ok {
				res.Extra = append(res.Extra, Property{Key: kv.Key, Value: kv.Value.Clone()})
				continue
			}
			res.Entities = make([]Record, len(list))
			counted = true
			for j, e := range list {
				props, ok := e.AsDoc()
				if !ok {
					return Result{}, false, &protocol.ProtocolMismatch{Command: cmd.Name, Index: i, Reason: fmt.Sprintf("entity %d is not an object", j)}
				}
				res.Entities[j] = Record{Properties: props.Clone()}
			}
		default:
			res.Extra = append(res.Extra, Property{Key: kv.Key, Value: kv.Value.Clone()})
		}
	}
	return res, counted, nil
}

func readStatus(doc Properties, status *int, info *string) error {
	if v, ok := doc.Get("status"); ok {
		n, isInt := v.AsInt()
		if !isInt {
			return &protocol.ProtocolMismatch{Reason: fmt.Sprintf("status is a %s", v.Kind())}
		}
		*status = int(n)
	}
	if v, ok := doc.Get("info"); ok {
		s, _ := v.AsString()
		*info = s
	}
	return nil
}

// blobCursor is the only place response blobs are matched to results.
type blobCursor struct {
	blobs [][]byte
	next  int
}

func (c *blobCursor) take(i int, command string) ([]byte, error) {
	if c.next >= len(c.blobs) {
		return nil, &protocol.ProtocolMismatch{
			Command: command,
			Index:   i,
			Reason:  fmt.Sprintf("blob %d requested but the response carries %d", c.next, len(c.blobs)),
		}
	}
	b := append([]byte{}, c.blobs[c.next]...)
	c.next++
	return b, nil
}

// attach hands one blob to every returned entity. A result without an
// entity list takes as many blobs as it reports returned.
func (c *blobCursor) attach(i int, res *Result) error {
	want := len(res.Entities)
	if res.Entities == nil {
		want = res.Returned
	}
	res.Blobs = make([][]byte, 0, want)
	for j := 0; j < want; j++ {
		b, err := c.take(i, res.Command)
		if err != nil {
			return err
		}
		res.Blobs = append(res.Blobs, b)
		if j < len(res.Entities) {
			res.Entities[j].Blob = b
		}
	}
	return nil
}

func (c *blobCursor) remaining() int {
	return len(c.blobs) - c.next
}
