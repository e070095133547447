package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/gsaluja9/aperturedb-go/protocol"
	"github.com/gsaluja9/aperturedb-go/protocol/envelope"
	"github.com/rs/zerolog/log"
)

// Command is one named operation of a query document.
type Command struct {
	Name   string
	Params Properties
	// Blobs travel in the request envelope right after the blobs of every
	// earlier command.
	Blobs [][]byte
	// ReturnsBlobs marks a command whose result carries one blob per
	// returned entity.
	ReturnsBlobs bool
}

func (c Command) MarshalJSON() ([]byte, error) {
	var wrapper Properties
	params := c.Params
	if params == nil {
		params = Properties{}
	}
	wrapper.Set(c.Name, Doc(params))
	return wrapper.MarshalJSON()
}

func (c Command) clone() Command {
	out := Command{Name: c.Name, Params: c.Params.Clone(), ReturnsBlobs: c.ReturnsBlobs}
	if c.Blobs != nil {
		out.Blobs = append([][]byte(nil), c.Blobs...)
	}
	return out
}

// Document is a built query: the commands, their JSON form and the request
// blobs in wire order.
type Document struct {
	Commands []Command
	JSON     string
	Blobs    [][]byte
}

// Message wraps the document in an envelope carrying token.
func (d Document) Message(token string) envelope.Message {
	return envelope.New(d.JSON, d.Blobs, token)
}

// Names lists the command names in order.
func (d Document) Names() []string {
	out := make([]string, len(d.Commands))
	for i, c := range d.Commands {
		out[i] = c.Name
	}
	return out
}

// Operation is something that appends one or more commands to a Query.
type Operation interface {
	appendTo(q *Query) error
}

// Span is the half-open range of command indexes one operation emitted.
// Reference lookups come first; the operation's own command is last.
type Span struct {
	Start int
	End   int
}

// Primary is the index of the command the operation itself produced.
func (s Span) Primary() int { return s.End - 1 }
func (s Span) Len() int { return s.End - s.Start }

// Query accumulates commands. References are numbered per Query. A Query
// is not safe for concurrent use; Build returns an independent Document.
type Query struct {
	commands []Command
	declared map[int]string
	next     int
	resolved map[string]int
}

func New() *Query {
	return &Query{
		declared: make(map[int]string),
		next:     1,
		resolved: make(map[string]int),
	}
}

// Add appends op. On error the query is left exactly as it was.
func (q *Query) Add(op Operation) (Span, error) {
	start := len(q.commands)
	next := q.next
	declared := maps.Clone(q.declared)
	resolved := maps.Clone(q.resolved)
	if err := op.appendTo(q); err != nil {
		q.commands = q.commands[:start]
		q.next = next
		q.declared = declared
		q.resolved = resolved
		return Span{}, err
	}
	return Span{Start: start, End: len(q.commands)}, nil
}

// MustAdd is Add for operations known to be valid.
func (q *Query) MustAdd(op Operation) Span {
	s, err := q.Add(op)
	if err != nil {
		panic(err)
	}
	return s
}

// NextRef reserves a reference number for an operation added later.
func (q *Query) NextRef() int {
	ref := q.next
	q.next++
	return ref
}

func (q *Query) Len() int { return len(q.commands) }

// Declared reports the command that bound ref, if any.
func (q *Query) Declared(ref int) (string, bool) {
	name, ok := q.declared[ref]
	return name, ok
}

func (q *Query) Build() (Document, error) {
	doc := Document{Commands: make([]Command, len(q.commands)), Blobs: make([][]byte, 0)}
	for i, c := range q.commands {
		doc.Commands[i] = c.clone()
		doc.Blobs = append(doc.Blobs, c.Blobs...)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, c := range doc.Commands {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := c.MarshalJSON()
		if err != nil {
			return Document{}, &protocol.SchemaViolation{Field: fmt.Sprintf("commands[%d].%s", i, c.Name), Reason: err.Error()}
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	doc.JSON = buf.String()
	log.Debug().
		Int("commands", len(doc.Commands)).
		Int("blobs", len(doc.Blobs)).
		Msg("query.Build")
	return doc, nil
}

func (q *Query) emit(c Command) int {
	q.commands = append(q.commands, c)
	return len(q.commands) - 1
}

func (q *Query) declare(ref int, command string) error {
	if ref <= 0 {
		return protocol.Violationf("_ref", "reference %d must be positive", ref)
	}
	if prev, ok := q.declared[ref]; ok {
		return protocol.Violationf("_ref", "reference %d already bound by %s", ref, prev)
	}
	q.declared[ref] = command
	if ref >= q.next {
		q.next = ref + 1
	}
	return nil
}

// resolve turns r into a reference number usable by a later command. A
// raw id is looked up with a Find command bound to a fresh reference; the
// binding is reused for the same id within the query.
func (q *Query) resolve(r Ref, def Kind, field string) (int, error) {
	switch r.form {
	case refLink:
		if _, ok := q.declared[r.ref]; !ok {
			return 0, protocol.Violationf(field, "reference %d is not bound by an earlier command", r.ref)
		}
		return r.ref, nil
	case refRawID:
		if r.id == "" {
			return 0, protocol.Violationf(field, "empty id")
		}
		kind := def
		if r.class != "" {
			kind = KindForClass(r.class)
		}
		key := kind.Name + "\x00" + r.class + "\x00" + r.id
		if ref, ok := q.resolved[key]; ok {
			return ref, nil
		}
		ref := q.NextRef()
		var params Properties
		params.Set("_ref", Int(int64(ref)))
		if kind == KindEntity && r.class != "" {
			params.Set("with_class", String(r.class))
		}
		var cons Properties
		cons.Set(uniqueIDKey, List(String(string(Eq)), r.idValue()))
		params.Set("constraints", Doc(cons))
		if kind.HasBlobs() {
			params.Set("blobs", Bool(false))
		}
		if err := q.declare(ref, kind.Find()); err != nil {
			return 0, err
		}
		q.emit(Command{Name: kind.Find(), Params: params})
		q.resolved[key] = ref
		return ref, nil
	}
	return 0, protocol.Violationf(field, "missing reference")
}

// Raw appends a command given as a JSON object {"Name": {...}} or as an
// already decoded document.
type Raw struct {
	JSON         json.RawMessage
	Command      Properties
	Blobs        [][]byte
	ReturnsBlobs bool
}

func (r Raw) appendTo(q *Query) error {
	doc := r.Command
	if len(r.JSON) > 0 {
		if doc != nil {
			return protocol.Violationf("raw", "JSON and Command are exclusive")
		}
		if err := json.Unmarshal(r.JSON, &doc); err != nil {
			return protocol.Violationf("raw", "invalid json: %v", err)
		}
	}
	if len(doc) != 1 {
		return protocol.Violationf("raw", "a command has exactly one key, got %d", len(doc))
	}
	params, ok := doc[0].Value.AsDoc()
	if !ok {
		return protocol.Violationf("raw."+doc[0].Key, "parameters must be a document")
	}
	if v, ok := params.Get("_ref"); ok {
		ref, isInt := v.AsInt()
		if !isInt {
			return protocol.Violationf("raw."+doc[0].Key+"._ref", "must be an integer")
		}
		if err := q.declare(int(ref), doc[0].Key); err != nil {
			return err
		}
	}
	q.emit(Command{Name: doc[0].Key, Params: params.Clone(), Blobs: r.Blobs, ReturnsBlobs: r.ReturnsBlobs})
	return nil
}

// RawCommands splits a JSON command array into Raw operations. Blob
// ownership is not recoverable from JSON, so every blob is attached to the
// first command.
func RawCommands(data []byte, blobs [][]byte) ([]Operation, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, protocol.Violationf("raw", "query must be a json array: %v", err)
	}
	ops := make([]Operation, len(list))
	for i, item := range list {
		r := Raw{JSON: item}
		if i == 0 {
			r.Blobs = blobs
		}
		ops[i] = r
	}
	if len(list) == 0 && len(blobs) > 0 {
		return nil, protocol.Violationf("raw", "blobs without commands")
	}
	return ops, nil
}
