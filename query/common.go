package query

import (
	"strings"

	"github.com/gsaluja9/aperturedb-go/protocol"
)

// Direction of a connection as seen from the entity being added or found.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
	DirectionAny Direction = "any"
)

func (d Direction) validate(field string, allowAny bool) error {
	switch d {
	case "", DirectionIn, DirectionOut:
		return nil
	case DirectionAny:
		if allowAny {
			return nil
		}
	}
	return protocol.Violationf(field, "invalid direction %q", string(d))
}

// Connect links a newly added entity to another one ("connect").
type Connect struct {
	To         Ref
	Class      string
	Direction  Direction
	Properties Properties
}

func (c *Connect) build(q *Query, def Kind, field string) (Value, error) {
	if err := c.Direction.validate(field+".direction", false); err != nil {
		return Value{}, err
	}
	if err := checkProperties(field+".properties", c.Properties); err != nil {
		return Value{}, err
	}
	ref, err := q.resolve(c.To, def, field+".ref")
	if err != nil {
		return Value{}, err
	}
	var p Properties
	p.Set("ref", Int(int64(ref)))
	if c.Class != "" {
		p.Set("class", String(c.Class))
	}
	if c.Direction != "" {
		p.Set("direction", String(string(c.Direction)))
	}
	if len(c.Properties) > 0 {
		p.Set("properties", Doc(c.Properties.Clone()))
	}
	return Doc(p), nil
}

// Link restricts a find to entities connected to another one
// ("is_connected_to").
type Link struct {
	To          Ref
	Direction   Direction
	Class       string
	Constraints Constraints
}

func (l *Link) build(q *Query, def Kind, field string) (Value, error) {
	if err := l.Direction.validate(field+".direction", true); err != nil {
		return Value{}, err
	}
	ref, err := q.resolve(l.To, def, field+".ref")
	if err != nil {
		return Value{}, err
	}
	var p Properties
	p.Set("ref", Int(int64(ref)))
	if l.Direction != "" {
		p.Set("direction", String(string(l.Direction)))
	}
	if l.Class != "" {
		p.Set("connection_class", String(l.Class))
	}
	if !l.Constraints.IsEmpty() || l.Constraints.Err() != nil {
		v, err := l.Constraints.QueryValue()
		if err != nil {
			return Value{}, err
		}
		p.Set("constraints", v)
	}
	return Doc(p), nil
}

// FindOptions are the knobs every find command shares.
type FindOptions struct {
	// Ref binds the matched entities for later commands in the query.
	Ref         int
	Constraints Constraints
	// IDs restricts the match to these _uniqueid values.
	IDs     []string
	Results *Results
	// UniqueIDs asks the server to return _uniqueid for each match.
	UniqueIDs bool
	Link      *Link
	Extra     Properties
}

func (o *FindOptions) apply(q *Query, params *Properties, command string, def Kind) error {
	if o.Ref != 0 {
		if err := q.declare(o.Ref, command); err != nil {
			return err
		}
		params.Set("_ref", Int(int64(o.Ref)))
	}
	if o.Link != nil {
		v, err := o.Link.build(q, def, command+".is_connected_to")
		if err != nil {
			return err
		}
		params.Set("is_connected_to", v)
	}
	cons := withIDs(o.Constraints, o.IDs)
	if err := cons.Err(); err != nil {
		return err
	}
	if !cons.IsEmpty() {
		v, _ := cons.QueryValue()
		params.Set("constraints", v)
	}
	if o.Results != nil {
		v, err := o.Results.QueryValue()
		if err != nil {
			return err
		}
		params.Set("results", v)
	}
	if o.UniqueIDs {
		params.Set("uniqueids", Bool(true))
	}
	return nil
}

// Target selects the entities an update or delete applies to.
type Target struct {
	Ref         Ref
	Constraints Constraints
	IDs         []string
}

func (t *Target) apply(q *Query, params *Properties, kind Kind, field string) error {
	cons := withIDs(t.Constraints, t.IDs)
	if err := cons.Err(); err != nil {
		return err
	}
	if t.Ref.IsZero() && cons.IsEmpty() {
		return protocol.Violationf(field, "no target: set Ref, Constraints or IDs")
	}
	if !t.Ref.IsZero() {
		ref, err := q.resolve(t.Ref, kind, field+".ref")
		if err != nil {
			return err
		}
		params.Set("ref", Int(int64(ref)))
	}
	if !cons.IsEmpty() {
		v, _ := cons.QueryValue()
		params.Set("constraints", v)
	}
	return nil
}

func withIDs(c Constraints, ids []string) Constraints {
	if len(ids) == 0 {
		return c
	}
	return c.And(uniqueIDKey, In, ids)
}

// checkProperties rejects names the server reserves for itself.
func checkProperties(field string, p Properties) error {
	seen := make(map[string]struct{}, len(p))
	for _, kv := range p {
		switch {
		case kv.Key == "":
			return protocol.Violationf(field, "empty property name")
		case strings.HasPrefix(kv.Key, "_"):
			return protocol.Violationf(field+"."+kv.Key, "names starting with _ are reserved")
		}
		if _, dup := seen[kv.Key]; dup {
			return protocol.Violationf(field+"."+kv.Key, "duplicate property")
		}
		seen[kv.Key] = struct{}{}
	}
	return nil
}

// setExtra copies caller-supplied options that have no typed field,
// refusing to overwrite keys the operation already set.
func setExtra(params *Properties, command string, extra Properties) error {
	for _, kv := range extra {
		if params.Has(kv.Key) {
			return protocol.Violationf(command+"."+kv.Key, "set both as a field and in Extra")
		}
		params.Set(kv.Key, kv.Value.Clone())
	}
	return nil
}

func setProperties(params *Properties, command string, p Properties) error {
	if err := checkProperties(command+".properties", p); err != nil {
		return err
	}
	if len(p) > 0 {
		params.Set("properties", Doc(p.Clone()))
	}
	return nil
}

// Find is the generic find command for any kind.
type Find struct {
	Kind Kind
	FindOptions
	// Class filters entities and connections by class ("with_class").
	Class string
	// Blobs asks for one blob per match; only kinds with blobs accept it.
	Blobs bool
}

func (f Find) appendTo(q *Query) error {
	if f.Kind.Name == "" {
		return protocol.Violationf("find", "missing kind")
	}
	command := f.Kind.Find()
	var params Properties
	if f.Class != "" {
		if f.Kind != KindEntity && f.Kind != KindConnection {
			return protocol.Violationf(command+".with_class", "only entities and connections have classes")
		}
		params.Set("with_class", String(f.Class))
	}
	if err := f.FindOptions.apply(q, &params, command, f.Kind); err != nil {
		return err
	}
	if f.Kind.HasBlobs() {
		params.Set("blobs", Bool(f.Blobs))
	} else if f.Blobs {
		return protocol.Violationf(command+".blobs", "%s has no blobs", f.Kind)
	}
	if err := setExtra(&params, command, f.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params, ReturnsBlobs: f.Blobs})
	return nil
}

// Update applies property changes to the target set.
type Update struct {
	Kind Kind
	Target
	Properties  Properties
	RemoveProps []string
	Extra       Properties
}

func (u Update) appendTo(q *Query) error {
	if u.Kind.Name == "" {
		return protocol.Violationf("update", "missing kind")
	}
	command := u.Kind.Update()
	var params Properties
	if err := u.Target.apply(q, &params, u.Kind, command); err != nil {
		return err
	}
	if err := updateChanges(&params, command, u.Properties, u.RemoveProps, len(u.Extra) > 0); err != nil {
		return err
	}
	if err := setExtra(&params, command, u.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}

func updateChanges(params *Properties, command string, set Properties, remove []string, other bool) error {
	if len(set) == 0 && len(remove) == 0 && !other {
		return protocol.Violationf(command, "nothing to update")
	}
	if err := setProperties(params, command, set); err != nil {
		return err
	}
	for i, name := range remove {
		if name == "" {
			return protocol.Violationf(command+".remove_props", "empty name at %d", i)
		}
		if set.Has(name) {
			return protocol.Violationf(command+".remove_props", "%q is both set and removed", name)
		}
	}
	if len(remove) > 0 {
		params.Set("remove_props", Strings(remove...))
	}
	return nil
}

// Delete removes the target set.
type Delete struct {
	Kind Kind
	Target
}

func (d Delete) appendTo(q *Query) error {
	if d.Kind.Name == "" {
		return protocol.Violationf("delete", "missing kind")
	}
	command := d.Kind.Delete()
	var params Properties
	if err := d.Target.apply(q, &params, d.Kind, command); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}
