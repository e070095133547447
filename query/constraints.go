package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// Op is a constraint predicate operator.
type Op string

const (
	Eq    Op = "=="
	Ne    Op = "!="
	Gt    Op = ">"
	Ge    Op = ">="
	Lt    Op = "<"
	Le    Op = "<="
	In    Op = "in"
	NotIn Op = "not in"
)

func (o Op) valid() bool {
	switch o {
	case Eq, Ne, Gt, Ge, Lt, Le, In, NotIn:
		return true
	}
	return false
}

// Keys the server reads as boolean combinators over nested constraint sets.
const (
	AnyKey = "any"
	AllKey = "all"
)

const uniqueIDKey = "_uniqueid"

// Constraints maps property names to predicate lists such as [">=", 1, "<", 5].
// Terms on different keys are ANDed by the server. The zero value is empty.
//
// Builder methods never mutate the receiver; the first invalid term is kept
// and reported by Err or when the constraints are placed in a command.
type Constraints struct {
	terms Properties
	err   error
}

// Where starts a constraint set with one predicate.
func Where(key string, op Op, operand any) Constraints {
	return Constraints{}.And(key, op, operand)
}

// UniqueID selects exactly the entity with server id id.
func UniqueID(id string) Constraints {
	return Where(uniqueIDKey, Eq, id)
}

// And adds a predicate. A second predicate on the same key extends that
// key's list, which is how ranges are expressed.
func (c Constraints) And(key string, op Op, operand any) Constraints {
	if c.err != nil {
		return c
	}
	field := "constraints." + key
	out := Constraints{terms: c.terms.Clone()}
	if key == "" {
		out.err = protocol.Violationf("constraints", "empty property name")
		return out
	}
	if key == AnyKey || key == AllKey {
		out.err = protocol.Violationf(field, "use Any or All for combinators")
		return out
	}
	if !op.valid() {
		out.err = protocol.Violationf(field, "unknown operator %q", string(op))
		return out
	}
	v, err := ValueOf(operand)
	if err != nil {
		out.err = protocol.Violationf(field, "operand: %v", err)
		return out
	}
	switch op {
	case In, NotIn:
		if v.Kind() != ListValue {
			out.err = protocol.Violationf(field, "operator %q needs a list operand, got %s", string(op), v.Kind())
			return out
		}
	default:
		if v.Kind() == ListValue || v.IsNull() {
			out.err = protocol.Violationf(field, "operator %q needs a scalar operand, got %s", string(op), v.Kind())
			return out
		}
		if v.Kind() == DocumentValue {
			if _, ok := v.AsTime(); !ok {
				out.err = protocol.Violationf(field, "operator %q: only date documents are comparable", string(op))
				return out
			}
		}
	}
	pred := []Value{String(string(op)), v}
	if prev, ok := out.terms.Get(key); ok {
		list, _ := prev.AsList()
		pred = append(append([]Value{}, list...), pred...)
	}
	out.terms.Set(key, List(pred...))
	return out
}

// Any adds a nested set matched when at least one of its terms holds.
func (c Constraints) Any(inner Constraints) Constraints {
	return c.combine(AnyKey, inner)
}

// All adds a nested set matched when every term holds.
func (c Constraints) All(inner Constraints) Constraints {
	return c.combine(AllKey, inner)
}

func (c Constraints) combine(key string, inner Constraints) Constraints {
	if c.err != nil {
		return c
	}
	out := Constraints{terms: c.terms.Clone()}
	if inner.err != nil {
		out.err = inner.err
		return out
	}
	if inner.IsEmpty() {
		out.err = protocol.Violationf("constraints."+key, "empty nested constraint set")
		return out
	}
	if out.terms.Has(key) {
		out.err = protocol.Violationf("constraints."+key, "combinator already set")
		return out
	}
	out.terms.Set(key, Doc(inner.terms.Clone()))
	return out
}

func (c Constraints) IsEmpty() bool {
	return len(c.terms) == 0
}

func (c Constraints) Err() error {
	return c.err
}

// Keys lists constrained property names in insertion order.
func (c Constraints) Keys() []string {
	return c.terms.Keys()
}

func (c Constraints) QueryValue() (Value, error) {
	if c.err != nil {
		return Value{}, c.err
	}
	return Doc(c.terms.Clone()), nil
}

func (c Constraints) MarshalJSON() ([]byte, error) {
	v, err := c.QueryValue()
	if err != nil {
		return nil, err
	}
	return v.MarshalJSON()
}

// ConstraintsFrom validates a raw constraint document such as
// {"age": [">", 3], "name": ["in", ["a", "b"]]}.
func ConstraintsFrom(doc Properties) Constraints {
	var c Constraints
	for _, kv := range doc {
		if c.err != nil {
			return c
		}
		if kv.Key == AnyKey || kv.Key == AllKey {
			inner, ok := kv.Value.AsDoc()
			if !ok {
				return Constraints{err: protocol.Violationf("constraints."+kv.Key, "combinator needs a document")}
			}
			c = c.combine(kv.Key, ConstraintsFrom(inner))
			continue
		}
		list, ok := kv.Value.AsList()
		if !ok || len(list) == 0 || len(list)%2 != 0 {
			return Constraints{err: protocol.Violationf("constraints."+kv.Key, "predicate must be [op, operand, ...]")}
		}
		for i := 0; i < len(list); i += 2 {
			op, ok := list[i].AsString()
			if !ok {
				return Constraints{err: protocol.Violationf("constraints."+kv.Key, "operator at %d is %s", i, list[i].Kind())}
			}
			c = c.And(kv.Key, Op(op), list[i+1])
		}
	}
	return c
}

// ConstraintsFromMap is ConstraintsFrom over a plain map, keys sorted.
func ConstraintsFromMap(m map[string]any) Constraints {
	doc, err := PropsFromMap(m)
	if err != nil {
		return Constraints{err: protocol.Violationf("constraints", "%v", err)}
	}
	return ConstraintsFrom(doc)
}
