package query

import (
	"encoding/json"
	"strconv"
)

type refForm uint8

const (
	refNone refForm = iota
	refRawID
	refLink
)

// Ref points at another entity: either by server id, or by the _ref an
// earlier command in the same query declared.
type Ref struct {
	form    refForm
	id      string
	numeric bool
	ref     int
	class   string
}

// ByID refers to a stored entity by its _uniqueid.
func ByID(id string) Ref {
	return Ref{form: refRawID, id: id}
}

func ByNumericID(id int64) Ref {
	return Ref{form: refRawID, id: strconv.FormatInt(id, 10), numeric: true}
}

// ByClassID is ByID for an entity of a known class, which selects the
// find command used to resolve it.
func ByClassID(id, class string) Ref {
	return Ref{form: refRawID, id: id, class: class}
}

// RefTo refers to the entity bound to ref earlier in the same query.
func RefTo(ref int) Ref {
	return Ref{form: refLink, ref: ref}
}

func RefToClass(ref int, class string) Ref {
	return Ref{form: refLink, ref: ref, class: class}
}

func (r Ref) IsZero() bool { return r.form == refNone }
func (r Ref) Class() string { return r.class }

// ID returns the raw id, if r is one.
func (r Ref) ID() (string, bool) {
	return r.id, r.form == refRawID
}

// Link returns the in-query reference number, if r is one.
func (r Ref) Link() (int, bool) {
	return r.ref, r.form == refLink
}

func (r Ref) idValue() Value {
	if r.numeric {
		return Number(json.Number(r.id))
	}
	return String(r.id)
}

func (r Ref) String() string {
	switch r.form {
	case refRawID:
		return "id:" + r.id
	case refLink:
		return "ref:" + strconv.Itoa(r.ref)
	}
	return "none"
}
