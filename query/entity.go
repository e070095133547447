package query

import (
	"strings"

	"github.com/gsaluja9/aperturedb-go/protocol"
)

// AddEntity stores a node of a user-defined class.
type AddEntity struct {
	Ref        int
	Class      string
	Properties Properties
	Connect    *Connect
	Extra      Properties
}

func (a AddEntity) appendTo(q *Query) error {
	command := KindEntity.Add()
	if err := checkClass(command+".class", a.Class); err != nil {
		return err
	}
	var params Properties
	if a.Ref != 0 {
		if err := q.declare(a.Ref, command); err != nil {
			return err
		}
		params.Set("_ref", Int(int64(a.Ref)))
	}
	params.Set("class", String(a.Class))
	if err := setProperties(&params, command, a.Properties); err != nil {
		return err
	}
	if a.Connect != nil {
		v, err := a.Connect.build(q, KindEntity, command+".connect")
		if err != nil {
			return err
		}
		params.Set("connect", v)
	}
	if err := setExtra(&params, command, a.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}

// checkClass rejects empty names and the server's own _-prefixed classes.
func checkClass(field, class string) error {
	if class == "" {
		return protocol.Violationf(field, "missing class")
	}
	if strings.HasPrefix(class, "_") {
		return protocol.Violationf(field, "class %q is reserved", class)
	}
	return nil
}

type FindEntity struct {
	FindOptions
	Class string
}

func (f FindEntity) appendTo(q *Query) error {
	return Find{Kind: KindEntity, FindOptions: f.FindOptions, Class: f.Class}.appendTo(q)
}
