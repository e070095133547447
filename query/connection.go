package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// AddConnection adds a directed, classed edge from Src to Dst.
type AddConnection struct {
	Ref        int
	Class      string
	Src        Ref
	Dst        Ref
	Properties Properties
	Extra      Properties
}

func (a AddConnection) appendTo(q *Query) error {
	command := KindConnection.Add()
	if err := checkClass(command+".class", a.Class); err != nil {
		return err
	}
	src, err := q.resolve(a.Src, KindEntity, command+".src")
	if err != nil {
		return err
	}
	dst, err := q.resolve(a.Dst, KindEntity, command+".dst")
	if err != nil {
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
	params.Set("src", Int(int64(src)))
	params.Set("dst", Int(int64(dst)))
	if err := setProperties(&params, command, a.Properties); err != nil {
		return err
	}
	if err := setExtra(&params, command, a.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}

type FindConnection struct {
	FindOptions
	Class string
	Src   Ref
	Dst   Ref
}

func (f FindConnection) appendTo(q *Query) error {
	command := KindConnection.Find()
	if f.Link != nil {
		return protocol.Violationf(command+".is_connected_to", "connections are selected with Src and Dst")
	}
	var params Properties
	if f.Class != "" {
		params.Set("with_class", String(f.Class))
	}
	for _, end := range []struct {
		key string
		ref Ref
	}{{"src", f.Src}, {"dst", f.Dst}} {
		if end.ref.IsZero() {
			continue
		}
		ref, err := q.resolve(end.ref, KindEntity, command+"."+end.key)
		if err != nil {
			return err
		}
		params.Set(end.key, Int(int64(ref)))
	}
	if err := f.FindOptions.apply(q, &params, command, KindConnection); err != nil {
		return err
	}
	if err := setExtra(&params, command, f.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}
