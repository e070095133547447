package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// VideoOperation is a server-side transform of a video stream.
type VideoOperation struct {
	Type   string
	Width  int
	Height int
	Start  int
	Stop   int
	Step   int
}

func ResizeVideo(width, height int) VideoOperation {
	return VideoOperation{Type: "resize", Width: width, Height: height}
}

// Interval keeps frames [start, stop) taking every step-th one.
func Interval(start, stop, step int) VideoOperation {
	return VideoOperation{Type: "interval", Start: start, Stop: stop, Step: step}
}

func videoOperations(field string, ops []VideoOperation) (Value, error) {
	out := make([]Value, len(ops))
	for i, op := range ops {
		var p Properties
		p.Set("type", String(op.Type))
		switch op.Type {
		case "resize":
			if op.Width <= 0 || op.Height <= 0 {
				return Value{}, protocol.Violationf(field, "resize at %d needs a positive width and height", i)
			}
			p.Set("width", Int(int64(op.Width)))
			p.Set("height", Int(int64(op.Height)))
		case "interval":
			if op.Start < 0 || op.Stop <= op.Start || op.Step <= 0 {
				return Value{}, protocol.Violationf(field, "interval at %d needs 0 <= start < stop and step > 0", i)
			}
			p.Set("start", Int(int64(op.Start)))
			p.Set("stop", Int(int64(op.Stop)))
			p.Set("step", Int(int64(op.Step)))
		default:
			return Value{}, protocol.Violationf(field, "unknown video operation %q at %d", op.Type, i)
		}
		out[i] = Doc(p)
	}
	return List(out...), nil
}

type AddVideo struct {
	Ref        int
	Blob       []byte
	URL        string
	Codec      string
	Container  string
	Properties Properties
	Operations []VideoOperation
	Connect    *Connect
	Extra      Properties
}

func (a AddVideo) appendTo(q *Query) error {
	command := KindVideo.Add()
	if (len(a.Blob) == 0) == (a.URL == "") {
		return protocol.Violationf(command, "exactly one of Blob and URL is required")
	}
	var params Properties
	if a.Ref != 0 {
		if err := q.declare(a.Ref, command); err != nil {
			return err
		}
		params.Set("_ref", Int(int64(a.Ref)))
	}
	if a.URL != "" {
		params.Set("url", String(a.URL))
	}
	if a.Codec != "" {
		params.Set("codec", String(a.Codec))
	}
	if a.Container != "" {
		params.Set("container", String(a.Container))
	}
	if err := setProperties(&params, command, a.Properties); err != nil {
		return err
	}
	if len(a.Operations) > 0 {
		ops, err := videoOperations(command+".operations", a.Operations)
		if err != nil {
			return err
		}
		params.Set("operations", ops)
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
	cmd := Command{Name: command, Params: params}
	if len(a.Blob) > 0 {
		cmd.Blobs = [][]byte{a.Blob}
	}
	q.emit(cmd)
	return nil
}

type FindVideo struct {
	FindOptions
	Blobs       bool
	URLs        bool
	AsCodec     string
	AsContainer string
	WithURL     string
	Operations  []VideoOperation
}

func (f FindVideo) appendTo(q *Query) error {
	command := KindVideo.Find()
	var params Properties
	if err := f.FindOptions.apply(q, &params, command, KindVideo); err != nil {
		return err
	}
	params.Set("blobs", Bool(f.Blobs))
	if f.URLs {
		params.Set("urls", Bool(true))
	}
	if f.AsCodec != "" {
		params.Set("as_codec", String(f.AsCodec))
	}
	if f.AsContainer != "" {
		params.Set("as_container", String(f.AsContainer))
	}
	if f.WithURL != "" {
		params.Set("with_url", String(f.WithURL))
	}
	if len(f.Operations) > 0 {
		ops, err := videoOperations(command+".operations", f.Operations)
		if err != nil {
			return err
		}
		params.Set("operations", ops)
	}
	if err := setExtra(&params, command, f.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params, ReturnsBlobs: f.Blobs})
	return nil
}

type UpdateVideo struct {
	Target
	Codec       string
	Properties  Properties
	RemoveProps []string
	Operations  []VideoOperation
}

func (u UpdateVideo) appendTo(q *Query) error {
	command := KindVideo.Update()
	var params Properties
	if err := u.Target.apply(q, &params, KindVideo, command); err != nil {
		return err
	}
	if u.Codec != "" {
		params.Set("codec", String(u.Codec))
	}
	if len(u.Operations) > 0 {
		ops, err := videoOperations(command+".operations", u.Operations)
		if err != nil {
			return err
		}
		params.Set("operations", ops)
	}
	if err := updateChanges(&params, command, u.Properties, u.RemoveProps, u.Codec != "" || len(u.Operations) > 0); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}
