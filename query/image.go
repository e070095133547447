package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

type ImageFormat string

const (
	FormatJPG ImageFormat = "jpg"
	FormatPNG ImageFormat = "png"
)

func (f ImageFormat) validate(field string) error {
	switch f {
	case "", FormatJPG, FormatPNG:
		return nil
	}
	return protocol.Violationf(field, "unknown image format %q", string(f))
}

// ImageOperation is a server-side transform applied on insert or on read.
type ImageOperation struct {
	Type   string
	Width  int
	Height int
	Angle  float64
	Value  int
	// Resize lets a rotation grow the canvas to fit.
	Resize bool
}

func ResizeImage(width, height int) ImageOperation {
	return ImageOperation{Type: "resize", Width: width, Height: height}
}

func RotateImage(angle float64, resize bool) ImageOperation {
	return ImageOperation{Type: "rotate", Angle: angle, Resize: resize}
}

func ThresholdImage(value int) ImageOperation {
	return ImageOperation{Type: "threshold", Value: value}
}

func imageOperations(field string, ops []ImageOperation) (Value, error) {
	out := make([]Value, len(ops))
	for i, op := range ops {
		var p Properties
		p.Set("type", String(op.Type))
		switch op.Type {
		case "resize":
			if op.Width <= 0 && op.Height <= 0 {
				return Value{}, protocol.Violationf(field, "resize at %d needs a width or a height", i)
			}
			if op.Width > 0 {
				p.Set("width", Int(int64(op.Width)))
			}
			if op.Height > 0 {
				p.Set("height", Int(int64(op.Height)))
			}
		case "rotate":
			p.Set("angle", Float(op.Angle))
			p.Set("resize", Bool(op.Resize))
		case "threshold":
			if op.Value < 0 || op.Value > 255 {
				return Value{}, protocol.Violationf(field, "threshold at %d out of 0..255", i)
			}
			p.Set("value", Int(int64(op.Value)))
		default:
			return Value{}, protocol.Violationf(field, "unknown image operation %q at %d", op.Type, i)
		}
		out[i] = Doc(p)
	}
	return List(out...), nil
}

// AddImage stores one image given either inline bytes or a URL the server
// fetches. With Descriptor set, the vector is stored in DescriptorSet and
// connected to the new image in the same query.
type AddImage struct {
	Ref        int
	Blob       []byte
	URL        string
	Format     ImageFormat
	Properties Properties
	Operations []ImageOperation
	Connect    *Connect

	Descriptor      []float32
	DescriptorSet   string
	DescriptorLabel string

	Extra Properties
}

func (a AddImage) appendTo(q *Query) error {
	command := KindImage.Add()
	if (len(a.Blob) == 0) == (a.URL == "") {
		return protocol.Violationf(command, "exactly one of Blob and URL is required")
	}
	if err := a.Format.validate(command + ".format"); err != nil {
		return err
	}
	var params Properties
	ref := a.Ref
	if ref == 0 && len(a.Descriptor) > 0 {
		ref = q.NextRef()
	}
	if ref != 0 {
		if err := q.declare(ref, command); err != nil {
			return err
		}
		params.Set("_ref", Int(int64(ref)))
	}
	if a.Format != "" {
		params.Set("format", String(string(a.Format)))
	}
	if a.URL != "" {
		params.Set("url", String(a.URL))
	}
	if err := setProperties(&params, command, a.Properties); err != nil {
		return err
	}
	if len(a.Operations) > 0 {
		ops, err := imageOperations(command+".operations", a.Operations)
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
	if len(a.Descriptor) == 0 && a.DescriptorSet != "" {
		return protocol.Violationf(command, "DescriptorSet without Descriptor")
	}
	q.emit(cmd)
	if len(a.Descriptor) == 0 {
		return nil
	}
	return AddDescriptor{
		Set:     a.DescriptorSet,
		Vector:  a.Descriptor,
		Label:   a.DescriptorLabel,
		Connect: &Connect{To: RefTo(ref)},
	}.appendTo(q)
}

type FindImage struct {
	FindOptions
	Blobs      bool
	AsFormat   ImageFormat
	Operations []ImageOperation
}

func (f FindImage) appendTo(q *Query) error {
	command := KindImage.Find()
	var params Properties
	if err := f.FindOptions.apply(q, &params, command, KindImage); err != nil {
		return err
	}
	params.Set("blobs", Bool(f.Blobs))
	if err := f.AsFormat.validate(command + ".as_format"); err != nil {
		return err
	}
	if f.AsFormat != "" {
		params.Set("as_format", String(string(f.AsFormat)))
	}
	if len(f.Operations) > 0 {
		ops, err := imageOperations(command+".operations", f.Operations)
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
