package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// Rectangle is a pixel region of an image.
type Rectangle struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Rectangle) value(field string) (Value, error) {
	if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 {
		return Value{}, protocol.Violationf(field, "rectangle needs x, y >= 0 and a positive size")
	}
	var p Properties
	p.Set("x", Int(int64(r.X)))
	p.Set("y", Int(int64(r.Y)))
	p.Set("width", Int(int64(r.Width)))
	p.Set("height", Int(int64(r.Height)))
	return Doc(p), nil
}

// AddBoundingBox annotates an image with a rectangle.
type AddBoundingBox struct {
	Ref        int
	Image      Ref
	Rect       Rectangle
	Label      string
	Properties Properties
	Extra      Properties
}

func (a AddBoundingBox) appendTo(q *Query) error {
	command := KindBoundingBox.Add()
	rect, err := a.Rect.value(command + ".rectangle")
	if err != nil {
		return err
	}
	image, err := q.resolve(a.Image, KindImage, command+".image_ref")
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
	params.Set("image_ref", Int(int64(image)))
	params.Set("rectangle", rect)
	if a.Label != "" {
		params.Set("label", String(a.Label))
	}
	if err := setProperties(&params, command, a.Properties); err != nil {
		return err
	}
	if err := setExtra(&params, command, a.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}

type FindBoundingBox struct {
	FindOptions
	Image Ref
	// Rectangles returns each box's coordinates.
	Rectangles bool
	Labels     bool
	WithLabel  string
	// Blobs returns the image region under each box.
	Blobs bool
}

func (f FindBoundingBox) appendTo(q *Query) error {
	command := KindBoundingBox.Find()
	var params Properties
	if !f.Image.IsZero() {
		image, err := q.resolve(f.Image, KindImage, command+".image_ref")
		if err != nil {
			return err
		}
		params.Set("image_ref", Int(int64(image)))
	}
	if err := f.FindOptions.apply(q, &params, command, KindBoundingBox); err != nil {
		return err
	}
	if f.Rectangles {
		params.Set("rectangles", Bool(true))
	}
	if f.Labels {
		params.Set("labels", Bool(true))
	}
	if f.WithLabel != "" {
		params.Set("with_label", String(f.WithLabel))
	}
	params.Set("blobs", Bool(f.Blobs))
	if err := setExtra(&params, command, f.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params, ReturnsBlobs: f.Blobs})
	return nil
}

type UpdateBoundingBox struct {
	Target
	Rect        *Rectangle
	Label       string
	Properties  Properties
	RemoveProps []string
}

func (u UpdateBoundingBox) appendTo(q *Query) error {
	command := KindBoundingBox.Update()
	var params Properties
	if err := u.Target.apply(q, &params, KindBoundingBox, command); err != nil {
		return err
	}
	if u.Rect != nil {
		rect, err := u.Rect.value(command + ".rectangle")
		if err != nil {
			return err
		}
		params.Set("rectangle", rect)
	}
	if u.Label != "" {
		params.Set("label", String(u.Label))
	}
	if err := updateChanges(&params, command, u.Properties, u.RemoveProps, u.Rect != nil || u.Label != ""); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}
