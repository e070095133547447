package query

import (
	"math"

	"github.com/gsaluja9/aperturedb-go/protocol"
)

type Point struct {
	X float64
	Y float64
}

func polygonsValue(field string, polys [][]Point) (Value, error) {
	if len(polys) == 0 {
		return Value{}, protocol.Violationf(field, "no polygons")
	}
	rings := make([]Value, len(polys))
	for i, ring := range polys {
		if len(ring) < 3 {
			return Value{}, protocol.Violationf(field, "polygon %d has %d points, want at least 3", i, len(ring))
		}
		pts := make([]Value, len(ring))
		for j, pt := range ring {
			if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
				return Value{}, protocol.Violationf(field, "polygon %d point %d is not finite", i, j)
			}
			pts[j] = List(Float(pt.X), Float(pt.Y))
		}
		rings[i] = List(pts...)
	}
	return List(rings...), nil
}

// AddPolygon annotates an image with one or more closed outlines.
type AddPolygon struct {
	Ref        int
	Image      Ref
	Polygons   [][]Point
	Label      string
	Properties Properties
	Extra      Properties
}

func (a AddPolygon) appendTo(q *Query) error {
	command := KindPolygon.Add()
	polys, err := polygonsValue(command+".polygons", a.Polygons)
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
	params.Set("polygons", polys)
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

type FindPolygon struct {
	FindOptions
	Image     Ref
	Vertices  bool
	Labels    bool
	WithLabel string
}

func (f FindPolygon) appendTo(q *Query) error {
	command := KindPolygon.Find()
	var params Properties
	if !f.Image.IsZero() {
		image, err := q.resolve(f.Image, KindImage, command+".image_ref")
		if err != nil {
			return err
		}
		params.Set("image_ref", Int(int64(image)))
	}
	if err := f.FindOptions.apply(q, &params, command, KindPolygon); err != nil {
		return err
	}
	if f.Vertices {
		params.Set("vertices", Bool(true))
	}
	if f.Labels {
		params.Set("labels", Bool(true))
	}
	if f.WithLabel != "" {
		params.Set("with_label", String(f.WithLabel))
	}
	if err := setExtra(&params, command, f.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}
