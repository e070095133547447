package query

import (
	"fmt"
	"time"

	"github.com/gsaluja9/aperturedb-go/protocol"
)

// Metadata is the bookkeeping every stored entity carries.
type Metadata struct {
	UniqueID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Properties holds every field without a typed home, in wire order.
	Properties Properties
}

// fieldReader pulls typed fields out of one returned entity and remembers
// which keys it consumed so the rest survive in Metadata.Properties.
type fieldReader struct {
	command string
	index   int
	props   Properties
	used    map[string]bool
	err     error
}

func newFieldReader(res Result, index int) *fieldReader {
	return &fieldReader{
		command: res.Command,
		index:   index,
		props:   res.Entities[index].Properties,
		used:    make(map[string]bool),
	}
}

func (r *fieldReader) fail(key, want string, v Value) {
	if r.err == nil {
		r.err = &protocol.ProtocolMismatch{
			Command: r.command,
			Reason:  fmt.Sprintf("entity %d: %s is a %s, want %s", r.index, key, v.Kind(), want),
		}
	}
}

// lookup returns the first present key; the others are still consumed.
func (r *fieldReader) lookup(keys ...string) (string, Value, bool) {
	var (
		key   string
		found Value
		ok    bool
	)
	for _, k := range keys {
		v, has := r.props.Get(k)
		if !has {
			continue
		}
		r.used[k] = true
		if !ok {
			key, found, ok = k, v, true
		}
	}
	if ok && found.IsNull() {
		return key, found, false
	}
	return key, found, ok
}

func (r *fieldReader) str(keys ...string) string {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return ""
	}
	s, isStr := v.AsString()
	if !isStr {
		if n, isNum := v.AsNumber(); isNum {
			return string(n)
		}
		r.fail(key, "string", v)
	}
	return s
}

func (r *fieldReader) integer(keys ...string) (int64, bool) {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return 0, false
	}
	n, isInt := v.AsInt()
	if !isInt {
		r.fail(key, "integer", v)
	}
	return n, isInt
}

func (r *fieldReader) number(keys ...string) (float64, bool) {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return 0, false
	}
	f, isNum := v.AsFloat()
	if !isNum {
		r.fail(key, "number", v)
	}
	return f, isNum
}

func (r *fieldReader) date(keys ...string) time.Time {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return time.Time{}
	}
	t, isTime := v.AsTime()
	if !isTime {
		r.fail(key, "date", v)
	}
	return t
}

func (r *fieldReader) doc(keys ...string) (Properties, bool) {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return nil, false
	}
	d, isDoc := v.AsDoc()
	if !isDoc {
		r.fail(key, "document", v)
	}
	return d, isDoc
}

func (r *fieldReader) list(keys ...string) ([]Value, bool) {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return nil, false
	}
	l, isList := v.AsList()
	if !isList {
		r.fail(key, "list", v)
	}
	return l, isList
}

func (r *fieldReader) metadata() Metadata {
	m := Metadata{
		UniqueID:  r.str("_uniqueid"),
		CreatedAt: r.date("created_at", "_created_at"),
		UpdatedAt: r.date("updated_at", "_updated_at"),
	}
	for _, kv := range r.props {
		if !r.used[kv.Key] {
			m.Properties = append(m.Properties, Property{Key: kv.Key, Value: kv.Value.Clone()})
		}
	}
	return m
}

// decodeEntities runs fn over every returned entity of res. Metadata must
// be read last inside fn so typed keys are not duplicated into Properties.
func decodeEntities[T any](res Result, fn func(r *fieldReader, rec Record) T) ([]T, error) {
	if err := res.Err(); err != nil {
		return nil, err
	}
	out := make([]T, len(res.Entities))
	for i, rec := range res.Entities {
		r := newFieldReader(res, i)
		out[i] = fn(r, rec)
		if r.err != nil {
			return nil, r.err
		}
	}
	return out, nil
}

func optInt(r *fieldReader, keys ...string) *int64 {
	if n, ok := r.integer(keys...); ok {
		return &n
	}
	return nil
}

func optFloat(r *fieldReader, keys ...string) *float64 {
	if f, ok := r.number(keys...); ok {
		return &f
	}
	return nil
}

type Image struct {
	Metadata
	URL  string
	Blob []byte
}

func Images(res Result) ([]Image, error) {
	return decodeEntities(res, func(r *fieldReader, rec Record) Image {
		img := Image{URL: r.str("url", "_url"), Blob: rec.Blob}
		img.Metadata = r.metadata()
		return img
	})
}

type Video struct {
	Metadata
	URL         string
	FPS         *float64
	FrameCount  *int64
	FrameWidth  *int64
	FrameHeight *int64
	DurationUS  *int64
	Blob        []byte
}

func Videos(res Result) ([]Video, error) {
	return decodeEntities(res, func(r *fieldReader, rec Record) Video {
		v := Video{
			URL:         r.str("url", "_url"),
			FPS:         optFloat(r, "_fps"),
			FrameCount:  optInt(r, "_frame_count"),
			FrameWidth:  optInt(r, "_frame_width"),
			FrameHeight: optInt(r, "_frame_height"),
			DurationUS:  optInt(r, "_duration_us"),
			Blob:        rec.Blob,
		}
		v.Metadata = r.metadata()
		return v
	})
}

type Frame struct {
	Metadata
	VideoRef     string
	FrameNumber  *int64
	TimeOffset   string
	TimeFraction *float64
	Label        string
	Blob         []byte
}

func Frames(res Result) ([]Frame, error) {
	return decodeEntities(res, func(r *fieldReader, rec Record) Frame {
		f := Frame{
			VideoRef:     r.str("video_ref"),
			FrameNumber:  optInt(r, "frame_number", "_frame_number"),
			TimeOffset:   r.str("time_offset", "_time_offset"),
			TimeFraction: optFloat(r, "time_fraction", "_time_fraction"),
			Label:        r.str("label", "_label"),
			Blob:         rec.Blob,
		}
		f.Metadata = r.metadata()
		return f
	})
}

type Clip struct {
	Metadata
	VideoRef string
	Range    ClipRange
	Label    string
	Blob     []byte
}

func Clips(res Result) ([]Clip, error) {
	return decodeEntities(res, func(r *fieldReader, rec Record) Clip {
		c := Clip{VideoRef: r.str("video_ref"), Label: r.str("label", "_label"), Blob: rec.Blob}
		if d, ok := r.doc("frame_number_range"); ok {
			c.Range.Frames = readFrameRange(d)
		}
		if d, ok := r.doc("time_offset_range"); ok {
			c.Range.Time = &TimeRange{Start: docString(d, "start"), Stop: docString(d, "stop")}
		}
		if d, ok := r.doc("time_fraction_range"); ok {
			start, _ := docFloat(d, "start")
			stop, _ := docFloat(d, "stop")
			c.Range.Fraction = &FractionRange{Start: start, Stop: stop}
		}
		c.Metadata = r.metadata()
		return c
	})
}

func readFrameRange(d Properties) *FrameRange {
	fr := &FrameRange{}
	if v, ok := d.Get("start"); ok {
		fr.Start, _ = v.AsInt()
	}
	if v, ok := d.Get("stop"); ok {
		if n, isInt := v.AsInt(); isInt {
			fr.Stop = &n
		}
	}
	return fr
}

func docString(d Properties, key string) string {
	v, _ := d.Get(key)
	s, _ := v.AsString()
	return s
}

func docFloat(d Properties, key string) (float64, bool) {
	v, _ := d.Get(key)
	return v.AsFloat()
}

type Descriptor struct {
	Metadata
	Label    string
	Distance *float64
	// Vector is decoded from the blob when one was returned.
	Vector []float32
	Blob   []byte
}

func Descriptors(res Result) ([]Descriptor, error) {
	var vecErr error
	out, err := decodeEntities(res, func(r *fieldReader, rec Record) Descriptor {
		d := Descriptor{
			Label:    r.str("_label", "label"),
			Distance: optFloat(r, "_distance"),
			Blob:     rec.Blob,
		}
		if rec.Blob != nil {
			vec, err := DecodeVector(rec.Blob)
			if err != nil && vecErr == nil {
				vecErr = &protocol.ProtocolMismatch{Command: res.Command, Reason: err.Error()}
			}
			d.Vector = vec
		}
		d.Metadata = r.metadata()
		return d
	})
	if err != nil {
		return nil, err
	}
	if vecErr != nil {
		return nil, vecErr
	}
	return out, nil
}

type DescriptorSet struct {
	Metadata
	Name       string
	Dimensions int
	Metrics    []Metric
	Engines    []Engine
}

func DescriptorSets(res Result) ([]DescriptorSet, error) {
	return decodeEntities(res, func(r *fieldReader, _ Record) DescriptorSet {
		s := DescriptorSet{Name: r.str("_name", "name")}
		if n, ok := r.integer("_dimensions", "dimensions"); ok {
			s.Dimensions = int(n)
		}
		for _, v := range stringsOf(r, "_metrics", "metric") {
			s.Metrics = append(s.Metrics, Metric(v))
		}
		for _, v := range stringsOf(r, "_engines", "engine") {
			s.Engines = append(s.Engines, Engine(v))
		}
		s.Metadata = r.metadata()
		return s
	})
}

// stringsOf accepts a single string or a list of strings.
func stringsOf(r *fieldReader, keys ...string) []string {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	if s, isStr := v.AsString(); isStr {
		return []string{s}
	}
	list, isList := v.AsList()
	if !isList {
		r.fail(key, "string or list", v)
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, isStr := e.AsString()
		if !isStr {
			r.fail(key, "list of strings", v)
			return nil
		}
		out = append(out, s)
	}
	return out
}

type BoundingBox struct {
	Metadata
	ImageRef string
	Rect     Rectangle
	Label    string
	Blob     []byte
}

func BoundingBoxes(res Result) ([]BoundingBox, error) {
	return decodeEntities(res, func(r *fieldReader, rec Record) BoundingBox {
		b := BoundingBox{ImageRef: r.str("image_ref"), Label: r.str("_label", "label"), Blob: rec.Blob}
		if d, ok := r.doc("_coordinates", "rectangle"); ok {
			b.Rect = rectFrom(d)
		} else {
			b.Rect = Rectangle{
				X:      intField(r, "x"),
				Y:      intField(r, "y"),
				Width:  intField(r, "width"),
				Height: intField(r, "height"),
			}
		}
		b.Metadata = r.metadata()
		return b
	})
}

func intField(r *fieldReader, key string) int {
	n, _ := r.integer(key)
	return int(n)
}

func rectFrom(d Properties) Rectangle {
	get := func(k string) int {
		v, _ := d.Get(k)
		n, _ := v.AsInt()
		return int(n)
	}
	return Rectangle{X: get("x"), Y: get("y"), Width: get("width"), Height: get("height")}
}

type Polygon struct {
	Metadata
	ImageRef string
	Polygons [][]Point
	Label    string
}

func Polygons(res Result) ([]Polygon, error) {
	return decodeEntities(res, func(r *fieldReader, _ Record) Polygon {
		p := Polygon{ImageRef: r.str("image_ref"), Label: r.str("_label", "label")}
		if key, v, ok := r.lookup("_vertices", "polygons"); ok {
			rings, err := pointRings(v)
			if err != nil {
				r.fail(key, "list of point lists", v)
			}
			p.Polygons = rings
		} else if key, v, ok := r.lookup("points"); ok {
			ring, err := pointList(v)
			if err != nil {
				r.fail(key, "list of points", v)
			}
			p.Polygons = [][]Point{ring}
		}
		p.Metadata = r.metadata()
		return p
	})
}

func pointRings(v Value) ([][]Point, error) {
	list, ok := v.AsList()
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([][]Point, len(list))
	for i, ring := range list {
		pts, err := pointList(ring)
		if err != nil {
			return nil, err
		}
		out[i] = pts
	}
	return out, nil
}

func pointList(v Value) ([]Point, error) {
	list, ok := v.AsList()
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]Point, len(list))
	for i, pv := range list {
		xy, ok := pv.AsList()
		if !ok || len(xy) != 2 {
			return nil, fmt.Errorf("point %d is not [x, y]", i)
		}
		x, okX := xy[0].AsFloat()
		y, okY := xy[1].AsFloat()
		if !okX || !okY {
			return nil, fmt.Errorf("point %d is not numeric", i)
		}
		out[i] = Point{X: x, Y: y}
	}
	return out, nil
}

type Entity struct {
	Metadata
	Class string
}

func Entities(res Result) ([]Entity, error) {
	return decodeEntities(res, func(r *fieldReader, _ Record) Entity {
		e := Entity{Class: r.str("class", "_class")}
		e.Metadata = r.metadata()
		return e
	})
}

type Connection struct {
	Metadata
	Class string
	Src   string
	Dst   string
}

func Connections(res Result) ([]Connection, error) {
	return decodeEntities(res, func(r *fieldReader, _ Record) Connection {
		c := Connection{
			Class: r.str("class", "_class"),
			Src:   r.str("src", "_src"),
			Dst:   r.str("dst", "_dst"),
		}
		c.Metadata = r.metadata()
		return c
	})
}
