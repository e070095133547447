package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// ClipRange locates a clip by exactly one of its three forms.
type ClipRange struct {
	Frames   *FrameRange
	Time     *TimeRange
	Fraction *FractionRange
}

func (r ClipRange) apply(params *Properties, command string) error {
	n := 0
	if r.Frames != nil {
		n++
	}
	if r.Time != nil {
		n++
	}
	if r.Fraction != nil {
		n++
	}
	if n != 1 {
		return protocol.Violationf(command, "exactly one clip range is required")
	}
	var (
		key string
		v   Value
		err error
	)
	switch {
	case r.Frames != nil:
		key = "frame_number_range"
		v, err = r.Frames.value(command + "." + key)
	case r.Time != nil:
		key = "time_offset_range"
		v, err = r.Time.value(command + "." + key)
	default:
		key = "time_fraction_range"
		v, err = r.Fraction.value(command + "." + key)
	}
	if err != nil {
		return err
	}
	params.Set(key, v)
	return nil
}

type AddClip struct {
	Ref        int
	Video      Ref
	Range      ClipRange
	Label      string
	Properties Properties
	Extra      Properties
}

func (a AddClip) appendTo(q *Query) error {
	command := KindClip.Add()
	var params Properties
	if err := a.Range.apply(&params, command); err != nil {
		return err
	}
	video, err := q.resolve(a.Video, KindVideo, command+".video_ref")
	if err != nil {
		return err
	}
	var head Properties
	if a.Ref != 0 {
		if err := q.declare(a.Ref, command); err != nil {
			return err
		}
		head.Set("_ref", Int(int64(a.Ref)))
	}
	head.Set("video_ref", Int(int64(video)))
	params = append(head, params...)
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

type FindClip struct {
	FindOptions
	Video     Ref
	Blobs     bool
	Labels    bool
	WithLabel string
}

func (f FindClip) appendTo(q *Query) error {
	command := KindClip.Find()
	var params Properties
	if !f.Video.IsZero() {
		video, err := q.resolve(f.Video, KindVideo, command+".video_ref")
		if err != nil {
			return err
		}
		params.Set("video_ref", Int(int64(video)))
	}
	if err := f.FindOptions.apply(q, &params, command, KindClip); err != nil {
		return err
	}
	params.Set("blobs", Bool(f.Blobs))
	if f.Labels {
		params.Set("labels", Bool(true))
	}
	if f.WithLabel != "" {
		params.Set("with_label", String(f.WithLabel))
	}
	if err := setExtra(&params, command, f.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params, ReturnsBlobs: f.Blobs})
	return nil
}
