package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// FrameRange is a span of frame numbers; a nil Stop runs to the end.
type FrameRange struct {
	Start int64
	Stop  *int64
}

// TimeRange is a span of "HH:MM:SS.ffffff" time offsets.
type TimeRange struct {
	Start string
	Stop  string
}

// FractionRange is a span of the video's duration in [0, 1].
type FractionRange struct {
	Start float64
	Stop  float64
}

func (r *FrameRange) value(field string) (Value, error) {
	if r.Start < 0 || (r.Stop != nil && *r.Stop < r.Start) {
		return Value{}, protocol.Violationf(field, "invalid frame range")
	}
	var p Properties
	p.Set("start", Int(r.Start))
	if r.Stop != nil {
		p.Set("stop", Int(*r.Stop))
	}
	return Doc(p), nil
}

func (r *TimeRange) value(field string) (Value, error) {
	if r.Start == "" || r.Stop == "" {
		return Value{}, protocol.Violationf(field, "time range needs start and stop")
	}
	var p Properties
	p.Set("start", String(r.Start))
	p.Set("stop", String(r.Stop))
	return Doc(p), nil
}

func (r *FractionRange) value(field string) (Value, error) {
	if r.Start < 0 || r.Stop > 1 || r.Stop < r.Start {
		return Value{}, protocol.Violationf(field, "fraction range must satisfy 0 <= start <= stop <= 1")
	}
	var p Properties
	p.Set("start", Float(r.Start))
	p.Set("stop", Float(r.Stop))
	return Doc(p), nil
}

// AddFrame stores a frame of a video, located by exactly one of frame
// number, time offset or time fraction.
type AddFrame struct {
	Ref          int
	Video        Ref
	FrameNumber  *int64
	TimeOffset   string
	TimeFraction *float64
	Label        string
	Properties   Properties
	Extra        Properties
}

func (a AddFrame) appendTo(q *Query) error {
	command := KindFrame.Add()
	set := 0
	if a.FrameNumber != nil {
		set++
	}
	if a.TimeOffset != "" {
		set++
	}
	if a.TimeFraction != nil {
		set++
	}
	if set != 1 {
		return protocol.Violationf(command, "exactly one of frame_number, time_offset and time_fraction is required")
	}
	if a.FrameNumber != nil && *a.FrameNumber < 0 {
		return protocol.Violationf(command+".frame_number", "negative frame number")
	}
	if a.TimeFraction != nil && (*a.TimeFraction < 0 || *a.TimeFraction > 1) {
		return protocol.Violationf(command+".time_fraction", "fraction out of [0, 1]")
	}
	video, err := q.resolve(a.Video, KindVideo, command+".video_ref")
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
	params.Set("video_ref", Int(int64(video)))
	switch {
	case a.FrameNumber != nil:
		params.Set("frame_number", Int(*a.FrameNumber))
	case a.TimeOffset != "":
		params.Set("time_offset", String(a.TimeOffset))
	default:
		params.Set("time_fraction", Float(*a.TimeFraction))
	}
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

type FindFrame struct {
	FindOptions
	Video               Ref
	Blobs               bool
	AsFormat            ImageFormat
	Operations          []ImageOperation
	InFrameNumberRange  *FrameRange
	InTimeOffsetRange   *TimeRange
	InTimeFractionRange *FractionRange
	FrameNumbers        bool
	TimeOffsets         bool
	TimeFractions       bool
	Labels              bool
	WithLabel           string
}

func (f FindFrame) appendTo(q *Query) error {
	command := KindFrame.Find()
	ranges := 0
	for _, set := range []bool{f.InFrameNumberRange != nil, f.InTimeOffsetRange != nil, f.InTimeFractionRange != nil} {
		if set {
			ranges++
		}
	}
	if ranges > 1 {
		return protocol.Violationf(command, "at most one frame range filter")
	}
	if err := f.AsFormat.validate(command + ".as_format"); err != nil {
		return err
	}
	var params Properties
	if !f.Video.IsZero() {
		video, err := q.resolve(f.Video, KindVideo, command+".video_ref")
		if err != nil {
			return err
		}
		params.Set("video_ref", Int(int64(video)))
	}
	if err := f.FindOptions.apply(q, &params, command, KindFrame); err != nil {
		return err
	}
	params.Set("blobs", Bool(f.Blobs))
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
	var (
		rng Value
		err error
	)
	switch {
	case f.InFrameNumberRange != nil:
		if rng, err = f.InFrameNumberRange.value(command + ".in_frame_number_range"); err != nil {
			return err
		}
		params.Set("in_frame_number_range", rng)
	case f.InTimeOffsetRange != nil:
		if rng, err = f.InTimeOffsetRange.value(command + ".in_time_offset_range"); err != nil {
			return err
		}
		params.Set("in_time_offset_range", rng)
	case f.InTimeFractionRange != nil:
		if rng, err = f.InTimeFractionRange.value(command + ".in_time_fraction_range"); err != nil {
			return err
		}
		params.Set("in_time_fraction_range", rng)
	}
	for _, flag := range []struct {
		key string
		on  bool
	}{
		{"frame_numbers", f.FrameNumbers},
		{"time_offsets", f.TimeOffsets},
		{"time_fractions", f.TimeFractions},
		{"labels", f.Labels},
	} {
		if flag.on {
			params.Set(flag.key, Bool(true))
		}
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
