package query

import (
	"errors"
	"testing"
	"time"

	"github.com/gsaluja9/aperturedb-go/internal/testutil/testlog"
	"github.com/gsaluja9/aperturedb-go/protocol"
)

func parseOne(t *testing.T, cmd Command, data string, blobs [][]byte) Result {
	t.Helper()
	resp, err := Parse(Document{Commands: []Command{cmd}}, []byte(data), blobs)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return resp.Results[0]
}

func TestDescriptorsDecode(t *testing.T) {
	testlog.Start(t)
	vec := []float32{0.25, -3}
	res := parseOne(t, Command{Name: "FindDescriptor", ReturnsBlobs: true},
		`[{"FindDescriptor":{"status":0,"returned":1,"entities":[`+
			`{"_uniqueid":"1.2.3","_label":"cat","_distance":0.5,"created_at":{"_date":"2024-03-04T05:06:07Z"},"owner":"ann"}]}}]`,
		[][]byte{EncodeVector(vec)})
	ds, err := Descriptors(res)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	d := ds[0]
	if d.UniqueID != "1.2.3" || d.Label != "cat" || d.Distance == nil || *d.Distance != 0.5 {
		t.Fatalf("unexpected descriptor %+v", d)
	}
	if !d.CreatedAt.Equal(time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)) {
		t.Fatalf("created_at not decoded: %v", d.CreatedAt)
	}
	if len(d.Vector) != 2 || d.Vector[0] != 0.25 || d.Vector[1] != -3 {
		t.Fatalf("vector not decoded: %v", d.Vector)
	}
	if keys := d.Properties.Keys(); len(keys) != 1 || keys[0] != "owner" {
		t.Fatalf("only unknown fields belong in Properties, got %v", keys)
	}
}

func TestDescriptorsRejectBadVectorBlob(t *testing.T) {
	testlog.Start(t)
	res := parseOne(t, Command{Name: "FindDescriptor", ReturnsBlobs: true},
		`[{"FindDescriptor":{"status":0,"entities":[{}]}}]`, [][]byte{{1, 2, 3}})
	if _, err := Descriptors(res); !errors.Is(err, protocol.ErrProtocolMismatch) {
		t.Fatalf("expected protocol mismatch, got %v", err)
	}
}

func TestEntityDecoders(t *testing.T) {
	testlog.Start(t)
	t.Run("video", func(t *testing.T) {
		res := parseOne(t, Command{Name: "FindVideo", ReturnsBlobs: true},
			`[{"FindVideo":{"status":0,"entities":[{"_fps":29.97,"_frame_count":300,"_frame_width":640,"_frame_height":480,"_duration_us":10010000,"title":"x"}]}}]`,
			[][]byte{{0xaa}})
		vs, err := Videos(res)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		v := vs[0]
		if *v.FPS != 29.97 || *v.FrameCount != 300 || *v.FrameWidth != 640 || *v.FrameHeight != 480 || *v.DurationUS != 10010000 {
			t.Fatalf("unexpected video %+v", v)
		}
		if len(v.Blob) != 1 || v.Blob[0] != 0xaa {
			t.Fatalf("video blob not attached")
		}
	})
	t.Run("bounding box coordinates", func(t *testing.T) {
		res := parseOne(t, Command{Name: "FindBoundingBox"},
			`[{"FindBoundingBox":{"status":0,"entities":[{"_coordinates":{"x":1,"y":2,"width":3,"height":4},"_label":"face"}]}}]`, nil)
		bs, err := BoundingBoxes(res)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if bs[0].Rect != (Rectangle{X: 1, Y: 2, Width: 3, Height: 4}) || bs[0].Label != "face" {
			t.Fatalf("unexpected box %+v", bs[0])
		}
	})
	t.Run("bounding box flat fields", func(t *testing.T) {
		res := parseOne(t, Command{Name: "FindBoundingBox"},
			`[{"FindBoundingBox":{"status":0,"entities":[{"x":5,"y":6,"width":7,"height":8}]}}]`, nil)
		bs, err := BoundingBoxes(res)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if bs[0].Rect != (Rectangle{X: 5, Y: 6, Width: 7, Height: 8}) || len(bs[0].Properties) != 0 {
			t.Fatalf("unexpected box %+v", bs[0])
		}
	})
	t.Run("polygon", func(t *testing.T) {
		res := parseOne(t, Command{Name: "FindPolygon"},
			`[{"FindPolygon":{"status":0,"entities":[{"_vertices":[[[0,0],[1,0],[1,1.5]]]}]}}]`, nil)
		ps, err := Polygons(res)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(ps[0].Polygons) != 1 || len(ps[0].Polygons[0]) != 3 || ps[0].Polygons[0][2] != (Point{X: 1, Y: 1.5}) {
			t.Fatalf("unexpected polygon %+v", ps[0])
		}
	})
	t.Run("descriptor set", func(t *testing.T) {
		res := parseOne(t, Command{Name: "FindDescriptorSet"},
			`[{"FindDescriptorSet":{"status":0,"entities":[{"_name":"faces","_dimensions":128,"_metrics":["L2","CS"],"_engines":["HNSW"]}]}}]`, nil)
		ss, err := DescriptorSets(res)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		s := ss[0]
		if s.Name != "faces" || s.Dimensions != 128 || len(s.Metrics) != 2 || s.Metrics[1] != MetricCS || s.Engines[0] != EngineHNSW {
			t.Fatalf("unexpected set %+v", s)
		}
	})
	t.Run("frame and clip", func(t *testing.T) {
		res := parseOne(t, Command{Name: "FindFrame"},
			`[{"FindFrame":{"status":0,"entities":[{"_frame_number":12,"_label":"goal"}]}}]`, nil)
		fs, err := Frames(res)
		if err != nil {
			t.Fatalf("decode frames: %v", err)
		}
		if fs[0].FrameNumber == nil || *fs[0].FrameNumber != 12 || fs[0].Label != "goal" {
			t.Fatalf("unexpected frame %+v", fs[0])
		}
		res = parseOne(t, Command{Name: "FindClip"},
			`[{"FindClip":{"status":0,"entities":[{"frame_number_range":{"start":1,"stop":9},"label":"intro"}]}}]`, nil)
		cs, err := Clips(res)
		if err != nil {
			t.Fatalf("decode clips: %v", err)
		}
		fr := cs[0].Range.Frames
		if fr == nil || fr.Start != 1 || fr.Stop == nil || *fr.Stop != 9 || cs[0].Label != "intro" {
			t.Fatalf("unexpected clip %+v", cs[0])
		}
	})
	t.Run("entity and connection", func(t *testing.T) {
		res := parseOne(t, Command{Name: "FindEntity"},
			`[{"FindEntity":{"status":0,"entities":[{"_uniqueid":"7","class":"Person","name":"ann"}]}}]`, nil)
		es, err := Entities(res)
		if err != nil {
			t.Fatalf("decode entities: %v", err)
		}
		if es[0].Class != "Person" || es[0].UniqueID != "7" {
			t.Fatalf("unexpected entity %+v", es[0])
		}
		name, _ := es[0].Properties.Get("name")
		if s, _ := name.AsString(); s != "ann" {
			t.Fatalf("user property lost: %+v", es[0].Properties)
		}
		res = parseOne(t, Command{Name: "FindConnection"},
			`[{"FindConnection":{"status":0,"entities":[{"_class":"knows","_src":"1","_dst":"2"}]}}]`, nil)
		cs, err := Connections(res)
		if err != nil {
			t.Fatalf("decode connections: %v", err)
		}
		if cs[0].Class != "knows" || cs[0].Src != "1" || cs[0].Dst != "2" {
			t.Fatalf("unexpected connection %+v", cs[0])
		}
	})
}

func TestEntityDecoderTypeMismatch(t *testing.T) {
	testlog.Start(t)
	res := parseOne(t, Command{Name: "FindImage"},
		`[{"FindImage":{"status":0,"entities":[{"_uniqueid":true}]}}]`, nil)
	if _, err := Images(res); !errors.Is(err, protocol.ErrProtocolMismatch) {
		t.Fatalf("expected protocol mismatch, got %v", err)
	}
	res = parseOne(t, Command{Name: "FindVideo"},
		`[{"FindVideo":{"status":0,"entities":[{"_fps":"fast"}]}}]`, nil)
	if _, err := Videos(res); !errors.Is(err, protocol.ErrProtocolMismatch) {
		t.Fatalf("expected protocol mismatch, got %v", err)
	}
}

func TestVectorEncoding(t *testing.T) {
	testlog.Start(t)
	vec := []float32{1, -0.5, 3.25}
	b := EncodeVector(vec)
	if len(b) != 12 || b[0] != 0x00 || b[3] != 0x3f {
		t.Fatalf("unexpected little-endian layout % x", b)
	}
	out, err := DecodeVector(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range vec {
		if out[i] != vec[i] {
			t.Fatalf("component %d: got %v want %v", i, out[i], vec[i])
		}
	}
	if _, err := DecodeVector([]byte{1, 2}); err == nil {
		t.Fatalf("expected length error")
	}
}
