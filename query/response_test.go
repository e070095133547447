package query

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/gsaluja9/aperturedb-go/internal/testutil/testlog"
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// layoutDoc builds n commands; bit i of mask marks command i blob-bearing.
func layoutDoc(n int, mask uint) (Document, string) {
	doc := Document{}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("Cmd%d", i)
		bearing := mask&(1<<i) != 0
		doc.Commands = append(doc.Commands, Command{Name: name, ReturnsBlobs: bearing})
		if bearing {
			parts[i] = fmt.Sprintf(`{%q:{"status":0,"returned":1,"entities":[{"i":%d}]}}`, name, i)
		} else {
			parts[i] = fmt.Sprintf(`{%q:{"status":0}}`, name)
		}
	}
	return doc, "[" + strings.Join(parts, ",") + "]"
}

func TestParseAttachesBlobsInCommandOrder(t *testing.T) {
	testlog.Start(t)
	for n := 1; n <= 6; n++ {
		for mask := uint(0); mask < 1<<n; mask++ {
			doc, data := layoutDoc(n, mask)
			var blobs [][]byte
			for i := 0; i < n; i++ {
				if mask&(1<<i) != 0 {
					blobs = append(blobs, []byte{byte(len(blobs))})
				}
			}
			resp, err := Parse(doc, []byte(data), blobs)
			if err != nil {
				t.Fatalf("n=%d mask=%b: %v", n, mask, err)
			}
			next := 0
			for i, res := range resp.Results {
				if mask&(1<<i) == 0 {
					if len(res.Blobs) != 0 {
						t.Fatalf("n=%d mask=%b: result %d got blobs", n, mask, i)
					}
					continue
				}
				if len(res.Entities) != 1 || !bytes.Equal(res.Entities[0].Blob, []byte{byte(next)}) {
					t.Fatalf("n=%d mask=%b: result %d want blob %d, got %+v", n, mask, i, next, res.Entities)
				}
				next++
			}
		}
	}
}

func TestParseBlobMismatches(t *testing.T) {
	testlog.Start(t)
	find := Document{Commands: []Command{{Name: "FindImage", ReturnsBlobs: true}}}
	plain := Document{Commands: []Command{{Name: "FindEntity"}}}
	tests := []struct {
		name  string
		doc   Document
		data  string
		blobs [][]byte
	}{
		{
			name: "requested blob missing",
			doc:  find,
			data: `[{"FindImage":{"status":0,"returned":1,"entities":[{"a":1}]}}]`,
		},
		{
			name:  "too few blobs for returned count",
			doc:   find,
			data:  `[{"FindImage":{"status":0,"returned":3}}]`,
			blobs: [][]byte{{1}, {2}},
		},
		{
			name: "blob-bearing result without a count",
			doc:  find,
			data: `[{"FindImage":{"status":0}}]`,
		},
		{
			name:  "leftover blob",
			doc:   plain,
			data:  `[{"FindEntity":{"status":0}}]`,
			blobs: [][]byte{{1}},
		},
		{
			name: "result count differs",
			doc:  plain,
			data: `[{"FindEntity":{}},{"FindEntity":{}}]`,
		},
		{
			name: "result for another command",
			doc:  plain,
			data: `[{"FindImage":{"status":0}}]`,
		},
		{
			name: "result with two keys",
			doc:  plain,
			data: `[{"FindEntity":{},"Other":{}}]`,
		},
		{
			name: "entity not an object",
			doc:  plain,
			data: `[{"FindEntity":{"entities":[1]}}]`,
		},
		{
			name:  "status response with blobs",
			doc:   plain,
			data:  `{"status":-1}`,
			blobs: [][]byte{{1}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.doc, []byte(tc.data), tc.blobs)
			if !errors.Is(err, protocol.ErrProtocolMismatch) {
				t.Fatalf("expected protocol mismatch, got %v", err)
			}
			if errors.Is(err, protocol.ErrDecode) {
				t.Fatalf("mismatch must not be reported as a decode error")
			}
		})
	}
}

func TestParseEmptyBlobResults(t *testing.T) {
	testlog.Start(t)
	doc := Document{Commands: []Command{{Name: "FindImage", ReturnsBlobs: true}}}
	for _, data := range []string{
		`[{"FindImage":{"status":0,"returned":0}}]`,
		`[{"FindImage":{"status":0,"entities":[]}}]`,
	} {
		resp, err := Parse(doc, []byte(data), nil)
		if err != nil {
			t.Fatalf("%s: %v", data, err)
		}
		if got := resp.Results[0].Blobs; got == nil || len(got) != 0 {
			t.Fatalf("%s: expected empty blob list, got %v", data, got)
		}
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	testlog.Start(t)
	doc := Document{Commands: []Command{{Name: "FindEntity"}}}
	for _, data := range []string{
		``, `[`, `[{"FindEntity":}]`, `"text"`, `12`,
		`[{"FindEntity":{"status":0}}] garbage`,
		`{"a":1}{"b":2}`,
	} {
		_, err := Parse(doc, []byte(data), nil)
		if !errors.Is(err, protocol.ErrDecode) {
			t.Fatalf("%q: expected decode error, got %v", data, err)
		}
	}
}

func TestParseStatusResponse(t *testing.T) {
	testlog.Start(t)
	doc := Document{Commands: []Command{{Name: "FindEntity"}}}
	resp, err := Parse(doc, []byte(`{"status":-1,"info":"not authenticated"}`), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Status != -1 || resp.Info != "not authenticated" || len(resp.Results) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	var se *StatusError
	if !errors.As(resp.Err(), &se) || se.Status != -1 {
		t.Fatalf("expected status error, got %v", resp.Err())
	}
}

func TestParseFailedCommandTakesNoBlobs(t *testing.T) {
	testlog.Start(t)
	doc := Document{Commands: []Command{
		{Name: "FindImage", ReturnsBlobs: true},
		{Name: "FindVideo", ReturnsBlobs: true},
	}}
	data := `[{"FindImage":{"status":-1,"info":"bad constraint"}},{"FindVideo":{"status":0,"returned":1}}]`
	resp, err := Parse(doc, []byte(data), [][]byte{{9}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(resp.Results[0].Blobs) != 0 || len(resp.Results[1].Blobs) != 1 {
		t.Fatalf("blob went to the failed command: %+v", resp.Results)
	}
	if err := resp.Err(); err == nil || !strings.Contains(err.Error(), "bad constraint") {
		t.Fatalf("expected first failure surfaced, got %v", err)
	}
	if _, err := Images(resp.Results[0]); err == nil {
		t.Fatalf("decoding a failed result must return its status error")
	}
}

func TestParseKeepsUnknownResultFields(t *testing.T) {
	testlog.Start(t)
	doc := Document{Commands: []Command{{Name: "FindEntity"}}}
	data := `[{"FindEntity":{"status":0,"returned":0,"count":7,"entities":{"groups":[]}}}]`
	resp, err := Parse(doc, []byte(data), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := resp.Results[0]
	if got := res.Extra.Keys(); len(got) != 2 || got[0] != "count" || got[1] != "entities" {
		t.Fatalf("unexpected extra keys %v", got)
	}
	if res.Entities != nil {
		t.Fatalf("non-list entities must stay in Extra")
	}
}

func TestParseIsIdempotentAndDoesNotAlias(t *testing.T) {
	testlog.Start(t)
	doc := Document{Commands: []Command{{Name: "FindImage", ReturnsBlobs: true}}}
	data := []byte(`[{"FindImage":{"status":0,"returned":1,"entities":[{"name":"cat","tags":["a"]}]}}]`)
	blobs := [][]byte{{1, 2, 3}}
	first, err := Parse(doc, data, blobs)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	second, err := Parse(doc, data, blobs)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("parses differ:\n%+v\n%+v", first, second)
	}
	first.Results[0].Entities[0].Blob[0] = 42
	first.Results[0].Entities[0].Properties.Set("name", String("dog"))
	if second.Results[0].Entities[0].Blob[0] != 1 || blobs[0][0] != 1 {
		t.Fatalf("blob aliased between parses or with the input")
	}
	name, _ := second.Results[0].Entities[0].Properties.Get("name")
	if s, _ := name.AsString(); s != "cat" {
		t.Fatalf("properties aliased between parses")
	}
}

func TestResponseResultBySpan(t *testing.T) {
	testlog.Start(t)
	q := New()
	span := q.MustAdd(AddBoundingBox{Image: ByID("img"), Rect: Rectangle{Width: 2, Height: 2}})
	doc := build(t, q)
	data := `[{"FindImage":{"status":0,"returned":1}},{"AddBoundingBox":{"status":0}}]`
	resp, err := Parse(doc, []byte(data), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := resp.Result(span)
	if err != nil || res.Command != "AddBoundingBox" {
		t.Fatalf("Result(span) = %+v, %v", res, err)
	}
	if _, err := resp.Result(Span{Start: 5, End: 6}); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestResponseResultOfSkipsFollowUps(t *testing.T) {
	testlog.Start(t)
	q := New()
	span := q.MustAdd(AddImage{URL: "s3://bucket/cat.jpg", Descriptor: []float32{1, 2}, DescriptorSet: "faces"})
	doc := build(t, q)
	data := `[{"AddImage":{"status":0}},{"AddDescriptor":{"status":0}}]`
	resp, err := Parse(doc, []byte(data), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res, _ := resp.Result(span); res.Command != "AddDescriptor" {
		t.Fatalf("Result(span) should be the last command, got %s", res.Command)
	}
	res, err := resp.ResultOf(span, "AddImage")
	if err != nil || res.Command != "AddImage" {
		t.Fatalf("ResultOf = %+v, %v", res, err)
	}
	if _, err := resp.ResultOf(span, "FindImage"); !errors.Is(err, protocol.ErrProtocolMismatch) {
		t.Fatalf("expected protocol mismatch, got %v", err)
	}
}
