package aperturedb

import (
	"context"
	"fmt"

	"github.com/gsaluja9/aperturedb-go/query"
)

// kindClient is the create/find/update/delete surface shared by every kind.
type kindClient[A, F query.Operation, T any] struct {
	c      *Client
	kind   query.Kind
	decode func(query.Result) ([]T, error)
}

// Create runs the add operation and returns its result.
func (k kindClient[A, F, T]) Create(ctx context.Context, op A) (query.Result, error) {
	return k.c.run(ctx, op, k.kind.Add())
}

// Find runs the find operation and decodes the matches. Blobs requested by
// the find are attached to the returned entities in order.
func (k kindClient[A, F, T]) Find(ctx context.Context, op F) ([]T, error) {
	res, err := k.c.run(ctx, op, k.kind.Find())
	if err != nil {
		return nil, err
	}
	return k.decode(res)
}

// Update sets and removes properties on the target set.
func (k kindClient[A, F, T]) Update(ctx context.Context, target query.Target, set query.Properties, remove ...string) (query.Result, error) {
	return k.c.run(ctx, query.Update{Kind: k.kind, Target: target, Properties: set, RemoveProps: remove}, k.kind.Update())
}

func (k kindClient[A, F, T]) Delete(ctx context.Context, target query.Target) (query.Result, error) {
	return k.c.run(ctx, query.Delete{Kind: k.kind, Target: target}, k.kind.Delete())
}

type Images struct {
	kindClient[query.AddImage, query.FindImage, query.Image]
}

type Videos struct {
	kindClient[query.AddVideo, query.FindVideo, query.Video]
}

// UpdateVideo also accepts codec and operation changes.
func (v *Videos) UpdateVideo(ctx context.Context, op query.UpdateVideo) (query.Result, error) {
	return v.c.run(ctx, op, query.KindVideo.Update())
}

type Frames struct {
	kindClient[query.AddFrame, query.FindFrame, query.Frame]
}

type Clips struct {
	kindClient[query.AddClip, query.FindClip, query.Clip]
}

type Descriptors struct {
	kindClient[query.AddDescriptor, query.FindDescriptor, query.Descriptor]
}

// UpdateDescriptor also accepts a label change.
func (d *Descriptors) UpdateDescriptor(ctx context.Context, op query.UpdateDescriptor) (query.Result, error) {
	return d.c.run(ctx, op, query.KindDescriptor.Update())
}

// FindBatch runs every item of op in one request and returns their
// matches in item order.
func (d *Descriptors) FindBatch(ctx context.Context, op query.FindDescriptorBatch) ([][]query.Descriptor, error) {
	resp, spans, err := d.c.Query(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	span := spans[0]
	if span.Len() != len(op.Items) {
		return nil, fmt.Errorf("aperturedb: batch of %d produced %d commands", len(op.Items), span.Len())
	}
	out := make([][]query.Descriptor, 0, span.Len())
	for i := span.Start; i < span.End; i++ {
		found, err := query.Descriptors(resp.Results[i])
		if err != nil {
			return nil, err
		}
		out = append(out, found)
	}
	return out, nil
}

// Classify returns the neighbors the server used to label op.Vector,
// dropping those farther than op.Threshold.
func (d *Descriptors) Classify(ctx context.Context, op query.ClassifyDescriptor) ([]query.Descriptor, error) {
	res, err := d.c.run(ctx, op, query.ClassifyCommand)
	if err != nil {
		return nil, err
	}
	return query.Classify(res, op.Threshold)
}

type DescriptorSets struct {
	kindClient[query.AddDescriptorSet, query.FindDescriptorSet, query.DescriptorSet]
}

type BoundingBoxes struct {
	kindClient[query.AddBoundingBox, query.FindBoundingBox, query.BoundingBox]
}

// UpdateBoundingBox also accepts rectangle and label changes.
func (b *BoundingBoxes) UpdateBoundingBox(ctx context.Context, op query.UpdateBoundingBox) (query.Result, error) {
	return b.c.run(ctx, op, query.KindBoundingBox.Update())
}

type Polygons struct {
	kindClient[query.AddPolygon, query.FindPolygon, query.Polygon]
}

type Entities struct {
	kindClient[query.AddEntity, query.FindEntity, query.Entity]
}

type Connections struct {
	kindClient[query.AddConnection, query.FindConnection, query.Connection]
}
