package query

import (
	"fmt"

	"github.com/gsaluja9/aperturedb-go/protocol"
)

type Engine string

const (
	EngineHNSW Engine = "HNSW"
	EngineFlat Engine = "Flat"
)

type Metric string

const (
	MetricL2 Metric = "L2"
	MetricIP Metric = "IP"
	MetricCS Metric = "CS"
)

func (e Engine) validate(field string) error {
	switch e {
	case "", EngineHNSW, EngineFlat:
		return nil
	}
	return protocol.Violationf(field, "unknown engine %q", string(e))
}

func (m Metric) validate(field string) error {
	switch m {
	case "", MetricL2, MetricIP, MetricCS:
		return nil
	}
	return protocol.Violationf(field, "unknown metric %q", string(m))
}

// AddDescriptor stores a vector in a descriptor set.
type AddDescriptor struct {
	Ref        int
	Set        string
	Vector     []float32
	Label      string
	Properties Properties
	Connect    *Connect
	Extra      Properties
}

func (a AddDescriptor) appendTo(q *Query) error {
	command := KindDescriptor.Add()
	if a.Set == "" {
		return protocol.Violationf(command+".set", "missing descriptor set")
	}
	if err := checkVector(command+".vector", a.Vector); err != nil {
		return err
	}
	var params Properties
	if a.Ref != 0 {
		if err := q.declare(a.Ref, command); err != nil {
			return err
		}
		params.Set("_ref", Int(int64(a.Ref)))
	}
	params.Set("set", String(a.Set))
	if a.Label != "" {
		params.Set("label", String(a.Label))
	}
	if err := setProperties(&params, command, a.Properties); err != nil {
		return err
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
	q.emit(Command{Name: command, Params: params, Blobs: [][]byte{EncodeVector(a.Vector)}})
	return nil
}

// FindDescriptor matches descriptors by constraints, by similarity to
// Vector, or both. KNNFirst is forwarded as given; the server decides how
// it orders the neighbor search against the constraint filter.
type FindDescriptor struct {
	FindOptions
	Set        string
	Vector     []float32
	KNeighbors int
	KNNFirst   *bool
	Engine     Engine
	Metric     Metric
	Labels     bool
	Distances  bool
	Blobs      bool
	// WithLabel restricts matches to one label.
	WithLabel          string
	IndexedResultsOnly bool
}

func (f FindDescriptor) appendTo(q *Query) error {
	command := KindDescriptor.Find()
	hasVector := len(f.Vector) > 0
	switch {
	case hasVector && f.KNeighbors <= 0:
		return protocol.Violationf(command+".k_neighbors", "a query vector needs k_neighbors > 0")
	case !hasVector && f.KNeighbors > 0:
		return protocol.Violationf(command+".k_neighbors", "k_neighbors needs a query vector")
	case !hasVector && f.KNNFirst != nil:
		return protocol.Violationf(command+".knn_first", "knn_first needs a query vector")
	case hasVector && f.Set == "":
		return protocol.Violationf(command+".set", "similarity search needs a descriptor set")
	}
	if hasVector {
		if err := checkVector(command+".vector", f.Vector); err != nil {
			return err
		}
	}
	if err := f.Engine.validate(command + ".engine"); err != nil {
		return err
	}
	if err := f.Metric.validate(command + ".metric"); err != nil {
		return err
	}
	var params Properties
	if f.Set != "" {
		params.Set("set", String(f.Set))
	}
	if err := f.FindOptions.apply(q, &params, command, KindDescriptor); err != nil {
		return err
	}
	if f.KNeighbors > 0 {
		params.Set("k_neighbors", Int(int64(f.KNeighbors)))
	}
	if f.KNNFirst != nil {
		params.Set("knn_first", Bool(*f.KNNFirst))
	}
	if f.Engine != "" {
		params.Set("engine", String(string(f.Engine)))
	}
	if f.Metric != "" {
		params.Set("metric", String(string(f.Metric)))
	}
	if f.Labels {
		params.Set("labels", Bool(true))
	}
	if f.Distances {
		params.Set("distances", Bool(true))
	}
	params.Set("blobs", Bool(f.Blobs))
	if f.WithLabel != "" {
		params.Set("with_label", String(f.WithLabel))
	}
	if f.IndexedResultsOnly {
		params.Set("indexed_results_only", Bool(true))
	}
	if err := setExtra(&params, command, f.Extra); err != nil {
		return err
	}
	cmd := Command{Name: command, Params: params, ReturnsBlobs: f.Blobs}
	if hasVector {
		cmd.Blobs = [][]byte{EncodeVector(f.Vector)}
	}
	q.emit(cmd)
	return nil
}

// FindDescriptorBatch emits one FindDescriptor per item, in order, so
// response results line up with items one to one. Items without a Set use
// the batch's. Links must name references already bound in the query, so
// the batch emits nothing but its own commands.
type FindDescriptorBatch struct {
	Set   string
	Items []FindDescriptor
}

func (b FindDescriptorBatch) appendTo(q *Query) error {
	if len(b.Items) == 0 {
		return protocol.Violationf("FindDescriptorBatch", "empty batch")
	}
	for i, item := range b.Items {
		if item.Set == "" {
			item.Set = b.Set
		}
		if item.Link != nil {
			if _, ok := item.Link.To.Link(); !ok {
				return protocol.Violationf(fmt.Sprintf("FindDescriptorBatch[%d].is_connected_to", i), "batch links must use RefTo")
			}
		}
		if err := item.appendTo(q); err != nil {
			return fmt.Errorf("FindDescriptorBatch[%d]: %w", i, err)
		}
	}
	return nil
}

// ClassifyDescriptor asks the server to label Vector by its K nearest
// neighbors in Set. Threshold is not sent; Classify applies it to the
// returned distances.
type ClassifyDescriptor struct {
	Ref       int
	Set       string
	Vector    []float32
	K         int
	Threshold *float64
	Extra     Properties
}

const ClassifyCommand = "ClassifyDescriptor"

func (c ClassifyDescriptor) appendTo(q *Query) error {
	if c.Set == "" {
		return protocol.Violationf(ClassifyCommand+".set", "missing descriptor set")
	}
	if c.K <= 0 {
		return protocol.Violationf(ClassifyCommand+".k_neighbors", "k must be positive")
	}
	if err := checkVector(ClassifyCommand+".vector", c.Vector); err != nil {
		return err
	}
	var params Properties
	if c.Ref != 0 {
		if err := q.declare(c.Ref, ClassifyCommand); err != nil {
			return err
		}
		params.Set("_ref", Int(int64(c.Ref)))
	}
	params.Set("set", String(c.Set))
	params.Set("k_neighbors", Int(int64(c.K)))
	if err := setExtra(&params, ClassifyCommand, c.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: ClassifyCommand, Params: params, Blobs: [][]byte{EncodeVector(c.Vector)}})
	return nil
}

// Classify decodes a ClassifyDescriptor result and drops neighbors whose
// distance exceeds threshold. Neighbors without a distance are kept.
func Classify(res Result, threshold *float64) ([]Descriptor, error) {
	all, err := Descriptors(res)
	if err != nil {
		return nil, err
	}
	if threshold == nil {
		return all, nil
	}
	out := make([]Descriptor, 0, len(all))
	for _, d := range all {
		if d.Distance == nil || *d.Distance <= *threshold {
			out = append(out, d)
		}
	}
	return out, nil
}

type UpdateDescriptor struct {
	Target
	Label       string
	Properties  Properties
	RemoveProps []string
}

func (u UpdateDescriptor) appendTo(q *Query) error {
	command := KindDescriptor.Update()
	var params Properties
	if err := u.Target.apply(q, &params, KindDescriptor, command); err != nil {
		return err
	}
	if u.Label != "" {
		params.Set("label", String(u.Label))
	}
	if err := updateChanges(&params, command, u.Properties, u.RemoveProps, u.Label != ""); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}
