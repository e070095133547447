package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// AddDescriptorSet creates a named vector index.
type AddDescriptorSet struct {
	Ref        int
	Name       string
	Dimensions int
	Metric     Metric
	Engine     Engine
	Properties Properties
	Extra      Properties
}

func (a AddDescriptorSet) appendTo(q *Query) error {
	command := KindDescriptorSet.Add()
	switch {
	case a.Name == "":
		return protocol.Violationf(command+".name", "missing name")
	case a.Dimensions <= 0:
		return protocol.Violationf(command+".dimensions", "dimensions must be positive, got %d", a.Dimensions)
	}
	if err := a.Metric.validate(command + ".metric"); err != nil {
		return err
	}
	if err := a.Engine.validate(command + ".engine"); err != nil {
		return err
	}
	var params Properties
	if a.Ref != 0 {
		if err := q.declare(a.Ref, command); err != nil {
			return err
		}
		params.Set("_ref", Int(int64(a.Ref)))
	}
	params.Set("name", String(a.Name))
	params.Set("dimensions", Int(int64(a.Dimensions)))
	if a.Metric != "" {
		params.Set("metric", String(string(a.Metric)))
	}
	if a.Engine != "" {
		params.Set("engine", String(string(a.Engine)))
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

type FindDescriptorSet struct {
	FindOptions
	// WithName restricts the match to one set.
	WithName string
	Counts   bool
}

func (f FindDescriptorSet) appendTo(q *Query) error {
	command := KindDescriptorSet.Find()
	var params Properties
	if f.WithName != "" {
		params.Set("with_name", String(f.WithName))
	}
	if err := f.FindOptions.apply(q, &params, command, KindDescriptorSet); err != nil {
		return err
	}
	if f.Counts {
		params.Set("counts", Bool(true))
	}
	if err := setExtra(&params, command, f.Extra); err != nil {
		return err
	}
	q.emit(Command{Name: command, Params: params})
	return nil
}
