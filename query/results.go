package query

import (
	"github.com/gsaluja9/aperturedb-go/protocol"
)

// SortOrder is the direction of a results sort.
type SortOrder string

const (
	Ascending  SortOrder = "ascending"
	Descending SortOrder = "descending"
)

type Sort struct {
	Key   string
	Order SortOrder
}

// Results is the projection of a find command. A nil *Results leaves the
// server's default minimal projection.
type Results struct {
	AllProperties bool
	Properties    []string
	Limit         int
	Count         bool
	Sort          *Sort
	// Extra carries server options this type does not model.
	Extra Properties
}

// AllProperties requests every stored property.
func AllProperties() *Results {
	return &Results{AllProperties: true}
}

// Select requests the named properties only.
func Select(names ...string) *Results {
	return &Results{Properties: append([]string(nil), names...)}
}

func (r *Results) Validate() error {
	if r == nil {
		return nil
	}
	if r.AllProperties && len(r.Properties) > 0 {
		return protocol.Violationf("results", "all_properties and properties are exclusive")
	}
	for i, name := range r.Properties {
		if name == "" {
			return protocol.Violationf("results.properties", "empty name at %d", i)
		}
	}
	if r.Limit < 0 {
		return protocol.Violationf("results.limit", "negative limit %d", r.Limit)
	}
	if r.Sort != nil {
		if r.Sort.Key == "" {
			return protocol.Violationf("results.sort", "missing key")
		}
		switch r.Sort.Order {
		case "", Ascending, Descending:
		default:
			return protocol.Violationf("results.sort", "unknown order %q", string(r.Sort.Order))
		}
	}
	return nil
}

func (r *Results) QueryValue() (Value, error) {
	if err := r.Validate(); err != nil {
		return Value{}, err
	}
	var doc Properties
	if r == nil {
		return Doc(doc), nil
	}
	if r.AllProperties {
		doc.Set("all_properties", Bool(true))
	}
	if len(r.Properties) > 0 {
		doc.Set("properties", Strings(r.Properties...))
	}
	if r.Limit > 0 {
		doc.Set("limit", Int(int64(r.Limit)))
	}
	if r.Count {
		doc.Set("count", Bool(true))
	}
	if r.Sort != nil {
		var s Properties
		s.Set("key", String(r.Sort.Key))
		if r.Sort.Order != "" {
			s.Set("order", String(string(r.Sort.Order)))
		}
		doc.Set("sort", Doc(s))
	}
	for _, kv := range r.Extra {
		if doc.Has(kv.Key) {
			return Value{}, protocol.Violationf("results."+kv.Key, "set both as a field and in Extra")
		}
		doc.Set(kv.Key, kv.Value.Clone())
	}
	if doc == nil {
		doc = Properties{}
	}
	return Doc(doc), nil
}
