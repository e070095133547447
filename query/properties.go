package query

import "fmt"

// Property is one key/value pair of a document.
type Property struct {
	Key   string
	Value Value
}

// Properties is an ordered document. Keys are unique when built through Set.
type Properties []Property

// Props builds Properties from alternating key/value arguments.
func Props(kv ...any) (Properties, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("query: Props needs key/value pairs, got %d args", len(kv))
	}
	out := make(Properties, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("query: Props key %d is %T, not string", i/2, kv[i])
		}
		if err := out.SetAny(key, kv[i+1]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MustProps is Props for literals known to be valid.
func MustProps(kv ...any) Properties {
	p, err := Props(kv...)
	if err != nil {
		panic(err)
	}
	return p
}

// PropsFromMap converts m with keys in sorted order.
func PropsFromMap(m map[string]any) (Properties, error) {
	v, err := mapValue(m)
	if err != nil {
		return nil, err
	}
	doc, _ := v.AsDoc()
	return doc, nil
}

func (p Properties) index(key string) int {
	for i := range p {
		if p[i].Key == key {
			return i
		}
	}
	return -1
}

func (p Properties) Get(key string) (Value, bool) {
	if i := p.index(key); i >= 0 {
		return p[i].Value, true
	}
	return Value{}, false
}

func (p Properties) Has(key string) bool {
	return p.index(key) >= 0
}

// Set replaces key in place or appends it.
func (p *Properties) Set(key string, v Value) {
	if i := p.index(key); i >= 0 {
		(*p)[i].Value = v
		return
	}
	*p = append(*p, Property{Key: key, Value: v})
}

func (p *Properties) SetAny(key string, x any) error {
	v, err := ValueOf(x)
	if err != nil {
		return fmt.Errorf("query: property %q: %w", key, err)
	}
	p.Set(key, v)
	return nil
}

func (p *Properties) Delete(key string) (Value, bool) {
	i := p.index(key)
	if i < 0 {
		return Value{}, false
	}
	v := (*p)[i].Value
	*p = append((*p)[:i], (*p)[i+1:]...)
	return v, true
}

func (p Properties) Keys() []string {
	out := make([]string, len(p))
	for i := range p {
		out[i] = p[i].Key
	}
	return out
}

func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for i := range p {
		out[i] = Property{Key: p[i].Key, Value: p[i].Value.Clone()}
	}
	return out
}

func (p Properties) Equal(o Properties) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i].Key != o[i].Key || !p[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

// Map flattens p into plain Go values.
func (p Properties) Map() map[string]any {
	m := make(map[string]any, len(p))
	for _, kv := range p {
		m[kv.Key] = kv.Value.Any()
	}
	return m
}

func (p Properties) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return Doc(p).MarshalJSON()
}

func (p *Properties) UnmarshalJSON(b []byte) error {
	v, err := ParseValue(b)
	if err != nil {
		return err
	}
	if v.IsNull() {
		*p = nil
		return nil
	}
	doc, ok := v.AsDoc()
	if !ok {
		return fmt.Errorf("query: properties must be a json object, got %s", v.Kind())
	}
	*p = doc
	return nil
}
