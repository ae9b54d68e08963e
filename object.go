package jsonshrink

// Object is a JSON object that remembers the order in which its members were
// first set. Parse produces *Object for every JSON object so that
// ShrinkJSON preserves the member order of its input.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set sets the value for key. A new key is appended; an existing key keeps
// its position.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key, if present.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the member names in order. The slice must not be modified.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Range calls fn for each member in order until fn returns false.
func (o *Object) Range(fn func(key string, value any) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// undefined is the type of Undefined.
type undefined struct{}

// Undefined marks a value that was not provided. Object members and struct
// fields holding it are written as null, or dropped with
// Options.RemoveUndefined; sequence elements holding it are always null.
var Undefined any = undefined{}

// MarshalJSON writes null, which is how the standard encoder renders an
// absent value inside an array.
func (undefined) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (undefined) String() string {
	return "undefined"
}
