package jsonshrink

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/go-json-experiment/json"
	"github.com/veqryn/jsonshrink/internal/buffer"
)

// Stringify returns the JSON encoding of v, with every number written in its
// shortest form. opts may be nil.
//
// Values are encoded in this order of precedence:
//   - nil, nil pointers, nil interfaces and Undefined are null.
//   - Arbitrary precision numbers (math/big), complex numbers, channels,
//     functions and unsafe pointers fail with ErrUnsupportedValue.
//   - A Serializable is replaced by its SerializedForm.
//   - A json.Marshaler or json.MarshalerTo is marshaled, parsed back, and
//     shrunk. An encoding.TextMarshaler is a string.
//   - Numbers are shrunk; NaN and infinities are null. A time.Duration is
//     its String form.
//   - Booleans and strings as usual; byte slices as base64 strings.
//   - Slices and arrays are arrays; nil slices are [].
//   - *Object, maps and structs are objects. Maps are sorted by key. Struct
//     fields follow the `json:"name,omitempty,omitzero"` tag and embedded
//     structs are inlined.
//
// A value that contains itself fails with ErrCircularStructure, unless
// opts.RemoveCircular is set.
func Stringify(v any, opts *Options) (string, error) {
	buf := buffer.New()
	defer buf.Free()
	if err := newEncodeState(buf, opts).appendTop(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// AppendStringify appends the output of Stringify to dst.
// On error dst is returned unchanged.
func AppendStringify(dst []byte, v any, opts *Options) ([]byte, error) {
	n := len(dst)
	buf := (*buffer.Buffer)(&dst)
	if err := newEncodeState(buf, opts).appendTop(v); err != nil {
		return dst[:n], err
	}
	return *buf, nil
}

// encodeState holds state for a single call to Stringify.
// It is never shared between calls.
type encodeState struct {
	buf  *buffer.Buffer
	opts Options

	// stack holds the identity of every composite value on the current
	// path from the root.
	stack []visit
}

// visit identifies a pointer, map or slice. Slices sharing a backing array
// are only the same value when their lengths match too. A hooked value
// without an address is identified by its comparable value.
type visit struct {
	ptr unsafe.Pointer
	typ reflect.Type
	len int
	val any
}

func newEncodeState(buf *buffer.Buffer, opts *Options) *encodeState {
	s := &encodeState{buf: buf}
	if opts != nil {
		s.opts = *opts
	}
	return s
}

func (s *encodeState) appendTop(v any) error {
	written, err := s.appendValue(reflect.ValueOf(v))
	if err != nil {
		return err
	}
	if !written {
		_, _ = s.buf.WriteString("null")
	}
	return nil
}

var (
	undefinedType    = reflect.TypeOf(undefined{})
	objectType       = reflect.TypeOf((*Object)(nil))
	rawJSONType      = reflect.TypeOf(rawJSON(nil))
	durationType     = reflect.TypeOf(time.Duration(0))
	bigIntType       = reflect.TypeOf(big.Int{})
	bigFloatType     = reflect.TypeOf(big.Float{})
	bigRatType       = reflect.TypeOf(big.Rat{})
	serializableType = reflect.TypeOf((*Serializable)(nil)).Elem()
	marshalerType    = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	marshalerToType  = reflect.TypeOf((*json.MarshalerTo)(nil)).Elem()
	textMarshalType  = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// rawJSON is already encoded, already shrunk JSON that is written verbatim.
type rawJSON []byte

// appendValue appends the encoding of v. It reports false, having written
// nothing, when v closes a cycle and RemoveCircular is set.
func (s *encodeState) appendValue(v reflect.Value) (bool, error) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() {
		_, _ = s.buf.WriteString("null")
		return true, nil
	}

	t := v.Type()
	if unsupported(t) {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedValue, t)
	}
	switch {
	case t == undefinedType:
		_, _ = s.buf.WriteString("null")
		return true, nil
	case t == rawJSONType:
		_, _ = s.buf.Write(v.Bytes())
		return true, nil
	case v.Kind() == reflect.Pointer && v.IsNil():
		_, _ = s.buf.WriteString("null")
		return true, nil
	}

	if key, ok := identity(v); ok {
		if slices.Contains(s.stack, key) {
			return s.circular(t)
		}
		s.stack = append(s.stack, key)
		defer func() { s.stack = s.stack[:len(s.stack)-1] }()
	}

	if hooked, ok, err := s.callHook(v); ok || err != nil {
		if err != nil {
			return false, err
		}
		if _, tracked := identity(v); !tracked {
			key, track, cyclic := hookVisit(v, hooked)
			if cyclic || (track && slices.Contains(s.stack, key)) {
				return s.circular(t)
			}
			if track {
				s.stack = append(s.stack, key)
				defer func() { s.stack = s.stack[:len(s.stack)-1] }()
			}
		}
		return s.appendValue(hooked)
	}

	switch v.Kind() {
	case reflect.Bool:
		*s.buf = strconv.AppendBool(*s.buf, v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t == durationType {
			s.appendString(time.Duration(v.Int()).String())
		} else {
			*s.buf = appendShrunkInt(*s.buf, v.Int())
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		*s.buf = appendShrunkUint(*s.buf, v.Uint())
	case reflect.Float32:
		s.appendFloat(v.Float(), 32)
	case reflect.Float64:
		s.appendFloat(v.Float(), 64)
	case reflect.String:
		s.appendString(v.String())
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !hasHook(t.Elem()) {
			s.appendString(base64.StdEncoding.EncodeToString(v.Bytes()))
			break
		}
		return true, s.appendArray(v)
	case reflect.Array:
		return true, s.appendArray(v)
	case reflect.Map:
		return true, s.appendMap(v)
	case reflect.Struct:
		return true, s.appendStruct(v)
	case reflect.Pointer:
		if t == objectType && v.CanInterface() {
			return true, s.appendObject(v.Interface().(*Object))
		}
		return s.appendValue(v.Elem())
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedValue, t)
	}
	return true, nil
}

// circular handles a value that closes a cycle.
func (s *encodeState) circular(t reflect.Type) (bool, error) {
	if s.opts.RemoveCircular {
		return false, nil
	}
	return false, fmt.Errorf("%w: %s", ErrCircularStructure, t)
}

// unsupported reports whether values of t can never be encoded.
func unsupported(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case bigIntType, bigFloatType, bigRatType:
		return true
	}
	switch t.Kind() {
	case reflect.Complex64, reflect.Complex128, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	}
	return false
}

// identity returns the visit key of v if v can be part of a cycle.
func identity(v reflect.Value) (visit, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return visit{}, false
		}
		return visit{ptr: v.UnsafePointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return visit{}, false
		}
		return visit{ptr: v.UnsafePointer(), typ: v.Type(), len: v.Len()}, true
	}
	return visit{}, false
}

// hookVisit identifies a hooked value that has no address. Comparable values
// are tracked by value. Other values are only caught when the hook returns
// their own type again.
func hookVisit(v, hooked reflect.Value) (key visit, track, cyclic bool) {
	if v.Comparable() {
		return visit{typ: v.Type(), val: v.Interface()}, true, false
	}
	return visit{}, false, hooked.IsValid() && hooked.Type() == v.Type()
}

func hasHook(t reflect.Type) bool {
	for _, h := range []reflect.Type{serializableType, marshalerType, marshalerToType, textMarshalType} {
		if t.Implements(h) || reflect.PointerTo(t).Implements(h) {
			return true
		}
	}
	return false
}

// callHook returns the replacement for v if v, or its address, has a
// serialization hook.
func (s *encodeState) callHook(v reflect.Value) (reflect.Value, bool, error) {
	if !v.CanInterface() {
		return reflect.Value{}, false, nil
	}
	var hooked any
	switch {
	case v.Type().Implements(serializableType) || v.Type().Implements(marshalerType) ||
		v.Type().Implements(marshalerToType) || v.Type().Implements(textMarshalType):
		hooked = v.Interface()
	case v.CanAddr() && hasHook(v.Type()):
		hooked = v.Addr().Interface()
	default:
		return reflect.Value{}, false, nil
	}

	switch h := hooked.(type) {
	case Serializable:
		return reflect.ValueOf(h.SerializedForm()), true, nil
	case json.Marshaler:
		b, err := h.MarshalJSON()
		if err != nil {
			return reflect.Value{}, false, fmt.Errorf("jsonshrink: calling MarshalJSON for type %T: %w", h, err)
		}
		return s.parseHooked(h, b)
	case json.MarshalerTo:
		b, err := json.Marshal(h)
		if err != nil {
			return reflect.Value{}, false, fmt.Errorf("jsonshrink: calling MarshalJSONTo for type %T: %w", h, err)
		}
		return s.parseHooked(h, b)
	case encoding.TextMarshaler:
		b, err := h.MarshalText()
		if err != nil {
			return reflect.Value{}, false, fmt.Errorf("jsonshrink: calling MarshalText for type %T: %w", h, err)
		}
		return reflect.ValueOf(string(b)), true, nil
	}
	return reflect.Value{}, false, nil
}

func (s *encodeState) parseHooked(h any, b []byte) (reflect.Value, bool, error) {
	parsed, err := Parse(b)
	if err != nil {
		return reflect.Value{}, false, fmt.Errorf("jsonshrink: invalid JSON from type %T: %w", h, err)
	}
	return reflect.ValueOf(parsed), true, nil
}

func (s *encodeState) appendFloat(f float64, bits int) {
	if s.opts.Precision != nil {
		f = roundPrecision(f, *s.opts.Precision, bits)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		_, _ = s.buf.WriteString("null")
		return
	}
	*s.buf = appendShrunkFloat(*s.buf, f, bits)
}

func (s *encodeState) appendString(str string) {
	*s.buf = appendQuoted(*s.buf, str)
}

func (s *encodeState) appendArray(v reflect.Value) error {
	_ = s.buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			_ = s.buf.WriteByte(',')
		}
		written, err := s.appendValue(v.Index(i))
		if err != nil {
			return err
		}
		// Arrays cannot have missing elements.
		if !written {
			_, _ = s.buf.WriteString("null")
		}
	}
	_ = s.buf.WriteByte(']')
	return nil
}

// memberWriter writes the members of one object.
type memberWriter struct {
	s     *encodeState
	empty bool
}

func (s *encodeState) openObject() *memberWriter {
	_ = s.buf.WriteByte('{')
	return &memberWriter{s: s, empty: true}
}

func (w *memberWriter) close() {
	_ = w.s.buf.WriteByte('}')
}

// member writes "key":value, or nothing if the options drop it.
// omitEmpty also drops values encoded as null, "", {} or [].
func (w *memberWriter) member(key string, v reflect.Value, omitEmpty bool) error {
	s := w.s
	if s.opts.RemoveUndefined && isUndefined(v) {
		return nil
	}
	if s.opts.RemoveNull && isNull(v) {
		return nil
	}

	pos := s.buf.Len()
	if !w.empty {
		_ = s.buf.WriteByte(',')
	}
	s.appendString(key)
	_ = s.buf.WriteByte(':')
	start := s.buf.Len()
	written, err := s.appendValue(v)
	if err != nil {
		return err
	}
	if !written || (omitEmpty && isEmptyJSON((*s.buf)[start:])) {
		s.buf.SetLen(pos)
		return nil
	}
	w.empty = false
	return nil
}

func (s *encodeState) appendObject(o *Object) error {
	w := s.openObject()
	for _, k := range o.keys {
		if err := w.member(k, reflect.ValueOf(o.values[k]), false); err != nil {
			return err
		}
	}
	w.close()
	return nil
}

func (s *encodeState) appendMap(v reflect.Value) error {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: key, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	w := s.openObject()
	for _, e := range entries {
		if err := w.member(e.key, e.val, false); err != nil {
			return err
		}
	}
	w.close()
	return nil
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.CanInterface() {
		if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
			if k.Kind() == reflect.Pointer && k.IsNil() {
				return "", nil
			}
			b, err := tm.MarshalText()
			if err != nil {
				return "", fmt.Errorf("jsonshrink: calling MarshalText for map key %s: %w", k.Type(), err)
			}
			return string(b), nil
		}
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("%w: map key %s", ErrUnsupportedValue, k.Type())
}

func (s *encodeState) appendStruct(v reflect.Value) error {
	w := s.openObject()
	for _, f := range cachedFields(v.Type()) {
		fv, err := v.FieldByIndexErr(f.index)
		if err != nil {
			// Nil embedded pointer.
			continue
		}
		if f.omitZero && fv.IsZero() {
			continue
		}
		if err := w.member(f.name, fv, f.omitEmpty); err != nil {
			return err
		}
	}
	w.close()
	return nil
}

func isUndefined(v reflect.Value) bool {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v.IsValid() && v.Type() == undefinedType
}

// isNull reports whether v is encoded as a literal null.
func isNull(v reflect.Value) bool {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	return !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil())
}

func isEmptyJSON(b []byte) bool {
	switch string(b) {
	case "null", `""`, "{}", "[]":
		return true
	}
	return false
}

// field is an encoded struct field.
type field struct {
	name      string
	index     []int
	omitEmpty bool
	omitZero  bool
}

var fieldCache sync.Map // map[reflect.Type][]field

func cachedFields(t reflect.Type) []field {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]field)
	}
	f, _ := fieldCache.LoadOrStore(t, typeFields(t))
	return f.([]field)
}

// typeFields returns the fields to encode for struct type t, in declaration
// order. Embedded structs without a tag name are inlined; when names
// collide, the shallowest field wins.
func typeFields(t reflect.Type) []field {
	type embedded struct {
		typ   reflect.Type
		index []int
	}

	var fields []field
	names := make(map[string]bool)
	seenTypes := make(map[reflect.Type]bool)
	for current := []embedded{{typ: t}}; len(current) > 0; {
		var next []embedded
		var level []field
		for _, e := range current {
			if seenTypes[e.typ] {
				continue
			}
			seenTypes[e.typ] = true
			for i := 0; i < e.typ.NumField(); i++ {
				sf := e.typ.Field(i)
				tag := sf.Tag.Get("json")
				if tag == "-" {
					continue
				}
				name, flags, _ := strings.Cut(tag, ",")
				index := append(slices.Clip(e.index), i)

				if sf.Anonymous && name == "" {
					ft := sf.Type
					if ft.Kind() == reflect.Pointer {
						ft = ft.Elem()
					}
					if ft.Kind() == reflect.Struct {
						next = append(next, embedded{typ: ft, index: index})
						continue
					}
				}
				if !sf.IsExported() {
					continue
				}
				if name == "" {
					name = sf.Name
				}
				f := field{name: name, index: index}
				for _, flag := range strings.Split(flags, ",") {
					switch flag {
					case "omitempty":
						f.omitEmpty = true
					case "omitzero":
						f.omitZero = true
					}
				}
				level = append(level, f)
			}
		}
		for _, f := range level {
			if !names[f.name] {
				names[f.name] = true
				fields = append(fields, f)
			}
		}
		current = next
	}

	slices.SortFunc(fields, func(a, b field) int {
		return slices.Compare(a.index, b.index)
	})
	return fields
}
