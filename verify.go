package jsonshrink

import (
	"bytes"
	"math"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// standardOptions configure the standard encoder that shrunk output is
// checked against. *Object is written in member order, skipping Undefined
// members, a Serializable is written through its hook, and NaN and the
// infinities are null.
var standardOptions = json.JoinOptions(
	json.Deterministic(true),
	jsontext.AllowInvalidUTF8(true),
	jsontext.EscapeForHTML(false),
	jsontext.EscapeForJS(true),
	json.WithMarshalers(json.JoinMarshalers(
		json.MarshalToFunc(func(enc *jsontext.Encoder, o *Object) error {
			if o == nil {
				return enc.WriteToken(jsontext.Null)
			}
			if err := enc.WriteToken(jsontext.ObjectStart); err != nil {
				return err
			}
			for _, k := range o.keys {
				v := o.values[k]
				if v == Undefined {
					continue
				}
				if err := enc.WriteToken(jsontext.String(k)); err != nil {
					return err
				}
				if err := json.MarshalEncode(enc, v); err != nil {
					return err
				}
			}
			return enc.WriteToken(jsontext.ObjectEnd)
		}),
		json.MarshalToFunc(func(enc *jsontext.Encoder, s Serializable) error {
			return json.MarshalEncode(enc, s.SerializedForm())
		}),
		json.MarshalToFunc(func(enc *jsontext.Encoder, f float64) error {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return enc.WriteToken(jsontext.Null)
			}
			return json.SkipFunc
		}),
		json.MarshalToFunc(func(enc *jsontext.Encoder, f float32) error {
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				return enc.WriteToken(jsontext.Null)
			}
			return json.SkipFunc
		}),
	)),
)

// standardMarshal returns the standard encoding of v.
func standardMarshal(v any) ([]byte, error) {
	return json.Marshal(v, standardOptions)
}

// VerifiedStringify is like Stringify, but checks the result against the
// standard encoding of v when opts are not lossy. If the shrunk text does not
// decode to the same value, or is longer, the standard encoding is returned
// instead. Lossy options skip the check.
//
// It fails if either encoding fails.
func VerifiedStringify(v any, opts *Options) (string, error) {
	shrunk, err := Stringify(v, opts)
	if err != nil {
		return "", err
	}
	if opts.Lossy() {
		return shrunk, nil
	}

	native, err := standardMarshal(v)
	if err != nil {
		return "", err
	}
	if len(shrunk) > len(native) {
		return string(native), nil
	}
	parsed, err := Parse([]byte(shrunk))
	if err != nil {
		return string(native), nil
	}
	again, err := standardMarshal(parsed)
	if err != nil || !bytes.Equal(again, native) {
		return string(native), nil
	}
	return shrunk, nil
}
