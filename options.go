package jsonshrink

import "errors"

// Options configure Stringify and the functions built on it.
// A nil *Options, or a zero Options, produces output with the same meaning
// as the standard encoding.
type Options struct {
	// RemoveUndefined drops object members whose value is Undefined instead
	// of writing them as null.
	RemoveUndefined bool

	// RemoveNull drops object members whose value is null.
	RemoveNull bool

	// Precision, if not nil, rounds every floating point number to that many
	// fractional digits before it is shrunk. Use Digits to set it.
	// A negative value disables rounding, like nil.
	Precision *int

	// RemoveCircular drops object members whose value refers back to one of
	// its ancestors, instead of failing with ErrCircularStructure.
	// Such elements of a sequence are written as null.
	RemoveCircular bool
}

// Digits returns a pointer to n, for use as Options.Precision.
func Digits(n int) *int {
	return &n
}

// Lossy reports whether o changes the meaning of the output compared to the
// standard encoding. RemoveUndefined is not lossy: the standard encoding
// omits undefined members as well.
func (o *Options) Lossy() bool {
	return o != nil && ((o.Precision != nil && *o.Precision >= 0) || o.RemoveNull)
}

var (
	// ErrUnsupportedValue is returned for values that have no JSON
	// representation, such as arbitrary precision numbers, complex numbers,
	// channels and functions.
	ErrUnsupportedValue = errors.New("jsonshrink: unsupported value")

	// ErrCircularStructure is returned when a value contains itself and
	// Options.RemoveCircular is not set.
	ErrCircularStructure = errors.New("jsonshrink: converting circular structure to JSON")
)

// Serializable is implemented by values that provide a replacement for
// themselves, like a JavaScript toJSON method. The replacement is serialized
// instead of the value, under the same rules.
type Serializable interface {
	SerializedForm() any
}
