package jsonshrink

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// ShrinkNumber returns the shortest JSON number literal that parses back to f.
//
// It chooses between the shortest round-trip decimal form (as used by
// JSON.stringify), the exponential form with the redundant '+' removed, and a
// shortened exponential form that moves trailing or leading zeros into the
// exponent, such as 1e6 for 1000000 or 1e-4 for 0.0001.
// Ties favor the decimal form. f must be finite.
func ShrinkNumber(f float64) string {
	return string(appendShrunkFloat(nil, f, 64))
}

// appendShrunkFloat appends the shortest literal for f, formatted with the
// precision of bits (32 or 64).
func appendShrunkFloat(dst []byte, f float64, bits int) []byte {
	exponential := formatExponential(f, bits)
	decimal := formatDecimal(f, bits)

	shorter := shortenedForm(f, decimal)
	if len(shorter) <= len(exponential) {
		if parsed, err := strconv.ParseFloat(shorter, bits); err == nil && parsed == f {
			exponential = shorter
		} else {
			slog.Warn("jsonshrink: shortened number failed to round-trip",
				slog.String("number", decimal), slog.String("shortened", shorter))
		}
	} else {
		slog.Debug("jsonshrink: shortened number was longer than the exponential form",
			slog.String("number", decimal), slog.String("exponential", exponential))
	}

	if len(exponential) < len(decimal) {
		return append(dst, exponential...)
	}
	return append(dst, decimal...)
}

// formatDecimal returns the shortest round-trip representation of f, using
// exponential notation only outside [1e-6, 1e21), with the exponent written
// without leading zeros (1e+21, 1e-7). Negative zero is written as 0.
func formatDecimal(f float64, bits int) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	format := byte('f')
	if bits == 64 {
		if abs < 1e-6 || abs >= 1e21 {
			format = 'e'
		}
	} else if float32(abs) < 1e-6 || float32(abs) >= 1e21 {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, bits)
	if format == 'e' {
		s = trimExponentZeros(s)
	}
	return s
}

// formatExponential returns f in shortest exponential notation, without the
// '+' sign and leading zeros of the exponent (1.5e21, 1e-4, 5e0).
func formatExponential(f float64, bits int) string {
	if f == 0 {
		return "0e0"
	}
	s := trimExponentZeros(strconv.FormatFloat(f, 'e', -1, bits))
	return strings.Replace(s, "+", "", 1)
}

// trimExponentZeros rewrites strconv's two-digit exponents (e+06, e-07) to
// their minimal width (e+6, e-7).
func trimExponentZeros(s string) string {
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 >= len(s) {
		return s
	}
	digits := i + 2 // skip 'e' and the sign
	j := digits
	for j < len(s)-1 && s[j] == '0' {
		j++
	}
	if j == digits {
		return s
	}
	return s[:digits] + s[j:]
}

// shortenedForm moves runs of zeros in the decimal form into the exponent.
// It returns decimal unchanged when that would not save anything.
func shortenedForm(f float64, decimal string) string {
	if f == 0 {
		if math.Signbit(f) {
			return "-0"
		}
		return "0"
	}
	if strings.IndexByte(decimal, 'e') >= 0 {
		return strings.Replace(decimal, "+", "", 1)
	}

	sign, digits := "", decimal
	if digits[0] == '-' {
		sign, digits = "-", digits[1:]
	}

	abs := math.Abs(f)
	switch {
	case abs >= 1e3:
		// One trailing zero costs a byte, two break even.
		trailing := len(digits) - len(strings.TrimRight(digits, "0"))
		if trailing > 2 {
			return sign + digits[:len(digits)-trailing] + "e" + strconv.Itoa(trailing)
		}
	case abs <= 9e-3:
		// digits is "0.<zeros><rest>" here.
		point := strings.IndexByte(digits, '.')
		if point < 0 {
			return decimal
		}
		fraction := digits[point+1:]
		rest := strings.TrimLeft(fraction, "0")
		leading := len(fraction) - len(rest)
		if leading > 1 {
			return sign + rest + "e-" + strconv.Itoa(leading+len(rest))
		}
	}
	return decimal
}

// appendShrunkInt appends the literal for an integer that may not be exactly
// representable as a float64. Integers within ±2^53 share the float path.
func appendShrunkInt(dst []byte, n int64) []byte {
	if n >= -maxExactInt && n <= maxExactInt {
		return appendShrunkFloat(dst, float64(n), 64)
	}
	return appendTrailingZeros(dst, strconv.FormatInt(n, 10))
}

func appendShrunkUint(dst []byte, n uint64) []byte {
	if n <= maxExactInt {
		return appendShrunkFloat(dst, float64(n), 64)
	}
	return appendTrailingZeros(dst, strconv.FormatUint(n, 10))
}

const maxExactInt = 1 << 53

// appendTrailingZeros rewrites the exact decimal text of an integer as
// <digits>e<zeros> when it has more than two trailing zeros.
func appendTrailingZeros(dst []byte, s string) []byte {
	trimmed := strings.TrimRight(s, "0")
	if n := len(s) - len(trimmed); n > 2 {
		dst = append(dst, trimmed...)
		dst = append(dst, 'e')
		return strconv.AppendInt(dst, int64(n), 10)
	}
	return append(dst, s...)
}

// roundPrecision rounds f to digits fractional digits, re-parsing the fixed
// notation so the result is the float nearest to the rounded decimal.
// A negative digits leaves f unchanged.
func roundPrecision(f float64, digits, bits int) float64 {
	if digits < 0 {
		return f
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', digits, bits), bits)
	if err != nil {
		return f
	}
	return rounded
}
