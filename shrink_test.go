package jsonshrink

import (
	"math"
	"math/rand"
	"strconv"
	"testing"
)

func TestShrinkNumber(t *testing.T) {
	for _, test := range []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-10, "-10"},
		{100, "100"}, // 1e2 is not shorter
		{123, "123"},
		{1000, "1e3"},
		{1200, "1200"},
		{1000000, "1e6"},
		{-1000000, "-1e6"},
		{12345000, "12345e3"},
		{123456789, "123456789"},
		{10000000000, "1e10"},
		{1e21, "1e21"},
		{1.5e21, "1.5e21"},
		{1e100, "1e100"},
		{10.5, "10.5"},
		{0.1, "0.1"},
		{0.05, "0.05"},
		{0.009, "9e-3"},
		{0.001, "1e-3"},
		{0.0012, "12e-4"},
		{0.0001, "1e-4"},
		{-0.0001, "-1e-4"},
		{0.000001, "1e-6"},
		{1e-7, "1e-7"},
		{1.5e-7, "1.5e-7"},
		{5e-324, "5e-324"},
		{math.MaxFloat64, "1.7976931348623157e308"},
	} {
		got := ShrinkNumber(test.in)
		if got != test.want {
			t.Errorf("ShrinkNumber(%v) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestShrinkNumberRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	check := func(f float64) {
		t.Helper()
		got := ShrinkNumber(f)
		back, err := strconv.ParseFloat(got, 64)
		if err != nil {
			t.Fatalf("ShrinkNumber(%v) = %q: %v", f, got, err)
		}
		if back != f {
			t.Fatalf("ShrinkNumber(%v) = %q, which parses as %v", f, got, back)
		}
		if native := formatDecimal(f, 64); len(got) > len(native) {
			t.Fatalf("ShrinkNumber(%v) = %q is longer than %q", f, got, native)
		}
	}

	for i := 0; i < 10000; i++ {
		// Arbitrary bit patterns.
		f := math.Float64frombits(rnd.Uint64())
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			check(f)
		}
		// Short decimals across the whole exponent range, where the
		// shortened forms kick in.
		mantissa := float64(rnd.Intn(100000)) * math.Pow(10, float64(rnd.Intn(5)))
		exp := rnd.Intn(60) - 30
		check(mantissa * math.Pow(10, float64(exp)))
		check(-mantissa / math.Pow(10, float64(rnd.Intn(25))))
	}
}

func TestShrinkFloat32(t *testing.T) {
	for _, test := range []struct {
		in   float32
		want string
	}{
		{0.1, "0.1"},
		{1e6, "1e6"},
		{0.0001, "1e-4"},
		{3.4028235e38, "3.4028235e38"},
	} {
		got := string(appendShrunkFloat(nil, float64(test.in), 32))
		if got != test.want {
			t.Errorf("float32 %v: got %q, want %q", test.in, got, test.want)
		}
	}
}

func TestShrinkInt(t *testing.T) {
	for _, test := range []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{1000, "1e3"},
		{-25000, "-25e3"},
		{1 << 53, "9007199254740992"},
		{9000000000000000000, "9e18"},
		{-9000000000000001000, "-9000000000000001e3"},
		{math.MaxInt64, "9223372036854775807"},
	} {
		got := string(appendShrunkInt(nil, test.in))
		if got != test.want {
			t.Errorf("int %d: got %q, want %q", test.in, got, test.want)
		}
	}

	for _, test := range []struct {
		in   uint64
		want string
	}{
		{100, "100"},
		{12345678901234567000, "12345678901234567e3"},
		{math.MaxUint64, "18446744073709551615"},
	} {
		got := string(appendShrunkUint(nil, test.in))
		if got != test.want {
			t.Errorf("uint %d: got %q, want %q", test.in, got, test.want)
		}
	}
}

func TestFormats(t *testing.T) {
	for _, test := range []struct {
		in          float64
		decimal     string
		exponential string
	}{
		{0, "0", "0e0"},
		{math.Copysign(0, -1), "0", "0e0"},
		{5, "5", "5e0"},
		{1e21, "1e+21", "1e21"},
		{1.5e-7, "1.5e-7", "1.5e-7"},
		{0.000001, "0.000001", "1e-6"},
		{123.456, "123.456", "1.23456e2"},
		{-1e-10, "-1e-10", "-1e-10"},
	} {
		if got := formatDecimal(test.in, 64); got != test.decimal {
			t.Errorf("formatDecimal(%v) = %q, want %q", test.in, got, test.decimal)
		}
		if got := formatExponential(test.in, 64); got != test.exponential {
			t.Errorf("formatExponential(%v) = %q, want %q", test.in, got, test.exponential)
		}
	}
}

func TestRoundPrecision(t *testing.T) {
	for _, test := range []struct {
		in     float64
		digits int
		want   float64
	}{
		{1.23456789, 2, 1.23},
		{1.23456789, 5, 1.23457},
		{10.1234, 2, 10.12},
		{1.005, 0, 1},
		{1234.5678, 1, 1234.6},
	} {
		if got := roundPrecision(test.in, test.digits, 64); got != test.want {
			t.Errorf("roundPrecision(%v, %d) = %v, want %v", test.in, test.digits, got, test.want)
		}
	}
}
