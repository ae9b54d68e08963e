package buffer

import "testing"

func Test(t *testing.T) {
	b := New()
	defer b.Free()
	_, _ = b.WriteString("hello")
	_ = b.WriteByte(',')
	_, _ = b.Write([]byte(" world"))

	got := b.String()
	want := "hello, world"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if b.Len() != len(want) {
		t.Errorf("Len: got %d, want %d", b.Len(), len(want))
	}
}

func TestSetLen(t *testing.T) {
	b := New()
	defer b.Free()
	_, _ = b.WriteString(`{"a":1,"b":`)
	pos := b.Len()
	_, _ = b.WriteString(`"dropped"`)
	b.SetLen(pos)
	if got, want := b.String(), `{"a":1,"b":`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Reset: got length %d", b.Len())
	}
}

func TestAlloc(t *testing.T) {
	got := int(testing.AllocsPerRun(5, func() {
		b := New()
		defer b.Free()
		_, _ = b.WriteString("not 1K worth of bytes")
	}))
	if got != 0 {
		t.Errorf("got %d allocs, want 0", got)
	}
}
