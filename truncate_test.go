package jsonshrink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestReplaceAttrTruncate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	buf := &bytes.Buffer{}
	truncate := ReplaceAttrTruncate(20, nil)

	logger := slog.New(NewHandler(buf, &HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return truncate(groups, a)
		},
	}))

	alphabet := "abcdefghijklmnopqrstuvwxyz"
	logger.WarnContext(ctx, "m",
		slog.Any("nil", nil),
		slog.String("s", alphabet),
		slog.Any("b", []byte("hi")),
		slog.Any("long bytes", []byte(alphabet)),
		slog.Any("v", struct {
			Value string `json:"value"`
		}{alphabet}),
		slog.Any("n", map[string]any{"n": 1000000}),
		slog.Any("err", errors.New("oops")),
		slog.Any("long err", errors.New(alphabet)),
		slog.Int("i", 5000),
	)

	want := `{"level":"WARN","msg":"m","nil":null,` +
		`"s":"replaced: true; original_length: 26; truncated: abcdefghijklmnopqrst",` +
		`"b":"hi",` +
		`"long bytes":"replaced: true; original_length: 26; truncated: abcdefghijklmnopqrst",` +
		`"v":{"replaced":true,"length":38,"truncated":"{\"value\":\"abcdefghij"},` +
		`"n":{"n":1e6},` +
		`"err":"oops",` +
		`"long err":"replaced: true; original_length: 26; truncated: abcdefghijklmnopqrst",` +
		`"i":5e3}`
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Errorf("\ngot  %s\nwant %s", got, want)
	}
}

func TestReplaceAttrTruncateCircular(t *testing.T) {
	self := NewObject()
	self.Set("a", 1000)
	self.Set("self", self)

	a := ReplaceAttrTruncate(100, nil)(nil, slog.Any("v", self))
	raw, ok := a.Value.Any().(rawJSON)
	if !ok {
		t.Fatalf("got %T, want rawJSON", a.Value.Any())
	}
	if string(raw) != `{"a":1e3}` {
		t.Errorf("got %s", raw)
	}
}

func TestTruncateByBytes(t *testing.T) {
	for _, test := range []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abc", 3, "abc"},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
		{"こんにちは", 4, "こ"},
		{"こんにちは", 6, "こん"},
		{"aこ", 2, "a"},
	} {
		if got := truncateByBytes(test.in, test.n); got != test.want {
			t.Errorf("truncateByBytes(%q, %d) = %q, want %q", test.in, test.n, got, test.want)
		}
	}
}
