package jsonshrink

import (
	"fmt"
	"log/slog"
	"reflect"
	"unicode/utf8"
)

// ReplaceAttrTruncate returns a [HandlerOptions.ReplaceAttr] function that
// shrinks attribute values up front and truncates those still longer than
// maxLogFieldLength bytes.
// AWS Cloudwatch has a limit of 256kb, GCP Stackdriver is 100kb, Azure is 32kb total and 8kb per
// field, docker is 16kb, some Java based systems have a max of 8221.
//
// Long strings and byte slices become a descriptive string. Other values are
// encoded with Stringify using opts; if the result is too long it is
// replaced by an object holding the original length and the truncated text.
func ReplaceAttrTruncate(maxLogFieldLength int, opts *Options) func(groups []string, a slog.Attr) slog.Attr {
	var o Options
	if opts != nil {
		o = *opts
	}
	// A cycle must not cost the whole attribute.
	o.RemoveCircular = true

	return func(_ []string, a slog.Attr) slog.Attr {
		switch a.Value.Kind() {
		case slog.KindString:
			if s := a.Value.String(); len(s) > maxLogFieldLength {
				return slog.String(a.Key, truncatedString(s, maxLogFieldLength))
			}

		case slog.KindAny:
			value := a.Value.Any()
			if value == nil {
				return a
			}
			if _, ok := value.(*slog.Source); ok {
				return a
			}
			// The handler logs plain errors by their message.
			if err, ok := value.(error); ok && !hasHook(reflect.TypeOf(value)) {
				if s := err.Error(); len(s) > maxLogFieldLength {
					return slog.String(a.Key, truncatedString(s, maxLogFieldLength))
				}
				return a
			}

			// []byte's are unreadable, so cast to string
			if b, ok := value.([]byte); ok {
				if len(b) > maxLogFieldLength {
					return slog.String(a.Key, truncatedString(string(b), maxLogFieldLength))
				}
				return slog.String(a.Key, string(b))
			}

			shrunk, err := AppendStringify(nil, value, &o)
			if err != nil {
				// Let the handler report the error.
				return a
			}
			if len(shrunk) > maxLogFieldLength {
				return slog.Any(a.Key, replaced{
					Replaced:  true,
					Length:    len(shrunk),
					Truncated: truncateByBytes(string(shrunk), maxLogFieldLength),
				})
			}
			return slog.Any(a.Key, rawJSON(shrunk))
		}
		return a
	}
}

type replaced struct {
	Replaced  bool   `json:"replaced"`
	Length    int    `json:"length"`
	Truncated string `json:"truncated"`
}

func truncatedString(s string, n int) string {
	return fmt.Sprintf("replaced: true; original_length: %d; truncated: %s", len(s), truncateByBytes(s, n))
}

// truncateByBytes truncates based on the number of bytes, making sure to cut
// the string before the start of any multi-byte unicode characters.
func truncateByBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
