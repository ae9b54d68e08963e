package jsonshrink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/veqryn/jsonshrink/internal/buffer"
)

// HandlerOptions are options for a [Handler].
// A zero HandlerOptions consists entirely of default values.
type HandlerOptions struct {
	// AddSource causes the handler to compute the source code position
	// of the log statement and add a SourceKey attribute to the output.
	AddSource bool

	// Level reports the minimum record level that will be logged.
	// If Level is nil, the handler assumes LevelInfo.
	Level slog.Leveler

	// ReplaceAttr is called to rewrite each non-group attribute before it is
	// logged, with the same contract as [slog.HandlerOptions.ReplaceAttr].
	// If ReplaceAttr returns a zero Attr, the attribute is discarded.
	ReplaceAttr func(groups []string, a slog.Attr) slog.Attr

	// ShrinkOptions configure how attribute values are encoded.
	// RemoveCircular is always enabled, so that a value referring to itself
	// loses only the cyclic member instead of the whole record.
	ShrinkOptions Options
}

// Handler is a [log/slog.Handler] that writes Records to an [io.Writer] as
// line-delimited JSON objects, with every number written in its shortest
// form.
type Handler struct {
	opts HandlerOptions
	goas []groupOrAttrs // from WithGroup and WithAttrs, in call order
	mu   *sync.Mutex
	w    io.Writer
}

// groupOrAttrs holds either a group name or a list of attributes.
type groupOrAttrs struct {
	group string
	attrs []slog.Attr
}

// NewHandler creates a [Handler] that writes to w, using the given options.
// If opts is nil, the default options are used.
func NewHandler(w io.Writer, opts *HandlerOptions) *Handler {
	h := &Handler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	h.opts.ShrinkOptions.RemoveCircular = true
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return l >= minLevel
}

// WithAttrs returns a new [Handler] whose attributes consists
// of h's attributes followed by attrs.
func (h *Handler) WithAttrs(as []slog.Attr) slog.Handler {
	if len(as) == 0 {
		return h
	}
	return h.with(groupOrAttrs{attrs: as})
}

// WithGroup returns a new [Handler] that puts any future attributes inside
// the group.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(groupOrAttrs{group: name})
}

func (h *Handler) with(goa groupOrAttrs) *Handler {
	h2 := *h // the mutex pointer is shared among all clones of this handler
	h2.goas = append(slices.Clip(h.goas), goa)
	return &h2
}

// Handle formats its argument [Record] as a JSON object on a single line.
//
// The built-in attributes are "time" (omitted if zero), "level", "source"
// (if AddSource is set) and "msg". Groups that end up empty are omitted.
//
// An encoding failure does not cause Handle to return an error.
// Instead, the error message is written as the attribute's value.
//
// Each call to Handle results in a single serialized call to io.Writer.Write.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	root := NewObject()
	b := recordBuilder{h: h} // built-in attributes are never in a group

	if !r.Time.IsZero() {
		b.add(root, slog.Time(slog.TimeKey, r.Time.Round(0)))
	}
	b.add(root, slog.Any(slog.LevelKey, r.Level))
	if h.opts.AddSource {
		b.add(root, slog.Any(slog.SourceKey, recordSource(r)))
	}
	b.add(root, slog.String(slog.MessageKey, r.Message))

	// Attrs from WithGroup and WithAttrs, then the record's own attrs, each
	// inside the groups opened before them.
	objs := []*Object{root}
	for _, goa := range h.goas {
		cur := objs[len(objs)-1]
		if goa.group != "" {
			child := NewObject()
			cur.Set(goa.group, child)
			objs = append(objs, child)
			b.groups = append(b.groups, goa.group)
			continue
		}
		for _, a := range goa.attrs {
			b.add(cur, a)
		}
	}
	cur := objs[len(objs)-1]
	r.Attrs(func(a slog.Attr) bool {
		b.add(cur, a)
		return true
	})
	for i := len(objs) - 1; i > 0; i-- {
		if objs[i].Len() == 0 {
			objs[i-1].Delete(b.groups[i-1])
		}
	}

	buf := buffer.New()
	defer buf.Free()
	line, err := AppendStringify(*buf, root, &h.opts.ShrinkOptions)
	if err != nil {
		// Values were checked one by one in add, so this is not expected.
		line, _ = AppendStringify((*buf)[:0], fmt.Sprintf("!ERROR:%v", err), nil)
	}
	*buf = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(*buf)
	return err
}

// recordSource returns a Source for the log event.
// If the Record was created without the necessary information,
// or if the location is unavailable, it returns a non-nil *Source
// with zero fields.
func recordSource(r slog.Record) *slog.Source {
	fs := runtime.CallersFrames([]uintptr{r.PC})
	f, _ := fs.Next()
	return &slog.Source{
		Function: f.Function,
		File:     f.File,
		Line:     f.Line,
	}
}

// recordBuilder converts attributes into Object members.
type recordBuilder struct {
	h      *Handler
	groups []string // currently open groups, for ReplaceAttr
}

// add resolves and replaces a, then sets it on obj.
// It reports whether a member was set.
func (b *recordBuilder) add(obj *Object, a slog.Attr) bool {
	a.Value = a.Value.Resolve()
	if rep := b.h.opts.ReplaceAttr; rep != nil && a.Value.Kind() != slog.KindGroup {
		a = rep(b.groups, a)
		a.Value = a.Value.Resolve()
	}
	// Elide empty Attrs.
	if a.Key == "" && a.Value.Equal(slog.Value{}) {
		return false
	}
	if src, ok := a.Value.Any().(*slog.Source); ok && a.Value.Kind() == slog.KindAny {
		a.Value = sourceGroup(src)
	}

	if a.Value.Kind() != slog.KindGroup {
		obj.Set(a.Key, b.value(a.Value))
		return true
	}

	attrs := a.Value.Group()
	if len(attrs) == 0 {
		return false
	}
	// Inline a group with an empty key.
	if a.Key == "" {
		added := false
		for _, ga := range attrs {
			if b.add(obj, ga) {
				added = true
			}
		}
		return added
	}
	child := NewObject()
	b.groups = append(b.groups, a.Key)
	for _, ga := range attrs {
		b.add(child, ga)
	}
	b.groups = b.groups[:len(b.groups)-1]
	if child.Len() == 0 {
		return false
	}
	obj.Set(a.Key, child)
	return true
}

// value converts a resolved, non-group slog.Value into something Stringify
// encodes. Any values are encoded up front so that a failure only affects
// their own attribute.
func (b *recordBuilder) value(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	}

	a := v.Any()
	if a == nil {
		return nil
	}
	if lvl, ok := a.(slog.Level); ok {
		return lvl.String()
	}
	if err, ok := a.(error); ok && !hasHook(reflect.TypeOf(a)) {
		return err.Error()
	}
	raw, err := b.encode(a)
	if err != nil {
		return fmt.Sprintf("!ERROR:%v", err)
	}
	return raw
}

func (b *recordBuilder) encode(a any) (raw rawJSON, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	out, err := AppendStringify(nil, a, &b.h.opts.ShrinkOptions)
	if err != nil {
		return nil, err
	}
	return rawJSON(out), nil
}

// sourceGroup returns the non-zero fields of s as a group value.
func sourceGroup(s *slog.Source) slog.Value {
	var as []slog.Attr
	if s.Function != "" {
		as = append(as, slog.String("function", s.Function))
	}
	if s.File != "" {
		as = append(as, slog.String("file", s.File))
	}
	if s.Line != 0 {
		as = append(as, slog.Int("line", s.Line))
	}
	return slog.GroupValue(as...)
}
