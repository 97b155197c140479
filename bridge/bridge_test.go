package bridge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/iancoleman/orderedmap"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/eventloop"
	"github.com/wippyai/jsbridge/value"
)

func newBridge(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	b, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func mustEval(t *testing.T, b *Bridge, src string) any {
	t.Helper()
	v, err := b.Eval(context.Background(), src)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return v
}

// entries flattens an ordered map so it can be diffed.
func entries(t *testing.T, v any) [][2]any {
	t.Helper()
	m, ok := v.(*orderedmap.OrderedMap)
	if !ok {
		t.Fatalf("got %T, want *orderedmap.OrderedMap", v)
	}
	var out [][2]any
	for _, k := range m.Keys() {
		item, _ := m.Get(k)
		out = append(out, [2]any{k, item})
	}
	return out
}

var ignoreEngineFields = cmpopts.IgnoreFields(errors.GuestError{}, "Cause", "Stack")

func TestEval_Scenarios(t *testing.T) {
	b := newBridge(t)

	if diff := cmp.Diff(any(int64(3)), mustEval(t, b, "1 + 2")); diff != "" {
		t.Errorf("1 + 2 mismatch (-want +got):\n%s", diff)
	}

	want := [][2]any{{"a", int64(1)}, {"b", int64(2)}}
	if diff := cmp.Diff(want, entries(t, mustEval(t, b, "({a: 1, b: 2})"))); diff != "" {
		t.Errorf("object mismatch (-want +got):\n%s", diff)
	}
}

func TestEval_SharedRealm(t *testing.T) {
	b := newBridge(t)
	mustEval(t, b, "var counter = 40")
	mustEval(t, b, "counter += 2")
	if got := mustEval(t, b, "counter"); got != int64(42) {
		t.Errorf("counter = %v, want 42", got)
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *errors.GuestError
	}{
		{
			name: "thrown error",
			src:  "throw new RangeError('boom')",
			want: &errors.GuestError{Phase: errors.PhaseRuntime, Name: "RangeError", Message: "boom"},
		},
		{
			name: "thrown string",
			src:  "throw 'plain'",
			want: &errors.GuestError{Phase: errors.PhaseRuntime, Message: "plain"},
		},
		{
			name: "reference error",
			src:  "missing()",
			want: &errors.GuestError{Phase: errors.PhaseRuntime, Name: "ReferenceError", Message: "missing is not defined"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBridge(t)
			_, err := b.Eval(context.Background(), tt.src)
			var gerr *errors.GuestError
			if !errors.As(err, &gerr) {
				t.Fatalf("err = %v, want *errors.GuestError", err)
			}
			if diff := cmp.Diff(tt.want, gerr, ignoreEngineFields); diff != "" {
				t.Errorf("guest error mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEval_CompileError(t *testing.T) {
	b := newBridge(t)
	_, err := b.Eval(context.Background(), "1 +")
	var gerr *errors.GuestError
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *errors.GuestError", err)
	}
	if gerr.Phase != errors.PhaseCompile || gerr.Name != "SyntaxError" {
		t.Errorf("got phase %q name %q, want compile SyntaxError", gerr.Phase, gerr.Name)
	}
	if gerr.Message == "" {
		t.Error("empty syntax error message")
	}
}

func TestEval_Stack(t *testing.T) {
	b := newBridge(t, WithConfig(Config{SourceName: "script.js"}))
	_, err := b.Eval(context.Background(), "function f() { throw new Error('x') }\nf()")
	var gerr *errors.GuestError
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *errors.GuestError", err)
	}
	if gerr.Stack == "" {
		t.Fatal("empty stack")
	}
	if !strings.Contains(gerr.Stack, "script.js") {
		t.Errorf("stack %q does not name the source", gerr.Stack)
	}
}

func TestEval_Interrupt(t *testing.T) {
	b := newBridge(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Eval(ctx, "for (;;) {}")
	var gerr *errors.GuestError
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *errors.GuestError", err)
	}
	if gerr.Name != "InterruptedError" {
		t.Errorf("Name = %q, want InterruptedError", gerr.Name)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want it to wrap context.DeadlineExceeded", err)
	}

	if got := mustEval(t, b, "'still usable'"); got != "still usable" {
		t.Errorf("after interrupt got %v", got)
	}
}

func TestEval_CancelledContext(t *testing.T) {
	b := newBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Eval(ctx, "1"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEval_Span(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	b := newBridge(t, WithTracerProvider(tp))

	mustEval(t, b, "1")
	if _, err := b.Eval(context.Background(), "throw new Error('x')"); err == nil {
		t.Fatal("expected error")
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	for _, s := range spans {
		if s.Name() != "jsbridge.Eval" {
			t.Errorf("span name = %q", s.Name())
		}
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("successful Eval recorded an error status")
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("failed Eval status = %v, want Error", spans[1].Status().Code)
	}
}

func TestCollect_Span(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	b := newBridge(t, WithTracerProvider(tp))

	b.Collect(context.Background())
	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "jsbridge.Collect" {
		t.Fatalf("spans = %v, want one jsbridge.Collect", spans)
	}
}

func TestNew_InitFailures(t *testing.T) {
	noop := func(...any) (any, error) { return nil, nil }
	tests := []struct {
		name   string
		opts   []Option
		detail string
	}{
		{name: "nil loop", opts: []Option{WithLoop(nil)}, detail: "could not create an execution context"},
		{name: "empty global name", opts: []Option{WithGlobal("", noop)}, detail: "could not define global functions"},
		{name: "nil global", opts: []Option{WithGlobal("f", nil)}, detail: "could not define global functions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.opts...)
			if err == nil {
				_ = b.Close()
				t.Fatal("expected error")
			}
			var e *errors.Error
			if !errors.As(err, &e) {
				t.Fatalf("err = %T, want *errors.Error", err)
			}
			if e.Phase != errors.PhaseInit || e.Kind != errors.KindInitialization {
				t.Errorf("got %s/%s, want init/initialization", e.Phase, e.Kind)
			}
			if e.Detail != tt.detail {
				t.Errorf("Detail = %q, want %q", e.Detail, tt.detail)
			}
		})
	}
}

func TestNew_SharedLoop(t *testing.T) {
	loop := eventloop.New()
	defer loop.Close()

	b := newBridge(t, WithLoop(loop))
	if b.Loop() != loop {
		t.Fatal("bridge did not use the given loop")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := loop.Submit(func() {}); err != nil {
		t.Errorf("bridge closed a loop it does not own: %v", err)
	}
}

func TestNew_IndependentBridges(t *testing.T) {
	a := newBridge(t)
	b := newBridge(t)
	mustEval(t, a, "var x = 1")
	if got := mustEval(t, b, "typeof x"); got != "undefined" {
		t.Errorf("second bridge sees x: typeof x = %v", got)
	}
}

func TestWithGlobal(t *testing.T) {
	var got []any
	b := newBridge(t, WithGlobal("record", func(args ...any) (any, error) {
		got = append(got, args...)
		return len(args), nil
	}))

	if n := mustEval(t, b, "record(1, 'two', null)"); n != int64(3) {
		t.Errorf("record returned %v, want 3", n)
	}
	want := []any{int64(1), "two", value.Null{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestClose(t *testing.T) {
	b := newBridge(t)
	fn, ok := mustEval(t, b, "(function f() { return 1 })").(*value.Function)
	if !ok {
		t.Fatal("expected *value.Function")
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if b.Roots() != 0 {
		t.Errorf("Roots = %d after Close", b.Roots())
	}
	if _, err := b.Eval(context.Background(), "1"); !errors.IsKind(err, errors.KindClosed) {
		t.Errorf("Eval after Close: %v, want closed", err)
	}
	if _, err := fn.Call(); !errors.IsKind(err, errors.KindClosed) {
		t.Errorf("Call after Close: %v, want closed", err)
	}
}

func TestToCodepoints(t *testing.T) {
	b := newBridge(t)
	got, err := b.ToCodepoints("a\xed\xa0\xbd\xed\xb8\x80")
	if err != nil {
		t.Fatalf("ToCodepoints: %v", err)
	}
	if diff := cmp.Diff([]rune{'a', 0x1F600}, got); diff != "" {
		t.Errorf("codepoints mismatch (-want +got):\n%s", diff)
	}
	if _, err := b.ToCodepoints(1); err == nil {
		t.Error("expected error for non-string")
	}
}
