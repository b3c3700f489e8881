package vtsurface

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"pkt.systems/termdeck/schema"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *safeBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func newTestFactory(t *testing.T) (*Factory, *safeBuffer) {
	t.Helper()
	out := &safeBuffer{}
	factory, err := NewFactory(FactoryConfig{
		Output:  out,
		Initial: schema.Geometry{Cols: 40, Rows: 10},
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	return factory, out
}

func TestVisibleSurfacePassesBytesThrough(t *testing.T) {
	factory, out := newTestFactory(t)
	surface, err := factory.NewSurface("s1")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	surface.SetVisible(true)
	out.Reset()

	surface.Write([]byte("hello"))
	if got := out.String(); got != "hello" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestHiddenSurfaceAbsorbsOutput(t *testing.T) {
	factory, out := newTestFactory(t)
	surface, err := factory.NewSurface("s1")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}

	surface.Write([]byte("silent"))
	if got := out.String(); got != "" {
		t.Fatalf("hidden surface leaked output: %q", got)
	}
}

func TestShowingSurfaceReplaysScreen(t *testing.T) {
	factory, out := newTestFactory(t)
	surface, err := factory.NewSurface("s1")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}

	surface.Write([]byte("replayme"))
	surface.SetVisible(true)

	got := out.String()
	if !strings.Contains(got, "\x1b[2J") {
		t.Fatalf("expected clear sequence in replay, got %q", got)
	}
	if !strings.Contains(got, "replayme") {
		t.Fatalf("expected modeled content in replay, got %q", got)
	}
}

func TestSizeReflectsGeometry(t *testing.T) {
	factory, _ := newTestFactory(t)
	raw, err := factory.NewSurface("s1")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	surface := raw.(*Surface)

	geom, ok := surface.Size()
	if !ok || geom.Cols != 40 || geom.Rows != 10 {
		t.Fatalf("unexpected initial size: %+v ok=%v", geom, ok)
	}

	surface.SetSize(schema.Geometry{Cols: 120, Rows: 40})
	geom, ok = surface.Size()
	if !ok || geom.Cols != 120 || geom.Rows != 40 {
		t.Fatalf("unexpected resized geometry: %+v ok=%v", geom, ok)
	}

	surface.SetSize(schema.Geometry{})
	if _, ok := surface.Size(); ok {
		t.Fatalf("zero geometry should be unmeasurable")
	}
}

func TestUnmeasuredFactoryStartsUnmeasurable(t *testing.T) {
	out := &safeBuffer{}
	factory, err := NewFactory(FactoryConfig{Output: out})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	surface, err := factory.NewSurface("s1")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	if _, ok := surface.Size(); ok {
		t.Fatalf("expected unmeasurable surface before layout")
	}
}

func TestInputRoutesToFocusedSurface(t *testing.T) {
	factory, _ := newTestFactory(t)
	first, err := factory.NewSurface("s1")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	second, err := factory.NewSurface("s2")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}

	var firstGot, secondGot []byte
	first.OnInput(func(data []byte) { firstGot = append(firstGot, data...) })
	second.OnInput(func(data []byte) { secondGot = append(secondGot, data...) })

	first.Focus()
	factory.RouteInput([]byte("aa"))
	second.Focus()
	factory.RouteInput([]byte("bb"))

	if string(firstGot) != "aa" {
		t.Fatalf("first surface got %q", firstGot)
	}
	if string(secondGot) != "bb" {
		t.Fatalf("second surface got %q", secondGot)
	}
	if factory.Focused() != "s2" {
		t.Fatalf("expected focus on s2, got %q", factory.Focused())
	}
}

func TestCloseDropsSurface(t *testing.T) {
	factory, out := newTestFactory(t)
	surface, err := factory.NewSurface("s1")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	surface.Focus()
	surface.Close()

	if factory.Focused() != "" {
		t.Fatalf("expected focus cleared after close")
	}
	surface.Write([]byte("late"))
	if got := out.String(); strings.Contains(got, "late") {
		t.Fatalf("closed surface still writes: %q", got)
	}
	if _, ok := surface.Size(); ok {
		t.Fatalf("closed surface should be unmeasurable")
	}
}

func TestNoticeRendersWhenVisible(t *testing.T) {
	factory, out := newTestFactory(t)
	surface, err := factory.NewSurface("s1")
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	surface.SetVisible(true)
	out.Reset()

	surface.Notice("connection closed")
	if got := out.String(); !strings.Contains(got, "connection closed") {
		t.Fatalf("expected notice text, got %q", got)
	}
}
