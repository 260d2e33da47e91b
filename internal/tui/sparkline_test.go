package tui

import (
	"testing"

	"github.com/milndr/lodestone-server-manager/internal/ringbuf"
)

func TestRenderSparkline_Empty(t *testing.T) {
	got := RenderSparkline(nil)
	if got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestRenderSparkline_AllZero(t *testing.T) {
	got := RenderSparkline([]float64{0, 0, 0})
	runes := []rune(got)
	for i, r := range runes {
		if r != '▁' {
			t.Errorf("index %d: expected '▁', got %c", i, r)
		}
	}
}

func TestRenderSparkline_AllMax(t *testing.T) {
	got := RenderSparkline([]float64{100, 100, 100})
	runes := []rune(got)
	for i, r := range runes {
		if r != '█' {
			t.Errorf("index %d: expected '█', got %c", i, r)
		}
	}
}

func TestRenderSparkline_Gradient(t *testing.T) {
	values := []float64{0, 14.3, 28.6, 42.9, 57.1, 71.4, 85.7, 100}
	got := RenderSparkline(values)
	runes := []rune(got)
	if len(runes) != 8 {
		t.Fatalf("expected 8 chars, got %d", len(runes))
	}
	// Should be strictly ascending
	for i := 1; i < len(runes); i++ {
		if runes[i] < runes[i-1] {
			t.Errorf("expected ascending at index %d: %c < %c", i, runes[i], runes[i-1])
		}
	}
}

func TestRenderSparkline_Clamping(t *testing.T) {
	got := RenderSparkline([]float64{-10, 150})
	runes := []rune(got)
	if runes[0] != '▁' {
		t.Errorf("negative not clamped to min: got %c", runes[0])
	}
	if runes[1] != '█' {
		t.Errorf("over-100 not clamped to max: got %c", runes[1])
	}
}

func TestRenderSparkline_MidValue(t *testing.T) {
	got := RenderSparkline([]float64{50})
	runes := []rune(got)
	// 50/100 * 7 = 3.5 -> index 3 -> '▄'
	if runes[0] != '▄' {
		t.Errorf("expected '▄' for 50%%, got %c", runes[0])
	}
}

func TestRenderHistory_PadsLeft(t *testing.T) {
	h := ringbuf.New[float64](10)
	h.Push(100)
	h.Push(0)

	got := []rune(renderHistory(h, 5))
	if len(got) != 5 {
		t.Fatalf("expected 5 cells, got %d", len(got))
	}
	for i := 0; i < 3; i++ {
		if got[i] != ' ' {
			t.Errorf("index %d: expected padding, got %c", i, got[i])
		}
	}
	if got[3] != '█' || got[4] != '▁' {
		t.Errorf("expected newest samples on the right, got %q", string(got))
	}
}

func TestRenderHistory_KeepsNewest(t *testing.T) {
	h := ringbuf.New[float64](10)
	for _, v := range []float64{0, 0, 0, 100, 100} {
		h.Push(v)
	}
	if got := renderHistory(h, 2); got != "██" {
		t.Errorf("expected the two newest samples, got %q", got)
	}
	if got := renderHistory(h, 0); got != "" {
		t.Errorf("expected empty for zero width, got %q", got)
	}
}
