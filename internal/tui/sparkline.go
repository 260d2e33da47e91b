package tui

import "github.com/milndr/lodestone-server-manager/internal/ringbuf"

// sparklineChars maps values 0..7 to Unicode block elements ▁▂▃▄▅▆▇█.
var sparklineChars = [8]rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// historySize is the number of samples kept per resource chart.
const historySize = 120

// RenderSparkline converts values (0..100) into a sparkline string using Unicode blocks.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	runes := make([]rune, len(values))
	for i, v := range values {
		v = clampPercent(v)
		idx := int(v / 100.0 * 7.0)
		if idx > 7 {
			idx = 7
		}
		runes[i] = sparklineChars[idx]
	}
	return string(runes)
}

// renderHistory renders the most recent samples of h that fit in width
// cells, padded on the left so the newest sample stays on the right edge.
func renderHistory(h *ringbuf.RingBuffer[float64], width int) string {
	if width <= 0 {
		return ""
	}
	line := RenderSparkline(h.Tail(width))
	if n := h.Len(); n < width {
		line = spaces(width-n) + line
	}
	return line
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
