package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/milndr/lodestone-server-manager/internal/ui"
)

// cell is one table value with an optional ANSI color.
type cell struct {
	text  string
	color string
}

// printTable writes an aligned table. Columns are padded on the plain text
// so color codes don't skew the widths.
func printTable(out io.Writer, header []string, rows [][]cell) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, c := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(c.text))
			}
		}
	}

	var b strings.Builder
	for i, h := range header {
		b.WriteString(ui.ColorUnderline() + h + ui.ColorReset())
		if i < len(header)-1 {
			b.WriteString(pad(h, widths[i]))
		}
	}
	fmt.Fprintln(out, b.String())

	for _, row := range rows {
		b.Reset()
		for i, c := range row {
			b.WriteString(ui.Colorize(c.color, c.text))
			if i < len(row)-1 && i < len(widths) {
				b.WriteString(pad(c.text, widths[i]))
			}
		}
		fmt.Fprintln(out, b.String())
	}
}

// pad returns the spaces that extend s to width plus the column gap.
func pad(s string, width int) string {
	return strings.Repeat(" ", max(width-utf8.RuneCountInString(s), 0)+3)
}
