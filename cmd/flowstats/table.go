package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats counts with thousands separators.
var printer = message.NewPrinter(language.English)

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// padLeft right-aligns s within width display columns.
func padLeft(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return strings.Repeat(" ", width-sw) + s
}

// table renders aligned columns. Columns listed in right are right-aligned.
type table struct {
	header []string
	rows   [][]string
	right  map[int]bool
	max    int
}

func newTable(header ...string) *table {
	return &table{header: header, right: map[int]bool{}, max: 40}
}

func (t *table) alignRight(cols ...int) *table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, c := range cells {
			if i < len(widths) {
				widths[i] = max(widths[i], min(runewidth.StringWidth(c), t.max))
			}
		}
	}
	measure(t.header)
	for _, r := range t.rows {
		measure(r)
	}

	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			var c string
			if i < len(cells) {
				c = runewidth.Truncate(cells[i], t.max, "…")
			}
			if t.right[i] {
				parts[i] = padLeft(c, widths[i])
			} else {
				parts[i] = padRight(c, widths[i])
			}
		}
		fmt.Fprintln(w, "  "+strings.TrimRight(strings.Join(parts, "  "), " ")) //nolint:errcheck
	}

	line(t.header)
	total := 0
	for _, wd := range widths {
		total += wd
	}
	fmt.Fprintln(w, "  "+strings.Repeat("-", total+2*(len(widths)-1))) //nolint:errcheck
	for _, r := range t.rows {
		line(r)
	}
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, strings.Repeat("=", 70)) //nolint:errcheck
	fmt.Fprintln(w, " "+title)               //nolint:errcheck
	fmt.Fprintln(w, strings.Repeat("=", 70)) //nolint:errcheck
	fmt.Fprintln(w)                          //nolint:errcheck
}
