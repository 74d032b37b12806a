package shell

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// renderTable prints rows under a header, columns padded to the widest
// cell:
//
//	id | name
//	---+------
//	0  | Alice
func renderTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i := range header {
			if n := utf8.RuneCountInString(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	printRow := func(values []string) {
		var b strings.Builder
		for i := range header {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(padRight(values[i], widths[i]))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	printRow(header)
	var sep strings.Builder
	for i := range header {
		if i > 0 {
			sep.WriteString("-+-")
		}
		sep.WriteString(strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w, sep.String())
	for _, row := range rows {
		printRow(row)
	}
}

func padRight(s string, w int) string {
	n := utf8.RuneCountInString(s)
	if n >= w {
		return s
	}
	return s + strings.Repeat(" ", w-n)
}
