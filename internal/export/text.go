// Package export renders distance matrices for people and for other tools.
package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/23skdu/proximity/internal/distance"
)

// DefaultPrecision is the number of decimals used when none is configured.
const DefaultPrecision = 6

func formatCell(v float64, precision int) string {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// Text writes the matrix as a fixed-width table: a header of column labels,
// then one row per record headed by its label. Labels are left aligned and
// numbers right aligned.
func Text(w io.Writer, m *distance.Matrix, precision int) error {
	n := m.Len()
	labels := m.Labels()
	cells := make([][]string, n)
	labelWidth := 0
	widths := make([]int, n)
	for j, l := range labels {
		widths[j] = utf8.RuneCountInString(l)
		labelWidth = max(labelWidth, widths[j])
	}
	for i := 0; i < n; i++ {
		cells[i] = make([]string, n)
		for j := 0; j < n; j++ {
			cells[i][j] = formatCell(m.At(i, j), precision)
			widths[j] = max(widths[j], len(cells[i][j]))
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Repeat(" ", labelWidth))
	for j, l := range labels {
		bw.WriteString("  ")
		bw.WriteString(padLeft(l, widths[j]))
	}
	bw.WriteByte('\n')
	for i := 0; i < n; i++ {
		bw.WriteString(padRight(labels[i], labelWidth))
		for j := 0; j < n; j++ {
			bw.WriteString("  ")
			bw.WriteString(padLeft(cells[i][j], widths[j]))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Pairs writes the unordered pairs of the matrix, closest first, one per line.
func Pairs(w io.Writer, m *distance.Matrix, precision int) error {
	bw := bufio.NewWriter(w)
	for _, p := range m.Pairs() {
		bw.WriteString(formatCell(p.Distance, precision))
		bw.WriteByte('\t')
		bw.WriteString(p.A)
		bw.WriteByte('\t')
		bw.WriteString(p.B)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
