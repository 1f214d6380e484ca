package export

import (
	"io"

	"github.com/23skdu/proximity/internal/distance"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// CSV writes the matrix as delimited text with a header row. The first
// column holds the row labels; cells use the given number of decimals.
func CSV(w io.Writer, m *distance.Matrix, precision int, comma rune) error {
	if comma == 0 {
		comma = ','
	}
	names := ColumnNames(m.Labels())
	fields := make([]arrow.Field, len(names))
	for j, name := range names {
		fields[j] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()

	n := m.Len()
	b.Field(0).(*array.StringBuilder).AppendValues(m.Labels(), nil)
	for j := 0; j < n; j++ {
		col := b.Field(j + 1).(*array.StringBuilder)
		for i := 0; i < n; i++ {
			col.Append(formatCell(m.At(i, j), precision))
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	cw := csv.NewWriter(w, schema, csv.WithHeader(true), csv.WithComma(comma))
	if err := cw.Write(rec); err != nil {
		return err
	}
	return cw.Flush()
}
