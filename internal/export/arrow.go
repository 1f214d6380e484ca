package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/23skdu/proximity/internal/distance"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// LabelColumn is the name of the row-label column in tabular exports.
const LabelColumn = "label"

// MetadataKind tags Arrow schemas produced by this package.
const MetadataKind = "proximity.kind"

// ColumnNames returns the label column followed by one column name per
// record label. Repeated names get a "_<n>" suffix so every column name is
// unique.
func ColumnNames(labels []string) []string {
	out := make([]string, 0, len(labels)+1)
	seen := make(map[string]int, len(labels)+1)
	for _, name := range append([]string{LabelColumn}, labels...) {
		candidate := name
		for {
			if _, dup := seen[candidate]; !dup {
				break
			}
			seen[name]++
			candidate = name + "_" + strconv.Itoa(seen[name])
		}
		seen[candidate] = 0
		out = append(out, candidate)
	}
	return out
}

// Schema returns the Arrow schema of a matrix: a utf8 label column followed
// by one float64 column per record.
func Schema(m *distance.Matrix) *arrow.Schema {
	names := ColumnNames(m.Labels())
	fields := make([]arrow.Field, len(names))
	fields[0] = arrow.Field{Name: names[0], Type: arrow.BinaryTypes.String}
	for j := 1; j < len(names); j++ {
		fields[j] = arrow.Field{Name: names[j], Type: arrow.PrimitiveTypes.Float64}
	}
	md := arrow.NewMetadata([]string{MetadataKind}, []string{"distance_matrix"})
	return arrow.NewSchema(fields, &md)
}

// Record builds an Arrow record with one row per record of the matrix. The
// caller owns the result and must Release it.
func Record(mem memory.Allocator, m *distance.Matrix) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, Schema(m))
	defer b.Release()

	n := m.Len()
	labelBuilder := b.Field(0).(*array.StringBuilder)
	labelBuilder.AppendValues(m.Labels(), nil)
	for j := 0; j < n; j++ {
		col := b.Field(j + 1).(*array.Float64Builder)
		col.Reserve(n)
		for i := 0; i < n; i++ {
			col.UnsafeAppend(m.At(i, j))
		}
	}
	return b.NewRecord()
}

// FromRecords rebuilds a matrix from record batches laid out by Record. The
// batches are read in order and may split the rows arbitrarily. Labels are
// copied out of the batches, so the caller may release them afterwards.
func FromRecords(recs []arrow.Record) (*distance.Matrix, error) {
	var (
		labels []string
		rows   [][]float64
	)
	for _, rec := range recs {
		if rec.NumCols() < 1 {
			return nil, fmt.Errorf("matrix batch has no columns")
		}
		lc, ok := rec.Column(0).(*array.String)
		if !ok {
			return nil, fmt.Errorf("matrix label column has type %s", rec.Column(0).DataType())
		}
		cols := make([]*array.Float64, rec.NumCols()-1)
		for j := range cols {
			c, ok := rec.Column(j + 1).(*array.Float64)
			if !ok {
				return nil, fmt.Errorf("matrix column %d has type %s", j+1, rec.Column(j+1).DataType())
			}
			cols[j] = c
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			labels = append(labels, strings.Clone(lc.Value(i)))
			row := make([]float64, len(cols))
			for j, c := range cols {
				row[j] = c.Value(i)
			}
			rows = append(rows, row)
		}
	}
	return distance.NewMatrix(labels, rows)
}
