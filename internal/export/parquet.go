package export

import (
	"io"

	"github.com/23skdu/proximity/internal/distance"
	"github.com/parquet-go/parquet-go"
)

// Parquet writes the matrix as a Parquet file with the layout of Record:
// a label column and one double column per record.
func Parquet(w io.Writer, m *distance.Matrix) error {
	names := ColumnNames(m.Labels())
	group := parquet.Group{names[0]: parquet.String()}
	for _, name := range names[1:] {
		group[name] = parquet.Leaf(parquet.DoubleType)
	}
	schema := parquet.NewSchema("distance_matrix", group)

	// Group fields are ordered by name; map every matrix column to its leaf.
	leaf := make(map[string]int, len(names))
	for i, path := range schema.Columns() {
		leaf[path[0]] = i
	}

	pw := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Zstd))
	n := m.Len()
	rows := make([]parquet.Row, n)
	for i := 0; i < n; i++ {
		row := make(parquet.Row, len(names))
		row[leaf[names[0]]] = parquet.ByteArrayValue([]byte(m.Label(i))).Level(0, 0, leaf[names[0]])
		for j := 0; j < n; j++ {
			col := leaf[names[j+1]]
			row[col] = parquet.DoubleValue(m.At(i, j)).Level(0, 0, col)
		}
		rows[i] = row
	}
	if _, err := pw.WriteRows(rows); err != nil {
		_ = pw.Close()
		return err
	}
	return pw.Close()
}
