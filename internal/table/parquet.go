package table

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/23skdu/proximity/internal/core"
	"github.com/parquet-go/parquet-go"
)

const parquetBatchRows = 256

// LoadParquet reads a flat Parquet file. Every leaf value is rendered back to
// its textual form, so string columns keep their decorations and numeric
// columns pass straight through coercion.
func LoadParquet(path string) ([]core.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := parquet.NewReader(f)
	defer func() { _ = r.Close() }()

	names := make([]string, 0)
	for _, col := range r.Schema().Columns() {
		names = append(names, strings.Join(col, "."))
	}

	var out []core.RawRecord
	buf := make([]parquet.Row, parquetBatchRows)
	for {
		n, err := r.ReadRows(buf)
		for _, row := range buf[:n] {
			fields := make(map[string]string, len(names))
			for _, v := range row {
				if v.IsNull() {
					continue
				}
				col := v.Column()
				if col < 0 || col >= len(names) {
					continue
				}
				fields[names[col]] = parquetValueString(v)
			}
			out = append(out, core.RawRecord{Index: len(out), Fields: fields})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parquetValueString(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
