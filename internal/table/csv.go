package table

import (
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/23skdu/proximity/internal/core"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// CSVOptions tunes the delimited reader.
type CSVOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// ChunkSize is the number of rows per Arrow record batch. Zero means 1024.
	ChunkSize int
}

func (o CSVOptions) comma() rune {
	if o.Comma == 0 {
		return ','
	}
	return o.Comma
}

func (o CSVOptions) chunk() int {
	if o.ChunkSize <= 0 {
		return 1024
	}
	return o.ChunkSize
}

// LoadCSV reads a delimited file with a header row. Every column is read as
// utf8 so that decorated numbers ("$12", "45%") reach coercion untouched.
func LoadCSV(path string, opts CSVOptions) ([]core.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f, opts)
}

// ReadCSV reads delimited data with a header row from rs.
func ReadCSV(rs io.ReadSeeker, opts CSVOptions) ([]core.RawRecord, error) {
	header, err := readHeader(rs, opts.comma())
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	r := csv.NewReader(rs, schema,
		csv.WithHeader(true),
		csv.WithComma(opts.comma()),
		csv.WithChunk(opts.chunk()),
		csv.WithLazyQuotes(true),
		csv.WithAllocator(memory.NewGoAllocator()),
	)
	defer r.Release()

	var out []core.RawRecord
	for r.Next() {
		out = appendRecords(out, r.Record())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return out, nil
}

func readHeader(r io.Reader, comma rune) ([]string, error) {
	cr := stdcsv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read csv header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		// tolerate a UTF-8 byte order mark on the first column name
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, nil
}

// appendRecords converts the rows of an Arrow record batch into raw records.
// Null cells are left out of the field map so that coercion reports them as
// missing.
func appendRecords(out []core.RawRecord, rec arrow.Record) []core.RawRecord {
	schema := rec.Schema()
	cols := make([]arrow.Array, rec.NumCols())
	for i := range cols {
		cols[i] = rec.Column(i)
	}
	for row := 0; row < int(rec.NumRows()); row++ {
		fields := make(map[string]string, len(cols))
		for i, col := range cols {
			if col.IsNull(row) {
				continue
			}
			if s, ok := col.(*array.String); ok {
				fields[schema.Field(i).Name] = s.Value(row)
				continue
			}
			fields[schema.Field(i).Name] = col.ValueStr(row)
		}
		out = append(out, core.RawRecord{Index: len(out), Fields: fields})
	}
	return out
}
