// Package table loads tabular sources into raw records keyed by column name.
package table

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/metrics"
)

// Format names a tabular source reader.
type Format string

const (
	FormatAuto    Format = ""
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatParquet Format = "parquet"
	FormatDuckDB  Format = "duckdb"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatAuto, FormatCSV, FormatTSV, FormatParquet, FormatDuckDB:
		return f, nil
	default:
		return "", fmt.Errorf("unknown input format %q", s)
	}
}

// Detect picks a format from the file extension.
func Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".parquet":
		return FormatParquet, nil
	case ".json", ".ndjson", ".jsonl":
		return FormatDuckDB, nil
	default:
		return "", fmt.Errorf("cannot detect input format of %q", path)
	}
}

// Load reads path with the given format, detecting it from the extension
// when format is FormatAuto.
func Load(ctx context.Context, path string, format Format) ([]core.RawRecord, error) {
	start := time.Now()
	if format == FormatAuto {
		f, err := Detect(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	var (
		rows []core.RawRecord
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = LoadCSV(path, CSVOptions{})
	case FormatTSV:
		rows, err = LoadCSV(path, CSVOptions{Comma: '\t'})
	case FormatParquet:
		rows, err = LoadParquet(path)
	case FormatDuckDB:
		rows, err = LoadDuckDB(ctx, path)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
	if err != nil {
		return nil, err
	}

	metrics.RowsLoadedTotal.WithLabelValues(string(format)).Add(float64(len(rows)))
	metrics.StageDurationSeconds.WithLabelValues("load").Observe(time.Since(start).Seconds())
	return rows, nil
}
