package table

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/23skdu/proximity/internal/core"
	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" driver
)

// LoadDuckDB scans path with an in-memory DuckDB instance. CSV/TSV files are
// sniffed by read_csv_auto with every column kept as varchar; JSON and
// Parquet files go through read_json_auto and read_parquet.
func LoadDuckDB(ctx context.Context, path string) ([]core.RawRecord, error) {
	query, err := duckdbScan(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("duckdb scan %s: %w", path, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []core.RawRecord
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("duckdb row %d: %w", len(out), err)
		}
		fields := make(map[string]string, len(cols))
		for i, v := range vals {
			if v.Valid {
				fields[cols[i]] = v.String
			}
		}
		out = append(out, core.RawRecord{Index: len(out), Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func duckdbScan(path string) (string, error) {
	lit := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return "SELECT * FROM read_csv_auto(" + lit + ", header = true, all_varchar = true)", nil
	case ".json", ".ndjson", ".jsonl":
		return "SELECT * FROM read_json_auto(" + lit + ")", nil
	case ".parquet":
		return "SELECT * FROM read_parquet(" + lit + ")", nil
	default:
		return "", fmt.Errorf("duckdb: unsupported file type %q", filepath.Ext(path))
	}
}
