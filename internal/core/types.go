package core

import "slices"

// RawRecord is one tokenized input row: field name to raw string value.
// Index is the 0-based position of the row in its source and identifies the
// record in errors.
type RawRecord struct {
	Index  int
	Fields map[string]string
}

// Field returns the raw value of name and whether the row supplied it.
func (r RawRecord) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Record is a labeled numeric feature vector. The label is carried for
// output indexing only and never takes part in distance computation.
type Record struct {
	Label    string
	Features []float64
}

// Dim returns the feature vector length.
func (r Record) Dim() int {
	return len(r.Features)
}

// Clone returns a deep copy so that derived record sets never share vectors.
func (r Record) Clone() Record {
	return Record{Label: r.Label, Features: slices.Clone(r.Features)}
}

// RecordSet is an ordered collection of records sharing one column layout:
// Columns[k] names Features[k] of every record.
type RecordSet struct {
	Columns []string
	Records []Record
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// ColumnIndex returns the feature position of name, or -1.
func (s *RecordSet) ColumnIndex(name string) int {
	return slices.Index(s.Columns, name)
}

// Column returns a copy of the values of column k across all records.
func (s *RecordSet) Column(k int) []float64 {
	out := make([]float64, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Features[k]
	}
	return out
}

// Labels returns the record labels in order.
func (s *RecordSet) Labels() []string {
	out := make([]string, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Label
	}
	return out
}

// Clone returns a deep copy of the set.
func (s *RecordSet) Clone() *RecordSet {
	out := &RecordSet{
		Columns: slices.Clone(s.Columns),
		Records: make([]Record, len(s.Records)),
	}
	for i, r := range s.Records {
		out.Records[i] = r.Clone()
	}
	return out
}
