package coerce

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/23skdu/proximity/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmentSchema() Schema {
	return Schema{
		Label: "Segment Name",
		Columns: []Column{
			{Name: "Average Revenues ($)", Rule: Prefix("$")},
			{Name: "Risk Score", Rule: Plain()},
			{Name: "Age (Years)", Rule: Suffix(" years")},
			{Name: "Percent Male", Rule: Percent()},
		},
	}
}

func row(i int, label, rev, risk, age, male string) core.RawRecord {
	return core.RawRecord{Index: i, Fields: map[string]string{
		"Segment Name":         label,
		"Average Revenues ($)": rev,
		"Risk Score":           risk,
		"Age (Years)":          age,
		"Percent Male":         male,
	}}
}

func TestRecords(t *testing.T) {
	rows := []core.RawRecord{
		row(0, "Young Families", "$1200", "3", "32 years", "48%"),
		row(1, "Empty Nesters", "$2100", "2", "58 years", "51%"),
		row(2, "Students", "$300", "7", "21 years", "55%"),
	}

	set, err := Records(context.Background(), rows, segmentSchema(), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"Average Revenues ($)", "Risk Score", "Age (Years)", "Percent Male"}, set.Columns)
	require.Equal(t, 3, set.Len())
	assert.Equal(t, core.Record{Label: "Young Families", Features: []float64{1200, 3, 32, 48}}, set.Records[0])
	assert.Equal(t, core.Record{Label: "Empty Nesters", Features: []float64{2100, 2, 58, 51}}, set.Records[1])
	assert.Equal(t, core.Record{Label: "Students", Features: []float64{300, 7, 21, 55}}, set.Records[2])
}

func TestRecords_PreservesOrderUnderParallelism(t *testing.T) {
	var rows []core.RawRecord
	for i := 0; i < 500; i++ {
		rows = append(rows, row(i, fmt.Sprintf("seg-%d", i), fmt.Sprintf("$%d", i), "1", "30 years", "50%"))
	}
	set, err := Records(context.Background(), rows, segmentSchema(), 8)
	require.NoError(t, err)
	for i, r := range set.Records {
		assert.Equal(t, fmt.Sprintf("seg-%d", i), r.Label)
		assert.Equal(t, float64(i), r.Features[0])
	}
}

func TestRecords_ParseError(t *testing.T) {
	rows := []core.RawRecord{
		row(0, "Young Families", "$1200", "3", "32 years", "48%"),
		row(1, "Broken", "$2100", "2", "fifty years", "51%"),
	}

	_, err := Records(context.Background(), rows, segmentSchema(), 0)
	require.Error(t, err)

	var pe *core.ErrParse
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Record)
	assert.Equal(t, "Broken", pe.Label)
	assert.Equal(t, "Age (Years)", pe.Column)
	assert.Equal(t, "fifty years", pe.Value)
}

func TestRecords_MissingField(t *testing.T) {
	r := row(0, "Young Families", "$1200", "3", "32 years", "48%")
	delete(r.Fields, "Risk Score")

	_, err := Records(context.Background(), []core.RawRecord{r}, segmentSchema(), 1)

	var me *core.ErrMissingField
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Risk Score", me.Field)
	assert.Equal(t, 0, me.Record)
}

func TestRecords_MissingLabel(t *testing.T) {
	r := row(4, "x", "$1", "1", "1 years", "1%")
	delete(r.Fields, "Segment Name")

	_, err := Records(context.Background(), []core.RawRecord{r}, segmentSchema(), 1)

	var me *core.ErrMissingField
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Segment Name", me.Field)
	assert.Equal(t, 4, me.Record)
}

func TestRecords_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Records(ctx, []core.RawRecord{row(0, "a", "$1", "1", "1 years", "1%")}, segmentSchema(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSchema_Validate(t *testing.T) {
	assert.NoError(t, segmentSchema().Validate())

	s := segmentSchema()
	s.Label = ""
	assert.ErrorIs(t, s.Validate(), ErrNoLabel)

	s = segmentSchema()
	s.Columns = nil
	assert.ErrorIs(t, s.Validate(), ErrNoColumns)

	s = segmentSchema()
	s.Columns = append(s.Columns, Column{Name: "Risk Score"})
	assert.ErrorIs(t, s.Validate(), ErrDuplicateColumn)

	s = segmentSchema()
	s.Columns = append(s.Columns, Column{Name: "Segment Name"})
	assert.ErrorIs(t, s.Validate(), ErrLabelAsFeature)
}
