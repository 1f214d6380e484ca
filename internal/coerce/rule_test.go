package coerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		value string
		rule  Rule
		want  float64
	}{
		{"Plain", "3", Plain(), 3},
		{"PlainFloat", "2.5", Plain(), 2.5},
		{"PlainNegative", "-1.25", Plain(), -1.25},
		{"Years", "35 years", Suffix(" years"), 35},
		{"Months", "120 months", Suffix(" months"), 120},
		{"Currency", "$1200", Prefix("$"), 1200},
		{"CurrencyDecimal", "$12.50", Prefix("$"), 12.5},
		{"Percent", "48%", Percent(), 48},
		{"PercentDecimal", "48.5%", Percent(), 48.5},
		{"Undecorated", "35", Suffix(" years"), 35},
		{"SurroundingSpace", "  $40 ", Prefix("$"), 40},
		{"Scientific", "1e3", Plain(), 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.value, tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
		rule  Rule
	}{
		{"Empty", "", Plain()},
		{"OnlyDecoration", "$", Prefix("$")},
		{"Words", "many", Plain()},
		{"WrongSuffix", "35 months", Suffix(" years")},
		{"SuffixNotStripped", "48%", Plain()},
		{"NaN", "NaN", Plain()},
		{"Inf", "+Inf", Plain()},
		{"Thousands", "$1,200", Prefix("$")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(tt.value, tt.rule)
			assert.Error(t, err)
		})
	}
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		in   string
		want Rule
	}{
		{"", Plain()},
		{"none", Plain()},
		{"percent", Percent()},
		{"PERCENT", Percent()},
		{"prefix=$", Prefix("$")},
		{"suffix= years", Suffix(" years")},
		{"suffix=kg", Suffix("kg")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRule(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"prefix=", "suffix=", "percent=%", "none=x", "infix=$"} {
		_, err := ParseRule(bad)
		assert.Error(t, err, bad)
	}
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "none", Plain().String())
	assert.Equal(t, "percent", Percent().String())
	assert.Equal(t, "prefix=$", Prefix("$").String())
	assert.Equal(t, "suffix= years", Suffix(" years").String())
	assert.Equal(t, "Unknown(9)", Kind(9).String())
}
