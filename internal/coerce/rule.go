package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the decoration carried by the raw values of a column.
type Kind int

const (
	// None means the column holds plain numeric literals.
	None Kind = iota
	// UnitSuffix strips a fixed literal suffix such as " years".
	UnitSuffix
	// CurrencyPrefix strips a fixed literal prefix such as "$".
	CurrencyPrefix
	// PercentSuffix strips a trailing "%".
	PercentSuffix
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case UnitSuffix:
		return "suffix"
	case CurrencyPrefix:
		return "prefix"
	case PercentSuffix:
		return "percent"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Rule is the decoration stripped from one column before numeric parsing.
type Rule struct {
	Kind    Kind
	Literal string
}

// Plain returns the pass-through rule.
func Plain() Rule { return Rule{Kind: None} }

// Suffix returns a unit-suffix rule for literal.
func Suffix(literal string) Rule { return Rule{Kind: UnitSuffix, Literal: literal} }

// Prefix returns a currency-prefix rule for literal.
func Prefix(literal string) Rule { return Rule{Kind: CurrencyPrefix, Literal: literal} }

// Percent returns the percent-suffix rule.
func Percent() Rule { return Rule{Kind: PercentSuffix, Literal: "%"} }

func (r Rule) String() string {
	switch r.Kind {
	case UnitSuffix, CurrencyPrefix:
		return r.Kind.String() + "=" + r.Literal
	default:
		return r.Kind.String()
	}
}

// ParseRule parses the textual form used in configuration:
// "none", "percent", "prefix=<literal>" or "suffix=<literal>".
// The literal is taken verbatim, leading spaces included.
func ParseRule(s string) (Rule, error) {
	kind, literal, hasLiteral := strings.Cut(s, "=")
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		if hasLiteral {
			break
		}
		return Plain(), nil
	case "percent":
		if hasLiteral {
			break
		}
		return Percent(), nil
	case "prefix":
		if literal == "" {
			return Rule{}, fmt.Errorf("decoration rule %q: empty prefix", s)
		}
		return Prefix(literal), nil
	case "suffix":
		if literal == "" {
			return Rule{}, fmt.Errorf("decoration rule %q: empty suffix", s)
		}
		return Suffix(literal), nil
	}
	return Rule{}, fmt.Errorf("invalid decoration rule %q", s)
}

// Strip removes the rule's decoration from value. A value that does not
// carry the decoration is returned unchanged.
func (r Rule) Strip(value string) string {
	switch r.Kind {
	case UnitSuffix, PercentSuffix:
		literal := r.Literal
		if literal == "" {
			literal = "%"
		}
		return strings.TrimSuffix(value, literal)
	case CurrencyPrefix:
		return strings.TrimPrefix(value, r.Literal)
	default:
		return value
	}
}

// Coerce strips the decoration of value and parses the remainder as a
// float64. NaN and infinities are rejected.
func Coerce(value string, rule Rule) (float64, error) {
	s := strings.TrimSpace(rule.Strip(strings.TrimSpace(value)))
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return f, nil
}
