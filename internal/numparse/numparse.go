// Package numparse normalizes human-entered numeric strings from risk
// documents. Authors routinely write "1 000 000", "1,234.56", or "85%" in
// YAML; every document loader funnels those values through this package.
package numparse

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// cleanNumericString strips readability separators commonly used in YAML:
// regular space, thin space (U+202F), underscore, and comma.
func cleanNumericString(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, ",", "")
	return s
}

// ParseFloat parses a numeric string that may carry thousands separators and,
// when allowPercent is set, a trailing percent sign ("50%" -> 0.5).
func ParseFloat(value string, allowPercent bool) (float64, error) {
	s := cleanNumericString(value)
	if s == "" {
		return 0, fmt.Errorf("empty numeric string")
	}

	if strings.HasSuffix(s, "%") {
		if !allowPercent {
			return 0, fmt.Errorf("percent values are not allowed here: %q", value)
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid percent value %q", value)
		}
		return f / 100.0, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", value)
	}
	return f, nil
}

// ParseInt parses a strict integer string. Decimals, exponents, and percent
// suffixes are rejected even when integer-valued (e.g. "10.0").
func ParseInt(value string) (int, error) {
	s := cleanNumericString(value)
	if s == "" {
		return 0, fmt.Errorf("empty integer string")
	}
	if strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("percent values are not allowed for integers: %q", value)
	}
	s = strings.TrimPrefix(s, "+")
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("expected an integer, got %q", value)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q", value)
	}
	return n, nil
}

// Float is a YAML scalar that accepts plain numbers or separator-formatted
// strings ("1 000", "2,500.75"). Percent suffixes are rejected.
type Float float64

func (f *Float) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeScalar(node, false)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Percent is a YAML scalar that additionally accepts percent strings:
// "85%" decodes to 0.85.
type Percent float64

func (p *Percent) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeScalar(node, true)
	if err != nil {
		return err
	}
	*p = Percent(v)
	return nil
}

// Int is a YAML scalar that accepts plain integers or separator-formatted
// integer strings ("100 000"). Floats are rejected.
type Int int

func (i *Int) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected a scalar, got %s", nodeKind(node))
	}
	if node.Tag == "!!int" {
		var n int
		if err := node.Decode(&n); err != nil {
			return err
		}
		*i = Int(n)
		return nil
	}
	if node.Tag == "!!float" {
		return fmt.Errorf("expected an integer, got float %q", node.Value)
	}
	n, err := ParseInt(node.Value)
	if err != nil {
		return err
	}
	*i = Int(n)
	return nil
}

func decodeScalar(node *yaml.Node, allowPercent bool) (float64, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("expected a scalar, got %s", nodeKind(node))
	}
	switch node.Tag {
	case "!!int", "!!float":
		var v float64
		if err := node.Decode(&v); err != nil {
			return 0, err
		}
		return v, nil
	case "!!bool":
		return 0, fmt.Errorf("boolean is not a valid numeric value")
	default:
		return ParseFloat(node.Value, allowPercent)
	}
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "document"
	}
}
