package rules

import (
	"strings"
)

// Operator is the comparison token at the start of a condition cell
type Operator string

const (
	OpWildcard     Operator = "*"
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// IsOrdering reports whether op compares numbers by magnitude
func (op Operator) IsOrdering() bool {
	switch op {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// prefixes are checked in order, two-character tokens first
var prefixes = []Operator{OpNotEqual, OpGreaterEqual, OpLessEqual, OpEqual, OpGreater, OpLess}

// Condition is one parsed input cell: an operator and its literal operand.
// Column is set when the condition belongs to a table rule.
type Condition struct {
	Column   string
	Operator Operator
	Operand  Value
}

// ParseCondition parses a condition cell such as "=true", ">10", "!=\"X\"" or "*".
// An empty cell is a wildcard. A bare quoted string, boolean or number is an
// implicit equality test.
func ParseCondition(expr string) (Condition, error) {
	text := strings.TrimSpace(expr)
	if text == "" || text == string(OpWildcard) {
		return Condition{Operator: OpWildcard}, nil
	}

	for _, op := range prefixes {
		if !strings.HasPrefix(text, string(op)) {
			continue
		}
		operand := strings.TrimSpace(text[len(op):])
		if operand == "" {
			return Condition{}, &MalformedConditionError{Expression: expr, Message: "operator " + string(op) + " has no operand"}
		}
		if op.IsOrdering() {
			n, ok := parseNumber(operand)
			if !ok {
				return Condition{}, &MalformedConditionError{Expression: expr, Message: "operator " + string(op) + " requires a numeric operand"}
			}
			return Condition{Operator: op, Operand: Number(n)}, nil
		}
		return Condition{Operator: op, Operand: ParseLiteral(operand)}, nil
	}

	// Bare literal: only unambiguous forms are accepted
	if _, ok := parseBool(text); ok {
		return Condition{Operator: OpEqual, Operand: ParseLiteral(text)}, nil
	}
	if n, ok := parseNumber(text); ok {
		return Condition{Operator: OpEqual, Operand: Number(n)}, nil
	}
	if s, ok := unquote(text); ok {
		return Condition{Operator: OpEqual, Operand: String(s)}, nil
	}
	return Condition{}, &MalformedConditionError{Expression: expr, Message: "unrecognized operator"}
}

// Match parses expr and tests it against v
func Match(expr string, v Value) (bool, error) {
	c, err := ParseCondition(expr)
	if err != nil {
		return false, err
	}
	return c.Matches(v)
}

// IsWildcard reports whether c matches every value
func (c Condition) IsWildcard() bool {
	return c.Operator == OpWildcard
}

// Matches tests the condition against one fact value.
// Equality across kinds is a non-match. Ordering against a non-number
// returns a *TypeMismatchError.
func (c Condition) Matches(v Value) (bool, error) {
	switch c.Operator {
	case OpWildcard:
		return true, nil
	case OpEqual:
		return v.Equal(c.Operand), nil
	case OpNotEqual:
		return !v.Equal(c.Operand), nil
	}

	n, ok := v.AsNumber()
	if !ok {
		return false, &TypeMismatchError{Fact: c.Column, Operator: c.Operator, Got: v.Kind().String(), Want: KindNumber.String()}
	}
	threshold, _ := c.Operand.AsNumber()

	switch c.Operator {
	case OpGreater:
		return n > threshold, nil
	case OpLess:
		return n < threshold, nil
	case OpGreaterEqual:
		return n >= threshold, nil
	case OpLessEqual:
		return n <= threshold, nil
	default:
		return false, &MalformedConditionError{Expression: string(c.Operator), Message: "unrecognized operator"}
	}
}

// String renders c back to a cell that parses to an equivalent condition
func (c Condition) String() string {
	if c.IsWildcard() {
		return string(OpWildcard)
	}
	return string(c.Operator) + c.Operand.String()
}
