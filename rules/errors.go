package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against the typed errors below
var (
	ErrMalformedRule      = errors.New("malformed rule")
	ErrMalformedCondition = errors.New("malformed condition")
	ErrMissingFact        = errors.New("missing fact")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrKeyNotFound        = errors.New("key not found")

	// ErrNilFactSet is returned when evaluation is given a nil *FactSet
	ErrNilFactSet = errors.New("fact set is nil")
)

// MalformedRuleError reports a structural problem in the header or a rule row.
// Row is 0 for the header and 1..N for rule rows.
type MalformedRuleError struct {
	Row     int
	Message string
}

func (e *MalformedRuleError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("malformed header: %s", e.Message)
	}
	return fmt.Sprintf("malformed rule at row %d: %s", e.Row, e.Message)
}

func (e *MalformedRuleError) Is(target error) bool {
	return target == ErrMalformedRule
}

// MalformedConditionError reports a condition cell that cannot be parsed.
// Row and Column are filled in when the cell came from a table.
type MalformedConditionError struct {
	Row        int
	Column     string
	Expression string
	Message    string
}

func (e *MalformedConditionError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("malformed condition %q at row %d column %q: %s", e.Expression, e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("malformed condition %q: %s", e.Expression, e.Message)
}

func (e *MalformedConditionError) Is(target error) bool {
	return target == ErrMalformedCondition
}

// MissingFactError is returned when a rule tests a fact the caller did not supply
type MissingFactError struct {
	Fact  string
	Rule  int
	Cause error
}

func (e *MissingFactError) Error() string {
	return fmt.Sprintf("rule %d: fact %q is missing", e.Rule, e.Fact)
}

func (e *MissingFactError) Unwrap() error {
	return e.Cause
}

func (e *MissingFactError) Is(target error) bool {
	return target == ErrMissingFact
}

// TypeMismatchError is returned when an operator cannot be applied to a value's type
type TypeMismatchError struct {
	Fact     string
	Operator Operator
	Got      string
	Want     string
}

func (e *TypeMismatchError) Error() string {
	switch {
	case e.Fact != "" && e.Operator != "":
		return fmt.Sprintf("fact %q: operator %s requires %s, got %s", e.Fact, e.Operator, e.Want, e.Got)
	case e.Operator != "":
		return fmt.Sprintf("operator %s requires %s, got %s", e.Operator, e.Want, e.Got)
	default:
		return fmt.Sprintf("unsupported value type %s (want %s)", e.Got, e.Want)
	}
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// KeyNotFoundError is returned by FactSet.Get for an absent key
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("fact %q not found", e.Key)
}

func (e *KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound
}
