package multitenantengine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/liamcoop/decisiontables/rules"
)

// Limits on schema size
const (
	maxSchemaFacts   = 200
	maxIdentifierLen = 100
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrSchemaViolation wraps every error returned by ValidateTable
var ErrSchemaViolation = errors.New("table violates schema")

// ValidateSchema validates a schema definition
// Returns an error if validation fails, nil if schema is valid
func ValidateSchema(schema Schema) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema cannot be empty, must declare at least one fact")
	}

	if len(schema) > maxSchemaFacts {
		return fmt.Errorf("schema declares %d facts, maximum allowed is %d", len(schema), maxSchemaFacts)
	}

	for factName, typeName := range schema {
		if err := validateIdentifier(factName); err != nil {
			return fmt.Errorf("invalid fact name %q: %w", factName, err)
		}

		if typeName == "" {
			return fmt.Errorf("fact %q has empty type name", factName)
		}

		if strings.TrimSpace(typeName) != typeName {
			return fmt.Errorf("fact %q has type with leading/trailing whitespace: %q", factName, typeName)
		}

		if _, ok := kindOf(typeName); !ok {
			return fmt.Errorf("fact %q has invalid type %q (must be one of: bool, number, string)", factName, typeName)
		}
	}

	return nil
}

// ValidateTable checks a parsed table against a tenant schema so that type
// errors surface when the table is saved rather than when it is evaluated.
// Every tested input column must be declared, ordering operators need a
// number fact, and equality operands must have the declared type.
// Output columns may introduce new facts; declared ones must keep their type.
func ValidateTable(schema Schema, table *rules.DecisionTable) error {
	for _, r := range table.Rules() {
		for _, c := range r.Conditions {
			if c.IsWildcard() {
				continue
			}
			typeName, declared := schema[c.Column]
			if !declared {
				return violation("rule %d: column %q is not declared in the schema", r.Index, c.Column)
			}
			kind, _ := kindOf(typeName)
			if c.Operator.IsOrdering() && kind != rules.KindNumber {
				return violation("rule %d: operator %s on %s fact %q", r.Index, c.Operator, typeName, c.Column)
			}
			if !c.Operator.IsOrdering() && c.Operand.Kind() != kind {
				return violation("rule %d: column %q is %s but operand %s is %s", r.Index, c.Column, typeName, c.Operand, c.Operand.Kind())
			}
		}
		for _, a := range r.Actions {
			typeName, declared := schema[a.Field]
			if !declared {
				continue
			}
			if kind, _ := kindOf(typeName); a.Value.Kind() != kind {
				return violation("rule %d: output %q is %s but value %s is %s", r.Index, a.Field, typeName, a.Value, a.Value.Kind())
			}
		}
	}
	return nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaViolation, fmt.Sprintf(format, args...))
}

// kindOf maps a schema type name to a value kind
func kindOf(typeName string) (rules.Kind, bool) {
	switch typeName {
	case "bool":
		return rules.KindBool, true
	case "number":
		return rules.KindNumber, true
	case "string":
		return rules.KindString, true
	}
	return 0, false
}

// validateIdentifier validates a fact name: identifier syntax, 1-100
// characters and not a reserved keyword
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierLen)
	}

	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}

	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}

	return nil
}

// isReservedKeyword reports names that would clash with literals and CEL
// keywords used by derived fields
func isReservedKeyword(name string) bool {
	reservedKeywords := map[string]bool{
		"true":   true,
		"false":  true,
		"null":   true,
		"in":     true,
		"as":     true,
		"break":  true,
		"const":  true,
		"else":   true,
		"for":    true,
		"if":     true,
		"let":    true,
		"loop":   true,
		"return": true,
		"var":    true,
		"void":   true,
		"while":  true,
		"facts":  true,
	}

	return reservedKeywords[name]
}
