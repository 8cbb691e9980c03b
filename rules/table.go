package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Divider is the header cell separating input columns from output columns
const Divider = "*"

// DecisionTable is an ordered list of rules over a fixed column schema.
// It is immutable after construction and may be evaluated concurrently,
// provided each call uses its own FactSet.
type DecisionTable struct {
	inputs  []string
	outputs []string
	rules   []Rule
}

// NewDecisionTable builds a table from rows of cells. rows[0] is the header;
// every following row becomes one rule in the same order.
func NewDecisionTable(rows [][]string) (*DecisionTable, error) {
	if len(rows) == 0 {
		return nil, &MalformedRuleError{Row: 0, Message: "no header row"}
	}

	inputs, outputs, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}

	t := &DecisionTable{
		inputs:  inputs,
		outputs: outputs,
		rules:   make([]Rule, 0, len(rows)-1),
	}

	width := len(rows[0])
	for i, row := range rows[1:] {
		rowNum := i + 1
		if len(row) != width {
			return nil, &MalformedRuleError{
				Row:     rowNum,
				Message: fmt.Sprintf("has %d cells, header has %d", len(row), width),
			}
		}
		rule, err := t.parseRule(len(t.rules), rowNum, row)
		if err != nil {
			return nil, err
		}
		t.rules = append(t.rules, rule)
	}

	return t, nil
}

func parseHeader(header []string) ([]string, []string, error) {
	divider := -1
	for i, cell := range header {
		name := columnName(cell)
		if name == Divider {
			if divider >= 0 {
				return nil, nil, &MalformedRuleError{Row: 0, Message: fmt.Sprintf("more than one %q divider column", Divider)}
			}
			divider = i
			continue
		}
		if name == "" {
			return nil, nil, &MalformedRuleError{Row: 0, Message: fmt.Sprintf("column %d has no name", i+1)}
		}
	}
	if divider < 0 {
		return nil, nil, &MalformedRuleError{Row: 0, Message: fmt.Sprintf("missing %q divider column", Divider)}
	}

	inputs := make([]string, 0, divider)
	for _, cell := range header[:divider] {
		inputs = append(inputs, columnName(cell))
	}

	outputs := make([]string, 0, len(header)-divider-1)
	seen := make(map[string]bool)
	for _, cell := range header[divider+1:] {
		name := columnName(cell)
		if seen[name] {
			return nil, nil, &MalformedRuleError{Row: 0, Message: fmt.Sprintf("output column %q appears more than once", name)}
		}
		seen[name] = true
		outputs = append(outputs, name)
	}

	return inputs, outputs, nil
}

// columnName trims a header cell and strips one pair of surrounding quotes
func columnName(cell string) string {
	name := strings.TrimSpace(cell)
	if s, ok := unquote(name); ok {
		return strings.TrimSpace(s)
	}
	return name
}

func (t *DecisionTable) parseRule(index, rowNum int, row []string) (Rule, error) {
	rule := Rule{
		Index:      index,
		Conditions: make([]Condition, 0, len(t.inputs)),
	}

	for i, column := range t.inputs {
		cond, err := ParseCondition(row[i])
		if err != nil {
			var mce *MalformedConditionError
			if errors.As(err, &mce) {
				mce.Row = rowNum
				mce.Column = column
			}
			return Rule{}, err
		}
		cond.Column = column
		rule.Conditions = append(rule.Conditions, cond)
	}

	offset := len(t.inputs) + 1
	for i, column := range t.outputs {
		cell := strings.TrimSpace(row[offset+i])
		if cell == "" || cell == Divider {
			continue
		}
		rule.Actions = append(rule.Actions, OutputAction{Field: column, Value: ParseLiteral(cell)})
	}

	return rule, nil
}

// Inputs returns the input column names in header order
func (t *DecisionTable) Inputs() []string {
	return append([]string(nil), t.inputs...)
}

// Outputs returns the output column names in header order
func (t *DecisionTable) Outputs() []string {
	return append([]string(nil), t.outputs...)
}

// Rules returns a copy of the rules in evaluation order
func (t *DecisionTable) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Len returns the number of rules
func (t *DecisionTable) Len() int {
	return len(t.rules)
}

// Evaluate scans the rules in order and applies the outputs of the first rule
// whose conditions all hold. A result without a rule means nothing matched,
// which is not an error. On error facts is left unmodified. A nil facts
// returns ErrNilFactSet.
func (t *DecisionTable) Evaluate(facts *FactSet) (*MatchResult, error) {
	if facts == nil {
		return nil, ErrNilFactSet
	}
	for i := range t.rules {
		rule := &t.rules[i]
		ok, err := rule.matches(facts)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, a := range rule.Actions {
			facts.Set(a.Field, a.Value)
		}
		return &MatchResult{Rule: rule}, nil
	}
	return &MatchResult{}, nil
}

// matches stops at the first failing condition. Wildcards do not read facts,
// so a wildcard column may be absent from the fact set.
func (r *Rule) matches(facts *FactSet) (bool, error) {
	for _, c := range r.Conditions {
		if c.IsWildcard() {
			continue
		}
		v, err := facts.Get(c.Column)
		if err != nil {
			return false, &MissingFactError{Fact: c.Column, Rule: r.Index, Cause: err}
		}
		ok, err := c.Matches(v)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Cells renders the rule as a row of cells under the given table's header,
// with an empty divider cell
func (r *Rule) Cells(t *DecisionTable) []string {
	cells := make([]string, 0, len(t.inputs)+1+len(t.outputs))
	for _, c := range r.Conditions {
		cells = append(cells, c.String())
	}
	cells = append(cells, "")
	actions := make(map[string]Value, len(r.Actions))
	for _, a := range r.Actions {
		actions[a.Field] = a.Value
	}
	for _, column := range t.outputs {
		if v, ok := actions[column]; ok {
			cells = append(cells, v.String())
		} else {
			cells = append(cells, "")
		}
	}
	return cells
}

// Header returns the header row, including the divider
func (t *DecisionTable) Header() []string {
	header := make([]string, 0, len(t.inputs)+1+len(t.outputs))
	header = append(header, t.inputs...)
	header = append(header, Divider)
	return append(header, t.outputs...)
}
