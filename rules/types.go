package rules

import "time"

// Rule is one row of a decision table
type Rule struct {
	Index      int // position in the table, 0-based; lower wins
	Conditions []Condition
	Actions    []OutputAction
}

// OutputAction writes Value to the fact Field when its rule wins
type OutputAction struct {
	Field string
	Value Value
}

// MatchResult is the outcome of DecisionTable.Evaluate.
// Rule is nil when no rule matched.
type MatchResult struct {
	Rule *Rule
}

// Matched reports whether a rule won
func (m *MatchResult) Matched() bool {
	return m != nil && m.Rule != nil
}

// Outputs returns the values written by the winning rule, keyed by field
func (m *MatchResult) Outputs() map[string]any {
	out := make(map[string]any)
	if !m.Matched() {
		return out
	}
	for _, a := range m.Rule.Actions {
		out[a.Field] = a.Value.Interface()
	}
	return out
}

// TableDefinition is the stored form of a decision table
type TableDefinition struct {
	ID        string
	Name      string
	Source    string // delimited text, header row first
	Delimiter string // single character; empty means DefaultDelimiter
	Derived   []DerivedField
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EvaluationResult contains the outcome of evaluating one stored table
type EvaluationResult struct {
	TableID   string
	TableName string
	Matched   bool
	RuleIndex int // -1 when nothing matched
	Outputs   map[string]any
	Error     error
}

// DerivedField is a fact computed from other facts before a table runs
type DerivedField struct {
	Name       string `json:"name"`
	Expression string `json:"expression"` // CEL expression over the map variable "facts"
}
