package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// derivedCostLimit bounds the work a single derived expression may do
const derivedCostLimit = 1000000

// Deriver computes derived facts with precompiled CEL programs.
// It is immutable and safe for concurrent use.
type Deriver struct {
	fields   []DerivedField
	programs []cel.Program
}

// NewDerivedEnv creates the CEL environment derived expressions compile
// against. Facts are exposed as the map variable "facts".
func NewDerivedEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("facts", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// CompileDerived compiles every field expression. A nil Deriver is returned
// for an empty field list.
func CompileDerived(fields []DerivedField) (*Deriver, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	env, err := NewDerivedEnv()
	if err != nil {
		return nil, err
	}

	d := &Deriver{
		fields:   append([]DerivedField(nil), fields...),
		programs: make([]cel.Program, 0, len(fields)),
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("derived field has no name")
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("derived field %q declared more than once", f.Name)
		}
		seen[f.Name] = true

		ast, issues := env.Compile(f.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("derived field %q: compile error: %w", f.Name, issues.Err())
		}
		prog, err := env.Program(ast, cel.CostLimit(derivedCostLimit))
		if err != nil {
			return nil, fmt.Errorf("derived field %q: program creation error: %w", f.Name, err)
		}
		d.programs = append(d.programs, prog)
	}
	return d, nil
}

// Fields returns the declared derived fields in evaluation order
func (d *Deriver) Fields() []DerivedField {
	if d == nil {
		return nil
	}
	return append([]DerivedField(nil), d.fields...)
}

// Apply evaluates each field in declaration order and stores the result in
// facts, so later fields can use earlier ones. Nothing is written unless
// every expression succeeds.
func (d *Deriver) Apply(facts *FactSet) error {
	if d == nil {
		return nil
	}

	vars := facts.Map()
	computed := make([]Value, len(d.programs))
	for i, prog := range d.programs {
		out, _, err := prog.Eval(map[string]any{"facts": vars})
		if err != nil {
			return fmt.Errorf("derived field %q: %w", d.fields[i].Name, err)
		}
		v, err := ValueOf(out.Value())
		if err != nil {
			return fmt.Errorf("derived field %q: %w", d.fields[i].Name, err)
		}
		computed[i] = v
		vars[d.fields[i].Name] = v.Interface()
	}

	for i, v := range computed {
		facts.Set(d.fields[i].Name, v)
	}
	return nil
}
