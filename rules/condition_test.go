package rules

import (
	"errors"
	"testing"
)

// TestParseConditionOperators verifies operator and operand parsing for every token
func TestParseConditionOperators(t *testing.T) {
	testCases := []struct {
		expr    string
		op      Operator
		operand Value
	}{
		{"*", OpWildcard, Value{}},
		{"", OpWildcard, Value{}},
		{"=true", OpEqual, Bool(true)},
		{"=false", OpEqual, Bool(false)},
		{"=10", OpEqual, Number(10)},
		{`="REJECTED"`, OpEqual, String("REJECTED")},
		{"=gold", OpEqual, String("gold")},
		{"!=3", OpNotEqual, Number(3)},
		{">10", OpGreater, Number(10)},
		{">-99999", OpGreater, Number(-99999)},
		{"<5.5", OpLess, Number(5.5)},
		{">=0", OpGreaterEqual, Number(0)},
		{"<= 7", OpLessEqual, Number(7)},
		{`"REJECTED"`, OpEqual, String("REJECTED")},
		{"true", OpEqual, Bool(true)},
		{"42", OpEqual, Number(42)},
	}

	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			c, err := ParseCondition(tc.expr)
			if err != nil {
				t.Fatalf("ParseCondition(%q) failed: %v", tc.expr, err)
			}
			if c.Operator != tc.op {
				t.Errorf("Operator = %q, want %q", c.Operator, tc.op)
			}
			if tc.op != OpWildcard && !c.Operand.Equal(tc.operand) {
				t.Errorf("Operand = %v, want %v", c.Operand, tc.operand)
			}
		})
	}
}

// TestParseConditionMalformed verifies load-time rejection of bad cells
func TestParseConditionMalformed(t *testing.T) {
	for _, expr := range []string{">abc", ">", "=", "<=", "!=", "~5", "APPROVED", ">=true", `>"10"`} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseCondition(expr)
			if err == nil {
				t.Fatalf("ParseCondition(%q) should fail", expr)
			}
			var mce *MalformedConditionError
			if !errors.As(err, &mce) {
				t.Errorf("error should be *MalformedConditionError, got %T", err)
			}
			if !errors.Is(err, ErrMalformedCondition) {
				t.Error("error should match ErrMalformedCondition")
			}
		})
	}
}

// TestMatch verifies the matches(operatorExpr, factValue) contract
func TestMatch(t *testing.T) {
	testCases := []struct {
		name string
		expr string
		fact Value
		want bool
	}{
		{"equal bool", "=true", Bool(true), true},
		{"equal bool mismatch", "=false", Bool(true), false},
		{"equal number", "=12", Number(12), true},
		{"equal number fraction", "=12", Number(12.5), false},
		{"equal string", `="gold"`, String("gold"), true},
		{"equal string case", `="gold"`, String("Gold"), false},
		{"equal cross type", "=12", String("12"), false},
		{"equal bool vs string", "=true", String("true"), false},
		{"not equal", "!=3", Number(4), true},
		{"not equal same", "!=3", Number(3), false},
		{"not equal cross type", "!=true", String("x"), true},
		{"greater", ">10", Number(12), true},
		{"greater boundary", ">10", Number(10), false},
		{"less", "<10", Number(5), true},
		{"greater equal boundary", ">=10", Number(10), true},
		{"less equal boundary", "<=10", Number(10), true},
		{"less equal above", "<=10", Number(10.01), false},
		{"bare string", `"REJECTED"`, String("REJECTED"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Match(tc.expr, tc.fact)
			if err != nil {
				t.Fatalf("Match(%q, %v) failed: %v", tc.expr, tc.fact, err)
			}
			if got != tc.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tc.expr, tc.fact, got, tc.want)
			}
		})
	}
}

// TestMatchWildcard verifies that a wildcard matches every value
func TestMatchWildcard(t *testing.T) {
	for _, v := range []Value{{}, Bool(false), Number(-1), String(""), String("anything")} {
		ok, err := Match("*", v)
		if err != nil || !ok {
			t.Errorf("Match(\"*\", %v) = %v, %v; want true, nil", v, ok, err)
		}
	}
}

// TestMatchOrderingTypeMismatch verifies that ordering against a non-number is an error
func TestMatchOrderingTypeMismatch(t *testing.T) {
	for _, v := range []Value{Bool(true), String("12")} {
		_, err := Match(">10", v)
		var tme *TypeMismatchError
		if !errors.As(err, &tme) {
			t.Fatalf("Match(\">10\", %v) error = %v, want *TypeMismatchError", v, err)
		}
		if tme.Operator != OpGreater {
			t.Errorf("Operator = %q, want %q", tme.Operator, OpGreater)
		}
	}
}

// TestConditionStringRoundTrip verifies that re-serialized conditions match the same way
func TestConditionStringRoundTrip(t *testing.T) {
	facts := []Value{Bool(true), Bool(false), Number(-5), Number(10), Number(11), String("gold"), String("10")}

	for _, expr := range []string{"*", "=true", "=10", "=gold", `"gold"`, "!=false", ">10", "<=-5", ">=10.0"} {
		orig, err := ParseCondition(expr)
		if err != nil {
			t.Fatalf("ParseCondition(%q) failed: %v", expr, err)
		}
		again, err := ParseCondition(orig.String())
		if err != nil {
			t.Fatalf("ParseCondition(%q) of re-serialized %q failed: %v", orig.String(), expr, err)
		}
		for _, f := range facts {
			want, wantErr := orig.Matches(f)
			got, gotErr := again.Matches(f)
			if got != want || (wantErr == nil) != (gotErr == nil) {
				t.Errorf("%q vs %q on %v: got (%v, %v), want (%v, %v)", expr, orig.String(), f, got, gotErr, want, wantErr)
			}
		}
	}
}
