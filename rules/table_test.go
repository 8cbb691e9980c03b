package rules

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

var loanHeader = []string{"hard_check_passed", "risk_score", "all_data_collected", "*", "status"}

// loanTable mirrors the example credit decision table
func loanTable(t *testing.T) *DecisionTable {
	t.Helper()
	table, err := NewDecisionTable([][]string{
		loanHeader,
		{"=false", ">-99999", "=true", "*", `"REJECTED"`},
		{"=true", ">10", "=true", "*", `"APPROVED"`},
		{"=true", "<=10", "=true", "*", `"MANUAL_REVIEW"`},
		{"*", "*", "=false", "*", `"INCOMPLETE"`},
	})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}
	return table
}

func facts(t *testing.T, m map[string]any) *FactSet {
	t.Helper()
	fs, err := FactSetFrom(m)
	if err != nil {
		t.Fatalf("FactSetFrom() failed: %v", err)
	}
	return fs
}

// TestNewDecisionTableSchema verifies the divider splits inputs from outputs
func TestNewDecisionTableSchema(t *testing.T) {
	table := loanTable(t)

	inputs := table.Inputs()
	if len(inputs) != 3 || inputs[0] != "hard_check_passed" || inputs[2] != "all_data_collected" {
		t.Errorf("Inputs() = %v", inputs)
	}
	outputs := table.Outputs()
	if len(outputs) != 1 || outputs[0] != "status" {
		t.Errorf("Outputs() = %v", outputs)
	}
	if table.Len() != 4 {
		t.Errorf("Len() = %d, want 4", table.Len())
	}
}

// TestNewDecisionTablePreservesOrder verifies N rows load as N rules in source order
func TestNewDecisionTablePreservesOrder(t *testing.T) {
	rows := [][]string{{"n", "*", "out"}}
	for i := 0; i < 25; i++ {
		rows = append(rows, []string{fmt.Sprintf("=%d", i), "", fmt.Sprintf("%d", i)})
	}

	table, err := NewDecisionTable(rows)
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}

	rules := table.Rules()
	if len(rules) != 25 {
		t.Fatalf("got %d rules, want 25", len(rules))
	}
	for i, r := range rules {
		if r.Index != i {
			t.Errorf("rule %d has Index %d", i, r.Index)
		}
		want := Number(float64(i))
		if !r.Conditions[0].Operand.Equal(want) {
			t.Errorf("rule %d operand = %v, want %v", i, r.Conditions[0].Operand, want)
		}
	}
}

// TestEvaluateRejectsFailedHardCheck verifies a false hard check wins with REJECTED
func TestEvaluateRejectsFailedHardCheck(t *testing.T) {
	table := loanTable(t)
	fs := facts(t, map[string]any{"hard_check_passed": false, "risk_score": 0, "all_data_collected": true})

	result, err := table.Evaluate(fs)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if !result.Matched() || result.Rule.Index != 0 {
		t.Fatalf("expected rule 0 to match, got %+v", result.Rule)
	}
	if got, _ := fs.Get("status"); !got.Equal(String("REJECTED")) {
		t.Errorf("status = %v, want \"REJECTED\"", got)
	}
}

// TestEvaluateApprovesHighRiskScore verifies a score above the threshold is approved
func TestEvaluateApprovesHighRiskScore(t *testing.T) {
	table := loanTable(t)
	fs := facts(t, map[string]any{"hard_check_passed": true, "risk_score": 12, "all_data_collected": true})

	result, err := table.Evaluate(fs)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if !result.Matched() || result.Rule.Index != 1 {
		t.Fatalf("expected rule 1 to match, got %+v", result.Rule)
	}
	if got, _ := fs.Get("status"); !got.Equal(String("APPROVED")) {
		t.Errorf("status = %v, want \"APPROVED\"", got)
	}
	if out := result.Outputs(); out["status"] != "APPROVED" {
		t.Errorf("Outputs() = %v", out)
	}
}

// TestEvaluateNoMatchLeavesFactsUntouched verifies a failed threshold leaves facts as they were
func TestEvaluateNoMatchLeavesFactsUntouched(t *testing.T) {
	table, err := NewDecisionTable([][]string{
		loanHeader,
		{"=true", ">10", "=true", "*", `"APPROVED"`},
	})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}
	fs := facts(t, map[string]any{"hard_check_passed": true, "risk_score": 5, "all_data_collected": true})

	result, err := table.Evaluate(fs)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if result.Matched() {
		t.Errorf("expected no match, got rule %d", result.Rule.Index)
	}
	if _, ok := fs.Lookup("status"); ok {
		t.Error("status should not be set when nothing matched")
	}
	if fs.Len() != 3 {
		t.Errorf("facts were modified: %v", fs.Map())
	}
}

// TestEvaluateMissingFactIsError verifies an absent tested fact fails evaluation
func TestEvaluateMissingFactIsError(t *testing.T) {
	table := loanTable(t)
	fs := facts(t, map[string]any{"hard_check_passed": true, "all_data_collected": true})

	_, err := table.Evaluate(fs)
	if !errors.Is(err, ErrMissingFact) {
		t.Fatalf("Evaluate() error = %v, want ErrMissingFact", err)
	}
	var mfe *MissingFactError
	if !errors.As(err, &mfe) || mfe.Fact != "risk_score" {
		t.Errorf("expected MissingFactError for risk_score, got %v", err)
	}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Error("MissingFactError should wrap the FactSet lookup error")
	}
	if _, ok := fs.Lookup("status"); ok {
		t.Error("no output should be applied on error")
	}
}

// TestEvaluateFirstMatchWins verifies later matching rules are never consulted
func TestEvaluateFirstMatchWins(t *testing.T) {
	table, err := NewDecisionTable([][]string{
		{"score", "*", "tier", "bonus"},
		{">50", "*", `"gold"`, "100"},
		{">10", "*", `"silver"`, "10"},
		{"*", "*", `"bronze"`, ""},
	})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}

	testCases := []struct {
		score float64
		rule  int
		tier  string
	}{
		{99, 0, "gold"},
		{51, 0, "gold"},
		{50, 1, "silver"},
		{11, 1, "silver"},
		{10, 2, "bronze"},
		{-1, 2, "bronze"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.score), func(t *testing.T) {
			fs := facts(t, map[string]any{"score": tc.score})
			result, err := table.Evaluate(fs)
			if err != nil {
				t.Fatalf("Evaluate() failed: %v", err)
			}
			if result.Rule.Index != tc.rule {
				t.Errorf("matched rule %d, want %d", result.Rule.Index, tc.rule)
			}
			if got, _ := fs.Get("tier"); !got.Equal(String(tc.tier)) {
				t.Errorf("tier = %v, want %q", got, tc.tier)
			}
		})
	}
}

// TestEvaluateStopsBeforeLaterErrors verifies rules after the winner are not evaluated
func TestEvaluateStopsBeforeLaterErrors(t *testing.T) {
	table, err := NewDecisionTable([][]string{
		{"a", "b", "*", "out"},
		{"=1", "*", "*", "first"},
		{"*", ">0", "*", "second"},
	})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}

	// b is absent and would be an error if rule 1 were evaluated
	fs := facts(t, map[string]any{"a": 1})
	result, err := table.Evaluate(fs)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if result.Rule.Index != 0 {
		t.Errorf("matched rule %d, want 0", result.Rule.Index)
	}
}

// TestEvaluateWildcardDoesNotNeedFact verifies wildcard columns may be absent from facts
func TestEvaluateWildcardDoesNotNeedFact(t *testing.T) {
	table := loanTable(t)
	fs := facts(t, map[string]any{"all_data_collected": false})

	result, err := table.Evaluate(fs)
	// Rule 0 tests hard_check_passed, which is missing
	if !errors.Is(err, ErrMissingFact) {
		t.Fatalf("Evaluate() error = %v, want ErrMissingFact from rule 0", err)
	}
	if result != nil {
		t.Error("result should be nil on error")
	}

	onlyWildcards, err := NewDecisionTable([][]string{
		{"x", "y", "*", "out"},
		{"*", "", "*", "yes"},
	})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}
	result, err = onlyWildcards.Evaluate(NewFactSet())
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if !result.Matched() {
		t.Error("all-wildcard rule should match an empty fact set")
	}
}

// TestEvaluateTypeMismatch verifies ordering against a string fact is an error
func TestEvaluateTypeMismatch(t *testing.T) {
	table := loanTable(t)
	fs := facts(t, map[string]any{"hard_check_passed": true, "risk_score": "12", "all_data_collected": true})

	_, err := table.Evaluate(fs)
	var tme *TypeMismatchError
	if !errors.As(err, &tme) {
		t.Fatalf("Evaluate() error = %v, want *TypeMismatchError", err)
	}
	if tme.Fact != "risk_score" {
		t.Errorf("Fact = %q, want risk_score", tme.Fact)
	}
	if _, ok := fs.Lookup("status"); ok {
		t.Error("no output should be applied on error")
	}
}

// TestEvaluateEmptyTable verifies a header-only table never matches
func TestEvaluateEmptyTable(t *testing.T) {
	table, err := NewDecisionTable([][]string{loanHeader})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}

	for _, m := range []map[string]any{{}, {"hard_check_passed": true, "risk_score": 12, "all_data_collected": true}} {
		result, err := table.Evaluate(facts(t, m))
		if err != nil {
			t.Fatalf("Evaluate() failed: %v", err)
		}
		if result.Matched() {
			t.Error("empty table should not match")
		}
	}
}

// TestEvaluateOutputsOverwrite verifies outputs replace existing facts and keep their types
func TestEvaluateOutputsOverwrite(t *testing.T) {
	table, err := NewDecisionTable([][]string{
		{"in", "*", "status", "limit", "manual", "note"},
		{"*", "*", `"OK"`, "2500", "false", ""},
	})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}

	fs := facts(t, map[string]any{"status": "PENDING", "limit": "none", "note": "keep"})
	if _, err := table.Evaluate(fs); err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}

	want := map[string]Value{
		"status": String("OK"),
		"limit":  Number(2500),
		"manual": Bool(false),
		"note":   String("keep"),
	}
	for k, w := range want {
		if got, _ := fs.Get(k); !got.Equal(w) {
			t.Errorf("%s = %v, want %v", k, got, w)
		}
	}
}

// TestEvaluateTwiceIsIdempotent verifies repeated evaluation applies the same outputs
func TestEvaluateTwiceIsIdempotent(t *testing.T) {
	table := loanTable(t)
	fs := facts(t, map[string]any{"hard_check_passed": true, "risk_score": 12, "all_data_collected": true})

	first, err := table.Evaluate(fs)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	snapshot := fs.Map()

	second, err := table.Evaluate(fs)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if first.Rule.Index != second.Rule.Index {
		t.Errorf("second evaluation matched rule %d, first matched %d", second.Rule.Index, first.Rule.Index)
	}
	for k, v := range fs.Map() {
		if snapshot[k] != v {
			t.Errorf("%s changed from %v to %v", k, snapshot[k], v)
		}
	}
}

// TestNewDecisionTableMalformed verifies structural errors are reported at load time
func TestNewDecisionTableMalformed(t *testing.T) {
	testCases := []struct {
		name string
		rows [][]string
		row  int
	}{
		{"no rows", nil, 0},
		{"no divider", [][]string{{"a", "b"}}, 0},
		{"two dividers", [][]string{{"a", "*", "b", "*", "c"}}, 0},
		{"empty column name", [][]string{{"a", "", "*", "c"}}, 0},
		{"duplicate output", [][]string{{"a", "*", "c", "c"}}, 0},
		{"short row", [][]string{{"a", "*", "c"}, {"=1", "*", "x"}, {"=1", "*"}}, 2},
		{"long row", [][]string{{"a", "*", "c"}, {"=1", "*", "x", "y"}}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := NewDecisionTable(tc.rows)
			if table != nil {
				t.Error("no partial table should be returned")
			}
			var mre *MalformedRuleError
			if !errors.As(err, &mre) {
				t.Fatalf("error = %v, want *MalformedRuleError", err)
			}
			if mre.Row != tc.row {
				t.Errorf("Row = %d, want %d", mre.Row, tc.row)
			}
			if !errors.Is(err, ErrMalformedRule) {
				t.Error("error should match ErrMalformedRule")
			}
		})
	}
}

// TestNewDecisionTableMalformedCondition verifies bad condition cells fail with position info
func TestNewDecisionTableMalformedCondition(t *testing.T) {
	_, err := NewDecisionTable([][]string{
		loanHeader,
		{"=true", ">10", "=true", "*", `"APPROVED"`},
		{"=true", ">ten", "=true", "*", `"APPROVED"`},
	})

	var mce *MalformedConditionError
	if !errors.As(err, &mce) {
		t.Fatalf("error = %v, want *MalformedConditionError", err)
	}
	if mce.Row != 2 || mce.Column != "risk_score" {
		t.Errorf("position = row %d column %q, want row 2 column risk_score", mce.Row, mce.Column)
	}
}

// TestNewDecisionTableDuplicateInputs verifies one fact may be tested by two columns
func TestNewDecisionTableDuplicateInputs(t *testing.T) {
	table, err := NewDecisionTable([][]string{
		{"age", "age", "*", "band"},
		{">=18", "<65", "*", `"adult"`},
		{"*", "*", "*", `"other"`},
	})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}

	fs := facts(t, map[string]any{"age": 70})
	result, err := table.Evaluate(fs)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if result.Rule.Index != 1 {
		t.Errorf("matched rule %d, want 1", result.Rule.Index)
	}
}

// TestRuleCellsRoundTrip verifies re-serialized rows rebuild an equivalent table
func TestRuleCellsRoundTrip(t *testing.T) {
	table := loanTable(t)

	rows := [][]string{table.Header()}
	for _, r := range table.Rules() {
		rows = append(rows, r.Cells(table))
	}
	rebuilt, err := NewDecisionTable(rows)
	if err != nil {
		t.Fatalf("NewDecisionTable() of re-serialized rows failed: %v", err)
	}
	if rebuilt.Len() != table.Len() {
		t.Fatalf("rebuilt %d rules, want %d", rebuilt.Len(), table.Len())
	}

	inputs := []map[string]any{
		{"hard_check_passed": false, "risk_score": 0, "all_data_collected": true},
		{"hard_check_passed": true, "risk_score": 12, "all_data_collected": true},
		{"hard_check_passed": true, "risk_score": 10, "all_data_collected": true},
		{"hard_check_passed": true, "risk_score": 10, "all_data_collected": false},
	}
	for _, in := range inputs {
		a, b := facts(t, in), facts(t, in)
		ra, errA := table.Evaluate(a)
		rb, errB := rebuilt.Evaluate(b)
		if errA != nil || errB != nil {
			t.Fatalf("Evaluate() errors: %v, %v", errA, errB)
		}
		if ra.Rule.Index != rb.Rule.Index {
			t.Errorf("facts %v: original matched %d, rebuilt matched %d", in, ra.Rule.Index, rb.Rule.Index)
		}
	}
}

// TestRuleCellsRoundTripQuotedLiterals verifies backslashes and doubled quotes
// survive re-serialization unchanged
func TestRuleCellsRoundTripQuotedLiterals(t *testing.T) {
	table, err := NewDecisionTable([][]string{
		{"path", "*", "label"},
		{`="C:\new\temp"`, "*", `"say ""hi"""`},
	})
	if err != nil {
		t.Fatalf("NewDecisionTable() failed: %v", err)
	}

	rows := [][]string{table.Header()}
	for _, r := range table.Rules() {
		rows = append(rows, r.Cells(table))
	}
	if got := rows[1][0]; got != `="C:\new\temp"` {
		t.Errorf("condition cell = %s, want =\"C:\\new\\temp\"", got)
	}

	rebuilt, err := NewDecisionTable(rows)
	if err != nil {
		t.Fatalf("NewDecisionTable() of re-serialized rows failed: %v", err)
	}

	fs := facts(t, map[string]any{"path": `C:\new\temp`})
	result, err := rebuilt.Evaluate(fs)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if !result.Matched() {
		t.Fatal("Expected the rebuilt rule to match the literal path")
	}
	if got, _ := fs.Lookup("label"); !got.Equal(String(`say "hi"`)) {
		t.Errorf("label = %v, want %q", got, `say "hi"`)
	}
}

// TestEvaluateConcurrent verifies a shared table serves concurrent callers
func TestEvaluateConcurrent(t *testing.T) {
	table := loanTable(t)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			fs, _ := FactSetFrom(map[string]any{"hard_check_passed": true, "risk_score": score, "all_data_collected": true})
			result, err := table.Evaluate(fs)
			if err != nil {
				errs <- err
				return
			}
			want := "MANUAL_REVIEW"
			if score > 10 {
				want = "APPROVED"
			}
			if got, _ := fs.Get("status"); !got.Equal(String(want)) {
				errs <- fmt.Errorf("score %d: status %v, want %s (rule %d)", score, got, want, result.Rule.Index)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

// TestEvaluateNilFacts verifies a nil fact set is an error rather than a panic
func TestEvaluateNilFacts(t *testing.T) {
	if _, err := loanTable(t).Evaluate(nil); !errors.Is(err, ErrNilFactSet) {
		t.Errorf("Evaluate(nil) error = %v, want ErrNilFactSet", err)
	}

	engine, _ := NewEngine(NewInMemoryTableStore())
	if err := engine.AddTable(loanDefinition("loan")); err != nil {
		t.Fatalf("AddTable() failed: %v", err)
	}
	if _, err := engine.Evaluate("loan", nil); !errors.Is(err, ErrNilFactSet) {
		t.Errorf("Engine.Evaluate(nil) error = %v, want ErrNilFactSet", err)
	}
}
