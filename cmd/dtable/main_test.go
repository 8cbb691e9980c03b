package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const loanTable = `income;credit;*;decision
>=50000;>700;*;"APPROVED"
>=30000;*;*;"REVIEW"`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// TestRun verifies exit codes and output for the main outcomes
func TestRun(t *testing.T) {
	table := writeFile(t, "loan.csv", loanTable)

	tests := []struct {
		name         string
		facts        string
		wantCode     int
		wantDecision any
	}{
		{"approved", `{"income": 60000, "credit": 720}`, exitMatched, "APPROVED"},
		{"review", `{"income": 40000, "credit": 600}`, exitMatched, "REVIEW"},
		{"no match", `{"income": 1000, "credit": 800}`, exitNoMatch, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run([]string{"-table", table}, strings.NewReader(tt.facts), &stdout, &stderr)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}

			var out Output
			if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
				t.Fatalf("Output is not JSON: %v", err)
			}
			if out.Facts["decision"] != tt.wantDecision {
				t.Errorf("decision = %v, want %v", out.Facts["decision"], tt.wantDecision)
			}
			if !out.Matched && out.RuleIndex != -1 {
				t.Errorf("RuleIndex = %d for no match, want -1", out.RuleIndex)
			}
		})
	}
}

// TestRun_FactsFileAndDelimiter verifies -facts and -delimiter
func TestRun_FactsFileAndDelimiter(t *testing.T) {
	table := writeFile(t, "loan.psv", strings.ReplaceAll(loanTable, ";", "|"))
	facts := writeFile(t, "facts.json", `{"income": 60000, "credit": 720}`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-table", table, "-facts", facts, "-delimiter", "|", "-trace"}, nil, &stdout, &stderr)
	if code != exitMatched {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	var out Output
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if out.RuleIndex != 0 || out.Outputs["decision"] != "APPROVED" {
		t.Errorf("Unexpected output: %+v", out)
	}
	if len(out.Rule) != 4 || out.Rule[0] != ">=50000" {
		t.Errorf("Expected traced rule cells, got %v", out.Rule)
	}
}

// TestRun_Errors verifies failures exit with status 1
func TestRun_Errors(t *testing.T) {
	table := writeFile(t, "loan.csv", loanTable)
	broken := writeFile(t, "broken.csv", "income;decision\n>1;\"X\"")

	tests := []struct {
		name      string
		args      []string
		facts     string
		errSubstr string
	}{
		{"no table flag", nil, `{}`, "-table is required"},
		{"missing file", []string{"-table", filepath.Join(t.TempDir(), "nope.csv")}, `{}`, "failed to open table"},
		{"malformed table", []string{"-table", broken}, `{}`, "divider"},
		{"missing fact", []string{"-table", table}, `{"income": 60000}`, `"credit" is missing`},
		{"bad json", []string{"-table", table}, `{`, "failed to decode facts"},
		{"nested fact", []string{"-table", table}, `{"income": {"gross": 1}}`, "invalid facts"},
		{"bad delimiter", []string{"-table", table, "-delimiter", "ab"}, `{}`, "single character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, strings.NewReader(tt.facts), &stdout, &stderr)
			if code != exitError {
				t.Fatalf("exit code = %d, want %d", code, exitError)
			}
			if !strings.Contains(stderr.String(), tt.errSubstr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.errSubstr)
			}
		})
	}
}
