// Command dtable evaluates a decision table file against a JSON fact set.
//
//	dtable -table rules.csv -facts facts.json [-delimiter ';'] [-trace]
//
// It prints the match result and the updated facts as JSON and exits with
// status 2 when no rule matched, 1 on error.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/liamcoop/decisiontables/internal/logger"
	"github.com/liamcoop/decisiontables/rules"
)

// Exit codes
const (
	exitMatched = 0
	exitError   = 1
	exitNoMatch = 2
)

// Output is the JSON document written to stdout
type Output struct {
	Matched   bool           `json:"matched"`
	RuleIndex int            `json:"ruleIndex"`
	Outputs   map[string]any `json:"outputs"`
	Facts     map[string]any `json:"facts"`
	Rule      []string       `json:"rule,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dtable", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tablePath := fs.String("table", "", "decision table file (required)")
	factsPath := fs.String("facts", "-", "JSON object of facts, - for stdin")
	delimiter := fs.String("delimiter", string(rules.DefaultDelimiter), "cell delimiter")
	trace := fs.Bool("trace", false, "include the winning rule's cells in the output")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if *tablePath == "" {
		fmt.Fprintln(stderr, "dtable: -table is required")
		fs.Usage()
		return exitError
	}

	out, err := evaluate(*tablePath, *factsPath, *delimiter, *trace, stdin)
	if err != nil {
		logger.Debug("evaluation failed", "table", *tablePath, "error", err)
		fmt.Fprintf(stderr, "dtable: %v\n", err)
		return exitError
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "dtable: %v\n", err)
		return exitError
	}

	if !out.Matched {
		return exitNoMatch
	}
	return exitMatched
}

func evaluate(tablePath, factsPath, delimiter string, trace bool, stdin io.Reader) (*Output, error) {
	delim, err := rules.ParseDelimiter(delimiter)
	if err != nil {
		return nil, err
	}

	table, err := rules.LoadTable(tablePath, rules.WithDelimiter(delim))
	if err != nil {
		return nil, err
	}

	facts, err := readFacts(factsPath, stdin)
	if err != nil {
		return nil, err
	}

	result, err := table.Evaluate(facts)
	if err != nil {
		var missing *rules.MissingFactError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w (inputs: %s)", err, strings.Join(table.Inputs(), ", "))
		}
		return nil, err
	}

	logger.RecordEvaluation(result.Matched(), nil)

	out := &Output{
		Matched:   result.Matched(),
		RuleIndex: -1,
		Outputs:   result.Outputs(),
		Facts:     facts.Map(),
	}
	if result.Matched() {
		out.RuleIndex = result.Rule.Index
		if trace {
			out.Rule = result.Rule.Cells(table)
		}
	}
	return out, nil
}

func readFacts(path string, stdin io.Reader) (*rules.FactSet, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open facts: %w", err)
		}
		defer f.Close()
		r = f
	}

	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode facts: %w", err)
	}

	facts, err := rules.FactSetFrom(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid facts: %w", err)
	}
	return facts, nil
}
