package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// DefaultDelimiter separates cells in table sources
const DefaultDelimiter = ';'

type sourceConfig struct {
	delimiter rune
}

// SourceOption configures ReadTable and LoadTable
type SourceOption func(*sourceConfig)

// WithDelimiter sets the cell delimiter
func WithDelimiter(d rune) SourceOption {
	return func(c *sourceConfig) {
		c.delimiter = d
	}
}

// ParseDelimiter converts a stored or configured delimiter string to a rune.
// The empty string selects DefaultDelimiter.
func ParseDelimiter(s string) (rune, error) {
	if s == "" {
		return DefaultDelimiter, nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}

// ReadTable reads a delimited table source and builds a DecisionTable.
// Quotes are kept in the cell text because they distinguish the string "12"
// from the number 12; a delimiter inside quotes does not split the cell.
// Cells are trimmed and fully blank lines are skipped.
func ReadTable(r io.Reader, opts ...SourceOption) (*DecisionTable, error) {
	cfg := sourceConfig{delimiter: DefaultDelimiter}
	for _, opt := range opts {
		opt(&cfg)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows [][]string
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		record, err := splitCells(text, cfg.delimiter)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table source: %w", err)
	}

	return NewDecisionTable(rows)
}

// splitCells splits one line on delim outside double quotes
func splitCells(line string, delim rune) ([]string, error) {
	var cells []string
	var cell strings.Builder
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			cell.WriteRune(r)
		case r == delim && !quoted:
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		default:
			cell.WriteRune(r)
		}
	}
	if quoted {
		return nil, errors.New("unterminated quoted cell")
	}
	return append(cells, strings.TrimSpace(cell.String())), nil
}

// LoadTable reads a table source from a file
func LoadTable(path string, opts ...SourceOption) (*DecisionTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %q: %w", path, err)
	}
	defer f.Close()

	t, err := ReadTable(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", path, err)
	}
	return t, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
