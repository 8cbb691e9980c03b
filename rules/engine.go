package rules

import (
	"fmt"
	"strings"
	"sync"
)

// TableValidator checks a parsed table before the engine accepts it.
// Multi-tenant deployments use it to enforce a fact schema.
type TableValidator func(t *DecisionTable) error

// compiledTable is a parsed table plus its derived-fact programs
type compiledTable struct {
	table   *DecisionTable
	deriver *Deriver
}

// Engine keeps stored table definitions compiled and evaluates them.
// Thread-safe for concurrent reads and compilation (RWMutex).
type Engine struct {
	store     TableStore
	cache     TablesCache                // cache for active definitions list
	tables    map[string]*compiledTable // tableID -> compiled table
	validator TableValidator
	mu        sync.RWMutex
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithValidator installs a validator run on every table at compile time
func WithValidator(v TableValidator) EngineOption {
	return func(en *Engine) {
		en.validator = v
	}
}

// WithCache replaces the default in-memory active-list cache
func WithCache(c TablesCache) EngineOption {
	return func(en *Engine) {
		en.cache = c
	}
}

// NewEngine creates an engine and compiles every active table in the store
func NewEngine(store TableStore, opts ...EngineOption) (*Engine, error) {
	en := &Engine{
		store:  store,
		cache:  NewInMemoryTablesCache(DefaultCacheConfig()),
		tables: make(map[string]*compiledTable),
	}
	for _, opt := range opts {
		opt(en)
	}

	if err := en.CompileAllTables(); err != nil {
		return nil, fmt.Errorf("failed to compile tables: %w", err)
	}

	return en, nil
}

// Compile parses a definition without registering it
func (en *Engine) Compile(def *TableDefinition) (*DecisionTable, *Deriver, error) {
	delim, err := ParseDelimiter(def.Delimiter)
	if err != nil {
		return nil, nil, err
	}

	table, err := ReadTable(strings.NewReader(def.Source), WithDelimiter(delim))
	if err != nil {
		return nil, nil, fmt.Errorf("parse error: %w", err)
	}

	if en.validator != nil {
		if err := en.validator(table); err != nil {
			return nil, nil, fmt.Errorf("validation error: %w", err)
		}
	}

	deriver, err := CompileDerived(def.Derived)
	if err != nil {
		return nil, nil, err
	}

	return table, deriver, nil
}

// CompileTable parses a definition and caches the result under its ID
func (en *Engine) CompileTable(def *TableDefinition) error {
	table, deriver, err := en.Compile(def)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.tables[def.ID] = &compiledTable{table: table, deriver: deriver}
	en.mu.Unlock()

	return nil
}

// CompileAllTables compiles every stored table, inactive ones included, so
// that single-table evaluation behaves the same before and after a rebuild.
// Also populates the cache with the active list.
func (en *Engine) CompileAllTables() error {
	defs, err := en.store.List()
	if err != nil {
		return err
	}

	active := make([]*TableDefinition, 0, len(defs))
	for _, def := range defs {
		if err := en.CompileTable(def); err != nil {
			return fmt.Errorf("failed to compile table %s: %w", def.ID, err)
		}
		if def.Active {
			active = append(active, def)
		}
	}

	en.cache.Set(active)

	return nil
}

// AddTable validates, compiles and stores a new table definition.
// The compiled table is dropped again if the store rejects it.
func (en *Engine) AddTable(def *TableDefinition) error {
	if _, err := en.store.Get(def.ID); err == nil {
		return fmt.Errorf("table with ID %s already exists", def.ID)
	}

	if err := en.CompileTable(def); err != nil {
		return fmt.Errorf("table validation failed: %w", err)
	}

	if err := en.store.Add(def); err != nil {
		en.mu.Lock()
		delete(en.tables, def.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()

	return nil
}

// UpdateTable validates the new definition before replacing the stored one
func (en *Engine) UpdateTable(def *TableDefinition) error {
	table, deriver, err := en.Compile(def)
	if err != nil {
		return fmt.Errorf("table validation failed: %w", err)
	}

	if err := en.store.Update(def); err != nil {
		return err
	}

	en.mu.Lock()
	en.tables[def.ID] = &compiledTable{table: table, deriver: deriver}
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// DeleteTable removes a table from the store and the compiled set
func (en *Engine) DeleteTable(tableID string) error {
	if err := en.store.Delete(tableID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.tables, tableID)
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// Definition returns the stored definition for tableID
func (en *Engine) Definition(tableID string) (*TableDefinition, error) {
	return en.store.Get(tableID)
}

// Definitions returns every stored definition, active or not
func (en *Engine) Definitions() ([]*TableDefinition, error) {
	return en.store.List()
}

// Table returns the compiled table for tableID
func (en *Engine) Table(tableID string) (*DecisionTable, error) {
	ct, err := en.compiled(tableID)
	if err != nil {
		return nil, err
	}
	return ct.table, nil
}

func (en *Engine) compiled(tableID string) (*compiledTable, error) {
	en.mu.RLock()
	ct, exists := en.tables[tableID]
	en.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("table %s is not compiled", tableID)
	}
	return ct, nil
}

// Evaluate computes derived facts and runs one table against facts,
// applying the winning rule's outputs. No match is reported with
// Matched=false and a nil error.
func (en *Engine) Evaluate(tableID string, facts *FactSet) (*EvaluationResult, error) {
	def, err := en.store.Get(tableID)
	if err != nil {
		return nil, err
	}

	ct, err := en.compiled(tableID)
	if err != nil {
		return nil, err
	}

	result := evaluateCompiled(def, ct, facts)
	return result, result.Error
}

// EvaluateAll runs every active table in creation order against the same
// fact set, so later tables see the outputs of earlier ones. A failing table
// is recorded in its result and the remaining tables still run.
func (en *Engine) EvaluateAll(facts *FactSet) ([]*EvaluationResult, error) {
	defs := en.cache.Get()

	if defs == nil {
		var err error
		defs, err = en.store.ListActive()
		if err != nil {
			return nil, err
		}
		en.cache.Set(defs)
	}

	results := make([]*EvaluationResult, 0, len(defs))
	for _, def := range defs {
		ct, err := en.compiled(def.ID)
		if err != nil {
			results = append(results, &EvaluationResult{
				TableID:   def.ID,
				TableName: def.Name,
				RuleIndex: -1,
				Error:     err,
			})
			continue
		}
		results = append(results, evaluateCompiled(def, ct, facts))
	}

	return results, nil
}

// evaluateCompiled works on a scratch copy so that a failure in derived
// fields or conditions leaves facts untouched
func evaluateCompiled(def *TableDefinition, ct *compiledTable, facts *FactSet) *EvaluationResult {
	result := &EvaluationResult{
		TableID:   def.ID,
		TableName: def.Name,
		RuleIndex: -1,
	}

	if facts == nil {
		result.Error = ErrNilFactSet
		return result
	}

	scratch := facts.Clone()
	if err := ct.deriver.Apply(scratch); err != nil {
		result.Error = err
		return result
	}

	match, err := ct.table.Evaluate(scratch)
	if err != nil {
		result.Error = err
		return result
	}

	for _, k := range scratch.Keys() {
		v, _ := scratch.Lookup(k)
		facts.Set(k, v)
	}

	result.Outputs = match.Outputs()
	if match.Matched() {
		result.Matched = true
		result.RuleIndex = match.Rule.Index
	}
	return result
}
