package rules

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TableStore manages decision table persistence and retrieval
type TableStore interface {
	// Add a new table definition
	Add(def *TableDefinition) error

	// Get a table definition by ID
	Get(id string) (*TableDefinition, error)

	// List all table definitions, active or not, oldest first
	List() ([]*TableDefinition, error)

	// List all active table definitions, oldest first
	ListActive() ([]*TableDefinition, error)

	// Update an existing table definition
	Update(def *TableDefinition) error

	// Delete a table definition
	Delete(id string) error
}

// InMemoryTableStore implements TableStore using an in-memory map
// Thread-safe with RWMutex
type InMemoryTableStore struct {
	tables map[string]*TableDefinition
	mu     sync.RWMutex
}

// NewInMemoryTableStore creates a new in-memory table store
func NewInMemoryTableStore() *InMemoryTableStore {
	return &InMemoryTableStore{
		tables: make(map[string]*TableDefinition),
	}
}

// Add adds a new table definition to the store
// Sets CreatedAt and UpdatedAt
func (s *InMemoryTableStore) Add(def *TableDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[def.ID]; exists {
		return fmt.Errorf("table with ID %s already exists", def.ID)
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	s.tables[def.ID] = def
	return nil
}

// Get retrieves a table definition by ID
func (s *InMemoryTableStore) Get(id string) (*TableDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.tables[id]
	if !exists {
		return nil, fmt.Errorf("table with ID %s not found", id)
	}
	return def, nil
}

// List returns every table definition ordered by creation time
func (s *InMemoryTableStore) List() ([]*TableDefinition, error) {
	return s.filter(func(*TableDefinition) bool { return true }), nil
}

// ListActive returns all active table definitions ordered by creation time
func (s *InMemoryTableStore) ListActive() ([]*TableDefinition, error) {
	return s.filter(func(def *TableDefinition) bool { return def.Active }), nil
}

func (s *InMemoryTableStore) filter(keep func(*TableDefinition) bool) []*TableDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var defs []*TableDefinition
	for _, def := range s.tables {
		if keep(def) {
			defs = append(defs, def)
		}
	}

	// Map iteration is random; evaluation order must be stable
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].CreatedAt.Equal(defs[j].CreatedAt) {
			return defs[i].ID < defs[j].ID
		}
		return defs[i].CreatedAt.Before(defs[j].CreatedAt)
	})
	return defs
}

// Update updates an existing table definition
// Updates UpdatedAt, preserves CreatedAt
func (s *InMemoryTableStore) Update(def *TableDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tables[def.ID]
	if !exists {
		return fmt.Errorf("table with ID %s not found", def.ID)
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()
	s.tables[def.ID] = def
	return nil
}

// Delete removes a table definition from the store
func (s *InMemoryTableStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[id]; !exists {
		return fmt.Errorf("table with ID %s not found", id)
	}

	delete(s.tables, id)
	return nil
}
