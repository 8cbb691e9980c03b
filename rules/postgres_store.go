package rules

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresTableStore implements TableStore backed by PostgreSQL
type PostgresTableStore struct {
	db       *sql.DB
	tenantID string
}

// NewPostgresTableStore creates a new PostgreSQL-backed TableStore for a specific tenant
func NewPostgresTableStore(db *sql.DB, tenantID string) *PostgresTableStore {
	return &PostgresTableStore{
		db:       db,
		tenantID: tenantID,
	}
}

// Add inserts a new table definition into the database
func (s *PostgresTableStore) Add(def *TableDefinition) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM decision_tables WHERE id = $1 AND tenant_id = $2)
	`, def.ID, s.tenantID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check table existence: %w", err)
	}
	if exists {
		return fmt.Errorf("table with ID %s already exists", def.ID)
	}

	derived, err := json.Marshal(derivedOrEmpty(def.Derived))
	if err != nil {
		return fmt.Errorf("failed to marshal derived fields: %w", err)
	}

	now := time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO decision_tables (id, tenant_id, name, source, delimiter, derived, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, def.ID, s.tenantID, def.Name, def.Source, def.Delimiter, derived, def.Active,
		def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert table: %w", err)
	}

	return nil
}

// Get retrieves a table definition by ID
func (s *PostgresTableStore) Get(id string) (*TableDefinition, error) {
	row := s.db.QueryRow(`
		SELECT id, name, source, delimiter, derived, active, created_at, updated_at
		FROM decision_tables
		WHERE id = $1 AND tenant_id = $2
	`, id, s.tenantID)

	def, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	return def, nil
}

// List returns every table definition for the tenant, oldest first
func (s *PostgresTableStore) List() ([]*TableDefinition, error) {
	rows, err := s.db.Query(`
		SELECT id, name, source, delimiter, derived, active, created_at, updated_at
		FROM decision_tables
		WHERE tenant_id = $1
		ORDER BY created_at ASC, id ASC
	`, s.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return scanTables(rows)
}

// ListActive returns all active table definitions for the tenant, oldest first
func (s *PostgresTableStore) ListActive() ([]*TableDefinition, error) {
	rows, err := s.db.Query(`
		SELECT id, name, source, delimiter, derived, active, created_at, updated_at
		FROM decision_tables
		WHERE tenant_id = $1 AND active = true
		ORDER BY created_at ASC, id ASC
	`, s.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tables: %w", err)
	}
	return scanTables(rows)
}

func scanTables(rows *sql.Rows) ([]*TableDefinition, error) {
	defer rows.Close()

	var defs []*TableDefinition
	for rows.Next() {
		def, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return defs, nil
}

// Update modifies an existing table definition
func (s *PostgresTableStore) Update(def *TableDefinition) error {
	existing, err := s.Get(def.ID)
	if err != nil {
		return err
	}

	derived, err := json.Marshal(derivedOrEmpty(def.Derived))
	if err != nil {
		return fmt.Errorf("failed to marshal derived fields: %w", err)
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE decision_tables
		SET name = $1, source = $2, delimiter = $3, derived = $4, active = $5, updated_at = $6
		WHERE id = $7 AND tenant_id = $8
	`, def.Name, def.Source, def.Delimiter, derived, def.Active, def.UpdatedAt, def.ID, s.tenantID)
	if err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("table %s not found", def.ID)
	}

	return nil
}

// Delete removes a table definition from the database
func (s *PostgresTableStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM decision_tables
		WHERE id = $1 AND tenant_id = $2
	`, id, s.tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("table %s not found", id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(row rowScanner) (*TableDefinition, error) {
	var def TableDefinition
	var derived []byte
	if err := row.Scan(&def.ID, &def.Name, &def.Source, &def.Delimiter, &derived,
		&def.Active, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return nil, err
	}
	if len(derived) > 0 {
		if err := json.Unmarshal(derived, &def.Derived); err != nil {
			return nil, fmt.Errorf("invalid derived fields for table %s: %w", def.ID, err)
		}
	}
	return &def, nil
}

func derivedOrEmpty(fields []DerivedField) []DerivedField {
	if fields == nil {
		return []DerivedField{}
	}
	return fields
}
