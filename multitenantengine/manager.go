package multitenantengine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/decisiontables/internal/logger"
	"github.com/liamcoop/decisiontables/rules"
)

var (
	// ErrTenantNotFound is returned for tenants without a loaded engine
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrSchemaConflict is returned when stored tables violate a new schema
	ErrSchemaConflict = errors.New("stored tables do not satisfy the schema")
)

// Schema declares the facts a tenant's tables may test
// Maps fact names to type names (bool, number, string)
type Schema map[string]string

// TenantEngine wraps a rules.Engine with tenant-specific metadata
type TenantEngine struct {
	TenantID string
	Schema   Schema
	Version  int
	Engine   *rules.Engine
}

// StoreFactory returns the table store backing one tenant's engine
type StoreFactory func(tenantID string) rules.TableStore

// MultiTenantEngineManager manages engines for all tenants
type MultiTenantEngineManager struct {
	engines  map[string]*TenantEngine
	db       *sql.DB
	stores   StoreFactory
	cacheTTL time.Duration
	mu       sync.RWMutex
}

// InMemoryStores returns a StoreFactory keeping one in-memory store per
// tenant, so tables survive schema updates
func InMemoryStores() StoreFactory {
	var mu sync.Mutex
	stores := make(map[string]*rules.InMemoryTableStore)
	return func(tenantID string) rules.TableStore {
		mu.Lock()
		defer mu.Unlock()
		store, ok := stores[tenantID]
		if !ok {
			store = rules.NewInMemoryTableStore()
			stores[tenantID] = store
		}
		return store
	}
}

// ManagerOption configures a MultiTenantEngineManager
type ManagerOption func(*MultiTenantEngineManager)

// WithStoreFactory replaces the PostgreSQL table stores, e.g. with
// rules.NewInMemoryTableStore for tests
func WithStoreFactory(f StoreFactory) ManagerOption {
	return func(m *MultiTenantEngineManager) {
		m.stores = f
	}
}

// WithCacheTTL sets the active-table cache TTL of every tenant engine
func WithCacheTTL(ttl time.Duration) ManagerOption {
	return func(m *MultiTenantEngineManager) {
		m.cacheTTL = ttl
	}
}

// NewMultiTenantEngineManager creates a new manager instance.
// With a nil db, schemas are only kept in memory.
func NewMultiTenantEngineManager(db *sql.DB, opts ...ManagerOption) *MultiTenantEngineManager {
	m := &MultiTenantEngineManager{
		engines:  make(map[string]*TenantEngine),
		db:       db,
		cacheTTL: rules.DefaultCacheConfig().TTL,
	}
	m.stores = func(tenantID string) rules.TableStore {
		return rules.NewPostgresTableStore(m.db, tenantID)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewEngineForSchema creates an engine whose tables are checked against schema
func NewEngineForSchema(schema Schema, store rules.TableStore, opts ...rules.EngineOption) (*rules.Engine, error) {
	opts = append(opts, rules.WithValidator(func(t *rules.DecisionTable) error {
		return ValidateTable(schema, t)
	}))
	return rules.NewEngine(store, opts...)
}

func (m *MultiTenantEngineManager) newEngine(tenantID string, schema Schema) (*rules.Engine, error) {
	cache := rules.NewInMemoryTablesCache(rules.CacheConfig{TTL: m.cacheTTL})
	return NewEngineForSchema(schema, m.stores(tenantID), rules.WithCache(cache))
}

// LoadAllTenants loads all tenants with an active schema and initializes their engines
func (m *MultiTenantEngineManager) LoadAllTenants() error {
	if m.db == nil {
		return nil
	}

	rows, err := m.db.Query(`
		SELECT t.id, s.version, s.definition
		FROM tenants t
		JOIN schemas s ON s.tenant_id = t.id
		WHERE s.active = true
	`)
	if err != nil {
		return fmt.Errorf("failed to fetch tenants: %w", err)
	}
	defer rows.Close()

	type tenantRow struct {
		id      string
		version int
		schema  Schema
	}
	var loaded []tenantRow
	for rows.Next() {
		var tr tenantRow
		var schemaJSON []byte
		if err := rows.Scan(&tr.id, &tr.version, &schemaJSON); err != nil {
			return fmt.Errorf("failed to scan tenant row: %w", err)
		}

		if err := json.Unmarshal(schemaJSON, &tr.schema); err != nil {
			return fmt.Errorf("invalid schema for tenant %s: %w", tr.id, err)
		}
		loaded = append(loaded, tr)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tenant rows: %w", err)
	}

	for _, tr := range loaded {
		if err := m.CreateTenant(tr.id, tr.schema); err != nil {
			return fmt.Errorf("failed to initialize tenant %s: %w", tr.id, err)
		}
		m.mu.Lock()
		m.engines[tr.id].Version = tr.version
		m.mu.Unlock()
	}

	logger.Info("tenants loaded", "count", len(loaded))

	return nil
}

// CreateTenant creates an in-memory engine for a tenant whose schema is already persisted
func (m *MultiTenantEngineManager) CreateTenant(tenantID string, schema Schema) error {
	if err := ValidateSchema(schema); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	engine, err := m.newEngine(tenantID, schema)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	m.mu.Lock()
	m.engines[tenantID] = &TenantEngine{
		TenantID: tenantID,
		Schema:   schema,
		Engine:   engine,
	}
	m.mu.Unlock()

	return nil
}

// GetEngine retrieves the engine for a specific tenant
func (m *MultiTenantEngineManager) GetEngine(tenantID string) (*rules.Engine, error) {
	te, err := m.GetTenant(tenantID)
	if err != nil {
		return nil, err
	}
	return te.Engine, nil
}

// GetTenant retrieves the engine and schema for a specific tenant
func (m *MultiTenantEngineManager) GetTenant(tenantID string) (*TenantEngine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	te, exists := m.engines[tenantID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}

	return te, nil
}

// UpdateTenantSchema stores a new schema version and swaps in an engine built
// against it. Existing tables are recompiled under the new schema; if any of
// them no longer validates, nothing is persisted and the old engine stays.
// Returns the new schema version.
func (m *MultiTenantEngineManager) UpdateTenantSchema(tenantID string, newSchema Schema) (int, error) {
	if err := ValidateSchema(newSchema); err != nil {
		return 0, fmt.Errorf("invalid schema: %w", err)
	}

	if m.db == nil {
		return m.swapInMemory(tenantID, newSchema)
	}

	schemaJSON, err := json.Marshal(newSchema)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal schema: %w", err)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE schemas
		SET active = false
		WHERE tenant_id = $1
	`, tenantID); err != nil {
		return 0, fmt.Errorf("failed to deactivate old schemas: %w", err)
	}

	var newVersion int
	err = tx.QueryRow(`
		INSERT INTO schemas (tenant_id, version, definition, active, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, true, NOW()
		FROM schemas
		WHERE tenant_id = $1
		RETURNING version
	`, tenantID, schemaJSON).Scan(&newVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to save new schema: %w", err)
	}

	newEngine, err := m.newEngine(tenantID, newSchema)
	if err != nil {
		return 0, schemaBuildError(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit schema: %w", err)
	}

	m.swap(tenantID, newSchema, newVersion, newEngine)

	return newVersion, nil
}

// swapInMemory versions schemas without a database
func (m *MultiTenantEngineManager) swapInMemory(tenantID string, newSchema Schema) (int, error) {
	newEngine, err := m.newEngine(tenantID, newSchema)
	if err != nil {
		return 0, schemaBuildError(err)
	}

	newVersion := 1
	m.mu.RLock()
	if te, exists := m.engines[tenantID]; exists {
		newVersion = te.Version + 1
	}
	m.mu.RUnlock()

	m.swap(tenantID, newSchema, newVersion, newEngine)

	return newVersion, nil
}

// schemaBuildError reports schema violations as ErrSchemaConflict and passes
// store or compile failures through unchanged
func schemaBuildError(err error) error {
	if errors.Is(err, ErrSchemaViolation) {
		return fmt.Errorf("%w: %w", ErrSchemaConflict, err)
	}
	return fmt.Errorf("failed to build engine: %w", err)
}

func (m *MultiTenantEngineManager) swap(tenantID string, schema Schema, version int, engine *rules.Engine) {
	m.mu.Lock()
	m.engines[tenantID] = &TenantEngine{
		TenantID: tenantID,
		Schema:   schema,
		Version:  version,
		Engine:   engine,
	}
	m.mu.Unlock()

	logger.Info("tenant schema updated", "tenant_id", tenantID, "version", version)
}

// ListTenants returns all loaded tenant IDs in sorted order
func (m *MultiTenantEngineManager) ListTenants() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]string, 0, len(m.engines))
	for tenantID := range m.engines {
		tenants = append(tenants, tenantID)
	}
	sort.Strings(tenants)
	return tenants
}

// DeleteTenant removes a tenant's engine from the cache
// Note: This does not delete the tenant from the database
func (m *MultiTenantEngineManager) DeleteTenant(tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[tenantID]; !exists {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}

	delete(m.engines, tenantID)
	return nil
}
