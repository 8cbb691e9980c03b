package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/liamcoop/decisiontables/internal/logger"
	"github.com/liamcoop/decisiontables/multitenantengine"
	"github.com/liamcoop/decisiontables/rules"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := logger.Snapshot()
	resp := HealthResponse{
		Status:        "healthy",
		TenantsLoaded: len(s.engineManager.ListTenants()),
		Stats:         &stats,
	}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required", nil)
		return
	}

	if req.Facts == nil {
		respondError(w, http.StatusBadRequest, "facts are required", nil)
		return
	}

	facts, err := rules.FactSetFrom(req.Facts)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid facts", err)
		return
	}

	engine, err := s.engineManager.GetEngine(req.TenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	startTime := time.Now()

	var results []*rules.EvaluationResult
	if req.TableID != "" {
		if _, err := engine.Definition(req.TableID); err != nil {
			respondError(w, http.StatusNotFound, "table not found", err)
			return
		}
		result, err := engine.Evaluate(req.TableID, facts)
		if result == nil {
			respondError(w, http.StatusInternalServerError, "evaluation failed", err)
			return
		}
		results = []*rules.EvaluationResult{result}
	} else {
		results, err = engine.EvaluateAll(facts)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "evaluation failed", err)
			return
		}
	}

	evaluationTime := time.Since(startTime)

	resp := EvaluateResponse{
		Results:        make([]EvaluationResultResponse, 0, len(results)),
		Facts:          facts.Map(),
		EvaluationTime: evaluationTime.String(),
	}
	for _, result := range results {
		s.metrics.RecordEvaluation(req.TenantID, result, evaluationTime)
		logger.RecordEvaluation(result.Matched, result.Error)
		if result.Error != nil {
			logger.Debug("table evaluation failed",
				"tenant_id", req.TenantID,
				"table_id", result.TableID,
				"error", result.Error,
			)
		}
		resp.Results = append(resp.Results, newEvaluationResultResponse(result))
	}

	// A single requested table that could not be evaluated is a client error
	if req.TableID != "" && results[0].Error != nil {
		respondJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// List tenants handler
func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants := []TenantResponse{}

	if s.db == nil {
		for _, id := range s.engineManager.ListTenants() {
			tenants = append(tenants, TenantResponse{ID: id})
		}
		respondJSON(w, http.StatusOK, TenantsListResponse{Tenants: tenants})
		return
	}

	rows, err := s.db.QueryContext(r.Context(), "SELECT id, name, created_at, updated_at FROM tenants ORDER BY created_at DESC")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tenants", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var t TenantResponse
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&t.ID, &t.Name, &createdAt, &updatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to scan tenant", err)
			return
		}
		t.CreatedAt, t.UpdatedAt = &createdAt, &updatedAt
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tenants", err)
		return
	}

	respondJSON(w, http.StatusOK, TenantsListResponse{Tenants: tenants})
}

// Create tenant handler. The tenant gets an engine once its first schema is posted.
func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	if s.db == nil {
		respondJSON(w, http.StatusCreated, TenantResponse{ID: uuid.New().String(), Name: req.Name})
		return
	}

	var t TenantResponse
	var createdAt, updatedAt time.Time
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO tenants (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id, name, created_at, updated_at
	`, req.Name).Scan(&t.ID, &t.Name, &createdAt, &updatedAt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}
	t.CreatedAt, t.UpdatedAt = &createdAt, &updatedAt

	logger.Info("tenant created", "tenant_id", t.ID)

	respondJSON(w, http.StatusCreated, t)
}

// Update schema handler
func (s *Server) handleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req CreateSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := multitenantengine.ValidateSchema(req.Definition); err != nil {
		respondError(w, http.StatusBadRequest, "invalid schema", err)
		return
	}

	version, err := s.engineManager.UpdateTenantSchema(tenantID, req.Definition)
	if errors.Is(err, multitenantengine.ErrSchemaConflict) {
		respondError(w, http.StatusConflict, "schema rejected", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update schema", err)
		return
	}

	resp := SchemaResponse{
		Version:    version,
		Status:     "active",
		Definition: req.Definition,
	}
	if engine, err := s.engineManager.GetEngine(tenantID); err == nil {
		if defs, err := engine.Definitions(); err == nil {
			n := len(defs)
			resp.TablesRecompiled = &n
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Get schema handler
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	if s.db == nil {
		te, err := s.engineManager.GetTenant(tenantID)
		if err != nil {
			respondError(w, http.StatusNotFound, "schema not found", err)
			return
		}
		respondJSON(w, http.StatusOK, SchemaResponse{Version: te.Version, Status: "active", Definition: te.Schema})
		return
	}

	var schemaJSON []byte
	var version int
	err := s.db.QueryRowContext(r.Context(), `
		SELECT version, definition
		FROM schemas
		WHERE tenant_id = $1 AND active = true
	`, tenantID).Scan(&version, &schemaJSON)

	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "schema not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get schema", err)
		return
	}

	var schema multitenantengine.Schema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to parse schema", err)
		return
	}

	respondJSON(w, http.StatusOK, SchemaResponse{Version: version, Status: "active", Definition: schema})
}

// Create table handler
func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req CreateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" || req.Source == "" {
		respondError(w, http.StatusBadRequest, "name and source are required", nil)
		return
	}

	engine, err := s.engineManager.GetEngine(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	def := &rules.TableDefinition{
		ID:        req.ID,
		Name:      req.Name,
		Source:    req.Source,
		Delimiter: req.Delimiter,
		Derived:   req.Derived,
		Active:    true,
	}
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if def.Delimiter == "" {
		def.Delimiter = s.cfg.Tables.Delimiter
	}
	if req.Active != nil {
		def.Active = *req.Active
	}

	if _, err := engine.Definition(def.ID); err == nil {
		respondError(w, http.StatusConflict, "table already exists", nil)
		return
	}

	if err := engine.AddTable(def); err != nil {
		s.recordRejection(tenantID, def.ID, err)
		respondError(w, http.StatusBadRequest, "failed to add table", err)
		return
	}

	table, _ := engine.Table(def.ID)
	respondJSON(w, http.StatusCreated, newTableResponse(def, table))
}

// List tables handler
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	engine, err := s.engineManager.GetEngine(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	defs, err := engine.Definitions()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tables", err)
		return
	}

	resp := TablesListResponse{Tables: make([]TableResponse, 0, len(defs))}
	for _, def := range defs {
		table, _ := engine.Table(def.ID)
		resp.Tables = append(resp.Tables, newTableResponse(def, table))
	}

	respondJSON(w, http.StatusOK, resp)
}

// Get table handler
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	tableID := chi.URLParam(r, "tableId")

	engine, err := s.engineManager.GetEngine(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	def, err := engine.Definition(tableID)
	if err != nil {
		respondError(w, http.StatusNotFound, "table not found", err)
		return
	}

	table, _ := engine.Table(tableID)
	respondJSON(w, http.StatusOK, newTableResponse(def, table))
}

// Update table handler
func (s *Server) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	tableID := chi.URLParam(r, "tableId")

	var req UpdateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	engine, err := s.engineManager.GetEngine(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	existing, err := engine.Definition(tableID)
	if err != nil {
		respondError(w, http.StatusNotFound, "table not found", err)
		return
	}

	def := *existing
	if req.Name != "" {
		def.Name = req.Name
	}
	if req.Source != "" {
		def.Source = req.Source
	}
	if req.Delimiter != "" {
		def.Delimiter = req.Delimiter
	}
	if req.Derived != nil {
		def.Derived = req.Derived
	}
	if req.Active != nil {
		def.Active = *req.Active
	}

	if err := engine.UpdateTable(&def); err != nil {
		s.recordRejection(tenantID, tableID, err)
		respondError(w, http.StatusBadRequest, "failed to update table", err)
		return
	}

	table, _ := engine.Table(tableID)
	respondJSON(w, http.StatusOK, newTableResponse(&def, table))
}

// Delete table handler
func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	tableID := chi.URLParam(r, "tableId")

	engine, err := s.engineManager.GetEngine(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	if err := engine.DeleteTable(tableID); err != nil {
		respondError(w, http.StatusNotFound, "table not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// recordRejection counts a table refused by the parser or the schema
func (s *Server) recordRejection(tenantID, tableID string, err error) {
	reason := "invalid"
	if errors.Is(err, rules.ErrMalformedRule) || errors.Is(err, rules.ErrMalformedCondition) {
		reason = "malformed"
	}
	s.metrics.RecordRejection(reason)
	logger.RecordTableRejection()
	logger.Debug("table rejected", "tenant_id", tenantID, "table_id", tableID, "reason", reason, "error", err)
}
