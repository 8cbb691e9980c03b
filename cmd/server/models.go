package main

import (
	"time"

	"github.com/liamcoop/decisiontables/internal/logger"
	"github.com/liamcoop/decisiontables/multitenantengine"
	"github.com/liamcoop/decisiontables/rules"
)

// API request and response models

// CreateTenantRequest represents the request body for creating a tenant
type CreateTenantRequest struct {
	Name string `json:"name"`
}

// TenantResponse represents a tenant in API responses
type TenantResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// TenantsListResponse represents the response for listing tenants
type TenantsListResponse struct {
	Tenants []TenantResponse `json:"tenants"`
}

// CreateSchemaRequest represents the request body for replacing a schema
type CreateSchemaRequest struct {
	Definition multitenantengine.Schema `json:"definition"`
}

// SchemaResponse represents a schema in API responses
type SchemaResponse struct {
	Version          int                      `json:"version"`
	Status           string                   `json:"status"`
	Definition       multitenantengine.Schema `json:"definition"`
	TablesRecompiled *int                     `json:"tablesRecompiled,omitempty"`
}

// CreateTableRequest represents the request body for creating a decision table.
// Source is the delimited table text, header row first.
type CreateTableRequest struct {
	ID        string               `json:"id,omitempty"`
	Name      string               `json:"name"`
	Source    string               `json:"source"`
	Delimiter string               `json:"delimiter,omitempty"`
	Derived   []rules.DerivedField `json:"derived,omitempty"`
	Active    *bool                `json:"active,omitempty"`
}

// UpdateTableRequest replaces only the fields that are present
type UpdateTableRequest struct {
	Name      string               `json:"name,omitempty"`
	Source    string               `json:"source,omitempty"`
	Delimiter string               `json:"delimiter,omitempty"`
	Derived   []rules.DerivedField `json:"derived,omitempty"`
	Active    *bool                `json:"active,omitempty"`
}

// TableResponse represents a decision table in API responses
type TableResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Source    string               `json:"source"`
	Delimiter string               `json:"delimiter"`
	Derived   []rules.DerivedField `json:"derived"`
	Active    bool                 `json:"active"`
	Inputs    []string             `json:"inputs,omitempty"`
	Outputs   []string             `json:"outputs,omitempty"`
	RuleCount int                  `json:"ruleCount"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// TablesListResponse represents the response for listing tables
type TablesListResponse struct {
	Tables []TableResponse `json:"tables"`
}

// EvaluateRequest represents the request body for evaluating tables.
// Without TableID every active table runs in creation order.
type EvaluateRequest struct {
	TenantID string         `json:"tenantId"`
	TableID  string         `json:"tableId,omitempty"`
	Facts    map[string]any `json:"facts"`
}

// EvaluationResultResponse represents one table evaluation
type EvaluationResultResponse struct {
	TableID   string         `json:"tableId"`
	TableName string         `json:"tableName"`
	Matched   bool           `json:"matched"`
	RuleIndex int            `json:"ruleIndex"`
	Outputs   map[string]any `json:"outputs"`
	Error     *string        `json:"error,omitempty"`
}

// EvaluateResponse represents the response for table evaluation.
// Facts holds the fact set after all outputs and derived facts were applied.
type EvaluateResponse struct {
	Results        []EvaluationResultResponse `json:"results"`
	Facts          map[string]any             `json:"facts"`
	EvaluationTime string                     `json:"evaluationTime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	TenantsLoaded int           `json:"tenantsLoaded"`
	Stats         *logger.Stats `json:"stats,omitempty"`
}

func newTableResponse(def *rules.TableDefinition, table *rules.DecisionTable) TableResponse {
	resp := TableResponse{
		ID:        def.ID,
		Name:      def.Name,
		Source:    def.Source,
		Delimiter: def.Delimiter,
		Derived:   def.Derived,
		Active:    def.Active,
		CreatedAt: def.CreatedAt,
		UpdatedAt: def.UpdatedAt,
	}
	if resp.Derived == nil {
		resp.Derived = []rules.DerivedField{}
	}
	if table != nil {
		resp.Inputs = table.Inputs()
		resp.Outputs = table.Outputs()
		resp.RuleCount = table.Len()
	}
	return resp
}

func newEvaluationResultResponse(result *rules.EvaluationResult) EvaluationResultResponse {
	resp := EvaluationResultResponse{
		TableID:   result.TableID,
		TableName: result.TableName,
		Matched:   result.Matched,
		RuleIndex: result.RuleIndex,
		Outputs:   result.Outputs,
	}
	if resp.Outputs == nil {
		resp.Outputs = map[string]any{}
	}
	if result.Error != nil {
		msg := result.Error.Error()
		resp.Error = &msg
	}
	return resp
}
