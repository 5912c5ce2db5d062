// Package model holds the data types shared across mfp's compiler,
// registry, cache, and executor — the nouns of spec section 3, kept in one
// place so no two packages redeclare the same shape.
package model

// ParamSpec describes one endpoint parameter.
type ParamSpec struct {
	Name        string // sanitized to a valid Go identifier
	WireName    string // original name, kept for URL/query/header assembly
	In          string // "path", "query", "header", "body"
	Type        string // Go type as emitted by codegen: string, int, float64, bool, interface{}
	Required    bool
	Default     string
	Description string
}

// SchemaRef is an intentionally shallow schema reference: mfp resolves
// $ref exactly one level, so nested schemas collapse to "object".
type SchemaRef struct {
	Type string
}

// ResponseField describes one field of a response body. Nesting is at most
// one level deep; anything deeper is flattened away during parsing.
type ResponseField struct {
	Name        string
	Type        string
	Description string
	Nested      []ResponseField
}

// ResponseSpec is the per-status-code response shape.
type ResponseSpec struct {
	Description string
	Fields      []ResponseField
}

// EndpointSpec is one operation of a compiled server.
type EndpointSpec struct {
	OperationID string
	Method      string // GET, POST, PUT, PATCH, DELETE
	Path        string
	Summary     string
	Parameters  []ParamSpec
	RequestBody *SchemaRef
	Responses   map[string]ResponseSpec
}

// ServerSpec is the normalized output of the swagger parser: one compiled
// API surface.
type ServerSpec struct {
	Name       string
	BaseURL    string
	IsReadOnly bool
	Endpoints  []EndpointSpec
	SourceHash string
}

// FunctionInfo is the public, discoverable shape of one generated function.
type FunctionInfo struct {
	Name          string   `json:"name"`
	Signature     string   `json:"signature"`
	Parameters    []string `json:"parameters"`
	Returns       string   `json:"returns"`
	Summary       string   `json:"summary"`
	SourceExcerpt string   `json:"source_excerpt"`
}

// Manifest is persisted alongside generated source as the stable interface
// between the compile orchestrator and the registry.
type Manifest struct {
	ServerName    string         `json:"server_name"`
	GeneratedAt   string         `json:"generated_at"` // RFC3339
	SwaggerHash   string         `json:"swagger_hash"`
	EndpointCount int            `json:"endpoint_count"`
	Functions     []FunctionInfo `json:"functions"`
}

// CacheEntry is one row of the snippet cache.
type CacheEntry struct {
	ID            string
	Code          string
	Description   string
	ServersUsed   []string
	Success       bool
	ResultSummary string
	CreatedAt     int64
	LastUsedAt    int64
	UseCount      int
	TTLSeconds    int64
}

// ExecutionResult is the outcome of one execute_code call.
type ExecutionResult struct {
	Success    bool    `json:"success"`
	Data       any     `json:"data,omitempty"`
	Error      string  `json:"error,omitempty"`
	ErrorType  string  `json:"error_type,omitempty"` // security, lint, timeout, runtime, internal
	Stdout     string  `json:"stdout,omitempty"`
	Stderr     string  `json:"stderr,omitempty"`
	DurationMs int64   `json:"duration_ms"`
	CacheID    *string `json:"cache_id,omitempty"`
}

// Error type constants for ExecutionResult.ErrorType.
const (
	ErrorTypeSecurity = "security"
	ErrorTypeLint     = "lint"
	ErrorTypeTimeout  = "timeout"
	ErrorTypeRuntime  = "runtime"
	ErrorTypeInternal = "internal"
)

// MutatingMethods are the HTTP methods a read-only server must never expose.
var MutatingMethods = map[string]bool{
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}
