package config

// SwaggerSource describes one API to compile: an OpenAPI/Swagger document,
// the base URL it's served from, and whether it may be mutated.
//
// Immutable after load — nothing downstream mutates a SwaggerSource once the
// compile orchestrator has read it.
type SwaggerSource struct {
	Name        string `yaml:"name"`
	SwaggerURL  string `yaml:"swagger_url,omitempty"`
	SwaggerPath string `yaml:"swagger_path,omitempty"`
	BaseURL     string `yaml:"base_url"`
	AuthHeader  string `yaml:"auth_header,omitempty"`
	IsReadOnly  bool   `yaml:"is_read_only"`
}

// SourcesFile is the top-level shape of the swagger sources YAML file.
type SourcesFile struct {
	Servers []SwaggerSource `yaml:"servers"`
}

// MFPConfig is the fully-resolved runtime configuration: defaults overlaid
// with the MFP_* environment variables, plus the loaded swagger sources.
// Passed by construction — there is no process-wide config singleton.
type MFPConfig struct {
	LogLevel                string
	DockerImage             string
	ExecutionTimeoutSeconds int
	CacheEnabled            bool
	CacheTTLSeconds         int64
	CacheMaxEntries         int
	CompiledOutputDir       string
	CacheDBPath             string
	MaxCodeSizeBytes        int64
	AllowedDomains          []string

	Sources []SwaggerSource
}
