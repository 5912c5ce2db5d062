package config

const (
	// DefaultDockerImage is the sandbox image: pre-installs the yaegi
	// interpreter and bind-mounts the compiled library root read-only.
	DefaultDockerImage = "mfp-sandbox:latest"

	DefaultExecutionTimeoutSeconds = 30
	DefaultCacheTTLSeconds         = int64(3600)
	DefaultCacheMaxEntries         = 500
	DefaultCompiledOutputDir       = "compiled"
	DefaultCacheDBPath             = "mfp_cache.db"
	DefaultMaxCodeSizeBytes        = int64(64 * 1024)
)

// DefaultConfig returns the built-in configuration before any MFP_* env var
// or swagger sources file has been applied.
func DefaultConfig() MFPConfig {
	return MFPConfig{
		LogLevel:                "info",
		DockerImage:             DefaultDockerImage,
		ExecutionTimeoutSeconds: DefaultExecutionTimeoutSeconds,
		CacheEnabled:            true,
		CacheTTLSeconds:         DefaultCacheTTLSeconds,
		CacheMaxEntries:         DefaultCacheMaxEntries,
		CompiledOutputDir:       DefaultCompiledOutputDir,
		CacheDBPath:             DefaultCacheDBPath,
		MaxCodeSizeBytes:        DefaultMaxCodeSizeBytes,
	}
}
