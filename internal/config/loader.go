package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"mfp/pkg/logging"

	"gopkg.in/yaml.v3"
)

const configSubsystem = "Config"

// LoadSources reads and parses the swagger sources file at path.
func LoadSources(path string) ([]SwaggerSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewError(fmt.Sprintf("reading sources file %s", path), err)
	}

	var sf SourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, NewError(fmt.Sprintf("parsing sources file %s", path), err)
	}

	seen := make(map[string]bool, len(sf.Servers))
	for _, s := range sf.Servers {
		if s.Name == "" {
			return nil, NewError("sources file: server entry missing name", nil)
		}
		if seen[s.Name] {
			return nil, NewError(fmt.Sprintf("sources file: duplicate server name %q", s.Name), nil)
		}
		seen[s.Name] = true
		if s.SwaggerURL == "" && s.SwaggerPath == "" {
			return nil, NewError(fmt.Sprintf("sources file: server %q has neither swagger_url nor swagger_path", s.Name), nil)
		}
	}

	logging.Info(configSubsystem, "loaded %d swagger source(s) from %s", len(sf.Servers), path)
	return sf.Servers, nil
}

// LoadFromEnv starts from DefaultConfig and overlays every recognized MFP_*
// environment variable. Malformed numeric/boolean values fall back to the
// default rather than failing hard, matching the teacher's "log and use
// defaults" posture for optional environment overrides.
func LoadFromEnv() MFPConfig {
	cfg := DefaultConfig()

	if v := os.Getenv("MFP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MFP_DOCKER_IMAGE"); v != "" {
		cfg.DockerImage = v
	}
	if v := os.Getenv("MFP_EXECUTION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExecutionTimeoutSeconds = n
		} else {
			logging.Warn(configSubsystem, "ignoring invalid MFP_EXECUTION_TIMEOUT_SECONDS=%q", v)
		}
	}
	if v := os.Getenv("MFP_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CacheEnabled = b
		} else {
			logging.Warn(configSubsystem, "ignoring invalid MFP_CACHE_ENABLED=%q", v)
		}
	}
	if v := os.Getenv("MFP_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.CacheTTLSeconds = n
		} else {
			logging.Warn(configSubsystem, "ignoring invalid MFP_CACHE_TTL_SECONDS=%q", v)
		}
	}
	if v := os.Getenv("MFP_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxEntries = n
		} else {
			logging.Warn(configSubsystem, "ignoring invalid MFP_CACHE_MAX_ENTRIES=%q", v)
		}
	}
	if v := os.Getenv("MFP_COMPILED_OUTPUT_DIR"); v != "" {
		cfg.CompiledOutputDir = v
	}
	if v := os.Getenv("MFP_CACHE_DB_PATH"); v != "" {
		cfg.CacheDBPath = v
	}
	if v := os.Getenv("MFP_MAX_CODE_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxCodeSizeBytes = n
		} else {
			logging.Warn(configSubsystem, "ignoring invalid MFP_MAX_CODE_SIZE_BYTES=%q", v)
		}
	}
	if v := os.Getenv("MFP_ALLOWED_DOMAINS"); v != "" {
		domains := strings.Split(v, ",")
		for i := range domains {
			domains[i] = strings.TrimSpace(domains[i])
		}
		cfg.AllowedDomains = domains
	}

	return cfg
}
