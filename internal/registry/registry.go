// Package registry indexes the compiled output directory: one manifest.json
// per server, read once at startup (or on-demand reload) into in-memory
// lookups the MCP tools query directly. It never talks to Docker or the
// cache — those are the executor's concerns.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"mfp/internal/config"
	"mfp/internal/model"
	"mfp/pkg/logging"
)

const registrySubsystem = "Registry"

// Registry is the loaded view of every compiled server.
type Registry struct {
	servers   map[string]model.Manifest
	functions map[string]model.FunctionInfo // key: server+"."+function
}

// Load scans the compiler's output tree — {dir}/src/mfplib/{server}/ — for
// one manifest.json per server. The src/mfplib nesting mirrors the GOPATH
// layout the sandbox runner's yaegi interpreter resolves "mfplib/{server}"
// imports against, so the registry and the sandbox agree on where compiled
// servers live. A server name appearing twice (shouldn't happen since each
// lives in its own subdirectory, but a manifest's own server_name field
// could still collide) is a configuration error, not a silently-resolved
// one.
func Load(dir string) (*Registry, error) {
	libRoot := filepath.Join(dir, "src", "mfplib")
	entries, err := os.ReadDir(libRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{servers: map[string]model.Manifest{}, functions: map[string]model.FunctionInfo{}}, nil
		}
		return nil, config.NewError("reading compiled output directory", err)
	}

	reg := &Registry{
		servers:   map[string]model.Manifest{},
		functions: map[string]model.FunctionInfo{},
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(libRoot, entry.Name(), "manifest.json")
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			logging.Warn(registrySubsystem, "skipping %s: no manifest found: %v", entry.Name(), err)
			continue
		}
		var manifest model.Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			logging.Warn(registrySubsystem, "skipping %s: malformed manifest: %v", entry.Name(), err)
			continue
		}
		if _, exists := reg.servers[manifest.ServerName]; exists {
			return nil, config.NewError("duplicate server name in registry: "+manifest.ServerName, nil)
		}
		reg.servers[manifest.ServerName] = manifest
		for _, fn := range manifest.Functions {
			reg.functions[manifest.ServerName+"."+fn.Name] = fn
		}
	}

	logging.Info(registrySubsystem, "loaded %d compiled server(s) from %s", len(reg.servers), dir)
	return reg, nil
}

// ListServers returns every loaded server's manifest, sorted by name.
func (r *Registry) ListServers() []model.Manifest {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.Manifest, 0, len(names))
	for _, name := range names {
		out = append(out, r.servers[name])
	}
	return out
}

// GetFunction returns the named function of the named server.
func (r *Registry) GetFunction(server, function string) (model.FunctionInfo, bool) {
	fn, ok := r.functions[server+"."+function]
	return fn, ok
}

// HasServer reports whether server is loaded.
func (r *Registry) HasServer(server string) bool {
	_, ok := r.servers[server]
	return ok
}
