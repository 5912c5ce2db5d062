package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mfp/internal/cache"
	"mfp/internal/config"
	"mfp/internal/containerizer"
	"mfp/internal/executor"
	"mfp/internal/model"
	"mfp/internal/registry"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func newArgsRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Arguments: args,
		},
	}
}

func writeManifest(t *testing.T, dir, serverName string, manifest model.Manifest) {
	t.Helper()
	serverDir := filepath.Join(dir, "src", "mfplib", serverName)
	require.NoError(t, os.MkdirAll(serverDir, 0o755))
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(serverDir, "manifest.json"), data, 0o644))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	outDir := t.TempDir()
	writeManifest(t, outDir, "weather", model.Manifest{
		ServerName:    "weather",
		EndpointCount: 1,
		Functions: []model.FunctionInfo{
			{Name: "GetForecast", Signature: "GetForecast(city string)", Summary: "Get the forecast"},
		},
	})

	reg, err := registry.Load(outDir)
	require.NoError(t, err)

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	exec := &executor.Executor{
		Runtime:      &noopRuntime{},
		Cache:        c,
		Cfg:          config.MFPConfig{ExecutionTimeoutSeconds: 5},
		KnownServers: map[string]bool{"weather": true},
		Lookup:       func(string) (string, bool) { return "", false },
		WorkDir:      t.TempDir(),
	}

	return New(reg, exec, c)
}

// noopRuntime lets handleExecuteCode tests exercise the full pipeline
// without needing a real Docker daemon. The tests here only exercise
// snippets rejected before a container would ever start, so every method
// is a harmless stub.
type noopRuntime struct{}

func (n *noopRuntime) PullImage(ctx context.Context, image string) error { return nil }

func (n *noopRuntime) StartContainer(ctx context.Context, cfg containerizer.ContainerConfig) (string, error) {
	return "noop", nil
}

func (n *noopRuntime) StopContainer(ctx context.Context, containerID string) error { return nil }

func (n *noopRuntime) GetContainerLogs(ctx context.Context, containerID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (n *noopRuntime) IsContainerRunning(ctx context.Context, containerID string) (bool, error) {
	return false, nil
}

func (n *noopRuntime) GetContainerPort(ctx context.Context, containerID, containerPort string) (string, error) {
	return "", nil
}

func (n *noopRuntime) RemoveContainer(ctx context.Context, containerID string) error { return nil }

func TestHandleListServers_ReturnsLoadedManifests(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleListServers(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)

	var manifests []model.Manifest
	require.NoError(t, json.Unmarshal([]byte(text.Text), &manifests))
	require.Len(t, manifests, 1)
	require.Equal(t, "weather", manifests[0].ServerName)
}

func TestHandleGetFunction_UnknownFunctionIsToolError(t *testing.T) {
	s := newTestServer(t)
	req := newArgsRequest(map[string]interface{}{"server": "weather", "function": "nope"})

	result, err := s.handleGetFunction(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleGetFunction_KnownFunctionReturnsSignature(t *testing.T) {
	s := newTestServer(t)
	req := newArgsRequest(map[string]interface{}{"server": "weather", "function": "GetForecast"})

	result, err := s.handleGetFunction(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)

	var fn model.FunctionInfo
	require.NoError(t, json.Unmarshal([]byte(text.Text), &fn))
	require.Equal(t, "GetForecast", fn.Name)
}

func TestHandleExecuteCode_MissingCodeIsToolError(t *testing.T) {
	s := newTestServer(t)
	req := newArgsRequest(map[string]interface{}{})

	result, err := s.handleExecuteCode(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleExecuteCode_RejectedSnippetStillReturnsStructuredResult(t *testing.T) {
	s := newTestServer(t)
	req := newArgsRequest(map[string]interface{}{
		"code": `package main
import "os/exec"
func Run() (interface{}, error) { exec.Command("rm").Run(); return nil, nil }
`,
	})

	result, err := s.handleExecuteCode(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)

	var execResult model.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(text.Text), &execResult))
	require.False(t, execResult.Success)
	require.Equal(t, model.ErrorTypeSecurity, execResult.ErrorType)
}

func TestHandleGetCachedCode_MissingIDIsToolError(t *testing.T) {
	s := newTestServer(t)
	req := newArgsRequest(map[string]interface{}{"id": "does-not-exist"})

	result, err := s.handleGetCachedCode(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleGetCachedCode_SearchWithNoMatchesIsNotAnError(t *testing.T) {
	s := newTestServer(t)

	searchReq := newArgsRequest(map[string]interface{}{"query": "nothing matches this"})
	searchResult, err := s.handleGetCachedCode(context.Background(), searchReq)
	require.NoError(t, err)
	require.False(t, searchResult.IsError)

	text, ok := mcp.AsTextContent(searchResult.Content[0])
	require.True(t, ok)
	var entries []model.CacheEntry
	require.NoError(t, json.Unmarshal([]byte(text.Text), &entries))
	require.Empty(t, entries)
}
