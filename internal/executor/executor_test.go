package executor

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"mfp/internal/cache"
	"mfp/internal/config"
	"mfp/internal/containerizer"
)

// fakeRuntime simulates a sandbox container without shelling out to Docker:
// StartContainer records the config, IsContainerRunning immediately reports
// stopped, and GetContainerLogs replays a canned sandbox result.
type fakeRuntime struct {
	startedConfig containerizer.ContainerConfig
	logOutput     string
	startErr      error
}

func (f *fakeRuntime) PullImage(ctx context.Context, image string) error { return nil }

func (f *fakeRuntime) StartContainer(ctx context.Context, cfg containerizer.ContainerConfig) (string, error) {
	f.startedConfig = cfg
	if f.startErr != nil {
		return "", f.startErr
	}
	return "fake-container-id", nil
}

func (f *fakeRuntime) StopContainer(ctx context.Context, containerID string) error { return nil }

func (f *fakeRuntime) GetContainerLogs(ctx context.Context, containerID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.logOutput)), nil
}

func (f *fakeRuntime) IsContainerRunning(ctx context.Context, containerID string) (bool, error) {
	return false, nil
}

func (f *fakeRuntime) GetContainerPort(ctx context.Context, containerID, containerPort string) (string, error) {
	return "", nil
}

func (f *fakeRuntime) RemoveContainer(ctx context.Context, containerID string) error { return nil }

func fakeLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func newTestExecutor(t *testing.T, rt containerizer.ContainerRuntime) *Executor {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	c, err := cache.Open(dbPath, 100)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	workDir := t.TempDir()

	return &Executor{
		Runtime: rt,
		Cache:   c,
		Cfg: config.MFPConfig{
			MaxCodeSizeBytes:        1024,
			ExecutionTimeoutSeconds: 5,
			CacheEnabled:            true,
			CacheTTLSeconds:         3600,
		},
		KnownServers:    map[string]bool{"weather": true},
		Lookup:          fakeLookup(map[string]string{"MFP_WEATHER_BASE_URL": "https://weather.example"}),
		CompiledLibRoot: t.TempDir(),
		WorkDir:         workDir,
	}
}

func TestRun_OversizedCodeRejectedBeforeSandbox(t *testing.T) {
	rt := &fakeRuntime{}
	exec := newTestExecutor(t, rt)
	exec.Cfg.MaxCodeSizeBytes = 4

	result, err := exec.Run(context.Background(), "package main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatal("expected oversized code to fail")
	}
	if result.ErrorType != "security" {
		t.Errorf("expected security error type, got %s", result.ErrorType)
	}
	if rt.startedConfig.Name != "" {
		t.Error("expected sandbox never to be started for oversized code")
	}
}

func TestRun_BlockedImportRejectedBeforeSandbox(t *testing.T) {
	rt := &fakeRuntime{}
	exec := newTestExecutor(t, rt)

	code := `package main
import "os/exec"
func Run() { exec.Command("ls") }`

	result, err := exec.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatal("expected blocked import to fail")
	}
	if result.ErrorType != "security" {
		t.Errorf("expected security error type, got %s", result.ErrorType)
	}
	if rt.startedConfig.Name != "" {
		t.Error("expected sandbox never to be started for a security violation")
	}
}

func TestRun_SuccessfulExecutionParsesSandboxOutput(t *testing.T) {
	rt := &fakeRuntime{logOutput: "hello from snippet\n{\"success\":true,\"data\":42}\n"}
	exec := newTestExecutor(t, rt)

	code := `package main
func Run() int { return 42 }`

	result, err := exec.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.CacheID == nil {
		t.Error("expected successful execution to be cached")
	}
	if rt.startedConfig.Image == "" {
		t.Error("expected sandbox container to have been started")
	}
	if rt.startedConfig.Memory != "256m" || !rt.startedConfig.ReadOnly {
		t.Errorf("expected resource lockdown flags set, got %+v", rt.startedConfig)
	}
}

func TestRun_CacheHitSkipsSandbox(t *testing.T) {
	rt := &fakeRuntime{logOutput: "{\"success\":true,\"data\":1}\n"}
	exec := newTestExecutor(t, rt)

	code := `package main
func Run() int { return 1 }`

	first, err := exec.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if !first.Success {
		t.Fatalf("expected first run to succeed: %s", first.Error)
	}
	if first.CacheID == nil {
		t.Fatal("expected first run to be cached")
	}

	entryAfterFirst, found, err := exec.Cache.Get(*first.CacheID, nowUnix())
	if err != nil || !found {
		t.Fatalf("Cache.Get after first run: found=%v err=%v", found, err)
	}
	if entryAfterFirst.UseCount != 2 {
		t.Errorf("expected use_count 2 after insert (1) plus this Get (+1), got %d", entryAfterFirst.UseCount)
	}

	rt.startedConfig = containerizer.ContainerConfig{}

	second, err := exec.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.CacheID == nil {
		t.Error("expected cached result on second run")
	}
	if rt.startedConfig.Name != "" {
		t.Error("expected second identical run to be served from cache without starting a container")
	}

	entryAfterSecond, found, err := exec.Cache.Get(*second.CacheID, nowUnix())
	if err != nil || !found {
		t.Fatalf("Cache.Get after second run: found=%v err=%v", found, err)
	}
	if entryAfterSecond.UseCount != 4 {
		t.Errorf("expected use_count 4 (insert=1, +1 probe, +1 cache-hit Run, +1 this Get), got %d", entryAfterSecond.UseCount)
	}
}

func TestRun_SandboxStartFailureReturnsInternalError(t *testing.T) {
	rt := &fakeRuntime{startErr: errors.New("docker not available")}
	exec := newTestExecutor(t, rt)

	code := `package main
func Run() int { return 1 }`

	_, err := exec.Run(context.Background(), code)
	if err == nil {
		t.Fatal("expected an internal error when the sandbox fails to start")
	}
	var internalErr *InternalError
	if !errors.As(err, &internalErr) {
		t.Fatalf("expected *InternalError, got %T", err)
	}
}

func TestRun_AuthHeaderExpandedIntoContainerEnv(t *testing.T) {
	rt := &fakeRuntime{logOutput: "{\"success\":true,\"data\":1}\n"}
	exec := newTestExecutor(t, rt)
	exec.Cfg.Sources = []config.SwaggerSource{
		{Name: "weather", AuthHeader: "Bearer ${WEATHER_TOKEN}"},
	}
	exec.Lookup = fakeLookup(map[string]string{
		"MFP_WEATHER_BASE_URL": "https://weather.example",
		"WEATHER_TOKEN":        "abc123",
	})

	code := `package main
import "mfplib/weather"
func Run() int { weather.Noop(); return 1 }`

	result, err := exec.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if got := rt.startedConfig.Env["MFP_WEATHER_AUTH"]; got != "Bearer abc123" {
		t.Errorf("expected configured auth_header to be expanded into the container env, got %q", got)
	}
}

func TestRun_UnresolvedAuthHeaderPlaceholderFailsBeforeCache(t *testing.T) {
	rt := &fakeRuntime{logOutput: "{\"success\":true,\"data\":1}\n"}
	exec := newTestExecutor(t, rt)
	exec.Cfg.Sources = []config.SwaggerSource{
		{Name: "weather", AuthHeader: "Bearer ${MISSING_TOKEN}"},
	}

	code := `package main
import "mfplib/weather"
func Run() int { weather.Noop(); return 1 }`

	_, err := exec.Run(context.Background(), code)
	if err == nil {
		t.Fatal("expected an error for an unresolved auth_header placeholder")
	}
}

func TestDetectServersUsed(t *testing.T) {
	code := `package main
import (
	"fmt"
	"mfplib/weather"
	"mfplib/billing"
)
`
	servers := detectServersUsed(code)
	if len(servers) != 2 || servers[0] != "billing" || servers[1] != "weather" {
		t.Errorf("expected [billing weather], got %v", servers)
	}
}

