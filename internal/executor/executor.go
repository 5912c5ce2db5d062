// Package executor drives one snippet through mfp's execution state
// machine: size check, AST guard, domain allowlist check, sandbox container,
// and result parsing, with cache lookups bookending the expensive steps. No
// lint pass is run over the snippet; StateLintOK is reached once the domain
// allowlist check passes, and no result ever carries ErrorTypeLint. Every exit
// path — success, violation, timeout, panic — releases its container.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"mfp/internal/astguard"
	"mfp/internal/cache"
	"mfp/internal/config"
	"mfp/internal/containerizer"
	"mfp/internal/model"
	"mfp/internal/policy"
	"mfp/internal/vault"
	"mfp/pkg/logging"

	"github.com/google/uuid"
)

const executorSubsystem = "Executor"

// State names one step of the execution state machine, used only for
// logging/diagnostics — callers interact with Executor.Run, not States
// directly.
type State string

const (
	StateInit        State = "INIT"
	StateSizeChecked State = "SIZE_CHECKED"
	StateASTOK       State = "AST_OK"
	StateLintOK      State = "LINT_OK"
	StateContainerUp State = "CONTAINER_UP"
	StateCodeSent    State = "CODE_SENT"
	StateOutputRead  State = "OUTPUT_READ"
	StateParsed      State = "PARSED"
	StateCached      State = "CACHED"
	StateDone        State = "DONE"
)

var mfplibImportRe = regexp.MustCompile(`mfplib/([A-Za-z0-9_]+)`)

// Executor wires the pieces together for one running server of mfp: the
// sandbox image, the compiled library root, the known server set (for
// import validation), the credential vault, and the snippet cache.
type Executor struct {
	Runtime         containerizer.ContainerRuntime
	Cache           *cache.Cache
	Cfg             config.MFPConfig
	KnownServers    map[string]bool
	Lookup          vault.Lookup
	CompiledLibRoot string
	WorkDir         string // host scratch dir for per-execution code files
}

// Run executes one snippet end to end, returning a populated
// model.ExecutionResult even on failure — only plumbing errors that never
// reached a meaningful execution attempt return a non-nil error.
func (e *Executor) Run(ctx context.Context, code string) (*model.ExecutionResult, error) {
	start := time.Now()
	state := StateInit

	if !policy.CodeSizeOK([]byte(code), e.Cfg.MaxCodeSizeBytes) {
		return &model.ExecutionResult{
			Success:   false,
			Error:     fmt.Sprintf("code exceeds maximum size of %d bytes", e.Cfg.MaxCodeSizeBytes),
			ErrorType: model.ErrorTypeSecurity,
		}, nil
	}
	state = StateSizeChecked

	servers := detectServersUsed(code)

	if e.Cache != nil && e.Cfg.CacheEnabled {
		id := cache.IDFor(code)
		if entry, found, err := e.Cache.Get(id, nowUnix()); err == nil && found {
			logging.Info(executorSubsystem, "cache hit for snippet %s", id)
			return cachedResult(entry), nil
		}
	}

	if err := astguard.Check(code, e.KnownServers); err != nil {
		logging.Audit(logging.AuditEvent{Action: "ast_guard", Outcome: "failure", Error: err.Error()})
		return &model.ExecutionResult{
			Success:   false,
			Error:     err.Error(),
			ErrorType: model.ErrorTypeSecurity,
			DurationMs: elapsedMs(start),
		}, nil
	}
	state = StateASTOK

	for _, server := range servers {
		if source, ok := e.serverBaseURL(server); ok {
			if err := policy.DomainAllowed(source, e.Cfg.AllowedDomains); err != nil {
				logging.Audit(logging.AuditEvent{Action: "policy", Outcome: "failure", Error: err.Error()})
				return &model.ExecutionResult{
					Success:    false,
					Error:      err.Error(),
					ErrorType:  model.ErrorTypeSecurity,
					DurationMs: elapsedMs(start),
				}, nil
			}
		}
	}
	state = StateLintOK

	result, err := e.runInContainer(ctx, code, servers)
	if err != nil {
		return nil, err
	}
	result.DurationMs = elapsedMs(start)
	state = StateParsed

	if result.Success && e.Cache != nil && e.Cfg.CacheEnabled {
		id := cache.IDFor(code)
		now := nowUnix()
		entry := model.CacheEntry{
			ID:            id,
			Code:          code,
			ServersUsed:   servers,
			Success:       result.Success,
			ResultSummary: summarize(result),
			CreatedAt:     now,
			LastUsedAt:    now,
			UseCount:      1,
			TTLSeconds:    e.Cfg.CacheTTLSeconds,
		}
		if err := e.Cache.Put(entry); err != nil {
			logging.Warn(executorSubsystem, "failed to cache execution result: %v", err)
		} else {
			cacheID := id
			result.CacheID = &cacheID
			state = StateCached
		}
	}

	state = StateDone
	logging.Debug(executorSubsystem, "execution reached state %s", state)
	return result, nil
}

// runInContainer handles CONTAINER_UP through OUTPUT_READ, guaranteeing
// container cleanup on every exit path.
func (e *Executor) runInContainer(ctx context.Context, code string, servers []string) (*model.ExecutionResult, error) {
	runID := uuid.NewString()
	codeDir := filepath.Join(e.WorkDir, runID)
	if err := os.MkdirAll(codeDir, 0o755); err != nil {
		return nil, &InternalError{Reason: "creating execution workspace", Cause: err}
	}
	defer os.RemoveAll(codeDir)

	codePath := filepath.Join(codeDir, "snippet.go")
	if err := os.WriteFile(codePath, []byte(code), 0o644); err != nil {
		return nil, &InternalError{Reason: "writing snippet to workspace", Cause: err}
	}

	env := map[string]string{
		"MFP_CODE_PATH": "/code/snippet.go",
		"MFP_LIB_ROOT":  "/libs",
	}
	for _, server := range servers {
		for k, v := range vault.BuildServerEnv(server, e.Lookup) {
			env[k] = v
		}
		if source, ok := e.sourceFor(server); ok && source.AuthHeader != "" {
			expanded, err := vault.Expand(source.AuthHeader, e.Lookup)
			if err != nil {
				return nil, err
			}
			env["MFP_"+upperSnake(server)+"_AUTH"] = expanded
		}
	}

	containerCfg := containerizer.ContainerConfig{
		Name:            "mfp-exec-" + runID,
		Image:           e.Cfg.DockerImage,
		Env:             env,
		Volumes:         []string{codeDir + ":/code:ro", e.CompiledLibRoot + ":/libs:ro"},
		User:            "1000",
		Memory:          "256m",
		MemorySwap:      "256m",
		CPUs:            "0.5",
		ReadOnly:        true,
		TmpfsSize:       "64m",
		NoNewPrivileges: true,
		NetworkMode:     "bridge",
	}

	containerID, err := e.Runtime.StartContainer(ctx, containerCfg)
	if err != nil {
		return nil, &InternalError{Reason: "starting sandbox container", Cause: err}
	}
	defer func() {
		if err := e.Runtime.RemoveContainer(context.Background(), containerID); err != nil {
			logging.Warn(executorSubsystem, "failed to remove container %s: %v", containerID, err)
		}
	}()

	logging.Debug(executorSubsystem, "sandbox container up: %s", containerID)

	timeout := time.Duration(e.Cfg.ExecutionTimeoutSeconds) * time.Second
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.waitForExit(waitCtx, containerID); err != nil {
		if waitCtx.Err() == context.DeadlineExceeded {
			return &model.ExecutionResult{
				Success:   false,
				Error:     (&ExecutionTimeout{TimeoutSeconds: e.Cfg.ExecutionTimeoutSeconds}).Error(),
				ErrorType: model.ErrorTypeTimeout,
			}, nil
		}
		return nil, &InternalError{Reason: "waiting for sandbox container", Cause: err}
	}

	logsReader, err := e.Runtime.GetContainerLogs(context.Background(), containerID)
	if err != nil {
		return nil, &InternalError{Reason: "reading sandbox container logs", Cause: err}
	}
	defer logsReader.Close()

	output, err := readAll(logsReader)
	if err != nil {
		return nil, &InternalError{Reason: "draining sandbox container logs", Cause: err}
	}

	return parseSandboxOutput(output), nil
}

// waitForExit polls until the container stops running or ctx is done.
func (e *Executor) waitForExit(ctx context.Context, containerID string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		running, err := e.Runtime.IsContainerRunning(ctx, containerID)
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// parseSandboxOutput extracts the trailing JSON object the sandbox runner
// prints as its last line of stdout. Everything before it is kept as the
// snippet's own stdout/stderr, not re-interpreted.
func parseSandboxOutput(output []byte) *model.ExecutionResult {
	lastLine, rest := lastNonEmptyLine(output)

	var sandboxResult struct {
		Success bool   `json:"success"`
		Data    any    `json:"data"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(lastLine), &sandboxResult); err != nil {
		return &model.ExecutionResult{
			Success:   false,
			Error:     "sandbox produced no parseable result",
			ErrorType: model.ErrorTypeRuntime,
			Stdout:    string(output),
		}
	}

	result := &model.ExecutionResult{
		Success: sandboxResult.Success,
		Data:    sandboxResult.Data,
		Stdout:  rest,
	}
	if !sandboxResult.Success {
		result.Error = sandboxResult.Error
		result.ErrorType = model.ErrorTypeRuntime
	}
	return result
}

func lastNonEmptyLine(output []byte) (string, string) {
	text := string(output)
	end := len(text)
	for end > 0 && (text[end-1] == '\n' || text[end-1] == '\r') {
		end--
	}
	start := end
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	return text[start:end], text[:start]
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err.Error() == "EOF" {
				return buf, nil
			}
			return buf, err
		}
	}
}

// detectServersUsed scans generated-library imports of the form
// mfplib/{server} in the submitted code, returning the distinct server
// names referenced, sorted for determinism. This is a regex over the whole
// snippet text, not a full import-resolution pass — a deliberately accepted
// limitation, since the AST guard has already validated these are the only
// non-stdlib imports present.
func detectServersUsed(code string) []string {
	matches := mfplibImportRe.FindAllStringSubmatch(code, -1)
	seen := map[string]bool{}
	var servers []string
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			servers = append(servers, name)
		}
	}
	sort.Strings(servers)
	return servers
}

func (e *Executor) serverBaseURL(server string) (string, bool) {
	v, ok := e.Lookup("MFP_" + upperSnake(server) + "_BASE_URL")
	return v, ok
}

// sourceFor returns the configured SwaggerSource for server, if any — the
// place auth_header's ${VAR} placeholder is resolved from, in preference to
// reading MFP_{SERVER}_AUTH directly off the environment.
func (e *Executor) sourceFor(server string) (config.SwaggerSource, bool) {
	for _, source := range e.Cfg.Sources {
		if source.Name == server {
			return source, true
		}
	}
	return config.SwaggerSource{}, false
}

func upperSnake(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 32
		}
		out[i] = c
	}
	return string(out)
}

func cachedResult(entry *model.CacheEntry) *model.ExecutionResult {
	cacheID := entry.ID
	return &model.ExecutionResult{
		Success:   entry.Success,
		Data:      entry.ResultSummary,
		ErrorType: "",
		CacheID:   &cacheID,
	}
}

func summarize(result *model.ExecutionResult) string {
	if result.Success {
		data, _ := json.Marshal(result.Data)
		return string(data)
	}
	return result.Error
}

func nowUnix() int64 {
	return time.Now().Unix()
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
