// Package compiler orchestrates the compile pipeline: fetch swagger
// document, parse it, generate Go source, lint it, and write the result
// (plus a manifest) to the compiled output directory. Unchanged sources are
// skipped by comparing the document's content hash against the existing
// manifest.
package compiler

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"mfp/internal/codegen"
	"mfp/internal/config"
	"mfp/internal/model"
	"mfp/internal/swagger"
	"mfp/pkg/logging"

	"encoding/json"

	"golang.org/x/sync/errgroup"
)

const compilerSubsystem = "Compiler"

// Options controls one compile run.
type Options struct {
	OutputDir string
	DryRun    bool
	SkipLint  bool
}

// Result summarizes one server's compile outcome.
type Result struct {
	Server  string
	Skipped bool
	Spec    *model.ServerSpec
}

// Compile compiles every source against opts, returning one Result per
// source in input order. Sources are independent — each fetches its own
// document and writes its own subdirectory of the output tree — so they
// run concurrently via errgroup. The first hard failure is returned as a
// *Error; the other sources are not cancelled and still run to completion.
func Compile(sources []config.SwaggerSource, opts Options) ([]Result, error) {
	results := make([]Result, len(sources))

	g := new(errgroup.Group)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			result, err := compileOne(source, opts)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func compileOne(source config.SwaggerSource, opts Options) (Result, error) {
	data, err := fetchDocument(source)
	if err != nil {
		return Result{}, &Error{Server: source.Name, Kind: KindCompile, Reason: "fetching swagger document", Cause: err}
	}

	spec, err := swagger.Parse(data, source)
	if err != nil {
		return Result{}, &Error{Server: source.Name, Kind: KindCompile, Reason: "parsing swagger document", Cause: err}
	}

	if opts.DryRun {
		logging.Info(compilerSubsystem, "dry-run: would write %s (%d endpoints)", source.Name, len(spec.Endpoints))
		return Result{Server: source.Name, Spec: spec}, nil
	}

	manifestPath := filepath.Join(serverDir(opts.OutputDir, source.Name), "manifest.json")
	if existing, err := readManifest(manifestPath); err == nil && existing.SwaggerHash == spec.SourceHash {
		logging.Info(compilerSubsystem, "skipping %s: swagger document unchanged (hash %s)", source.Name, spec.SourceHash)
		return Result{Server: source.Name, Skipped: true, Spec: spec}, nil
	}

	sourceCode, err := codegen.Generate(spec)
	if err != nil {
		return Result{}, &Error{Server: source.Name, Kind: KindCompile, Reason: "generating source", Cause: err}
	}

	if !opts.SkipLint {
		if err := lint(source.Name, sourceCode); err != nil {
			return Result{}, err
		}
	}

	manifest := buildManifest(spec, sourceCode)

	if err := writeServer(opts.OutputDir, source.Name, sourceCode, manifest); err != nil {
		return Result{}, &Error{Server: source.Name, Kind: KindCompile, Reason: "writing output", Cause: err}
	}

	logging.Info(compilerSubsystem, "compiled %s: %d endpoints", source.Name, len(spec.Endpoints))
	return Result{Server: source.Name, Spec: spec}, nil
}

func fetchDocument(source config.SwaggerSource) ([]byte, error) {
	if source.SwaggerPath != "" {
		return os.ReadFile(source.SwaggerPath)
	}
	resp, err := http.Get(source.SwaggerURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &Error{Server: source.Name, Kind: KindCompile, Reason: "non-2xx status fetching swagger url"}
	}
	return io.ReadAll(resp.Body)
}

// lint parses the generated source with go/parser as a fast syntactic
// check, then shells out to `go vet` for the full semantic pass — matching
// how the rest of the corpus invokes go tooling as a subprocess rather than
// linking against go/packages.
func lint(serverName, source string) error {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, serverName+".go", source, parser.AllErrors); err != nil {
		return &Error{Server: serverName, Kind: KindLint, Reason: "generated source failed to parse", Cause: err}
	}

	tmpDir, err := os.MkdirTemp("", "mfp-lint-*")
	if err != nil {
		return &Error{Server: serverName, Kind: KindLint, Reason: "creating lint workspace", Cause: err}
	}
	defer os.RemoveAll(tmpDir)

	tmpFile := filepath.Join(tmpDir, "generated.go")
	if err := os.WriteFile(tmpFile, []byte(source), 0o644); err != nil {
		return &Error{Server: serverName, Kind: KindLint, Reason: "writing lint workspace file", Cause: err}
	}

	cmd := exec.Command("go", "vet", tmpFile)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logging.Warn(compilerSubsystem, "go vet flagged %s: %s", serverName, string(output))
		return &Error{Server: serverName, Kind: KindLint, Reason: string(output), Cause: err}
	}
	return nil
}

func buildManifest(spec *model.ServerSpec, source string) model.Manifest {
	return model.Manifest{
		ServerName:    spec.Name,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		SwaggerHash:   spec.SourceHash,
		EndpointCount: len(spec.Endpoints),
		Functions:     functionsFromSpec(spec, source),
	}
}

func functionsFromSpec(spec *model.ServerSpec, source string) []model.FunctionInfo {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "generated.go", source, parser.ParseComments)

	var funcDecls map[string]*ast.FuncDecl
	if err == nil {
		funcDecls = map[string]*ast.FuncDecl{}
		for _, decl := range file.Decls {
			if fd, ok := decl.(*ast.FuncDecl); ok && fd.Recv == nil {
				funcDecls[fd.Name.Name] = fd
			}
		}
	}

	functions := make([]model.FunctionInfo, 0, len(spec.Endpoints))
	for _, ep := range spec.Endpoints {
		name := codegen.ExportedName(ep.OperationID)
		params := make([]string, 0, len(ep.Parameters))
		ordered := append([]model.ParamSpec{}, ep.Parameters...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Required && !ordered[j].Required })
		for _, p := range ordered {
			params = append(params, p.Name+" "+p.Type)
		}

		excerpt := source
		if funcDecls != nil {
			if fd, ok := funcDecls[name]; ok {
				start := fset.Position(fd.Pos()).Offset
				end := fset.Position(fd.End()).Offset
				if start >= 0 && end <= len(source) && start < end {
					excerpt = source[start:end]
				}
			}
		}

		functions = append(functions, model.FunctionInfo{
			Name:          name,
			Signature:     name + "(" + joinParams(params) + ")",
			Parameters:    params,
			Returns:       "(interface{}, error)",
			Summary:       ep.Summary,
			SourceExcerpt: excerpt,
		})
	}
	return functions
}

func joinParams(params []string) string {
	out := ""
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// serverDir returns where a compiled server's generated.go and manifest.json
// live: {outputDir}/src/mfplib/{serverName}. The "src/mfplib" nesting mirrors
// a GOPATH source tree so the sandbox runner's yaegi interpreter can resolve
// a submitted snippet's "mfplib/{server}" import by pointing its GoPath at
// outputDir directly.
func serverDir(outputDir, serverName string) string {
	return filepath.Join(outputDir, "src", "mfplib", serverName)
}

func writeServer(outputDir, serverName, source string, manifest model.Manifest) error {
	dir := serverDir(outputDir, serverName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := atomicWrite(filepath.Join(dir, "generated.go"), []byte(source)); err != nil {
		return err
	}

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, "manifest.json"), manifestBytes)
}

// atomicWrite writes to a temp file in the same directory then renames it
// into place, so readers (the registry) never see a partially written file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func readManifest(path string) (model.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Manifest{}, err
	}
	var manifest model.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return model.Manifest{}, err
	}
	return manifest, nil
}
