// Package astguard is the static analyzer that runs over every LLM-submitted
// snippet before it reaches a container. It is a visitor over imports,
// calls, attribute accesses and scope declarations in the sandboxed
// language's own syntax tree — here that is Go's go/ast, since the sandbox
// executes Go snippets through an embedded interpreter rather than Python.
package astguard

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// SecurityViolation is the taxonomy's SecurityViolation: the AST guard
// rejected a submission. The submitted code itself must never be attached
// to this error or logged alongside it — only Kind and Pattern, the
// offending symbol, may ever reach a log line.
type SecurityViolation struct {
	Kind    string // "blocked_import", "blocked_call", "dunder_access", "scope_violation", "syntax"
	Pattern string // the offending symbol/import path
}

func (e *SecurityViolation) Error() string {
	return fmt.Sprintf("security violation: %s (%s)", e.Kind, e.Pattern)
}

// CompiledLibraryImportPrefix namespaces imports of generated server
// libraries, e.g. "mfplib/weather" for the server named "weather".
const CompiledLibraryImportPrefix = "mfplib/"

// blockedImports is the negative list: filesystem, process, raw network,
// reflective import, and dynamic-evaluation surfaces. There is no Go
// "eval"/"exec"/"compile" builtin — the nearest real risks are programmatic
// import (go/importer), plugin loading (plugin.Open), and reflect-based
// access to unexported fields, all blocked by import below.
var blockedImports = map[string]bool{
	"os":                true,
	"os/exec":           true,
	"os/user":           true,
	"net":               true,
	"syscall":           true,
	"unsafe":            true,
	"plugin":            true,
	"go/importer":       true,
	"reflect":           true,
	"runtime":           true,
	"runtime/debug":     true,
	"debug/elf":         true,
	"debug/macho":       true,
	"debug/pe":          true,
	"io/ioutil":         true,
	"path/filepath":     true,
	"net/http/httputil": true,
}

// allowedImports is the positive list: the HTTP client generated libraries
// use, common data handling, and — via compiled-library recognition below —
// any server package that exists in the registry.
var allowedImports = map[string]bool{
	"net/http":      true,
	"encoding/json": true,
	"strings":       true,
	"strconv":       true,
	"fmt":           true,
	"time":          true,
	"sort":          true,
	"math":          true,
	"errors":        true,
	"context":       true,
	"bytes":         true,
}

// blockedCallSelectors are SelectorExpr "X.Sel" patterns that map to the
// dynamic-evaluation surfaces spec.md's taxonomy names for a scripting
// language: os.Open/os.Create/os.OpenFile (open), exec.Command/
// exec.CommandContext (process spawn), importer.Default/importer.ForCompiler
// (__import__/compile), plugin.Open (compile+exec of arbitrary code).
var blockedCallSelectors = map[string]bool{
	"os.Open":              true,
	"os.OpenFile":          true,
	"os.Create":            true,
	"os.Remove":            true,
	"os.RemoveAll":         true,
	"exec.Command":         true,
	"exec.CommandContext":  true,
	"importer.Default":     true,
	"importer.ForCompiler": true,
	"plugin.Open":          true,
}

// Check parses code and rejects it on the first violation found. knownServers
// is the set of compiled server names currently in the registry — importing
// a compiled library is allowed iff its name is in this set.
func Check(code string, knownServers map[string]bool) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "snippet.go", wrapForParsing(code), parser.ParseComments)
	if err != nil {
		return &SecurityViolation{Kind: "syntax", Pattern: "unparsable submission"}
	}

	if v := checkImports(file, knownServers); v != nil {
		return v
	}

	var violation *SecurityViolation
	ast.Inspect(file, func(n ast.Node) bool {
		if violation != nil {
			return false
		}
		switch node := n.(type) {
		case *ast.FuncDecl:
			if node.Name != nil && node.Name.Name == "init" {
				violation = &SecurityViolation{Kind: "scope_violation", Pattern: "init"}
				return false
			}
		case *ast.CallExpr:
			if v := checkCall(node); v != nil {
				violation = v
				return false
			}
		case *ast.SelectorExpr:
			if v := checkDunderAccess(node); v != nil {
				violation = v
				return false
			}
		}
		return true
	})
	return violation
}

// wrapForParsing adds a package clause if the submission doesn't already
// have one — LLM submissions are function bodies and import blocks, not
// whole files.
func wrapForParsing(code string) string {
	trimmed := strings.TrimSpace(code)
	if strings.HasPrefix(trimmed, "package ") {
		return code
	}
	return "package main\n\n" + code
}

func checkImports(file *ast.File, knownServers map[string]bool) *SecurityViolation {
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)

		if strings.HasPrefix(path, CompiledLibraryImportPrefix) {
			server := strings.TrimPrefix(path, CompiledLibraryImportPrefix)
			if knownServers[server] {
				continue
			}
			return &SecurityViolation{Kind: "blocked_import", Pattern: path}
		}

		if blockedImports[path] {
			return &SecurityViolation{Kind: "blocked_import", Pattern: path}
		}
		if !allowedImports[path] {
			return &SecurityViolation{Kind: "blocked_import", Pattern: path}
		}
	}
	return nil
}

func checkCall(call *ast.CallExpr) *SecurityViolation {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return nil
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return nil
	}
	key := ident.Name + "." + sel.Sel.Name
	if blockedCallSelectors[key] {
		return &SecurityViolation{Kind: "blocked_call", Pattern: key}
	}
	return nil
}

// dunderLikeFields are the Go stand-ins for Python's dangerous dunder
// attributes (__globals__, __class__, __subclasses__): reflect/unsafe
// accessors that reach outside a value's declared type.
var dunderLikeFields = map[string]bool{
	"Field":       true,
	"FieldByName": true,
	"Elem":        true,
	"Pointer":     true,
	"UnsafeAddr":  true,
	"Convert":     true,
}

func checkDunderAccess(sel *ast.SelectorExpr) *SecurityViolation {
	ident, ok := sel.X.(*ast.Ident)
	if ok && (ident.Name == "reflect" || ident.Name == "unsafe") {
		return &SecurityViolation{Kind: "dunder_access", Pattern: ident.Name + "." + sel.Sel.Name}
	}
	if dunderLikeFields[sel.Sel.Name] {
		return &SecurityViolation{Kind: "dunder_access", Pattern: sel.Sel.Name}
	}
	return nil
}
