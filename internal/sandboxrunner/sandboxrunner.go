// Package sandboxrunner is the program that runs inside the sandbox
// container: it reads a submitted snippet off disk, interprets it with
// yaegi against the stdlib plus the compiled server libraries bind-mounted
// at MFP_LIB_ROOT, and prints a single trailing JSON result line to stdout
// for the host-side executor to parse. It never runs anything except what
// it's handed — the AST guard and policy checks have already run on the
// host before the container was ever started.
package sandboxrunner

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// EntryFunction is the name every submitted snippet must export: the
// sandbox runner looks up main.EntryFunction after evaluating the snippet.
const EntryFunction = "Run"

type sandboxResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Main is the sandbox container's entrypoint body. It never returns an
// error to the caller — every failure mode becomes a {"success":false}
// result line so the host side always has something to parse.
func Main() {
	codePath := os.Getenv("MFP_CODE_PATH")
	libRoot := os.Getenv("MFP_LIB_ROOT")

	code, err := os.ReadFile(codePath)
	if err != nil {
		emit(sandboxResult{Success: false, Error: fmt.Sprintf("reading submitted code: %v", err)})
		return
	}

	result := Interpret(string(code), libRoot)
	emit(result)
}

// Interpret evaluates code in a fresh yaegi interpreter and calls its
// exported Run function, recovering from any panic the snippet itself
// triggers so one bad snippet never crashes the sandbox process.
func Interpret(code, libRoot string) (result sandboxResult) {
	defer func() {
		if r := recover(); r != nil {
			result = sandboxResult{Success: false, Error: fmt.Sprintf("panic during execution: %v", r)}
		}
	}()

	opts := interp.Options{}
	if libRoot != "" {
		opts.GoPath = libRoot
	}
	i := interp.New(opts)

	if err := i.Use(stdlib.Symbols); err != nil {
		return sandboxResult{Success: false, Error: fmt.Sprintf("loading stdlib symbols: %v", err)}
	}

	if _, err := i.Eval(code); err != nil {
		return sandboxResult{Success: false, Error: fmt.Sprintf("evaluating snippet: %v", err)}
	}

	fn, err := i.Eval("main." + EntryFunction)
	if err != nil {
		return sandboxResult{Success: false, Error: fmt.Sprintf("%s not found: %v", EntryFunction, err)}
	}

	entry, ok := fn.Interface().(func() (any, error))
	if !ok {
		return sandboxResult{Success: false, Error: fmt.Sprintf("%s has the wrong signature; expected func() (any, error)", EntryFunction)}
	}

	data, err := entry()
	if err != nil {
		return sandboxResult{Success: false, Error: err.Error()}
	}
	return sandboxResult{Success: true, Data: data}
}

func emit(result sandboxResult) {
	encoded, err := json.Marshal(result)
	if err != nil {
		fmt.Println(`{"success":false,"error":"failed to encode result"}`)
		return
	}
	fmt.Println(string(encoded))
}
