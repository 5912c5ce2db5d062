package sandboxrunner

import "testing"

func TestInterpret_SimpleSuccess(t *testing.T) {
	code := `package main

func Run() (interface{}, error) {
	return 42, nil
}
`
	result := Interpret(code, "")
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
}

func TestInterpret_ReturnedErrorIsSurfaced(t *testing.T) {
	code := `package main
import "errors"

func Run() (interface{}, error) {
	return nil, errors.New("boom")
}
`
	result := Interpret(code, "")
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error != "boom" {
		t.Errorf("expected error message 'boom', got %q", result.Error)
	}
}

func TestInterpret_MissingEntryFunctionFails(t *testing.T) {
	code := `package main
func NotRun() {}
`
	result := Interpret(code, "")
	if result.Success {
		t.Fatal("expected failure for missing Run function")
	}
}

func TestInterpret_PanicIsRecovered(t *testing.T) {
	code := `package main

func Run() (interface{}, error) {
	var m map[string]int
	m["x"] = 1
	return nil, nil
}
`
	result := Interpret(code, "")
	if result.Success {
		t.Fatal("expected failure when snippet panics")
	}
}

func TestInterpret_SyntaxErrorFails(t *testing.T) {
	result := Interpret("this is not go code {{{", "")
	if result.Success {
		t.Fatal("expected failure for invalid Go source")
	}
}
