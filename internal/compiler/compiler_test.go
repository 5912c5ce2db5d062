package compiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mfp/internal/config"

	"github.com/stretchr/testify/require"
)

const samplePetstore = `{
	"openapi": "3.0.0",
	"info": {"title": "petstore", "version": "1.0"},
	"paths": {
		"/pets": {
			"get": {
				"operationId": "listPets",
				"summary": "List all pets",
				"responses": {"200": {"description": "ok"}}
			}
		}
	}
}`

func writeSwaggerFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompile_WritesGeneratedSourceAndManifest(t *testing.T) {
	dir := t.TempDir()
	swaggerPath := writeSwaggerFile(t, dir, "petstore.json", samplePetstore)

	sources := []config.SwaggerSource{
		{Name: "petstore", SwaggerPath: swaggerPath, BaseURL: "https://petstore.example"},
	}
	outputDir := filepath.Join(dir, "compiled")

	results, err := Compile(sources, Options{OutputDir: outputDir, SkipLint: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].Skipped)

	generated := filepath.Join(outputDir, "src", "mfplib", "petstore", "generated.go")
	_, err = os.Stat(generated)
	require.NoError(t, err)

	manifestPath := filepath.Join(outputDir, "src", "mfplib", "petstore", "manifest.json")
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)

	var manifest struct {
		ServerName    string `json:"server_name"`
		EndpointCount int    `json:"endpoint_count"`
		Functions     []struct {
			Name string `json:"name"`
		} `json:"functions"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Equal(t, "petstore", manifest.ServerName)
	require.Equal(t, 1, manifest.EndpointCount)
	require.Len(t, manifest.Functions, 1)
	require.Equal(t, "ListPets", manifest.Functions[0].Name)
}

func TestCompile_SkipsUnchangedSource(t *testing.T) {
	dir := t.TempDir()
	swaggerPath := writeSwaggerFile(t, dir, "petstore.json", samplePetstore)
	sources := []config.SwaggerSource{
		{Name: "petstore", SwaggerPath: swaggerPath, BaseURL: "https://petstore.example"},
	}
	outputDir := filepath.Join(dir, "compiled")

	_, err := Compile(sources, Options{OutputDir: outputDir, SkipLint: true})
	require.NoError(t, err)

	results, err := Compile(sources, Options{OutputDir: outputDir, SkipLint: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Skipped)
}

func TestCompile_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	swaggerPath := writeSwaggerFile(t, dir, "petstore.json", samplePetstore)
	sources := []config.SwaggerSource{
		{Name: "petstore", SwaggerPath: swaggerPath, BaseURL: "https://petstore.example"},
	}
	outputDir := filepath.Join(dir, "compiled")

	_, err := Compile(sources, Options{OutputDir: outputDir, DryRun: true, SkipLint: true})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(outputDir, "src", "mfplib", "petstore", "generated.go"))
	require.True(t, os.IsNotExist(err), "expected dry-run to write nothing")
}

func TestCompile_MalformedDocumentReturnsCompileError(t *testing.T) {
	dir := t.TempDir()
	swaggerPath := writeSwaggerFile(t, dir, "bad.json", "not a document")
	sources := []config.SwaggerSource{
		{Name: "bad", SwaggerPath: swaggerPath, BaseURL: "https://bad.example"},
	}

	_, err := Compile(sources, Options{OutputDir: filepath.Join(dir, "compiled"), SkipLint: true})
	require.Error(t, err)

	var compileErr *Error
	require.ErrorAs(t, err, &compileErr)
	require.Equal(t, KindCompile, compileErr.Kind)
}
