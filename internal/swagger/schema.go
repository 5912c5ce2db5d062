package swagger

import (
	"mfp/pkg/logging"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-openapi/spec"
)

// goTypeFromOpenAPI3 maps an OpenAPI 3.x schema to the Go type codegen
// emits. oneOf/anyOf/allOf/discriminator schemas fall back to "interface{}"
// — spec.md explicitly skips expanding them.
func goTypeFromOpenAPI3(s *openapi3.Schema) string {
	if s == nil {
		return "interface{}"
	}
	if len(s.OneOf) > 0 || len(s.AnyOf) > 0 || len(s.AllOf) > 0 || s.Discriminator != nil {
		logging.Warn(parserSubsystem, "skipping oneOf/anyOf/allOf/discriminator schema; treating it as interface{}")
		return "interface{}"
	}
	if s.Type == nil || len(*s.Type) == 0 {
		return "interface{}"
	}
	switch (*s.Type)[0] {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

// goTypeFromSwagger2 is the Swagger 2.0 equivalent of goTypeFromOpenAPI3.
func goTypeFromSwagger2(s *spec.Schema) string {
	if s == nil {
		return "interface{}"
	}
	if len(s.AllOf) > 0 {
		logging.Warn(parserSubsystem, "skipping allOf schema; treating it as interface{}")
		return "interface{}"
	}
	if len(s.Type) == 0 {
		return "interface{}"
	}
	switch s.Type[0] {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

// goTypeFromPrimitive maps a Swagger 2.0 non-body parameter's primitive
// "type" string directly (these never carry a nested schema).
func goTypeFromPrimitive(t string) string {
	switch t {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}
