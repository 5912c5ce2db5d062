// Package swagger parses OpenAPI 3.x and Swagger 2.0 documents into mfp's
// normalized model.ServerSpec. Dialect is detected from the top-level
// document; $ref is resolved exactly one level; oneOf/anyOf/allOf and
// discriminators are skipped with a warning rather than failing the parse.
package swagger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"mfp/internal/config"
	"mfp/internal/hashing"
	"mfp/internal/model"
	"mfp/pkg/logging"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-openapi/spec"
	"gopkg.in/yaml.v3"
)

const parserSubsystem = "SwaggerParser"

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

// Parse turns raw document bytes (JSON or YAML) into a ServerSpec for the
// given source. Individual endpoint failures are logged and skipped; only
// malformed top-level structure fails the whole parse.
func Parse(data []byte, source config.SwaggerSource) (*model.ServerSpec, error) {
	jsonBytes, err := toJSON(data)
	if err != nil {
		return nil, &ParseError{Reason: "document is neither valid JSON nor YAML", Cause: err}
	}

	var sniff struct {
		OpenAPI string `json:"openapi"`
		Swagger string `json:"swagger"`
	}
	if err := json.Unmarshal(jsonBytes, &sniff); err != nil {
		return nil, &ParseError{Reason: "malformed top-level document", Cause: err}
	}

	serverSpec := &model.ServerSpec{
		Name:       source.Name,
		BaseURL:    source.BaseURL,
		IsReadOnly: source.IsReadOnly,
		SourceHash: hashing.ContentHash(data),
	}

	switch {
	case strings.HasPrefix(sniff.OpenAPI, "3"):
		endpoints, err := parseOpenAPI3(data)
		if err != nil {
			return nil, err
		}
		serverSpec.Endpoints = endpoints
	case sniff.Swagger == "2.0":
		endpoints, err := parseSwagger2(jsonBytes)
		if err != nil {
			return nil, err
		}
		serverSpec.Endpoints = endpoints
	default:
		return nil, &ParseError{Reason: "document declares neither openapi 3.x nor swagger 2.0"}
	}

	if source.IsReadOnly {
		kept := serverSpec.Endpoints[:0]
		for _, e := range serverSpec.Endpoints {
			if model.MutatingMethods[e.Method] {
				logging.Debug(parserSubsystem, "dropping mutating endpoint %s %s from read-only server %s", e.Method, e.Path, source.Name)
				continue
			}
			kept = append(kept, e)
		}
		serverSpec.Endpoints = kept
	}

	sort.Slice(serverSpec.Endpoints, func(i, j int) bool {
		return serverSpec.Endpoints[i].OperationID < serverSpec.Endpoints[j].OperationID
	})

	return serverSpec, nil
}

// toJSON converts YAML document bytes to JSON; JSON input passes through
// unmodified, detected by a leading '{'.
func toJSON(data []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return data, nil
	}
	var generic map[string]interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func parseOpenAPI3(data []byte) ([]model.EndpointSpec, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, &ParseError{Reason: "invalid openapi 3.x document", Cause: err}
	}
	if doc.Paths == nil {
		return nil, &ParseError{Reason: "openapi document has no paths"}
	}

	var endpoints []model.EndpointSpec
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		pathParams := collectOpenAPI3Params(item.Parameters)

		for method, op := range item.Operations() {
			if !allowedMethods[strings.ToUpper(method)] {
				continue
			}
			if op == nil {
				continue
			}
			endpoint, err := buildOpenAPI3Endpoint(strings.ToUpper(method), path, op, pathParams)
			if err != nil {
				logging.Warn(parserSubsystem, "skipping endpoint %s %s: %v", method, path, err)
				continue
			}
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints, nil
}

func buildOpenAPI3Endpoint(method, path string, op *openapi3.Operation, pathParams []model.ParamSpec) (model.EndpointSpec, error) {
	opID := op.OperationID
	if opID == "" {
		opID = synthesizeOperationID(method, path)
	}

	merged := mergeParams(pathParams, collectOpenAPI3Params(op.Parameters))

	var reqBody *model.SchemaRef
	if op.RequestBody != nil && op.RequestBody.Value != nil {
		for _, mediaType := range op.RequestBody.Value.Content {
			if mediaType.Schema != nil {
				reqBody = &model.SchemaRef{Type: goTypeFromOpenAPI3(mediaType.Schema.Value)}
			}
			break
		}
	}

	responses := map[string]model.ResponseSpec{}
	if op.Responses != nil {
		for status, respRef := range op.Responses.Map() {
			if respRef == nil || respRef.Value == nil {
				continue
			}
			responses[status] = model.ResponseSpec{
				Description: derefString(respRef.Value.Description),
				Fields:      responseFieldsFromOpenAPI3(respRef.Value),
			}
		}
	}

	orderParams(merged)

	return model.EndpointSpec{
		OperationID: opID,
		Method:      method,
		Path:        path,
		Summary:     op.Summary,
		Parameters:  merged,
		RequestBody: reqBody,
		Responses:   responses,
	}, nil
}

func responseFieldsFromOpenAPI3(resp *openapi3.Response) []model.ResponseField {
	for _, mediaType := range resp.Content {
		if mediaType.Schema == nil || mediaType.Schema.Value == nil {
			continue
		}
		return fieldsFromOpenAPI3Schema(mediaType.Schema.Value, true)
	}
	return nil
}

func fieldsFromOpenAPI3Schema(s *openapi3.Schema, allowNested bool) []model.ResponseField {
	if s == nil || s.Properties == nil {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]model.ResponseField, 0, len(names))
	for _, name := range names {
		propRef := s.Properties[name]
		if propRef == nil || propRef.Value == nil {
			fields = append(fields, model.ResponseField{Name: name, Type: "interface{}"})
			continue
		}
		field := model.ResponseField{
			Name:        name,
			Type:        goTypeFromOpenAPI3(propRef.Value),
			Description: propRef.Value.Description,
		}
		if allowNested {
			field.Nested = fieldsFromOpenAPI3Schema(propRef.Value, false)
		}
		fields = append(fields, field)
	}
	return fields
}

func collectOpenAPI3Params(params openapi3.Parameters) []model.ParamSpec {
	var out []model.ParamSpec
	for _, p := range params {
		if p == nil || p.Value == nil {
			continue
		}
		v := p.Value
		var goType string
		if v.Schema != nil {
			goType = goTypeFromOpenAPI3(v.Schema.Value)
		} else {
			goType = "interface{}"
		}
		out = append(out, model.ParamSpec{
			Name:        sanitizeIdentifier(v.Name),
			WireName:    v.Name,
			In:          v.In,
			Type:        goType,
			Required:    v.Required,
			Description: v.Description,
		})
	}
	return out
}

func parseSwagger2(jsonBytes []byte) ([]model.EndpointSpec, error) {
	var doc spec.Swagger
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, &ParseError{Reason: "invalid swagger 2.0 document", Cause: err}
	}
	if doc.Paths == nil {
		return nil, &ParseError{Reason: "swagger document has no paths"}
	}

	var endpoints []model.EndpointSpec
	for path, item := range doc.Paths.Paths {
		pathParams := collectSwagger2Params(item.Parameters)

		for method, op := range swagger2Operations(item) {
			if op == nil {
				continue
			}
			opID := op.ID
			if opID == "" {
				opID = synthesizeOperationID(method, path)
			}

			merged := mergeParams(pathParams, collectSwagger2Params(op.Parameters))
			orderParams(merged)

			var reqBody *model.SchemaRef
			for _, p := range op.Parameters {
				if p.In == "body" && p.Schema != nil {
					reqBody = &model.SchemaRef{Type: goTypeFromSwagger2(p.Schema)}
				}
			}

			responses := map[string]model.ResponseSpec{}
			if op.Responses != nil {
				for status, r := range op.Responses.StatusCodeResponses {
					responses[fmt.Sprintf("%d", status)] = model.ResponseSpec{
						Description: r.Description,
						Fields:      fieldsFromSwagger2Schema(r.Schema, true),
					}
				}
			}

			endpoints = append(endpoints, model.EndpointSpec{
				OperationID: opID,
				Method:      method,
				Path:        path,
				Summary:     op.Summary,
				Parameters:  merged,
				RequestBody: reqBody,
				Responses:   responses,
			})
		}
	}
	return endpoints, nil
}

func swagger2Operations(item spec.PathItem) map[string]*spec.Operation {
	ops := map[string]*spec.Operation{}
	if item.Get != nil {
		ops["GET"] = item.Get
	}
	if item.Post != nil {
		ops["POST"] = item.Post
	}
	if item.Put != nil {
		ops["PUT"] = item.Put
	}
	if item.Patch != nil {
		ops["PATCH"] = item.Patch
	}
	if item.Delete != nil {
		ops["DELETE"] = item.Delete
	}
	return ops
}

func collectSwagger2Params(params []spec.Parameter) []model.ParamSpec {
	var out []model.ParamSpec
	for _, p := range params {
		var goType string
		switch {
		case p.In == "body" && p.Schema != nil:
			goType = goTypeFromSwagger2(p.Schema)
		case p.Type != "":
			goType = goTypeFromPrimitive(p.Type)
		default:
			goType = "interface{}"
		}
		out = append(out, model.ParamSpec{
			Name:        sanitizeIdentifier(p.Name),
			WireName:    p.Name,
			In:          p.In,
			Type:        goType,
			Required:    p.Required,
			Description: p.Description,
		})
	}
	return out
}

func fieldsFromSwagger2Schema(s *spec.Schema, allowNested bool) []model.ResponseField {
	if s == nil || s.Properties == nil {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]model.ResponseField, 0, len(names))
	for _, name := range names {
		prop := s.Properties[name]
		field := model.ResponseField{
			Name:        name,
			Type:        goTypeFromSwagger2(&prop),
			Description: prop.Description,
		}
		if allowNested {
			field.Nested = fieldsFromSwagger2Schema(&prop, false)
		}
		fields = append(fields, field)
	}
	return fields
}

// mergeParams merges path-level and operation-level parameters;
// operation-level wins on name collision.
func mergeParams(pathLevel, opLevel []model.ParamSpec) []model.ParamSpec {
	byName := map[string]model.ParamSpec{}
	var order []string
	for _, p := range pathLevel {
		byName[p.WireName] = p
		order = append(order, p.WireName)
	}
	for _, p := range opLevel {
		if _, exists := byName[p.WireName]; !exists {
			order = append(order, p.WireName)
		}
		byName[p.WireName] = p
	}
	out := make([]model.ParamSpec, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// orderParams enforces the invariant that required parameters precede
// optional ones in any ordered emission, using a stable sort so relative
// declaration order is otherwise preserved.
func orderParams(params []model.ParamSpec) {
	sort.SliceStable(params, func(i, j int) bool {
		return params[i].Required && !params[j].Required
	})
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
