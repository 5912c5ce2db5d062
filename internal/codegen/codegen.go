// Package codegen is the pure ServerSpec → Go source mapping: given
// identical input it produces byte-identical output. It never reads the
// environment or the filesystem itself — the compile orchestrator owns
// writing the result to disk.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"mfp/internal/model"
)

// Generate emits a single Go source file implementing one public function
// per endpoint of spec, plus the private HTTP plumbing they share. Auth
// values never appear textually in the output — only the env var names the
// vault populates at sandbox-container start time.
func Generate(spec *model.ServerSpec) (string, error) {
	pkgName := packageName(spec.Name)
	envPrefix := "MFP_" + strings.ToUpper(sanitizeEnvFragment(spec.Name))

	var b strings.Builder

	fmt.Fprintf(&b, "// GENERATED — DO NOT EDIT\n")
	fmt.Fprintf(&b, "// Source server: %s (hash %s)\n", spec.Name, spec.SourceHash)
	fmt.Fprintf(&b, "package %s\n\n", pkgName)
	b.WriteString("import (\n\t\"encoding/json\"\n\t\"fmt\"\n\t\"io\"\n\t\"net/http\"\n\t\"os\"\n\t\"strings\"\n)\n\n")

	writeHTTPHelper(&b, envPrefix)

	endpoints := make([]model.EndpointSpec, len(spec.Endpoints))
	copy(endpoints, spec.Endpoints)
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].OperationID < endpoints[j].OperationID })

	for _, ep := range endpoints {
		writeFunction(&b, ep)
	}

	return b.String(), nil
}

func writeHTTPHelper(b *strings.Builder, envPrefix string) {
	fmt.Fprintf(b, `// baseURL returns the configured base URL for this server. Populated by
// the sandbox's credential vault at container start; never hardcoded here.
func baseURL() string {
	return os.Getenv(%q)
}

// authHeader returns the configured Authorization header value for this
// server, if any. The value itself never appears in this source file.
func authHeader() string {
	return os.Getenv(%q)
}

// doRequest issues an HTTP request against this server and decodes a JSON
// response into out. Never logs the auth header.
func doRequest(method, path string, query map[string]string, body interface{}, out interface{}) error {
	url := strings.TrimRight(baseURL(), "/") + path
	if len(query) > 0 {
		var parts []string
		for k, v := range query {
			parts = append(parts, k+"="+v)
		}
		url = url + "?" + strings.Join(parts, "&")
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %%w", err)
		}
		reqBody = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %%w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h := authHeader(); h != "" {
		req.Header.Set("Authorization", h)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %%d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

`, envPrefix+"_BASE_URL", envPrefix+"_AUTH")
}

func writeFunction(b *strings.Builder, ep model.EndpointSpec) {
	funcName := ExportedName(ep.OperationID)

	required, optional := splitParams(ep.Parameters)
	ordered := append(append([]model.ParamSpec{}, required...), optional...)

	b.WriteString("// " + funcName + " calls " + ep.Method + " " + ep.Path + ".\n")
	if ep.Summary != "" {
		b.WriteString("// " + ep.Summary + "\n")
	}
	b.WriteString("//\n// Parameters:\n")
	for _, p := range ordered {
		req := "optional"
		if p.Required {
			req = "required"
		}
		fmt.Fprintf(b, "//   - %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
	}

	sig := make([]string, len(ordered))
	for i, p := range ordered {
		sig[i] = p.Name + " " + p.Type
	}
	fmt.Fprintf(b, "func %s(%s) (interface{}, error) {\n", funcName, strings.Join(sig, ", "))

	b.WriteString("\tquery := map[string]string{}\n")
	path := ep.Path
	var bodyParam string
	for _, p := range ordered {
		switch p.In {
		case "path":
			path = strings.ReplaceAll(path, "{"+p.WireName+"}", "\"+fmt.Sprint("+p.Name+")+\"")
		case "query":
			fmt.Fprintf(b, "\tquery[%q] = fmt.Sprint(%s)\n", p.WireName, p.Name)
		case "header":
			// header params beyond Authorization are rare for generated
			// servers; folded into query passthrough for the sandbox HTTP
			// helper's single request path.
			fmt.Fprintf(b, "\tquery[%q] = fmt.Sprint(%s)\n", p.WireName, p.Name)
		case "body":
			bodyParam = p.Name
		}
	}

	bodyExpr := "nil"
	if bodyParam != "" {
		bodyExpr = bodyParam
	}

	fmt.Fprintf(b, "\tvar result interface{}\n")
	fmt.Fprintf(b, "\terr := doRequest(%q, \"%s\", query, %s, &result)\n", ep.Method, path, bodyExpr)
	b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	b.WriteString("\treturn result, nil\n}\n\n")
}

func splitParams(params []model.ParamSpec) (required, optional []model.ParamSpec) {
	for _, p := range params {
		if p.Required {
			required = append(required, p)
		} else {
			optional = append(optional, p)
		}
	}
	return required, optional
}

func packageName(serverName string) string {
	name := sanitizeEnvFragment(strings.ToLower(serverName))
	if name == "" {
		return "server"
	}
	return name
}

// ExportedName converts an operation id into the exported Go function name
// codegen declares for it; the compiler's manifest builder calls this too,
// so a function's documented name always matches its declared one.
func ExportedName(operationID string) string {
	parts := strings.Split(sanitizeEnvFragment(operationID), "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	if b.Len() == 0 {
		return "Call"
	}
	return b.String()
}

func sanitizeEnvFragment(s string) string {
	var b strings.Builder
	lastWasUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasUnderscore = false
			continue
		}
		if !lastWasUnderscore {
			b.WriteByte('_')
			lastWasUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
