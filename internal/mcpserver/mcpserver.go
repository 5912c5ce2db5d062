// Package mcpserver exposes mfp's four meta-tools over the Model Context
// Protocol: list_servers, get_function, execute_code, get_cached_code. It
// never aggregates or forwards to other backend MCP servers — unlike a
// general-purpose aggregator, mfp's tool set is fixed and known at compile
// time, so tools are registered directly against mcp-go's server.MCPServer
// rather than through a dynamic provider abstraction.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"mfp/internal/cache"
	"mfp/internal/executor"
	"mfp/internal/registry"
	"mfp/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
)

const mcpSubsystem = "MCPServer"

// Tool names, exported so cmd and tests can refer to them without
// re-typing string literals.
const (
	ToolListServers   = "list_servers"
	ToolGetFunction   = "get_function"
	ToolExecuteCode   = "execute_code"
	ToolGetCachedCode = "get_cached_code"
)

// ServerName/ServerVersion identify mfp to connecting MCP clients.
const (
	ServerName    = "mfp"
	ServerVersion = "1.0.0"
)

// Server wires the loaded registry, executor, and cache into a mcp-go
// server.MCPServer exposing mfp's four tools.
type Server struct {
	Registry *registry.Registry
	Executor *executor.Executor
	Cache    *cache.Cache

	mcp *mcpsrv.MCPServer
}

// New builds a Server. Call MCPServer to obtain the wired *server.MCPServer
// ready for a transport.
func New(reg *registry.Registry, exec *executor.Executor, c *cache.Cache) *Server {
	return &Server{Registry: reg, Executor: exec, Cache: c}
}

// MCPServer returns the underlying mcp-go server, registering mfp's tools
// on first call.
func (s *Server) MCPServer() *mcpsrv.MCPServer {
	if s.mcp != nil {
		return s.mcp
	}

	srv := mcpsrv.NewMCPServer(
		ServerName,
		ServerVersion,
		mcpsrv.WithToolCapabilities(true),
	)

	srv.AddTool(mcp.NewTool(ToolListServers,
		mcp.WithDescription("List every compiled server and its available functions"),
	), s.handleListServers)

	srv.AddTool(mcp.NewTool(ToolGetFunction,
		mcp.WithDescription("Get the full signature and source excerpt of one compiled function"),
		mcp.WithString("server", mcp.Required(), mcp.Description("Compiled server name, as returned by list_servers")),
		mcp.WithString("function", mcp.Required(), mcp.Description("Function name, as returned by list_servers")),
	), s.handleGetFunction)

	srv.AddTool(mcp.NewTool(ToolExecuteCode,
		mcp.WithDescription("Run a Go snippet with a func Run() (interface{}, error) entry point in a sandboxed container and return its result"),
		mcp.WithString("code", mcp.Required(), mcp.Description("Go source implementing func Run() (interface{}, error)")),
		mcp.WithString("description", mcp.Description("Short human-readable description of what the snippet does, stored alongside the cache entry")),
	), s.handleExecuteCode)

	srv.AddTool(mcp.NewTool(ToolGetCachedCode,
		mcp.WithDescription("Retrieve a previously executed snippet and its result by cache id, or search cached snippets by description"),
		mcp.WithString("id", mcp.Description("Exact cache id returned by a prior execute_code call")),
		mcp.WithString("query", mcp.Description("Substring to search cached snippet descriptions for, when id is not given")),
	), s.handleGetCachedCode)

	s.mcp = srv
	return srv
}

func (s *Server) handleListServers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	servers := s.Registry.ListServers()
	data, err := json.Marshal(servers)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format servers: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetFunction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	server, err := request.RequireString("server")
	if err != nil {
		return mcp.NewToolResultError("server parameter is required"), nil
	}
	function, err := request.RequireString("function")
	if err != nil {
		return mcp.NewToolResultError("function parameter is required"), nil
	}

	fn, ok := s.Registry.GetFunction(server, function)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no such function: %s.%s", server, function)), nil
	}

	data, err := json.Marshal(fn)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format function: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code parameter is required"), nil
	}
	description := optionalString(request, "description")

	result, err := s.Executor.Run(ctx, code)
	if err != nil {
		logging.Error(mcpSubsystem, err, "execute_code: plumbing failure")
		return mcp.NewToolResultError(fmt.Sprintf("execution failed: %v", err)), nil
	}

	if description != "" && result.CacheID != nil {
		s.annotateDescription(*result.CacheID, description)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// annotateDescription best-effort records the caller-supplied description
// against the snippet's cache entry. It never touches use_count/last_used_at
// — describing a snippet is not itself a use of it.
func (s *Server) annotateDescription(id, description string) {
	if err := s.Cache.SetDescription(id, description); err != nil {
		logging.Warn(mcpSubsystem, "failed to annotate cache entry %s: %v", id, err)
	}
}

func (s *Server) handleGetCachedCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := optionalString(request, "id")
	if id != "" {
		entry, found, err := s.Cache.Get(id, nowUnix())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cache lookup failed: %v", err)), nil
		}
		if !found {
			return mcp.NewToolResultError(fmt.Sprintf("no cached snippet with id %s", id)), nil
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format cache entry: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	query := optionalString(request, "query")
	entries, err := s.Cache.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cache search failed: %v", err)), nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format search results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Serve starts the server on the given transport ("stdio" or "http"),
// blocking until ctx is cancelled or the transport errors.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	mcpSrv := s.MCPServer()

	switch transport {
	case "stdio":
		logging.Info(mcpSubsystem, "starting mfp MCP server on stdio transport")
		stdio := mcpsrv.NewStdioServer(mcpSrv)
		return stdio.Listen(ctx, os.Stdin, os.Stdout)
	case "http":
		logging.Info(mcpSubsystem, "starting mfp MCP server on streamable-http transport at %s", addr)
		handler := mcpsrv.NewStreamableHTTPServer(mcpSrv)
		httpSrv := &http.Server{Addr: addr, Handler: handler}

		errCh := make(chan error, 1)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
				return
			}
			errCh <- nil
		}()

		select {
		case <-ctx.Done():
			return httpSrv.Shutdown(context.Background())
		case err := <-errCh:
			return err
		}
	default:
		return fmt.Errorf("unknown transport: %s", transport)
	}
}

func nowUnix() int64 {
	return time.Now().Unix()
}

// optionalString reads a non-required string argument, defaulting to "".
func optionalString(request mcp.CallToolRequest, key string) string {
	if v, ok := request.GetArguments()[key].(string); ok {
		return v
	}
	return ""
}
