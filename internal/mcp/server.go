package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/brendan.keane/hreq/internal/config"
	"github.com/brendan.keane/hreq/internal/errors"
	httpexec "github.com/brendan.keane/hreq/internal/http"
	"github.com/brendan.keane/hreq/internal/logger"
)

// Version is reported to MCP clients during initialization.
var Version = "1.0.0"

const defaultContextLines = 5

// Server exposes the request engine as MCP tools
type Server struct {
	logger  zerolog.Logger
	config  *config.Config
	factory *httpexec.ClientFactory
	mcp     *server.MCPServer
}

// NewServer creates an MCP server. Every tool call starts from cfg and
// overrides it with the call's arguments.
func NewServer(log zerolog.Logger, cfg *config.Config, factory *httpexec.ClientFactory) *Server {
	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithLogging(),
	}
	if cfg.MCP.Description != "" {
		opts = append(opts, server.WithInstructions(cfg.MCP.Description))
	}

	s := &Server{
		logger:  log.With().Str("component", "mcp_server").Logger(),
		config:  cfg,
		factory: factory,
		mcp:     server.NewMCPServer("hreq", Version, opts...),
	}
	s.mcp.AddTool(httpRequestTool(), s.handleHTTPRequest)
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Start serves MCP over stdin and stdout until ctx is done or stdin closes
func (s *Server) Start(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	s.logger.Debug().Msg("MCP server started, reading from stdin")

	stdio := server.NewStdioServer(s.mcp)
	if err := stdio.Listen(ctx, stdin, stdout); err != nil && !stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrorTypeMCP, "MCP stdio server failed")
	}

	s.logger.Debug().Msg("MCP server stopped")
	return nil
}

func httpRequestTool() mcp.Tool {
	return mcp.NewTool("http_request",
		mcp.WithDescription(`Send one HTTP request and return {status, status_line, headers, body, backend} as JSON.
The native backend supports http, https and lambda:// targets with redirects, content decoding and auth negotiation.
Set fallback to use the raw-socket backend, which writes the request exactly as configured.
Use regex or jmespath to reduce large responses.`),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute URL, or a path resolved against the configured server")),
		mcp.WithString("method", mcp.Description("HTTP method: GET, POST, PUT or DELETE (default: GET)")),
		mcp.WithArray("headers", mcp.Items(map[string]any{"type": "string"}), mcp.Description("Headers to set (format: 'Name: Value'; a line without ':' is sent bare)")),
		mcp.WithString("body", mcp.Description("Payload; sent as the query string for GET")),
		mcp.WithNumber("timeout", mcp.Description("Timeout in seconds (0 disables)")),
		mcp.WithBoolean("fallback", mcp.Description("Force the raw-socket fallback backend")),
		mcp.WithString("regex", mcp.Description("Return only regex matches with surrounding context. Cannot be used with jmespath.")),
		mcp.WithString("jmespath", mcp.Description("JMESPath expression applied to a JSON body. Cannot be used with regex.")),
		mcp.WithNumber("context_lines", mcp.Description("Context around regex matches, ~80 characters per line (default: 5)")),
	)
}

// toolResponse is the JSON document returned by http_request
type toolResponse struct {
	Status     int               `json:"status"`
	StatusLine string            `json:"status_line"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	Backend    string            `json:"backend"`
	Meta       map[string]any    `json:"_meta,omitempty"`
}

func (s *Server) handleHTTPRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := req.GetString("url", "")
	if target == "" {
		return errorResult("url is required"), nil
	}

	regexPattern := strings.TrimSpace(req.GetString("regex", ""))
	jmespathExpr := strings.TrimSpace(req.GetString("jmespath", ""))
	if regexPattern != "" && jmespathExpr != "" {
		return errorResult("cannot use both regex and jmespath filters simultaneously"), nil
	}

	reqCfg := *s.config
	reqCfg.Method = strings.ToUpper(req.GetString("method", config.DefaultMethod))
	reqCfg.Headers = append(slices.Clone(s.config.Headers), headerArgs(req)...)
	reqCfg.Data = req.GetString("body", "")
	reqCfg.Timeout = req.GetInt("timeout", s.config.Timeout)
	reqCfg.Fallback = req.GetBool("fallback", s.config.Fallback)
	reqCfg.Output = config.DefaultOutput
	if err := reqCfg.Validate(); err != nil {
		return errorResult(errors.UserMessage(err)), nil
	}

	log := logger.ForMCP(s.logger, "http_request")
	log.Debug().
		Str("method", reqCfg.Method).
		Str("url", target).
		Int("headers", len(reqCfg.Headers)).
		Bool("has_body", reqCfg.Data != "").
		Bool("fallback", reqCfg.Fallback).
		Msg("executing HTTP request via MCP")

	exec, err := s.factory.CreateExecutor(&reqCfg)
	if err != nil {
		return errorResult(errors.UserMessage(err)), nil
	}
	res, err := exec.Do(ctx, target)
	if err != nil {
		log.Debug().Err(err).Msg("HTTP request failed via MCP")
		return errorResult("HTTP request failed: " + errors.UserMessage(err)), nil
	}

	out := toolResponse{
		Status:     res.Status,
		StatusLine: res.StatusLine,
		Headers:    headerMap(res.Headers),
		Body:       res.Body,
		Backend:    res.Backend,
	}

	var filtered *FilterResult
	switch {
	case regexPattern != "":
		filtered, err = filterRegex(res.Body, regexPattern, req.GetInt("context_lines", defaultContextLines))
	case jmespathExpr != "":
		filtered, err = filterJMESPath(res.Body, jmespathExpr)
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if filtered != nil {
		out.Body = filtered.Content
		out.Meta = filtered.Meta
	}

	return jsonResult(out)
}

// headerArgs accepts headers as an array of lines or as an object.
func headerArgs(req mcp.CallToolRequest) []string {
	if lines := req.GetStringSlice("headers", nil); len(lines) > 0 {
		return lines
	}
	args := req.GetArguments()
	obj, ok := args["headers"].(map[string]any)
	if !ok {
		return nil
	}
	names := bulk.MapKeysSlice(obj)
	slices.Sort(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		if value, ok := obj[name].(string); ok {
			lines = append(lines, name+": "+value)
		}
	}
	return lines
}

// headerMap keys response header lines by name. Bare lines map to "".
func headerMap(lines []string) map[string]string {
	m := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, _ := strings.Cut(line, ":")
		m[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return m
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errorResult("failed to marshal response: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}
