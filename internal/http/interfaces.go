package http

import (
	"context"
)

// HTTPExecutor runs one configured request against a target
type HTTPExecutor interface {
	// Execute performs the request and writes the result (CLI mode)
	Execute(ctx context.Context, target string) error

	// Do performs the request and returns the result (MCP mode)
	Do(ctx context.Context, target string) (*Result, error)
}

// URLResolver turns a CLI target into an absolute URL
type URLResolver interface {
	Resolve(ctx context.Context, target string) (string, error)
}

// ResponseHandler renders a result
type ResponseHandler interface {
	HandleResult(res *Result) error
}
