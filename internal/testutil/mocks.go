package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// MockLambdaInvoker records invocations and replies with a fixed API Gateway
// v2 response.
type MockLambdaInvoker struct {
	Response events.APIGatewayV2HTTPResponse
	// FunctionError, when set, is reported as an unhandled function error.
	FunctionError string
	Err           error

	mu     sync.Mutex
	Calls  []string
	Events []events.APIGatewayV2HTTPRequest
}

// NewMockLambdaInvoker returns an invoker answering with status and body.
func NewMockLambdaInvoker(status int, body string, headers map[string]string) *MockLambdaInvoker {
	return &MockLambdaInvoker{
		Response: events.APIGatewayV2HTTPResponse{
			StatusCode: status,
			Headers:    headers,
			Body:       body,
		},
	}
}

// Invoke implements the Lambda client subset used by the native transport.
func (m *MockLambdaInvoker) Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, aws.ToString(params.FunctionName))
	var event events.APIGatewayV2HTTPRequest
	if err := json.Unmarshal(params.Payload, &event); err == nil {
		m.Events = append(m.Events, event)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	payload, err := json.Marshal(m.Response)
	if err != nil {
		return nil, err
	}
	out := &lambda.InvokeOutput{StatusCode: 200, Payload: payload}
	if m.FunctionError != "" {
		out.FunctionError = aws.String(m.FunctionError)
	}
	return out, nil
}

// LastEvent returns the most recent event, or the zero value.
func (m *MockLambdaInvoker) LastEvent() events.APIGatewayV2HTTPRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Events) == 0 {
		return events.APIGatewayV2HTTPRequest{}
	}
	return m.Events[len(m.Events)-1]
}
