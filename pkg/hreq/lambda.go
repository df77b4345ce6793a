package hreq

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/google/uuid"

	"github.com/brendan.keane/hreq/internal/errors"
)

// LambdaInvoker is the subset of the Lambda client used for lambda:// targets.
type LambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// lambdaInvoker loads the AWS configuration once, on first lambda:// use.
func (t *NativeTransport) lambdaInvoker(ctx context.Context) (LambdaInvoker, error) {
	t.lambdaOnce.Do(func() {
		if t.Lambda != nil {
			return
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			t.lambdaErr = errors.Wrap(err, errors.ErrorTypeChannel, "failed to load AWS configuration").
				WithContext("suggestion", "ensure AWS credentials are configured")
			return
		}
		t.Lambda = lambda.NewFromConfig(cfg)
	})
	if t.lambdaErr != nil {
		return nil, t.lambdaErr
	}
	return t.Lambda, nil
}

// lambdaRoundTripper turns an HTTP request into an API Gateway v2 proxy event
// and the function's reply back into an HTTP response.
type lambdaRoundTripper struct {
	invoker   LambdaInvoker
	userAgent string
}

func (rt *lambdaRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	functionName := req.URL.Hostname()
	if functionName == "" {
		return nil, fmt.Errorf("lambda URL missing function name")
	}

	event, err := httpRequestToLambdaEvent(req, rt.userAgent)
	if err != nil {
		return nil, fmt.Errorf("converting request to Lambda event: %w", err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling Lambda event: %w", err)
	}

	output, err := rt.invoker.Invoke(req.Context(), &lambda.InvokeInput{
		FunctionName:   aws.String(functionName),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking Lambda function: %w", err)
	}
	if output.FunctionError != nil {
		return nil, fmt.Errorf("lambda function error: %s", *output.FunctionError)
	}

	resp, err := lambdaResponseToHTTP(output.Payload)
	if err != nil {
		return nil, err
	}
	resp.Request = req
	return resp, nil
}

func httpRequestToLambdaEvent(req *http.Request, userAgent string) (*events.APIGatewayV2HTTPRequest, error) {
	var body string
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(data))
		body = string(data)
	}

	headers := make(map[string]string, len(req.Header))
	for key, values := range req.Header {
		headers[strings.ToLower(key)] = strings.Join(values, ",")
	}
	query := make(map[string]string)
	for key, values := range req.URL.Query() {
		query[key] = strings.Join(values, ",")
	}

	path := req.URL.Path
	if path == "" {
		path = "/"
	}
	now := time.Now()
	routeKey := req.Method + " " + path

	return &events.APIGatewayV2HTTPRequest{
		Version:               "2.0",
		RouteKey:              routeKey,
		RawPath:               path,
		RawQueryString:        req.URL.RawQuery,
		Headers:               headers,
		QueryStringParameters: query,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			APIID:        "hreq",
			DomainName:   req.URL.Hostname(),
			DomainPrefix: req.URL.Hostname(),
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:    req.Method,
				Path:      path,
				Protocol:  "HTTP/1.1",
				SourceIP:  "127.0.0.1",
				UserAgent: userAgent,
			},
			RequestID: uuid.NewString(),
			RouteKey:  routeKey,
			Stage:     "$default",
			Time:      now.Format("02/Jan/2006:15:04:05 -0700"),
			TimeEpoch: now.UnixMilli(),
		},
		Body: body,
	}, nil
}

func lambdaResponseToHTTP(payload []byte) (*http.Response, error) {
	var lambdaResp events.APIGatewayV2HTTPResponse
	if err := json.Unmarshal(payload, &lambdaResp); err != nil {
		return nil, fmt.Errorf("parsing Lambda response: %w", err)
	}

	body := []byte(lambdaResp.Body)
	if lambdaResp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(lambdaResp.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 Lambda body: %w", err)
		}
		body = decoded
	}

	resp := &http.Response{
		StatusCode:    lambdaResp.StatusCode,
		Status:        fmt.Sprintf("%d %s", lambdaResp.StatusCode, http.StatusText(lambdaResp.StatusCode)),
		Header:        make(http.Header),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
	for key, value := range lambdaResp.Headers {
		resp.Header.Set(key, value)
	}
	for key, values := range lambdaResp.MultiValueHeaders {
		for _, v := range values {
			resp.Header.Add(key, v)
		}
	}
	return resp, nil
}
