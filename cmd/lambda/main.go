package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/shaderconv/converter/internal/converter"
	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/graph"
	"github.com/shaderconv/converter/internal/logger"
	"github.com/shaderconv/converter/internal/preprocess"
	"github.com/shaderconv/converter/internal/shader"
)

// Request is the JSON body of an invocation.
type Request struct {
	Name     string            `json:"name,omitempty"`
	Source   string            `json:"source"`
	Format   string            `json:"format"`
	Graph    *graph.Graph      `json:"graph,omitempty"` // compiled to ISF instead of source
	Strict   bool              `json:"strict,omitempty"`
	Validate bool              `json:"validate,omitempty"`
	SPIRV    bool              `json:"spirv,omitempty"`
	Manifest *bool             `json:"manifest,omitempty"`
	Flags    map[string]bool   `json:"flags,omitempty"`
	Defines  map[string]string `json:"defines,omitempty"`
	Modules  map[string]string `json:"modules,omitempty"` // import path -> source
}

// Response is returned to the client as the proxy response body.
type Response struct {
	Success     bool                `json:"success"`
	State       converter.State     `json:"state"`
	Error       string              `json:"error,omitempty"`
	Diagnostics *diagnostics.Ledger `json:"diagnostics"`
	Files       map[string]string   `json:"files,omitempty"` // filename -> content (base64)
}

func handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := req.Body
	if req.IsBase64Encoded {
		dec, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return badRequest("invalid base64 body: " + err.Error()), nil
		}
		body = string(dec)
	}

	var in Request
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return badRequest("invalid request JSON: " + err.Error()), nil
	}

	source := in.Source
	format, ok := shader.ParseFormat(in.Format)
	if in.Graph != nil {
		src, err := graph.Compile(in.Graph)
		if err != nil {
			return badRequest("invalid node graph: " + err.Error()), nil
		}
		source, format, ok = src, shader.FormatISF, true
	}
	if !ok {
		return badRequest("format must be one of isf, glsl, hlsl"), nil
	}

	opts := converter.DefaultOptions()
	opts.Strict = in.Strict
	opts.Validate = in.Validate
	opts.SPIRV = in.SPIRV
	if in.Manifest != nil {
		opts.EmitManifest = *in.Manifest
	}
	opts.Flags = in.Flags
	opts.Defines = in.Defines
	if len(in.Modules) > 0 {
		opts.Loader = preprocess.MapLoader(in.Modules)
	}
	opts.Logger = logger.Default.With("request_id", requestID(ctx, req))

	out := Response{}
	res, err := converter.New(opts).ConvertNamed(in.Name, source, format)
	var failure *converter.Failure
	switch {
	case errors.As(err, &failure):
		out.State = failure.State
		out.Error = err.Error()
		out.Diagnostics = failure.Diagnostics
		return wrap(http.StatusUnprocessableEntity, out), nil
	case err != nil:
		out.State = converter.StateFailed
		out.Error = err.Error()
		out.Diagnostics = &diagnostics.Ledger{}
		return wrap(http.StatusInternalServerError, out), nil
	}

	out.Success = res.Success()
	out.State = res.State
	out.Diagnostics = res.Diagnostics
	out.Files = make(map[string]string, len(res.Files))
	for name, content := range res.Files {
		out.Files[name] = base64.StdEncoding.EncodeToString(content)
	}
	if !out.Success {
		return wrap(http.StatusUnprocessableEntity, out), nil
	}
	return wrap(http.StatusOK, out), nil
}

func requestID(ctx context.Context, req events.APIGatewayProxyRequest) string {
	if id := req.RequestContext.RequestID; id != "" {
		return id
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}

func badRequest(msg string) events.APIGatewayProxyResponse {
	ledger := &diagnostics.Ledger{}
	ledger.Add(diagnostics.Errorf(diagnostics.CodeInvalidRequest, "%s", msg))
	return wrap(http.StatusBadRequest, Response{State: converter.StateFailed, Error: msg, Diagnostics: ledger})
}

func wrap(status int, out Response) events.APIGatewayProxyResponse {
	bodyBytes, _ := json.Marshal(out)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(bodyBytes),
	}
}

func main() {
	lambda.Start(handler)
}
