package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicColor = `/*{"NAME":"Basic Color","INPUTS":[{"NAME":"brightness","TYPE":"float","DEFAULT":1.0}]}*/
void main(){ gl_FragColor = vec4(vec3(brightness), 1.0); }`

type decoded struct {
	Success     bool              `json:"success"`
	State       string            `json:"state"`
	Error       string            `json:"error"`
	Files       map[string]string `json:"files"`
	Diagnostics struct {
		Diagnostics []struct {
			Code string `json:"code"`
		} `json:"diagnostics"`
	} `json:"diagnostics"`
}

func invoke(t *testing.T, body string, base64Body bool) (events.APIGatewayProxyResponse, decoded) {
	t.Helper()
	resp, err := handler(context.Background(), events.APIGatewayProxyRequest{Body: body, IsBase64Encoded: base64Body})
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	var out decoded
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	return resp, out
}

func request(t *testing.T, fields map[string]any) string {
	t.Helper()
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	return string(b)
}

func TestHandlerConverts(t *testing.T) {
	resp, out := invoke(t, request(t, map[string]any{"source": basicColor, "format": "isf"}), false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	assert.Equal(t, "done", out.State)
	require.Contains(t, out.Files, "Basic_Color.wgsl")
	assert.Contains(t, out.Files, "Basic_Color.hcl")

	wgsl, err := base64.StdEncoding.DecodeString(out.Files["Basic_Color.wgsl"])
	require.NoError(t, err)
	assert.Contains(t, string(wgsl), "@fragment")
}

func TestHandlerBase64Body(t *testing.T) {
	body := request(t, map[string]any{"source": basicColor, "format": "isf", "manifest": false, "name": "color"})
	resp, out := invoke(t, base64.StdEncoding.EncodeToString([]byte(body)), true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out.Files, 1)
	assert.Contains(t, out.Files, "color.wgsl")
}

func TestHandlerBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		base64 bool
	}{
		{"bad base64", "%%%", true},
		{"bad json", "{", false},
		{"unknown format", `{"source": "void main(){}", "format": "metal"}`, false},
		{"bad graph", `{"graph": {"nodes": []}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := invoke(t, tt.body, tt.base64)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.False(t, out.Success)
			assert.NotEmpty(t, out.Error)
			require.Len(t, out.Diagnostics.Diagnostics, 1)
			assert.Equal(t, "INVALID_REQUEST", out.Diagnostics.Diagnostics[0].Code)
		})
	}
}

func TestHandlerParseFailure(t *testing.T) {
	resp, out := invoke(t, request(t, map[string]any{"source": `/*{"NAME": }*/`, "format": "isf"}), false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, out.Success)
	assert.Equal(t, "failed", out.State)
	require.NotEmpty(t, out.Diagnostics.Diagnostics)
	assert.Equal(t, "ISF_HEADER_JSON", out.Diagnostics.Diagnostics[0].Code)
}

func TestHandlerErrorsAreUnprocessable(t *testing.T) {
	src := `/*{"INPUTS":[{"NAME":"my-var","TYPE":"float"},{"NAME":"my var","TYPE":"float"}]}*/
void main(){ gl_FragColor = vec4(1.0); }`
	resp, out := invoke(t, request(t, map[string]any{"source": src, "format": "isf"}), false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, out.Success)
	assert.Equal(t, "done", out.State)
	assert.NotEmpty(t, out.Files)

	resp, out = invoke(t, request(t, map[string]any{"source": src, "format": "isf", "strict": true}), false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Empty(t, out.Files)
}

func TestHandlerModulesAndFlags(t *testing.T) {
	src := "#import util\n#if FANCY\nfloat k = 2.0;\n#else\nfloat k = 1.0;\n#endif\nvoid main(){ gl_FragColor = vec4(scale() * k); }"
	resp, out := invoke(t, request(t, map[string]any{
		"source":  src,
		"format":  "glsl",
		"name":    "mod",
		"flags":   map[string]bool{"FANCY": true},
		"modules": map[string]string{"util": "float scale() { return 0.5; }\n"},
	}), false)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	wgsl, err := base64.StdEncoding.DecodeString(out.Files["mod.wgsl"])
	require.NoError(t, err)
	assert.Contains(t, string(wgsl), "fn scale() -> f32")
	assert.Contains(t, string(wgsl), "2.0")
}

func TestHandlerGraph(t *testing.T) {
	body := `{"graph": {
  "name": "Flat",
  "nodes": [
    {"id": "c", "kind": "color", "properties": {"r": 1}},
    {"id": "out", "kind": "output"}
  ],
  "edges": [{"source": "c", "target": "out"}]
}}`
	resp, out := invoke(t, body, false)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	assert.Contains(t, out.Files, "Flat.wgsl")
}
