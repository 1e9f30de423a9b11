package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const basicColor = `/*{"NAME":"Basic Color","INPUTS":[{"NAME":"brightness","TYPE":"float","DEFAULT":1.0}]}*/
void main(){ gl_FragColor = vec4(vec3(brightness), 1.0); }`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunWritesFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	in := writeFile(t, dir, "basic.fs", basicColor)

	code, stdout, stderr := runCLI(t, "", "-input", in, "-o", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "wrote "+filepath.Join(out, "basic.wgsl"))

	wgsl, err := os.ReadFile(filepath.Join(out, "basic.wgsl"))
	require.NoError(t, err)
	assert.Contains(t, string(wgsl), "@fragment")
	_, err = os.Stat(filepath.Join(out, "basic.hcl"))
	assert.NoError(t, err)
}

func TestRunNoManifest(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	in := writeFile(t, dir, "basic.fs", basicColor)

	code, _, stderr := runCLI(t, "", "-no-manifest", "-o", out, in)
	require.Equal(t, 0, code, stderr)
	_, err := os.Stat(filepath.Join(out, "basic.hcl"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunStdin(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	code, stdout, stderr := runCLI(t, basicColor, "-input", "-", "-format", "isf", "-o", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Basic_Color.wgsl")
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "usage: shaderconv")
}

func TestRunUnknownFormat(t *testing.T) {
	in := writeFile(t, t.TempDir(), "shader.txt", basicColor)
	code, _, stderr := runCLI(t, "", in)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "cannot determine format")
}

func TestRunJSONReport(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.fs", `/*{"NAME": }*/`)
	good := writeFile(t, dir, "good.fs", basicColor)

	code, stdout, _ := runCLI(t, "", "-report", "json", "-o", filepath.Join(dir, "out"), good, bad)
	assert.Equal(t, 1, code)

	var reports []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, good, reports[0]["input"])
	assert.Equal(t, true, reports[0]["success"])
	assert.Equal(t, "done", reports[0]["state"])
	assert.Equal(t, false, reports[1]["success"])
	assert.Equal(t, "failed", reports[1]["state"])
	assert.NotEmpty(t, reports[1]["error"])
}

func TestRunYAMLReportFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "shaderconv.hcl", `report = "yaml"`)
	in := writeFile(t, dir, "basic.fs", basicColor)

	code, stdout, stderr := runCLI(t, "", "-config", cfg, "-o", filepath.Join(dir, "out"), in)
	require.Equal(t, 0, code, stderr)

	var reports []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, in, reports[0]["input"])
	assert.Equal(t, "done", reports[0]["state"])
}

func TestRunBadReport(t *testing.T) {
	in := writeFile(t, t.TempDir(), "basic.fs", basicColor)
	code, _, stderr := runCLI(t, "", "-report", "xml", in)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown report format")
}

func TestRunDefinesAndIncludes(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(lib, 0o755))
	writeFile(t, lib, "tint.glsl", "float tint() { return 0.5; }\n")
	in := writeFile(t, dir, "main.fs", `#include "tint"
#ifdef FANCY
float boost = 2.0;
#else
float boost = 1.0;
#endif
void main(){ gl_FragColor = vec4(tint() * boost); }`)
	out := filepath.Join(dir, "out")

	code, _, stderr := runCLI(t, "", "-I", lib, "-D", "FANCY", "-o", out, in)
	require.Equal(t, 0, code, stderr)
	wgsl, err := os.ReadFile(filepath.Join(out, "main.wgsl"))
	require.NoError(t, err)
	assert.Contains(t, string(wgsl), "fn tint() -> f32")
	assert.Contains(t, string(wgsl), "2.0")
}

func TestRunStrict(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "clash.fs", `/*{"INPUTS":[{"NAME":"my-var","TYPE":"float"},{"NAME":"my var","TYPE":"float"}]}*/
void main(){ gl_FragColor = vec4(1.0); }`)
	out := filepath.Join(dir, "out")

	code, _, stderr := runCLI(t, "", "-strict", "-o", out, in)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "IDENTIFIER_COLLISION")
	_, err := os.Stat(filepath.Join(out, "clash.wgsl"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunGraph(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "flat.json", `{
  "name": "Flat",
  "nodes": [
    {"id": "c", "kind": "color", "properties": {"g": 1}},
    {"id": "out", "kind": "output"}
  ],
  "edges": [{"source": "c", "target": "out"}]
}`)
	out := filepath.Join(dir, "out")

	code, _, stderr := runCLI(t, "", "-graph", "-o", out, in)
	require.Equal(t, 0, code, stderr)
	wgsl, err := os.ReadFile(filepath.Join(out, "flat.wgsl"))
	require.NoError(t, err)
	assert.Contains(t, string(wgsl), "@fragment")
}
