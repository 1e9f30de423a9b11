// Package config decodes the optional HCL options file of the shaderconv
// binaries:
//
//	strict           = true
//	validate         = true
//	max_import_depth = 8
//	include_paths    = ["shaders/lib", "${env.HOME}/shaders"]
//	flags            = { DEBUG = false }
//	defines          = { SAMPLES = "4" }
//
// Environment variables are available as env.NAME.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/shaderconv/converter/internal/converter"
	"github.com/shaderconv/converter/internal/preprocess"
	"github.com/zclconf/go-cty/cty"
)

// Config mirrors converter.Options. Unset fields leave the options alone.
type Config struct {
	Strict         *bool             `hcl:"strict,optional"`
	Validate       *bool             `hcl:"validate,optional"`
	EmitManifest   *bool             `hcl:"emit_manifest,optional"`
	MaxImportDepth *int              `hcl:"max_import_depth,optional"`
	Flags          map[string]bool   `hcl:"flags,optional"`
	Defines        map[string]string `hcl:"defines,optional"`
	IncludePaths   []string          `hcl:"include_paths,optional"`
	LogLevel       string            `hcl:"log_level,optional"`
	Report         string            `hcl:"report,optional"`
}

// Load decodes the config file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Parse decodes config source. filename selects the syntax (.hcl or .json)
// and appears in error messages.
func Parse(filename string, src []byte) (*Config, error) {
	var c Config
	if err := hclsimple.Decode(filename, src, evalContext(), &c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if c.MaxImportDepth != nil && *c.MaxImportDepth < 1 {
		return nil, fmt.Errorf("decode config: max_import_depth must be at least 1, got %d", *c.MaxImportDepth)
	}
	return &c, nil
}

func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" && hclIdent(k) {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(env)},
	}
}

func hclIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '-' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}

// Apply copies every set field onto opts. Flags and defines are merged, with
// the config winning over values already in opts.
func (c *Config) Apply(opts *converter.Options) {
	if c == nil {
		return
	}
	if c.Strict != nil {
		opts.Strict = *c.Strict
	}
	if c.Validate != nil {
		opts.Validate = *c.Validate
	}
	if c.EmitManifest != nil {
		opts.EmitManifest = *c.EmitManifest
	}
	if c.MaxImportDepth != nil {
		opts.MaxImportDepth = *c.MaxImportDepth
	}
	if len(c.Flags) > 0 && opts.Flags == nil {
		opts.Flags = make(map[string]bool, len(c.Flags))
	}
	for k, v := range c.Flags {
		opts.Flags[k] = v
	}
	if len(c.Defines) > 0 && opts.Defines == nil {
		opts.Defines = make(map[string]string, len(c.Defines))
	}
	for k, v := range c.Defines {
		opts.Defines[k] = v
	}
	if len(c.IncludePaths) > 0 {
		opts.Loader = preprocess.NewDirLoader(c.IncludePaths...)
	}
}
