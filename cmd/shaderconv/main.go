package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaderconv/converter/internal/config"
	"github.com/shaderconv/converter/internal/converter"
	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/graph"
	"github.com/shaderconv/converter/internal/logger"
	"github.com/shaderconv/converter/internal/preprocess"
	"github.com/shaderconv/converter/internal/shader"
	"gopkg.in/yaml.v3"
)

const usage = "usage: shaderconv -input <file|-> [file...] [-format isf|glsl|hlsl] [-o output] [-config file.hcl] " +
	"[-strict] [-validate] [-no-manifest] [-spirv] [-graph] [-I dir]... [-D NAME[=VALUE]]... " +
	"[-report text|json|yaml] [-log-level level] [-parallel N]"

// listFlag collects a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// fileReport is the json/yaml report entry of one input.
type fileReport struct {
	Input       string              `json:"input" yaml:"input"`
	Success     bool                `json:"success" yaml:"success"`
	State       converter.State     `json:"state" yaml:"state"`
	Files       []string            `json:"files,omitempty" yaml:"files,omitempty"`
	Error       string              `json:"error,omitempty" yaml:"error,omitempty"`
	Diagnostics *diagnostics.Ledger `json:"diagnostics" yaml:"diagnostics"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shaderconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "Path to shader source (or - for stdin)")
	format := fs.String("format", "", "Source format: isf, glsl or hlsl (default: from the file extension)")
	output := fs.String("o", "output", "Output directory for generated files")
	configPath := fs.String("config", "", "HCL options file")
	strict := fs.Bool("strict", false, "Fail when any error diagnostic is recorded")
	validate := fs.Bool("validate", false, "Validate the generated WGSL with naga")
	noManifest := fs.Bool("no-manifest", false, "Do not generate the <name>.hcl parameter manifest")
	spirv := fs.Bool("spirv", false, "Also compile the output to <name>.spv")
	isGraph := fs.Bool("graph", false, "Inputs are node graph JSON documents")
	report := fs.String("report", "text", "Diagnostics report: text, json or yaml")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn or error")
	parallel := fs.Int("parallel", 0, "Max concurrent conversions (0 = auto)")
	var includes, defines listFlag
	fs.Var(&includes, "I", "Import search directory (repeatable)")
	fs.Var(&defines, "D", "Define NAME[=VALUE] for the preprocessor (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	inputs := fs.Args()
	if *input != "" {
		inputs = append([]string{*input}, inputs...)
	}
	if len(inputs) == 0 {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
		return 1
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := converter.DefaultOptions()
	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return 1
		}
		cfg.Apply(&opts)
	}
	if set["report"] || cfg.Report == "" {
		cfg.Report = *report
	}
	if set["log-level"] || cfg.LogLevel == "" {
		cfg.LogLevel = *logLevel
	}
	switch cfg.Report {
	case "text", "json", "yaml":
	default:
		fmt.Fprintf(stderr, "unknown report format %q\n", cfg.Report)
		return 1
	}

	if *strict {
		opts.Strict = true
	}
	if *validate {
		opts.Validate = true
	}
	if *noManifest {
		opts.EmitManifest = false
	}
	opts.SPIRV = *spirv
	opts.MaxParallel = *parallel
	opts.Logger = logger.NewWriter(stderr, logger.ParseLevel(cfg.LogLevel))
	dirs := append(append([]string{}, cfg.IncludePaths...), includes...)
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	opts.Loader = preprocess.NewDirLoader(dirs...)
	for _, d := range defines {
		name, value, hasValue := strings.Cut(d, "=")
		if hasValue {
			if opts.Defines == nil {
				opts.Defines = make(map[string]string)
			}
			opts.Defines[name] = value
			continue
		}
		if opts.Flags == nil {
			opts.Flags = make(map[string]bool)
		}
		opts.Flags[name] = true
	}

	jobs := make([]converter.Job, 0, len(inputs))
	for _, path := range inputs {
		job, err := load(path, *format, *isGraph, stdin)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			return 1
		}
		jobs = append(jobs, job)
	}

	outcomes := converter.New(opts).ConvertAll(jobs)

	code := 0
	reports := make([]fileReport, 0, len(outcomes))
	for i, o := range outcomes {
		rep := fileReport{Input: inputs[i]}
		var failure *converter.Failure
		switch {
		case errors.As(o.Err, &failure):
			rep.State = failure.State
			rep.Error = o.Err.Error()
			rep.Diagnostics = failure.Diagnostics
		case o.Err != nil:
			rep.State = converter.StateFailed
			rep.Error = o.Err.Error()
			rep.Diagnostics = &diagnostics.Ledger{}
		default:
			rep.State = o.Result.State
			rep.Success = o.Result.Success()
			rep.Diagnostics = o.Result.Diagnostics
			files, err := write(*output, o.Result.Files, stdout, cfg.Report == "text")
			if err != nil {
				fmt.Fprintf(stderr, "%v\n", err)
				return 1
			}
			rep.Files = files
		}
		if !rep.Success {
			code = 1
		}
		reports = append(reports, rep)
	}

	switch cfg.Report {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		_ = enc.Encode(reports)
		_ = enc.Close()
	default:
		for _, rep := range reports {
			if rep.Diagnostics.Len() > 0 {
				fmt.Fprint(stderr, rep.Diagnostics.Format(rep.Input))
			}
			if rep.Error != "" {
				fmt.Fprintf(stderr, "ERROR %s: %s\n", rep.Input, rep.Error)
			}
		}
	}
	return code
}

// load reads one input and decides its format.
func load(path, format string, isGraph bool, stdin io.Reader) (converter.Job, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return converter.Job{}, fmt.Errorf("read input: %w", err)
	}
	name := path
	if path == "-" {
		name = ""
	}

	if isGraph {
		g, err := graph.Parse(data)
		if err != nil {
			return converter.Job{}, err
		}
		src, err := graph.Compile(g)
		if err != nil {
			return converter.Job{}, err
		}
		if name != "" {
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		return converter.Job{Name: name, Source: src, Format: shader.FormatISF}, nil
	}

	f, ok := shader.ParseFormat(format)
	if format == "" {
		f, ok = shader.FormatFromPath(path)
	}
	if !ok {
		return converter.Job{}, fmt.Errorf("cannot determine format; pass -format isf, glsl or hlsl")
	}
	return converter.Job{Name: name, Source: string(data), Format: f}, nil
}

// write stores files under dir and returns their paths in name order.
func write(dir string, files map[string][]byte, stdout io.Writer, announce bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, files[name], 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		if announce {
			fmt.Fprintln(stdout, "wrote", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
