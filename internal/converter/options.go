package converter

import (
	"log/slog"

	"github.com/shaderconv/converter/internal/preprocess"
)

// Options configures the converter behavior.
type Options struct {
	// MaxImportDepth bounds #import recursion (0 = default of 16).
	MaxImportDepth int
	// Loader resolves #import and #include. Nil leaves every import unresolved.
	Loader preprocess.Loader
	// Strict turns any Error diagnostic into a failed conversion.
	Strict bool
	// Flags and Defines feed #if conditions and macro expansion.
	Flags   map[string]bool
	Defines map[string]string
	// Validate runs the generated WGSL through naga.
	Validate bool
	// SPIRV also compiles the output to <name>.spv. It is skipped when the
	// conversion already has errors.
	SPIRV bool
	// EmitManifest generates <name>.hcl describing the shader parameters.
	EmitManifest bool
	// MaxParallel bounds concurrent conversions in ConvertAll (0 = NumCPU).
	MaxParallel int
	// Logger receives state transitions at Debug. Nil uses logger.Default.
	Logger *slog.Logger
}

// DefaultOptions returns default converter options.
func DefaultOptions() Options {
	return Options{
		MaxImportDepth: preprocess.DefaultMaxImportDepth,
		EmitManifest:   true,
	}
}
