package preprocess

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned by the bundled loaders when no module matches a path.
var ErrNotFound = errors.New("module not found")

// Loader resolves an import path to module source.
type Loader interface {
	Load(path string) (string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (string, error)

// Load calls f(path).
func (f LoaderFunc) Load(path string) (string, error) { return f(path) }

// MapLoader serves modules from memory, keyed by import path.
type MapLoader map[string]string

// Load implements Loader.
func (m MapLoader) Load(path string) (string, error) {
	if src, ok := m[path]; ok {
		return src, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, path)
}

// DefaultExtensions are tried, in order, when an import path has no extension.
var DefaultExtensions = []string{".wesl", ".wgsl", ".glsl", ".hlsl", ".fs", ".inc"}

// DirLoader resolves imports against a list of file systems; the first match
// wins.
type DirLoader struct {
	FS         []fs.FS
	Extensions []string
}

// NewDirLoader returns a loader rooted at the given include directories.
func NewDirLoader(dirs ...string) *DirLoader {
	l := &DirLoader{Extensions: DefaultExtensions}
	for _, d := range dirs {
		l.FS = append(l.FS, os.DirFS(d))
	}
	return l
}

// Load implements Loader.
func (l *DirLoader) Load(p string) (string, error) {
	name := strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid import path %q", p)
	}
	candidates := []string{name}
	if path.Ext(name) == "" {
		for _, ext := range l.Extensions {
			candidates = append(candidates, name+ext)
		}
	}
	var firstErr error
	for _, fsys := range l.FS {
		for _, c := range candidates {
			b, err := fs.ReadFile(fsys, c)
			if err == nil {
				return string(b), nil
			}
			if firstErr == nil && !errors.Is(err, fs.ErrNotExist) {
				firstErr = fmt.Errorf("read %s: %w", c, err)
			}
		}
	}
	if firstErr != nil {
		return "", firstErr
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, p)
}
