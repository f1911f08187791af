// Package workspace resolves the project root and bootstraps the directory
// layout the pipeline expects.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved absolute paths of the project layout.
type Paths struct {
	Root      string
	Data      string
	Raw       string
	Artifacts string
	Docs      string
}

// Resolve resolves projectRoot to absolute form and ensures the data/,
// data/raw/, artifacts/ and docs/ directories exist beneath it.
func Resolve(projectRoot string) (*Paths, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	p := &Paths{
		Root:      root,
		Data:      filepath.Join(root, "data"),
		Raw:       filepath.Join(root, "data", "raw"),
		Artifacts: filepath.Join(root, "artifacts"),
		Docs:      filepath.Join(root, "docs"),
	}

	for _, dir := range []string{p.Raw, p.Artifacts, p.Docs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return p, nil
}

// Join resolves a possibly-relative path against the project root.
func (p *Paths) Join(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}
