package proxy

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter decides which request paths get recorded. Traffic always forwards
// regardless; the filter only gates capture.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles include and exclude glob patterns. Patterns are
// compiled once here so the per-request check is just a match walk. An
// empty include list means every path is eligible.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	for _, pattern := range include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		f.include = append(f.include, g)
	}
	for _, pattern := range exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		f.exclude = append(f.exclude, g)
	}
	return f, nil
}

// ShouldCapture reports whether a call on path should be recorded: the path
// must match some include pattern (or the include list is empty) and no
// exclude pattern. Exclude wins over include.
func (f *Filter) ShouldCapture(path string) bool {
	for _, g := range f.exclude {
		if g.Match(path) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(path) {
			return true
		}
	}
	return false
}
