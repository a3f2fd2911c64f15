package batch

import (
	"fmt"
	"path"
)

// Filter admits files into a batch by glob patterns. Patterns are matched
// against both the base name and the slash-separated path relative to the
// source; matching either counts. An empty include list admits everything;
// an exclude match always wins.
type Filter struct {
	include []string
	exclude []string
}

func NewFilter(include, exclude []string) (*Filter, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("batch: bad filter pattern %q: %w", p, err)
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// Admit reports whether a file at relPath passes the filter.
func (f *Filter) Admit(relPath string) bool {
	name := path.Base(relPath)
	if len(f.include) > 0 && !matchAny(f.include, name, relPath) {
		return false
	}
	return !matchAny(f.exclude, name, relPath)
}

func matchAny(patterns []string, name, relPath string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if ok, _ := path.Match(p, relPath); ok {
			return true
		}
	}
	return false
}
