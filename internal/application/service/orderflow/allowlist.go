package orderflow

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Allowlist matches symbols against glob patterns. An empty list allows every symbol.
type Allowlist struct {
	patterns []glob.Glob
}

func NewAllowlist(patterns []string) (*Allowlist, error) {
	a := &Allowlist{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile symbol pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, g)
	}
	return a, nil
}

func (a *Allowlist) Allowed(symbol string) bool {
	if a == nil || len(a.patterns) == 0 {
		return true
	}
	for _, g := range a.patterns {
		if g.Match(symbol) {
			return true
		}
	}
	return false
}
