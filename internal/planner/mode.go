package planner

import (
	"fmt"
	"strings"
)

// Mode selects whether existing outputs are honored.
type Mode int

const (
	// ModeBuild runs every job.
	ModeBuild Mode = iota
	// ModeMake skips jobs whose outputs already exist.
	ModeMake
)

// ParseMode parses "build" or "make". An empty string means build.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "build":
		return ModeBuild, nil
	case "make":
		return ModeMake, nil
	default:
		return ModeBuild, fmt.Errorf("unknown mode %q: must be 'build' or 'make'", s)
	}
}

func (m Mode) String() string {
	if m == ModeMake {
		return "make"
	}
	return "build"
}
