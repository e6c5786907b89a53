package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Checker answers whether a physical file name currently exists.
type Checker interface {
	Exists(ctx context.Context, pfn string) (bool, error)
}

// CheckerFunc adapts a plain function to the Checker interface.
type CheckerFunc func(ctx context.Context, pfn string) (bool, error)

// Exists calls f.
func (f CheckerFunc) Exists(ctx context.Context, pfn string) (bool, error) {
	return f(ctx, pfn)
}

// Local checks plain paths and file:// URLs on the local file system.
type Local struct{}

// Exists implements Checker.
func (Local) Exists(_ context.Context, pfn string) (bool, error) {
	_, err := os.Stat(LocalPath(pfn))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Readable reports whether the local file behind pfn can be opened for
// reading.
func Readable(pfn string) bool {
	f, err := os.Open(LocalPath(pfn))
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// LocalPath strips a file:// scheme, if any.
func LocalPath(pfn string) string {
	return strings.TrimPrefix(pfn, "file://")
}

// Scheme returns the lower-cased URL scheme of pfn, or "" for plain paths.
func Scheme(pfn string) string {
	i := strings.Index(pfn, "://")
	if i <= 0 {
		return ""
	}
	scheme := pfn[:i]
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return ""
		}
	}
	return strings.ToLower(scheme)
}

// Mux dispatches existence checks by URL scheme. Plain paths and file://
// URLs go to the local checker.
type Mux struct {
	local   Checker
	schemes map[string]Checker
}

// NewMux creates a Mux that sends local paths to local.
func NewMux(local Checker) *Mux {
	return &Mux{local: local, schemes: make(map[string]Checker)}
}

// Handle registers the checker for a scheme such as "s3".
func (m *Mux) Handle(scheme string, c Checker) {
	m.schemes[strings.ToLower(scheme)] = c
}

// Exists implements Checker.
func (m *Mux) Exists(ctx context.Context, pfn string) (bool, error) {
	scheme := Scheme(pfn)
	if c, ok := m.schemes[scheme]; ok {
		return c.Exists(ctx, pfn)
	}
	if scheme == "" || scheme == "file" {
		return m.local.Exists(ctx, pfn)
	}
	return false, fmt.Errorf("no existence checker for scheme %q (%s)", scheme, pfn)
}
