package script

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/shplanner/internal/ctxlog"
)

// Template names.
const (
	TemplateJobHead     = "sp-job-1.tmpl"
	TemplateJobTail     = "sp-job-3.tmpl"
	TemplateMasterHead  = "sp-master-1.tmpl"
	TemplateMasterStage = "sp-master-2.tmpl"
	TemplateMasterTail  = "sp-master-3.tmpl"
	TemplateMasterJob   = "sp-master-job.tmpl"
)

const (
	maxSubstitutions = 32
	delim            = "@@"
)

//go:embed templates/*.tmpl
var builtin embed.FS

// ErrUnclosedVariable is returned for a template line with an opening @@
// that is never closed.
var ErrUnclosedVariable = errors.New("unclosed @@var@@ element")

// templateSet resolves template names against an optional directory first
// and the embedded defaults second.
type templateSet struct {
	dir string
}

func (t templateSet) open(name string) (io.ReadCloser, string, error) {
	if t.dir != "" {
		path := filepath.Join(t.dir, name)
		f, err := os.Open(path)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("template %s: %w", path, err)
		}
	}
	f, err := builtin.Open("templates/" + name)
	if err != nil {
		return nil, "", fmt.Errorf("template %s not found", name)
	}
	return f, "builtin:" + name, nil
}

// copyFromTemplate writes the named template to w line by line, expanding
// @@NAME@@ variables from vars.
func (s *Scriptor) copyFromTemplate(ctx context.Context, w io.Writer, name string, vars map[string]string) error {
	r, source, err := s.templates.open(name)
	if err != nil {
		return err
	}
	defer r.Close()

	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line, err := s.expand(ctx, sc.Text(), vars, source, lineNo)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", source, err)
	}
	return nil
}

// expand replaces every @@NAME@@ in line. Unknown names expand to nothing
// with a warning. Expansion stops after maxSubstitutions replacements so a
// value that itself contains @@ cannot loop forever.
func (s *Scriptor) expand(ctx context.Context, line string, vars map[string]string, source string, lineNo int) (string, error) {
	logger := ctxlog.FromContext(ctx)
	for n := 0; ; {
		open := strings.Index(line, delim)
		if open < 0 {
			return line, nil
		}
		rest := line[open+len(delim):]
		closing := strings.Index(rest, delim)
		if closing < 0 {
			return "", fmt.Errorf("%s:%d: %w", source, lineNo, ErrUnclosedVariable)
		}
		key := rest[:closing]

		value, ok := s.lookupVar(key, vars)
		if !ok {
			logger.Warn("Requesting unknown substitution.", "template", source, "line", lineNo, "variable", key)
		}
		line = line[:open] + value + rest[closing+len(delim):]

		n++
		if n > maxSubstitutions {
			logger.Warn("Circuit breaker triggered.", "template", source, "line", lineNo)
			return line, nil
		}
	}
}

// lookupVar resolves a variable. NOW is evaluated at expansion time.
func (s *Scriptor) lookupVar(key string, vars map[string]string) (string, bool) {
	if key == "NOW" {
		return s.now().Format(timeFormat), true
	}
	v, ok := vars[key]
	return v, ok
}
