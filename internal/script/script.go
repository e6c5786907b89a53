package script

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/shplanner/internal/catalog"
	"github.com/vk/shplanner/internal/ctxlog"
)

// LocalSite is the site transformations are looked up on.
const LocalSite = "local"

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Files gives the emitter the physical name of every logical filename
// known to the workflow.
type Files interface {
	Lookup(lfn string) (string, bool)
}

// Options configures a Scriptor.
type Options struct {
	// Dir is the output directory. It must exist.
	Dir string
	// Label names the workflow; the control script is <Label>.sh.
	Label string
	// TemplatesDir overrides the built-in templates by file name.
	TemplatesDir string
	// Kickstart, when set, replaces the site's launcher.
	Kickstart string
	// Register makes job scripts verify their outputs after a successful run
	// and hand the output list to Registrar.
	Register bool
	// Registrar is the command that records a job's outputs in the replica
	// catalog. It is called with -register-outputs <list>. Empty skips
	// registration.
	Registrar []string
	// RunID identifies the planning run in generated headers.
	RunID string
}

// Scriptor writes the scripts of one planning run. It is not safe for
// concurrent use.
type Scriptor struct {
	opts      Options
	files     Files
	tc        catalog.Transformations
	site      *catalog.Site
	templates templateSet
	kickstart string
	vars      map[string]string
	now       func() time.Time

	master    *os.File
	masterBuf *bufio.Writer
}

// New creates a Scriptor. site may be nil when no site catalog is used.
// The site's launcher is used for kickstart if it exists on this host.
func New(ctx context.Context, opts Options, files Files, tc catalog.Transformations, site *catalog.Site) *Scriptor {
	logger := ctxlog.FromContext(ctx)
	s := &Scriptor{
		opts:      opts,
		files:     files,
		tc:        tc,
		site:      site,
		templates: templateSet{dir: opts.TemplatesDir},
		now:       time.Now,
	}

	if site != nil && site.GridLaunch != "" {
		if _, err := os.Stat(site.GridLaunch); err == nil {
			s.kickstart = site.GridLaunch
		} else {
			logger.Debug("Site launcher not present, running jobs directly.", "gridlaunch", site.GridLaunch)
		}
	}
	if opts.Kickstart != "" {
		s.kickstart = opts.Kickstart
	}

	home, _ := os.UserHomeDir()
	s.vars = map[string]string{
		"DAXLABEL": opts.Label,
		"USER":     os.Getenv("USER"),
		"HOME":     home,
		"LOGFILE":  opts.Label + ".log",
		"REGISTER": "0",
		"RUNID":    opts.RunID,
	}
	if opts.Register {
		s.vars["REGISTER"] = "1"
	}
	s.vars["REGISTRAR"] = ":"
	if len(opts.Registrar) > 0 {
		s.vars["REGISTRAR"] = shellCommand(opts.Registrar)
	}
	if s.kickstart != "" {
		s.vars["KICKSTART"] = s.kickstart
	}
	return s
}

// Kickstart returns the launcher job invocations are wrapped with, if any.
func (s *Scriptor) Kickstart() string {
	return s.kickstart
}

// InitializeControlScript creates the control script and writes its head.
// It returns the control script's file name relative to the output
// directory.
func (s *Scriptor) InitializeControlScript(ctx context.Context) (string, error) {
	logger := ctxlog.FromContext(ctx)
	name := s.opts.Label + ".sh"
	path := filepath.Join(s.opts.Dir, name)
	if _, err := os.Stat(path); err == nil {
		logger.Warn("Control script already exists, overwriting.", "path", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating control script: %w", err)
	}
	s.master = f
	s.masterBuf = bufio.NewWriter(f)

	logger.Debug("Writing control script header.")
	if err := s.copyFromTemplate(ctx, s.masterBuf, TemplateMasterHead, s.vars); err != nil {
		return "", fmt.Errorf("control script header: %w", err)
	}
	return name, nil
}

// IntermediateControlScript closes the current stage: the jobs added since
// the previous call must all succeed before later jobs start.
func (s *Scriptor) IntermediateControlScript(ctx context.Context) error {
	if s.masterBuf == nil {
		return errors.New("control script is not initialized")
	}
	ctxlog.FromContext(ctx).Debug("Writing control script between stages.")
	return s.copyFromTemplate(ctx, s.masterBuf, TemplateMasterStage, s.vars)
}

// FinalizeControlScript writes the tail of the control script and closes it.
func (s *Scriptor) FinalizeControlScript(ctx context.Context) error {
	if s.masterBuf == nil {
		return errors.New("control script is not initialized")
	}
	ctxlog.FromContext(ctx).Debug("Writing control script tail.")
	if err := s.copyFromTemplate(ctx, s.masterBuf, TemplateMasterTail, s.vars); err != nil {
		return err
	}
	return s.Close()
}

// Close flushes and closes the control script if it is still open. Calling
// it after FinalizeControlScript is a no-op.
func (s *Scriptor) Close() error {
	if s.master == nil {
		return nil
	}
	flushErr := s.masterBuf.Flush()
	closeErr := s.master.Close()
	s.master, s.masterBuf = nil, nil
	return errors.Join(flushErr, closeErr)
}
