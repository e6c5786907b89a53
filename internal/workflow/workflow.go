package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// Link is the direction in which a job uses a file.
type Link int

const (
	LinkNone Link = iota
	LinkInput
	LinkOutput
	LinkInout
)

// ParseLink converts the textual link names used in workflow files.
func ParseLink(s string) (Link, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "in":
		return LinkInput, nil
	case "output", "out":
		return LinkOutput, nil
	case "inout":
		return LinkInout, nil
	case "none", "":
		return LinkNone, nil
	default:
		return LinkNone, fmt.Errorf("unknown link %q: must be 'input', 'output', 'inout' or 'none'", s)
	}
}

func (l Link) String() string {
	switch l {
	case LinkInput:
		return "input"
	case LinkOutput:
		return "output"
	case LinkInout:
		return "inout"
	default:
		return "none"
	}
}

// IsInput reports whether the job reads the file.
func (l Link) IsInput() bool { return l == LinkInput || l == LinkInout }

// IsOutput reports whether the job writes the file.
func (l Link) IsOutput() bool { return l == LinkOutput || l == LinkInout }

// FileUse pairs a logical filename with the direction a job uses it in.
type FileUse struct {
	LFN  string
	Link Link
}

// Leaf is one piece of an argument list or profile value: either literal
// text or a reference to a logical filename that is rendered as its PFN.
type Leaf struct {
	Text string
	LFN  string
}

// Text returns a literal leaf.
func Text(s string) Leaf { return Leaf{Text: s} }

// File returns a leaf referencing a logical filename.
func File(lfn string) Leaf { return Leaf{LFN: lfn} }

// IsFile reports whether the leaf references a logical filename.
func (l Leaf) IsFile() bool { return l.LFN != "" }

// Profile is a namespaced key/value setting attached to a job.
type Profile struct {
	Namespace string
	Key       string
	Value     []Leaf
}

// Job is one abstract job of the workflow. Jobs are never modified once the
// workflow is loaded.
type Job struct {
	ID string

	Namespace string
	Name      string
	Version   string

	DVNamespace string
	DVName      string
	DVVersion   string

	Arguments []Leaf
	Profiles  []Profile
	Uses      []FileUse

	Stdin  string
	Stdout string
	Stderr string
}

// TR returns the fully-qualified transformation name of the job.
func (j *Job) TR() string { return Combine(j.Namespace, j.Name, j.Version) }

// DV returns the fully-qualified derivation name of the job.
func (j *Job) DV() string { return Combine(j.DVNamespace, j.DVName, j.DVVersion) }

// Combine builds "namespace::name:version", leaving out empty parts.
func Combine(namespace, name, version string) string {
	var sb strings.Builder
	if namespace != "" {
		sb.WriteString(namespace)
		sb.WriteString("::")
	}
	sb.WriteString(name)
	if version != "" {
		sb.WriteString(":")
		sb.WriteString(version)
	}
	return sb.String()
}

// Dependency states that Parent must finish before Child starts.
type Dependency struct {
	Parent string
	Child  string
}

// Workflow is the parsed abstract workflow: its jobs in declaration order,
// the file manifest and the dependencies between jobs.
type Workflow struct {
	Name         string
	Jobs         []*Job
	Filenames    map[string]Link
	Dependencies []Dependency

	index map[string]*Job
}

// New returns an empty workflow.
func New(name string) *Workflow {
	return &Workflow{
		Name:      name,
		Filenames: make(map[string]Link),
		index:     make(map[string]*Job),
	}
}

// AddJob appends a job. Job IDs must be unique.
func (w *Workflow) AddJob(j *Job) error {
	if j.ID == "" {
		return fmt.Errorf("job %q has an empty id", j.Name)
	}
	if _, dup := w.index[j.ID]; dup {
		return fmt.Errorf("duplicate job id %s", j.ID)
	}
	w.index[j.ID] = j
	w.Jobs = append(w.Jobs, j)
	return nil
}

// AddFilename records a logical filename in the manifest.
func (w *Workflow) AddFilename(lfn string, link Link) {
	w.Filenames[lfn] = link
}

// AddDependency records that child depends on parent.
func (w *Workflow) AddDependency(parent, child string) {
	w.Dependencies = append(w.Dependencies, Dependency{Parent: parent, Child: child})
}

// Job looks a job up by ID.
func (w *Workflow) Job(id string) (*Job, bool) {
	j, ok := w.index[id]
	return j, ok
}

// LFNs returns every logical filename of the manifest, sorted.
func (w *Workflow) LFNs() []string {
	lfns := make([]string, 0, len(w.Filenames))
	for lfn := range w.Filenames {
		lfns = append(lfns, lfn)
	}
	sort.Strings(lfns)
	return lfns
}
