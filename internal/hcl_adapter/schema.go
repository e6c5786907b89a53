package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// workflowRoot decodes the top-level blocks of a workflow file.
type workflowRoot struct {
	Workflows []*WorkflowBlock `hcl:"workflow,block"`
	Filenames []*FilenameBlock `hcl:"filename,block"`
	Jobs      []*JobBlock      `hcl:"job,block"`
}

// WorkflowBlock names the workflow: `workflow "diamond" {}`.
type WorkflowBlock struct {
	Name   string   `hcl:"name,label"`
	Remain hcl.Body `hcl:",remain"`
}

// FilenameBlock declares a logical filename of the manifest.
type FilenameBlock struct {
	LFN  string `hcl:"lfn,label"`
	Link string `hcl:"link,optional"`
}

// JobBlock is one abstract job.
type JobBlock struct {
	ID string `hcl:"id,label"`

	Namespace string `hcl:"namespace,optional"`
	Name      string `hcl:"name"`
	Version   string `hcl:"version,optional"`

	DVNamespace string `hcl:"dv_namespace,optional"`
	DVName      string `hcl:"dv_name,optional"`
	DVVersion   string `hcl:"dv_version,optional"`

	Arguments hcl.Expression `hcl:"arguments,optional"`

	Stdin  string `hcl:"stdin,optional"`
	Stdout string `hcl:"stdout,optional"`
	Stderr string `hcl:"stderr,optional"`

	Uses      []*UsesBlock    `hcl:"uses,block"`
	Profiles  []*ProfileBlock `hcl:"profile,block"`
	DependsOn []string        `hcl:"depends_on,optional"`
}

// UsesBlock declares how a job uses a file.
type UsesBlock struct {
	LFN  string `hcl:"lfn,label"`
	Link string `hcl:"link"`
}

// ProfileBlock holds the keys of one profile namespace. Values are
// evaluated later so they may reference files with lfn().
type ProfileBlock struct {
	Namespace string   `hcl:"namespace,label"`
	Body      hcl.Body `hcl:",remain"`
}

// catalogRoot decodes any catalog file. Replica, transformation and site
// records may share a file.
type catalogRoot struct {
	Replicas        []*ReplicaBlock        `hcl:"replica,block"`
	Transformations []*TransformationBlock `hcl:"transformation,block"`
	Sites           []*SiteBlock           `hcl:"site,block"`
}

// ReplicaBlock is one replica catalog record.
type ReplicaBlock struct {
	LFN  string `hcl:"lfn,label"`
	PFN  string `hcl:"pfn"`
	Site string `hcl:"site,optional"`
}

// TransformationBlock is one transformation catalog record.
type TransformationBlock struct {
	Name      string          `hcl:"name,label"`
	Namespace string          `hcl:"namespace,optional"`
	Version   string          `hcl:"version,optional"`
	Site      string          `hcl:"site,optional"`
	PFN       string          `hcl:"pfn"`
	Profiles  []*ProfileBlock `hcl:"profile,block"`
}

// SiteBlock is one site catalog record.
type SiteBlock struct {
	Handle     string          `hcl:"handle,label"`
	GridLaunch string          `hcl:"gridlaunch,optional"`
	Profiles   []*ProfileBlock `hcl:"profile,block"`
}
