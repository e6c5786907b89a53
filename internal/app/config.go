package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/shplanner/internal/fsutil"
	"github.com/vk/shplanner/internal/planner"
)

// DefaultReplicaCacheSize is the number of replica lookups kept in memory
// when a database catalog is used.
const DefaultReplicaCacheSize = 4096

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	WorkflowPath string // hcl file
	OutputDir    string // defaults to the workflow name
	Mode         string // build or make
	Site         string

	ReplicaCatalog        string // hcl files
	ReplicaDSN            string // postgres; wins over ReplicaCatalog
	ReplicaCacheSize      int    // 0 disables the cache
	TransformationCatalog string
	SiteCatalog           string

	TemplatesDir string
	Kickstart    string
	Register     bool
	// Executable is the shplanner binary job scripts call back into to
	// register their outputs. Empty disables registration.
	Executable string
	// RegisterOutputs is a job output list to record in the replica
	// catalog instead of planning.
	RegisterOutputs string

	LogFormat string
	LogLevel  string

	S3 fsutil.S3Config
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" && cfg.RegisterOutputs == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}
	mode, err := planner.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode.String()
	if strings.TrimSpace(cfg.Site) == "" {
		cfg.Site = "local"
	}
	if cfg.ReplicaCacheSize < 0 {
		return nil, fmt.Errorf("ReplicaCacheSize must not be negative, got %d", cfg.ReplicaCacheSize)
	}
	if cfg.S3.Endpoint == "" && (cfg.S3.AccessKey != "" || cfg.S3.SecretKey != "") {
		return nil, errors.New("S3 credentials are set but the S3 endpoint is empty")
	}
	return &cfg, nil
}
