package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/vk/shplanner/internal/app"
	"github.com/vk/shplanner/internal/fsutil"
)

// EnvPrefix prefixes every environment variable that supplies a flag default.
const EnvPrefix = "SHPLANNER_"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Every flag defaults to the matching SHPLANNER_* environment variable.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("shplanner", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
shplanner - plans a workflow into shell scripts run by one control script.

Usage:
  shplanner [options] [WORKFLOW]
  shplanner [catalog options] -register-outputs JOB.lst

Arguments:
  WORKFLOW
    Path to the workflow .hcl file.

Every option can also be set through the environment variable named
SHPLANNER_ followed by the option name upper-cased with dashes replaced
by underscores (e.g. SHPLANNER_RC_DSN). A .env file in the working
directory is read first.

Options:
`)
		flagSet.PrintDefaults()
	}

	env := envReader{}
	workflowFlag := flagSet.String("workflow", env.Str("workflow", ""), "Path to the workflow file.")
	wFlag := flagSet.String("w", "", "Path to the workflow file (shorthand).")
	outFlag := flagSet.String("out", env.Str("out", ""), "Output directory. Defaults to the workflow name.")
	modeFlag := flagSet.String("mode", env.Str("mode", "build"), "Planning mode. Options: 'build' (run everything) or 'make' (skip jobs whose outputs exist).")
	siteFlag := flagSet.String("site", env.Str("site", "local"), "Site logical filenames are resolved on.")
	rcFlag := flagSet.String("rc", env.Str("rc", ""), "Replica catalog file or directory.")
	rcDSNFlag := flagSet.String("rc-dsn", env.Str("rc-dsn", ""), "Postgres DSN of the replica catalog. Wins over -rc.")
	rcCacheFlag := flagSet.Int("rc-cache", env.Int("rc-cache", app.DefaultReplicaCacheSize), "Replica lookups cached in memory for -rc-dsn. 0 disables the cache.")
	tcFlag := flagSet.String("tc", env.Str("tc", ""), "Transformation catalog file or directory.")
	scFlag := flagSet.String("sc", env.Str("sc", ""), "Site catalog file or directory.")
	templatesFlag := flagSet.String("templates", env.Str("templates", ""), "Directory with script templates overriding the built-in ones.")
	kickstartFlag := flagSet.String("kickstart", env.Str("kickstart", ""), "Launcher wrapping every job. Overrides the site catalog.")
	registerFlag := flagSet.Bool("register", env.Bool("register", true), "Make job scripts verify their outputs and record them in the replica catalog.")
	registerOutputsFlag := flagSet.String("register-outputs", "", "Record the files of a job output list (.lst) in the replica catalog and exit. Used by job scripts.")
	logFormatFlag := flagSet.String("log-format", env.Str("log-format", "text"), "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", env.Str("log-level", "info"), "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	s3EndpointFlag := flagSet.String("s3-endpoint", env.Str("s3-endpoint", ""), "S3 endpoint used to check s3:// outputs. Empty disables S3.")
	s3RegionFlag := flagSet.String("s3-region", env.Str("s3-region", ""), "S3 region.")
	s3AccessKeyFlag := flagSet.String("s3-access-key", env.Str("s3-access-key", ""), "S3 access key.")
	s3SecretKeyFlag := flagSet.String("s3-secret-key", env.Str("s3-secret-key", ""), "S3 secret key.")
	s3SSLFlag := flagSet.Bool("s3-ssl", env.Bool("s3-ssl", true), "Use TLS for S3.")

	if env.err != nil {
		return nil, false, &ExitError{Code: 2, Message: env.err.Error()}
	}

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *workflowFlag != "" {
		path = *workflowFlag
	} else if *wFlag != "" {
		path = *wFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Workflow path determined.", "path", path)

	if path == "" && *registerOutputsFlag == "" {
		slog.Debug("No workflow path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	executable, err := os.Executable()
	if err != nil {
		slog.Warn("Cannot locate own executable, job outputs will not be registered.", "error", err)
		executable = ""
	}

	config, err := app.NewConfig(app.Config{
		WorkflowPath:          path,
		OutputDir:             *outFlag,
		Mode:                  *modeFlag,
		Site:                  *siteFlag,
		ReplicaCatalog:        *rcFlag,
		ReplicaDSN:            *rcDSNFlag,
		ReplicaCacheSize:      *rcCacheFlag,
		TransformationCatalog: *tcFlag,
		SiteCatalog:           *scFlag,
		TemplatesDir:          *templatesFlag,
		Kickstart:             *kickstartFlag,
		Register:              *registerFlag,
		Executable:            executable,
		RegisterOutputs:       *registerOutputsFlag,
		LogFormat:             logFormat,
		LogLevel:              logLevel,
		S3: fsutil.S3Config{
			Endpoint:  *s3EndpointFlag,
			Region:    *s3RegionFlag,
			AccessKey: *s3AccessKeyFlag,
			SecretKey: *s3SecretKeyFlag,
			UseSSL:    *s3SSLFlag,
		},
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "workflow", config.WorkflowPath, "mode", config.Mode)
	return config, false, nil
}

// envReader reads flag defaults from the environment and remembers the
// first malformed value.
type envReader struct {
	err error
}

// EnvName returns the environment variable backing a flag.
func EnvName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func (e *envReader) Str(name, def string) string {
	if v, ok := os.LookupEnv(EnvName(name)); ok {
		return v
	}
	return def
}

func (e *envReader) Int(name string, def int) int {
	v, ok := os.LookupEnv(EnvName(name))
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid %s: %q is not a number", EnvName(name), v)
	}
	if err != nil {
		return def
	}
	return n
}

func (e *envReader) Bool(name string, def bool) bool {
	v, ok := os.LookupEnv(EnvName(name))
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid %s: %q is not a boolean", EnvName(name), v)
	}
	if err != nil {
		return def
	}
	return b
}
