package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/gridflow/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gridflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Gridflow - plans record flows into steps and runs them.

Usage:
  gridflow [options] [FLOW_PATH]

Arguments:
  FLOW_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	flowFlag := flagSet.String("flow", "", "Path to the flow file or directory.")
	fFlag := flagSet.String("f", "", "Path to the flow file or directory (shorthand).")
	modulesPathFlag := flagSet.String("modules-path", "", "Path to extra operation manifests.")
	propertiesFlag := flagSet.String("properties", "", "Path to a properties file (yaml, json or toml).")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of steps that may run at once.")
	planFlag := flagSet.Bool("plan", false, "Print the planned step graph in DOT format instead of running the flow.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := firstNonEmpty(*flowFlag, *fFlag, flagSet.Arg(0))
	slog.Debug("Flow path determined.", "path", path)
	if path == "" {
		slog.Debug("No flow path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat, err := oneOf("log-format", *logFormatFlag, "text", "json")
	if err != nil {
		return nil, false, err
	}
	logLevel, err := oneOf("log-level", *logLevelFlag, "debug", "info", "warn", "error")
	if err != nil {
		return nil, false, err
	}

	cfg, err := app.NewConfig(app.Config{
		FlowPath:        path,
		ModulesPath:     *modulesPathFlag,
		PropertiesFile:  *propertiesFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		WorkerCount:     *workersFlag,
		PlanOnly:        *planFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// oneOf lower-cases value and checks it against the allowed choices.
func oneOf(flagName, value string, choices ...string) (string, error) {
	value = strings.ToLower(value)
	for _, c := range choices {
		if value == c {
			return value, nil
		}
	}
	quoted := make([]string, len(choices))
	for i, c := range choices {
		quoted[i] = "'" + c + "'"
	}
	return "", &ExitError{Code: 2, Message: fmt.Sprintf("invalid %s %q: must be one of %s", flagName, value, strings.Join(quoted, ", "))}
}
