// Package execenv runs child processes with a hydrated configuration
// exposed through the environment. The plaintext document lives in a
// mode 0600 temp file that is removed when the child exits, so secrets
// never land in a long-lived file or in the process argument list.
package execenv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/internal/logging"
)

// DefaultEnvVar names the variable that carries the config file path.
const DefaultEnvVar = "CONFSEAL_CONFIG"

// Executor runs commands with an ephemeral hydrated configuration.
type Executor struct {
	logger *logging.Logger
}

// New creates an executor.
func New(logger *logging.Logger) *Executor {
	return &Executor{logger: logger}
}

// Options configures command execution.
type Options struct {
	Command    []string               // Command and arguments to run
	Document   map[string]interface{} // Hydrated configuration for the child
	EnvVar     string                 // Variable carrying the config path (default CONFSEAL_CONFIG)
	Env        map[string]string      // Extra variables for the child
	PrintVars  bool                   // Print variable names with masked values
	WorkingDir string                 // Working directory for the command
	Timeout    time.Duration          // Zero means no timeout
}

// Exec runs the command and returns its exit code. The hydrated
// document is written to a temp file that is removed before Exec
// returns, even when the child fails.
func (e *Executor) Exec(ctx context.Context, opts Options) (int, error) {
	if len(opts.Command) == 0 {
		return -1, cserrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., confseal exec --doc stored.json --schema spec.json -- npm start)",
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmdName := opts.Command[0]
	if _, err := exec.LookPath(cmdName); err != nil {
		return -1, cserrors.UserError{
			Message:    fmt.Sprintf("Command not found: %s", cmdName),
			Suggestion: "Check that the command is installed and on PATH",
			Err:        err,
		}
	}

	configPath, cleanup, err := e.writeConfigFile(opts.Document)
	if err != nil {
		return -1, err
	}
	defer cleanup()

	envVar := opts.EnvVar
	if envVar == "" {
		envVar = DefaultEnvVar
	}

	childVars := map[string]string{envVar: configPath}
	for key, value := range opts.Env {
		childVars[key] = value
	}

	if opts.PrintVars {
		e.printVariables(childVars)
	}

	cmd := exec.CommandContext(ctx, cmdName, opts.Command[1:]...)
	cmd.Env = buildEnvironment(childVars)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}

	e.logger.Debug("Executing command: %s", strings.Join(opts.Command, " "))
	e.logger.Debug("Hydrated configuration exposed via %s", envVar)

	if err := cmd.Run(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return exitError.ExitCode(), nil
		}
		return -1, cserrors.UserError{
			Message:    fmt.Sprintf("Command failed: %s", strings.Join(opts.Command, " ")),
			Details:    err.Error(),
			Suggestion: "Check the command output above for details",
			Err:        err,
		}
	}
	return 0, nil
}

// writeConfigFile persists the hydrated document to a 0600 temp file
// and returns the path with a cleanup func that removes it.
func (e *Executor) writeConfigFile(doc map[string]interface{}) (string, func(), error) {
	file, err := os.CreateTemp("", "confseal-*.json")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create config file: %w", err)
	}
	path := file.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("Failed to remove hydrated config file %s: %v", path, err)
		}
	}

	if err := file.Chmod(0o600); err != nil {
		file.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to restrict config file permissions: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		file.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write configuration: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close configuration file: %w", err)
	}
	return path, cleanup, nil
}

// buildEnvironment merges the child variables over the current
// environment, sorted for stable ordering.
func buildEnvironment(vars map[string]string) []string {
	envMap := make(map[string]string)
	for _, entry := range os.Environ() {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}
	for key, value := range vars {
		envMap[key] = value
	}

	result := make([]string, 0, len(envMap))
	for key, value := range envMap {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(result)
	return result
}

// printVariables lists the variables passed to the child with masked
// values.
func (e *Executor) printVariables(vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Printf("Passing %d environment variables:\n", len(keys))
	for _, key := range keys {
		fmt.Printf("  %s=%s\n", key, maskValue(vars[key]))
	}
	fmt.Println()
}

// maskValue hides most of a value while keeping it recognizable.
func maskValue(value string) string {
	switch {
	case len(value) == 0:
		return "(empty)"
	case len(value) <= 3:
		return strings.Repeat("*", len(value))
	case len(value) <= 8:
		return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
	default:
		return value[:3] + strings.Repeat("*", 8) + value[len(value)-2:]
	}
}
