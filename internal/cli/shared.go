package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/constants"
	"github.com/openclaw/openclaw-deploy/internal/history"
	"github.com/openclaw/openclaw-deploy/internal/logging"
	"github.com/openclaw/openclaw-deploy/internal/rollback"
	"github.com/openclaw/openclaw-deploy/internal/runtime"
	"github.com/openclaw/openclaw-deploy/internal/ui"
	"github.com/openclaw/openclaw-deploy/internal/validate"
	"github.com/openclaw/openclaw-deploy/internal/workflow"
)

// Exit codes, part of the CLI contract for scripting.
const (
	exitRuntime    = 1
	exitConfig     = 2
	exitValidation = 3
	exitBuild      = 4
	exitHealth     = 5
)

const logRetentionDays = 30

// exitError pins an explicit exit code onto an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func codeFor(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	var valErr *validate.Error
	if errors.As(err, &valErr) {
		return exitValidation
	}
	var buildErr *workflow.BuildError
	if errors.As(err, &buildErr) {
		return exitBuild
	}
	var healthErr *workflow.HealthTimeoutError
	if errors.As(err, &healthErr) {
		return exitHealth
	}
	return exitRuntime
}

// resultError maps a failed workflow result onto the error the command
// returns. Health failures get their dedicated exit code whatever the
// underlying error type.
func resultError(result *workflow.Result) error {
	if result.Success {
		return nil
	}
	if result.FailedStep == workflow.StepHealthChecking {
		return &exitError{code: exitHealth, err: result.Err}
	}
	return result.Err
}

// appContext bundles what every mutating command needs.
type appContext struct {
	snap   *config.Snapshot
	logger *logging.Logger
	rt     *runtime.Engine
	store  *history.Store
	engine *workflow.Engine
}

func newAppContext(flags *rootFlags, overrides config.Overrides) (*appContext, error) {
	snap, err := config.Resolve(config.ResolveOptions{
		ProjectDir: flags.projectDir,
		ConfigFile: flags.configFile,
		Overrides:  overrides,
	})
	if err != nil {
		return nil, err
	}

	level := logging.INFO
	if flags.verbose {
		level = logging.DEBUG
	}
	logger := logging.NewLogger(level, true)

	// Like the history store below, the run log file only attaches once the
	// config directory exists; before the first deploy that directory belongs
	// to the provisioning step and its rollback ledger.
	if flags.logFile {
		if info, err := os.Stat(snap.ConfigDir); err == nil && info.IsDir() {
			if err := logger.SetRunFileWriter(snap.LogsDir(), workflow.NewRunID()); err != nil {
				logger.Warn("Failed to open run log file", err)
			} else if err := logging.CleanOldLogs(snap.LogsDir(), logRetentionDays); err != nil {
				logger.Debug(fmt.Sprintf("Failed to clean old logs: %v", err))
			}
		} else {
			logger.Debug("Run log file skipped until the config directory exists")
		}
	}

	rt, err := runtime.NewEngine(snap, logger, flags.verbose)
	if err != nil {
		logger.CloseLog()
		return nil, err
	}

	// The audit store is advisory; before the first deploy the config
	// directory does not exist yet and history is simply skipped.
	var store *history.Store
	if info, err := os.Stat(snap.HistoryDBDir()); err == nil && info.IsDir() {
		store, err = history.Open(snap.HistoryDBDir())
		if err != nil {
			logger.Warn("Run history unavailable", err)
			store = nil
		}
	}

	return &appContext{
		snap:   snap,
		logger: logger,
		rt:     rt,
		store:  store,
		engine: workflow.NewEngine(snap, rt, logger, store),
	}, nil
}

func (a *appContext) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.rt.Close()
	a.logger.CloseLog()
}

// confirm asks a yes/no question on stdin. Anything but an explicit yes is a
// no.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// reportRollback tells the operator what the unwind accomplished and what,
// if anything, is left to clean up by hand.
func reportRollback(result *workflow.Result) {
	switch result.Rollback.Status {
	case rollback.StatusFullyRecovered:
		ui.Info("Rollback complete, no artifacts left behind")
	case rollback.StatusPartiallyRecovered:
		ui.Warn("Rollback incomplete, failed steps: %s", strings.Join(result.Rollback.Failed, ", "))
	case rollback.StatusSkipped:
		if len(result.Rollback.LeftBehind) > 0 {
			ui.Warn("Rollback skipped, left behind:")
			for _, label := range result.Rollback.LeftBehind {
				ui.Warn("  - %s", label)
			}
			ui.Warn("Run %s cleanup to remove them", constants.AppName)
		}
	}
}
