// Package deploy runs the production build and restarts the serving
// process, one build at a time.
package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/emberworks/codeconsole/internal/logging"
	"github.com/emberworks/codeconsole/internal/metrics"
	"github.com/emberworks/codeconsole/pkg/models"
)

// ErrBuildInProgress is returned when a build is already running.
var ErrBuildInProgress = errors.New("deploy: build already in progress")

// markerFile records the completion time of the last successful build.
const markerFile = ".last-build"

// BuildError carries the combined output of a failed build command.
type BuildError struct {
	Transcript string
	Err        error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SourceWatcher reports the newest modification time in the source
// tree, used to decide whether the deployed build is stale.
type SourceWatcher interface {
	LatestSourceChange() (time.Time, error)
}

// Config holds orchestrator settings.
type Config struct {
	WorkDir       string
	BuildCmd      string
	DeployCmd     string
	BuildTimeout  time.Duration
	DeployTimeout time.Duration
}

// Result describes a completed build and deploy run.
type Result struct {
	Transcript   string
	Duration     time.Duration
	DeployedAt   time.Time
	DeployFailed bool
}

// Orchestrator serializes builds and tracks build freshness.
type Orchestrator struct {
	cfg      Config
	source   SourceWatcher
	building atomic.Bool
}

// New returns an Orchestrator over the given work directory.
func New(cfg Config, source SourceWatcher) *Orchestrator {
	return &Orchestrator{cfg: cfg, source: source}
}

// InProgress reports whether a build is currently running.
func (o *Orchestrator) InProgress() bool {
	return o.building.Load()
}

// Status compares the last successful build against the newest source
// change.
func (o *Orchestrator) Status() (models.BuildStatus, error) {
	var status models.BuildStatus

	if info, err := os.Stat(filepath.Join(o.cfg.WorkDir, markerFile)); err == nil {
		status.LastBuildAt = info.ModTime()
	} else if !os.IsNotExist(err) {
		return status, fmt.Errorf("stat build marker: %w", err)
	}

	latest, err := o.source.LatestSourceChange()
	if err != nil {
		return status, fmt.Errorf("scan sources: %w", err)
	}
	status.LatestSourceChangeAt = latest

	status.NeedsRebuild = status.LastBuildAt.IsZero() || latest.After(status.LastBuildAt)
	return status, nil
}

// BuildAndDeploy runs the build command and, if it succeeds, the
// deploy command. Only one run is allowed at a time; concurrent calls
// get ErrBuildInProgress. A deploy failure is tolerated: the build is
// still marked complete and the failure is noted in the transcript.
func (o *Orchestrator) BuildAndDeploy(ctx context.Context) (*Result, error) {
	if !o.building.CompareAndSwap(false, true) {
		return nil, ErrBuildInProgress
	}
	defer o.building.Store(false)

	start := time.Now()
	logging.Info("build started", zap.String("cmd", o.cfg.BuildCmd))

	transcript, err := o.run(ctx, o.cfg.BuildCmd, o.cfg.BuildTimeout)
	if err != nil {
		metrics.RecordBuild(false, time.Since(start))
		logging.Error("build failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, &BuildError{Transcript: transcript, Err: err}
	}

	result := &Result{Transcript: transcript}

	if o.cfg.DeployCmd != "" {
		deployOut, err := o.run(ctx, o.cfg.DeployCmd, o.cfg.DeployTimeout)
		result.Transcript += "\n" + deployOut
		if err != nil {
			// The new build is on disk even if the restart failed.
			result.DeployFailed = true
			result.Transcript += fmt.Sprintf("\ndeploy command failed: %v", err)
			logging.Warn("deploy command failed", zap.Error(err))
		}
	}

	if err := o.touchMarker(); err != nil {
		logging.Warn("build marker update failed", zap.Error(err))
	}

	result.Duration = time.Since(start)
	result.DeployedAt = time.Now()
	metrics.RecordBuild(true, result.Duration)
	logging.Info("build completed",
		zap.Duration("duration", result.Duration),
		zap.Bool("deploy_failed", result.DeployFailed),
	)
	return result, nil
}

// run executes a command line with a timeout and returns its combined
// stdout and stderr.
func (o *Orchestrator) run(ctx context.Context, cmdline string, timeout time.Duration) (string, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty command")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = o.cfg.WorkDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return out.String(), fmt.Errorf("%s timed out after %s", fields[0], timeout)
	}
	if err != nil {
		return out.String(), fmt.Errorf("%s: %w", fields[0], err)
	}
	return out.String(), nil
}

func (o *Orchestrator) touchMarker() error {
	path := filepath.Join(o.cfg.WorkDir, markerFile)
	now := time.Now()
	if err := os.WriteFile(path, []byte(now.UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Chtimes(path, now, now)
}
