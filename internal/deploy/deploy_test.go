package deploy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fixedSource is a SourceWatcher with a fixed change time.
type fixedSource struct {
	t time.Time
}

func (f fixedSource) LatestSourceChange() (time.Time, error) { return f.t, nil }

func newTestOrchestrator(t *testing.T, cfg Config, src SourceWatcher) *Orchestrator {
	t.Helper()
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = 10 * time.Second
	}
	if src == nil {
		src = fixedSource{}
	}
	return New(cfg, src)
}

func TestBuildAndDeploySuccess(t *testing.T) {
	o := newTestOrchestrator(t, Config{
		BuildCmd:      "true",
		DeployCmd:     "true",
		DeployTimeout: 10 * time.Second,
	}, nil)

	result, err := o.BuildAndDeploy(context.Background())
	if err != nil {
		t.Fatalf("BuildAndDeploy: %v", err)
	}
	if result.DeployFailed {
		t.Error("DeployFailed = true")
	}
	if result.DeployedAt.IsZero() {
		t.Error("DeployedAt not set")
	}
}

func TestBuildFailure(t *testing.T) {
	o := newTestOrchestrator(t, Config{BuildCmd: "false"}, nil)

	_, err := o.BuildAndDeploy(context.Background())
	if err == nil {
		t.Fatal("expected build failure")
	}
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("error type = %T, want *BuildError", err)
	}
}

func TestBuildFailureTranscript(t *testing.T) {
	o := newTestOrchestrator(t, Config{
		BuildCmd: "cat /definitely/not/a/file",
	}, nil)

	_, err := o.BuildAndDeploy(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("error = %v, want *BuildError", err)
	}
	if !strings.Contains(buildErr.Transcript, "No such file") {
		t.Errorf("transcript %q missing command output", buildErr.Transcript)
	}
}

func TestDeployFailureTolerated(t *testing.T) {
	o := newTestOrchestrator(t, Config{
		BuildCmd:      "true",
		DeployCmd:     "false",
		DeployTimeout: 10 * time.Second,
	}, nil)

	result, err := o.BuildAndDeploy(context.Background())
	if err != nil {
		t.Fatalf("deploy failure should not fail the run: %v", err)
	}
	if !result.DeployFailed {
		t.Error("DeployFailed should be set")
	}
	if !strings.Contains(result.Transcript, "deploy command failed") {
		t.Errorf("transcript %q missing deploy failure note", result.Transcript)
	}
}

func TestBuildTimeout(t *testing.T) {
	o := newTestOrchestrator(t, Config{
		BuildCmd:     "sleep 5",
		BuildTimeout: 50 * time.Millisecond,
	}, nil)

	_, err := o.BuildAndDeploy(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("error = %v, want *BuildError", err)
	}
	if !strings.Contains(buildErr.Err.Error(), "timed out") {
		t.Errorf("error %v should mention timeout", buildErr.Err)
	}
}

func TestSingleFlight(t *testing.T) {
	o := newTestOrchestrator(t, Config{BuildCmd: "sleep 0.3"}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.BuildAndDeploy(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	inProgress := 0
	for err := range errs {
		if errors.Is(err, ErrBuildInProgress) {
			inProgress++
		}
	}
	if inProgress != 3 {
		t.Errorf("got %d ErrBuildInProgress, want 3", inProgress)
	}
}

func TestStatus(t *testing.T) {
	src := fixedSource{t: time.Now().Add(-time.Hour)}
	o := newTestOrchestrator(t, Config{BuildCmd: "true"}, src)

	// No build yet: rebuild needed.
	status, err := o.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.NeedsRebuild {
		t.Error("NeedsRebuild should be true before any build")
	}

	if _, err := o.BuildAndDeploy(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Build newer than the last source change: fresh.
	status, err = o.Status()
	if err != nil {
		t.Fatal(err)
	}
	if status.NeedsRebuild {
		t.Error("NeedsRebuild should be false after build")
	}
	if status.LastBuildAt.IsZero() {
		t.Error("LastBuildAt not set")
	}
}
