package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/workspaces"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// runnerManager manages the lifecycle of shared workspace runners. Runners
// are reference counted so a base environment is bootstrapped once per
// suite and closed when the last test releases it.
type runnerManager struct {
	mu        sync.Mutex
	instances map[string]*managedRunner
}

type managedRunner struct {
	runner    *workspaces.Runner
	refCount  int
	createdAt time.Time
}

// defaultManager is the package-level runner manager instance.
var defaultManager = &runnerManager{
	instances: make(map[string]*managedRunner),
}

// GetRunner retrieves or creates a shared runner for the given
// configuration. The runner is released automatically through t.Cleanup;
// the base environment closes when the final reference is released.
func GetRunner(t *testing.T, config *RunnerConfig) (*workspaces.Runner, error) {
	t.Helper()

	if config == nil {
		return nil, errors.New("a runner config is required")
	}

	if config.Name == "" {
		return nil, errors.New("a runner name is required")
	}

	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()

	if managed, exists := defaultManager.instances[config.Name]; exists {
		t.Logf("Reusing runner %s (created %v ago)", config.Name, time.Since(managed.createdAt))

		managed.refCount++

		t.Cleanup(func() {
			releaseRunner(t, config.Name)
		})

		return managed.runner, nil
	}

	t.Logf("Creating runner %s", config.Name)

	log := logrus.New()

	runner, err := workspaces.NewWithConfig(log, config.Config, config.Init)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create runner %s", config.Name)
	}

	defaultManager.instances[config.Name] = &managedRunner{
		runner:    runner,
		refCount:  1,
		createdAt: time.Now(),
	}

	t.Cleanup(func() {
		releaseRunner(t, config.Name)
	})

	return runner, nil
}

// releaseRunner decrements the reference count for a runner and closes it
// when no tests hold it anymore.
func releaseRunner(t *testing.T, name string) {
	t.Helper()

	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()

	managed, exists := defaultManager.instances[name]
	if !exists {
		return
	}

	managed.refCount--
	if managed.refCount > 0 {
		return
	}

	delete(defaultManager.instances, name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := managed.runner.Close(ctx); err != nil {
		t.Logf("Failed to close runner %s: %v", name, err)
	}
}

// ForceCleanup closes a runner regardless of its reference count. Use it
// from TestMain to reclaim environments left behind by interrupted runs.
func ForceCleanup(name string) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()

	managed, exists := defaultManager.instances[name]
	if !exists {
		return nil
	}

	delete(defaultManager.instances, name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return managed.runner.Close(ctx)
}
