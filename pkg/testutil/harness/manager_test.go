package harness

import (
	"context"
	"testing"

	"github.com/Edgewood-TD/workspaces-go/pkg/networks"
	"github.com/Edgewood-TD/workspaces-go/pkg/workspaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testnetRunnerConfig builds a runner config that never boots a process:
// bootstrap is lazy, so creation and refcounting can be tested offline.
func testnetRunnerConfig(name string) *RunnerConfig {
	return &RunnerConfig{
		Name: name,
		Config: &workspaces.Config{
			Network:        networks.NetworkNameTestnet,
			RPCAddress:     "http://127.0.0.1:1",
			RootPrivateKey: "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		},
		Init: func(context.Context, *workspaces.Workspace) error {
			return nil
		},
	}
}

func TestGetRunnerValidation(t *testing.T) {
	_, err := GetRunner(t, nil)
	require.Error(t, err)

	_, err = GetRunner(t, &RunnerConfig{})
	require.Error(t, err)
}

func TestGetRunnerReusesInstances(t *testing.T) {
	config := testnetRunnerConfig("manager-test")

	first, err := GetRunner(t, config)
	require.NoError(t, err)

	second, err := GetRunner(t, config)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestForceCleanup(t *testing.T) {
	config := testnetRunnerConfig("force-cleanup-test")

	_, err := GetRunner(t, config)
	require.NoError(t, err)

	require.NoError(t, ForceCleanup(config.Name))

	// Unknown names are a no-op.
	require.NoError(t, ForceCleanup("does-not-exist"))
}

func TestDefaultRunnerConfig(t *testing.T) {
	config := DefaultRunnerConfig(nil)

	assert.Equal(t, "default", config.Name)
	assert.NotZero(t, config.Timeout)
}
