package workspaces

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/Edgewood-TD/workspaces-go/pkg/networks"
	"github.com/Edgewood-TD/workspaces-go/pkg/snapshot"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// noopInit satisfies the constructor without provisioning anything.
func noopInit(context.Context, *Workspace) error {
	return nil
}

func testnetConfig() *Config {
	return &Config{
		Network:        networks.NetworkNameTestnet,
		RPCAddress:     "http://127.0.0.1:1",
		RootPrivateKey: testRootKey,
	}
}

func TestNewRequiresInitFn(t *testing.T) {
	clearNetworkEnv(t)

	_, err := New(testLogger(), nil)
	require.ErrorIs(t, err, ErrNoInitFn)

	_, err = NewWithConfig(testLogger(), nil, nil)
	require.ErrorIs(t, err, ErrNoInitFn)
}

func TestNewDefaultsToSandbox(t *testing.T) {
	clearNetworkEnv(t)

	runner, err := New(testLogger(), noopInit)
	require.NoError(t, err)
	assert.Equal(t, networks.NetworkNameSandbox, runner.Network())
	require.NotNil(t, runner.Config())
	assert.Equal(t, uint64(100), runner.Config().InitBalance)
}

func TestNewAcceptsNilLogger(t *testing.T) {
	clearNetworkEnv(t)

	runner, err := New(nil, noopInit)
	require.NoError(t, err)
	require.NotNil(t, runner)
}

func TestNewResolvesNetworkFromEnv(t *testing.T) {
	clearNetworkEnv(t)
	t.Setenv(networks.EnvVar, "testnet")
	t.Setenv("WORKSPACES_RPC_ADDRESS", "http://127.0.0.1:1")
	t.Setenv("WORKSPACES_ROOT_KEY", testRootKey)

	runner, err := New(testLogger(), noopInit)
	require.NoError(t, err)
	assert.Equal(t, networks.NetworkNameTestnet, runner.Network())
}

func TestNewRejectsUnknownNetwork(t *testing.T) {
	clearNetworkEnv(t)
	t.Setenv(networks.EnvVar, "mainnet")

	_, err := New(testLogger(), noopInit)
	require.ErrorIs(t, err, networks.ErrUnknownNetwork)
}

func TestRunSandboxSkipsOnTestnet(t *testing.T) {
	clearNetworkEnv(t)

	runner, err := NewWithConfig(testLogger(), testnetConfig(), noopInit)
	require.NoError(t, err)

	called := false
	// The callback must not run, and no bootstrap may be attempted: the RPC
	// address points nowhere.
	err = runner.RunSandbox(context.Background(), func(context.Context, *Workspace) error {
		called = true

		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRunRequiresFn(t *testing.T) {
	clearNetworkEnv(t)

	runner, err := NewWithConfig(testLogger(), testnetConfig(), noopInit)
	require.NoError(t, err)

	require.Error(t, runner.Run(context.Background(), nil))
}

func TestRunAfterClose(t *testing.T) {
	clearNetworkEnv(t)

	runner, err := NewWithConfig(testLogger(), testnetConfig(), noopInit)
	require.NoError(t, err)

	require.NoError(t, runner.Close(context.Background()))

	err = runner.Run(context.Background(), func(context.Context, *Workspace) error {
		return nil
	})
	require.ErrorIs(t, err, ErrRunnerClosed)

	// RunSandbox on a closed sandbox runner reports closed too.
	clearNetworkEnv(t)

	sandboxRunner, err := New(testLogger(), noopInit)
	require.NoError(t, err)
	require.NoError(t, sandboxRunner.Close(context.Background()))
	require.ErrorIs(t, sandboxRunner.RunSandbox(context.Background(), func(context.Context, *Workspace) error {
		return nil
	}), ErrRunnerClosed)
}

func TestRunObservesCloseAfterBootstrap(t *testing.T) {
	clearNetworkEnv(t)

	runner, err := NewWithConfig(testLogger(), testnetConfig(), noopInit)
	require.NoError(t, err)

	// A Close racing Run can land between the closed check and the fork,
	// leaving a bootstrapped runner without a base container. Run must fail
	// cleanly from that state rather than fork into nothing.
	runner.bootstrapOnce.Do(func() {})

	err = runner.Run(context.Background(), func(context.Context, *Workspace) error {
		return nil
	})
	require.ErrorIs(t, err, ErrRunnerClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	clearNetworkEnv(t)

	runner, err := NewWithConfig(testLogger(), testnetConfig(), noopInit)
	require.NoError(t, err)

	require.NoError(t, runner.Close(context.Background()))
	require.NoError(t, runner.Close(context.Background()))
}

func TestBaseStateDumpPrefersPersistedSnapshot(t *testing.T) {
	clearNetworkEnv(t)

	config := testnetConfig()
	config.SnapshotDir = t.TempDir()

	runner, err := NewWithConfig(testLogger(), config, noopInit)
	require.NoError(t, err)

	runner.baseState = []byte("in-memory")

	// Nothing persisted yet, fall back to the in-memory copy.
	assert.Equal(t, []byte("in-memory"), runner.baseStateDump())

	require.NoError(t, runner.store.Save(baseSnapshotName, []byte("persisted")))
	assert.Equal(t, []byte("persisted"), runner.baseStateDump())
}

func TestBaseStateDumpRemovesCorruptSnapshot(t *testing.T) {
	clearNetworkEnv(t)

	config := testnetConfig()
	config.SnapshotDir = t.TempDir()

	runner, err := NewWithConfig(testLogger(), config, noopInit)
	require.NoError(t, err)

	runner.baseState = []byte("in-memory")

	path := filepath.Join(config.SnapshotDir, baseSnapshotName+".snap")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o644))

	assert.Equal(t, []byte("in-memory"), runner.baseStateDump())

	// The corrupt file is gone, later forks will not trip over it again.
	_, err = runner.store.Load(baseSnapshotName)
	require.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
}

func TestPickStrategy(t *testing.T) {
	tests := []struct {
		name           string
		network        networks.NetworkName
		ownsProvider   bool
		implementation string
		want           forkStrategy
	}{
		{"testnet replays", networks.NetworkNameTestnet, false, "geth", forkReplay},
		{"owned anvil copies state", networks.NetworkNameSandbox, true, "anvil", forkStateCopy},
		{"shared anvil reverts snapshots", networks.NetworkNameSandbox, false, "anvil", forkSnapshotRevert},
		{"hardhat reverts snapshots", networks.NetworkNameSandbox, true, "hardhat", forkSnapshotRevert},
		{"geth dev replays", networks.NetworkNameSandbox, true, "geth", forkReplay},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := pickStrategy(test.network, test.ownsProvider, clients.ClientFromString(test.implementation))
			assert.Equal(t, test.want, got)
		})
	}
}
