package harness

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/networks"
	"github.com/Edgewood-TD/workspaces-go/pkg/sandbox"
	"github.com/Edgewood-TD/workspaces-go/pkg/workspaces"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// SkipIfNoSandbox skips the test when no sandbox node binary is installed
// and the suite is not pointed at an existing node. Use it to guard
// integration tests that boot real processes.
func SkipIfNoSandbox(t *testing.T) {
	t.Helper()

	if os.Getenv("WORKSPACES_RPC_ADDRESS") != "" {
		return
	}

	config, err := sandbox.ConfigFromEnvironment()
	require.NoError(t, err)

	config = sandbox.MergeConfigs(sandbox.DefaultConfig(), config)

	if !sandbox.Available(config) {
		t.Skipf("no %s binary available, skipping", config.Implementation)
	}
}

// SkipIfNotNetwork skips the test unless the resolved network mode matches.
func SkipIfNotNetwork(t *testing.T, network networks.NetworkName) {
	t.Helper()

	resolved, err := networks.FromEnv()
	require.NoError(t, err)

	if resolved != network {
		t.Skipf("test requires %s network, running against %s", network, resolved)
	}
}

// WaitForRPC polls an RPC endpoint until it answers or the timeout expires.
func WaitForRPC(ctx context.Context, log logrus.FieldLogger, rpcURL string, timeout time.Duration) error {
	if log == nil {
		log = logrus.New()
	}

	log = log.WithField("rpc_url", rpcURL)
	log.Debug("Waiting for RPC endpoint")

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	started := time.Now()

	for {
		select {
		case <-timeoutCtx.Done():
			return errors.Wrapf(timeoutCtx.Err(), "timeout waiting for RPC endpoint %s", rpcURL)
		case <-ticker.C:
			client, err := rpc.DialContext(timeoutCtx, rpcURL)
			if err != nil {
				continue
			}

			var version string

			err = client.CallContext(timeoutCtx, &version, "web3_clientVersion")

			client.Close()

			if err == nil {
				log.WithField("duration", time.Since(started)).Debug("RPC endpoint is up")

				return nil
			}
		}
	}
}

// AssertWorkspaceHealth asserts the workspace node answers RPC and the root
// account is funded. Use it at the top of integration tests to fail fast on
// a broken environment.
func AssertWorkspaceHealth(t *testing.T, ctx context.Context, w *workspaces.Workspace) {
	t.Helper()

	require.NotNil(t, w, "workspace must not be nil")
	require.True(t, w.Client().Healthy(ctx), "workspace node is not healthy")

	balance, err := w.Balance(ctx, w.Root().Address())
	require.NoError(t, err, "failed to fetch root balance")
	require.Positive(t, balance.Sign(), "root account is not funded")
}
