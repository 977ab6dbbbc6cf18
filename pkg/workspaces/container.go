package workspaces

import (
	"context"
	"sync"

	"github.com/Edgewood-TD/workspaces-go/pkg/accounts"
	"github.com/Edgewood-TD/workspaces-go/pkg/contracts"
	"github.com/Edgewood-TD/workspaces-go/pkg/execution"
	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/Edgewood-TD/workspaces-go/pkg/networks"
	"github.com/Edgewood-TD/workspaces-go/pkg/sandbox"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// forkStrategy is how Run derives an isolated environment from the base.
type forkStrategy string

const (
	// forkStateCopy spawns a fresh node and copies the base state into it.
	// Full isolation, needs anvil_dumpState.
	forkStateCopy forkStrategy = "state-copy"
	// forkSnapshotRevert runs on the base node and reverts to a snapshot on
	// teardown. Runs are serialized.
	forkSnapshotRevert forkStrategy = "snapshot-revert"
	// forkReplay reruns provisioning with fresh accounts on a shared chain.
	forkReplay forkStrategy = "replay"
)

// container is one bound environment: an endpoint, a node handle and the
// account/contract registries provisioned on it. The runner owns a base
// container and derives a fork container per run.
type container struct {
	log      logrus.FieldLogger
	network  networks.NetworkName
	strategy forkStrategy

	provider     sandbox.Provider
	ownsProvider bool
	endpoint     *sandbox.Endpoint

	node     *execution.Node
	accounts *accounts.Manager
	root     *accounts.Account

	contractsMu sync.RWMutex
	contracts   map[string]*contracts.Contract

	// releaseFork is called on teardown for serialized fork strategies.
	releaseFork func(ctx context.Context)
}

// pickStrategy decides how forks of this container are produced.
func pickStrategy(network networks.NetworkName, ownsProvider bool, implementation clients.Client) forkStrategy {
	if network != networks.NetworkNameSandbox {
		return forkReplay
	}

	if ownsProvider && clients.SupportsStateDump(implementation) {
		return forkStateCopy
	}

	if clients.SupportsSnapshot(implementation) {
		return forkSnapshotRevert
	}

	return forkReplay
}

// registerContract records a deployed contract under its label.
func (c *container) registerContract(contract *contracts.Contract) error {
	c.contractsMu.Lock()
	defer c.contractsMu.Unlock()

	if _, ok := c.contracts[contract.Label()]; ok {
		return errors.Wrapf(ErrContractExists, "%s", contract.Label())
	}

	c.contracts[contract.Label()] = contract

	return nil
}

// getContract returns the contract registered under label.
func (c *container) getContract(label string) (*contracts.Contract, error) {
	c.contractsMu.RLock()
	defer c.contractsMu.RUnlock()

	contract, ok := c.contracts[label]
	if !ok {
		return nil, errors.Wrapf(ErrContractNotFound, "%s", label)
	}

	return contract, nil
}

// cloneContracts copies the registry, rebinding every contract to node.
func (c *container) cloneContracts(node *execution.Node) map[string]*contracts.Contract {
	c.contractsMu.RLock()
	defer c.contractsMu.RUnlock()

	clone := make(map[string]*contracts.Contract, len(c.contracts))
	for label, contract := range c.contracts {
		clone[label] = contract.Rebind(node)
	}

	return clone
}

// teardown releases everything the container owns. Failures are logged and
// skipped so one broken step does not leak the rest.
func (c *container) teardown(ctx context.Context) {
	if c.releaseFork != nil {
		c.releaseFork(ctx)

		return
	}

	if c.node != nil {
		if err := c.node.Stop(ctx); err != nil {
			c.log.WithError(err).Warn("Failed to stop execution node")
		}
	}

	if c.ownsProvider && c.provider != nil {
		if err := c.provider.Stop(ctx); err != nil {
			c.log.WithError(err).Warn("Failed to stop provider")
		}
	}
}
