package workspaces

import (
	"context"
	"math/big"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/accounts"
	"github.com/Edgewood-TD/workspaces-go/pkg/contracts"
	"github.com/Edgewood-TD/workspaces-go/pkg/execution"
	"github.com/Edgewood-TD/workspaces-go/pkg/networks"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Workspace is one isolated environment handed to a callback: a node handle,
// a funded root account and the registries provisioned by the init callback.
type Workspace struct {
	log    logrus.FieldLogger
	runner *Runner
	c      *container
}

func newWorkspace(r *Runner, c *container) *Workspace {
	return &Workspace{
		log:    r.log,
		runner: r,
		c:      c,
	}
}

// Network returns the network mode the workspace runs against.
func (w *Workspace) Network() networks.NetworkName {
	return w.c.network
}

// Client returns the execution node handle for raw RPC access.
func (w *Workspace) Client() *execution.Node {
	return w.c.node
}

// RPCAddress returns the HTTP JSON-RPC endpoint of the workspace node.
func (w *Workspace) RPCAddress() string {
	return w.c.endpoint.RPCURL
}

// Root returns the funded root account.
func (w *Workspace) Root() *accounts.Account {
	return w.c.root
}

// CreateAccount creates a fresh account under label and funds it from the
// root account with the configured initial balance.
func (w *Workspace) CreateAccount(ctx context.Context, label string) (*accounts.Account, error) {
	account, err := w.c.accounts.Create(label)
	if err != nil {
		return nil, err
	}

	amount := etherToWei(w.runner.config.InitBalance)

	if _, err := w.c.node.Transfer(ctx, w.c.root, account.Address(), amount); err != nil {
		return nil, errors.Wrapf(err, "failed to fund account %s", label)
	}

	return account, nil
}

// CreateAccounts creates and funds one account per label. Accounts are
// created up front and funded concurrently.
func (w *Workspace) CreateAccounts(ctx context.Context, labels ...string) ([]*accounts.Account, error) {
	created := make([]*accounts.Account, len(labels))

	for i, label := range labels {
		account, err := w.c.accounts.Create(label)
		if err != nil {
			return nil, err
		}

		created[i] = account
	}

	amount := etherToWei(w.runner.config.InitBalance)

	group, groupCtx := errgroup.WithContext(ctx)

	for _, account := range created {
		group.Go(func() error {
			if _, err := w.c.node.Transfer(groupCtx, w.c.root, account.Address(), amount); err != nil {
				return errors.Wrapf(err, "failed to fund account %s", account.Label())
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return created, nil
}

// Account returns the account registered under label.
func (w *Workspace) Account(label string) (*accounts.Account, error) {
	return w.c.accounts.Get(label)
}

// MustAccount returns the account registered under label, panicking when it
// does not exist.
func (w *Workspace) MustAccount(label string) *accounts.Account {
	return w.c.accounts.MustGet(label)
}

// Accounts returns every registered account.
func (w *Workspace) Accounts() []*accounts.Account {
	return w.c.accounts.List()
}

// DeployContract deploys a contract from the root account and registers it
// under label. Constructor arguments are packed per the ABI.
func (w *Workspace) DeployContract(ctx context.Context, label, abiJSON string, bytecode []byte, args ...interface{}) (*contracts.Contract, error) {
	contract, err := contracts.Deploy(ctx, w.log, w.c.node, w.c.root, label, abiJSON, bytecode, args...)
	if err != nil {
		return nil, err
	}

	if err := w.c.registerContract(contract); err != nil {
		return nil, err
	}

	return contract, nil
}

// Contract returns the contract registered under label.
func (w *Workspace) Contract(label string) (*contracts.Contract, error) {
	return w.c.getContract(label)
}

// MustContract returns the contract registered under label, panicking when
// it does not exist.
func (w *Workspace) MustContract(label string) *contracts.Contract {
	contract, err := w.c.getContract(label)
	if err != nil {
		panic(err)
	}

	return contract
}

// Transfer moves value from a registered account to an address.
func (w *Workspace) Transfer(ctx context.Context, from *accounts.Account, to common.Address, amount *big.Int) error {
	if _, err := w.c.node.Transfer(ctx, from, to, amount); err != nil {
		return err
	}

	return nil
}

// Balance returns the current balance of an address.
func (w *Workspace) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	return w.c.node.Balance(ctx, address)
}

// requireSandbox guards helpers that mutate chain state out of band.
func (w *Workspace) requireSandbox() error {
	if w.c.network != networks.NetworkNameSandbox {
		return ErrNotSandbox
	}

	return nil
}

// FastForward mines the given number of blocks. Sandbox only.
func (w *Workspace) FastForward(ctx context.Context, blocks uint64) error {
	if err := w.requireSandbox(); err != nil {
		return err
	}

	return w.c.node.Dev().Mine(ctx, blocks)
}

// IncreaseTime advances chain time by duration and mines a block so the new
// timestamp is observable. Sandbox only.
func (w *Workspace) IncreaseTime(ctx context.Context, duration time.Duration) error {
	if err := w.requireSandbox(); err != nil {
		return err
	}

	if err := w.c.node.Dev().IncreaseTime(ctx, duration); err != nil {
		return err
	}

	return w.c.node.Dev().Mine(ctx, 1)
}

// SetBalance overwrites the balance of an address. Sandbox only.
func (w *Workspace) SetBalance(ctx context.Context, address common.Address, amount *big.Int) error {
	if err := w.requireSandbox(); err != nil {
		return err
	}

	return w.c.node.Dev().SetBalance(ctx, address, amount)
}

// SetCode overwrites the code of an address. Sandbox only.
func (w *Workspace) SetCode(ctx context.Context, address common.Address, code []byte) error {
	if err := w.requireSandbox(); err != nil {
		return err
	}

	return w.c.node.Dev().SetCode(ctx, address, code)
}

// SetStorageAt overwrites one storage slot of an address. Sandbox only.
func (w *Workspace) SetStorageAt(ctx context.Context, address common.Address, slot, value common.Hash) error {
	if err := w.requireSandbox(); err != nil {
		return err
	}

	return w.c.node.Dev().SetStorageAt(ctx, address, slot, value)
}

// Snapshot records the current chain state and returns a handle for Revert.
// Sandbox only.
func (w *Workspace) Snapshot(ctx context.Context) (string, error) {
	if err := w.requireSandbox(); err != nil {
		return "", err
	}

	return w.c.node.Dev().Snapshot(ctx)
}

// Revert restores the chain state recorded under a snapshot handle. Sandbox
// only.
func (w *Workspace) Revert(ctx context.Context, id string) error {
	if err := w.requireSandbox(); err != nil {
		return err
	}

	if err := w.c.node.Dev().Revert(ctx, id); err != nil {
		return err
	}

	w.c.node.ResetCachedState()

	return nil
}
