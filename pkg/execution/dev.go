package execution

import (
	"context"
	"math/big"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrUnsupported is returned when the connected client lacks the dev RPC
// capability an operation needs.
var ErrUnsupported = errors.New("operation not supported by client")

// DevClient exposes the state manipulation RPC surface of development nodes.
// Every method is capability-gated on the connected implementation, so
// callers get a typed error instead of an opaque RPC failure when talking to
// a client that cannot do what was asked.
type DevClient struct {
	log            logrus.FieldLogger
	client         *rpc.Client
	implementation clients.Client
	metrics        *Metrics
}

// NewDevClient wraps an RPC connection to the given client implementation.
func NewDevClient(log logrus.FieldLogger, client *rpc.Client, implementation clients.Client, metrics *Metrics) *DevClient {
	return &DevClient{
		log:            log.WithField("module", "workspaces/execution/dev"),
		client:         client,
		implementation: implementation,
		metrics:        metrics,
	}
}

// Implementation returns the client implementation the dev RPC is gated on.
func (d *DevClient) Implementation() clients.Client {
	return d.implementation
}

func (d *DevClient) requires(capability string, ok bool) error {
	if !ok {
		return errors.Wrapf(ErrUnsupported, "%s does not support %s", d.implementation, capability)
	}

	return nil
}

func (d *DevClient) record(op string) {
	if d.metrics != nil {
		d.metrics.IncStateOp(op)
	}

	d.log.WithField("op", op).Debug("Dev RPC state operation")
}

// Snapshot captures the current node state and returns a handle that can be
// passed to Revert. Handles are consumed by anvil on revert.
func (d *DevClient) Snapshot(ctx context.Context) (string, error) {
	if err := d.requires("evm_snapshot", clients.SupportsSnapshot(d.implementation)); err != nil {
		return "", err
	}

	var id hexutil.Big

	if err := d.client.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", errors.Wrap(err, "evm_snapshot failed")
	}

	d.record("snapshot")

	return id.String(), nil
}

// Revert rolls the node back to a snapshot handle.
func (d *DevClient) Revert(ctx context.Context, id string) error {
	if err := d.requires("evm_revert", clients.SupportsSnapshot(d.implementation)); err != nil {
		return err
	}

	var ok bool

	if err := d.client.CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return errors.Wrap(err, "evm_revert failed")
	}

	if !ok {
		return errors.Errorf("snapshot %s is unknown or already consumed", id)
	}

	d.record("revert")

	return nil
}

// IncreaseTime advances the node clock by d and mines a block so the new
// timestamp is observable.
func (d *DevClient) IncreaseTime(ctx context.Context, duration time.Duration) error {
	if err := d.requires("evm_increaseTime", clients.SupportsTimeTravel(d.implementation)); err != nil {
		return err
	}

	seconds := int64(duration / time.Second)
	if seconds <= 0 {
		return errors.Errorf("duration must be at least one second, got %s", duration)
	}

	if err := d.client.CallContext(ctx, nil, "evm_increaseTime", seconds); err != nil {
		return errors.Wrap(err, "evm_increaseTime failed")
	}

	if err := d.client.CallContext(ctx, nil, "evm_mine"); err != nil {
		return errors.Wrap(err, "evm_mine failed")
	}

	d.record("increase_time")

	return nil
}

// Mine mines the requested number of blocks immediately.
func (d *DevClient) Mine(ctx context.Context, blocks uint64) error {
	if err := d.requires("mine", clients.SupportsTimeTravel(d.implementation)); err != nil {
		return err
	}

	var err error

	switch d.implementation {
	case clients.ClientAnvil:
		err = d.client.CallContext(ctx, nil, "anvil_mine", hexutil.Uint64(blocks))
	case clients.ClientHardhat:
		err = d.client.CallContext(ctx, nil, "hardhat_mine", hexutil.Uint64(blocks))
	default:
		for i := uint64(0); i < blocks && err == nil; i++ {
			err = d.client.CallContext(ctx, nil, "evm_mine")
		}
	}

	if err != nil {
		return errors.Wrap(err, "mine failed")
	}

	d.record("mine")

	return nil
}

// SetBalance overwrites the balance of an address.
func (d *DevClient) SetBalance(ctx context.Context, address common.Address, amount *big.Int) error {
	if err := d.requires("setBalance", clients.SupportsStatePatch(d.implementation)); err != nil {
		return err
	}

	method := clients.DevNamespace(d.implementation) + "_setBalance"
	if err := d.client.CallContext(ctx, nil, method, address, (*hexutil.Big)(amount)); err != nil {
		return errors.Wrapf(err, "%s failed", method)
	}

	d.record("set_balance")

	return nil
}

// SetCode overwrites the contract code at an address.
func (d *DevClient) SetCode(ctx context.Context, address common.Address, code []byte) error {
	if err := d.requires("setCode", clients.SupportsStatePatch(d.implementation)); err != nil {
		return err
	}

	method := clients.DevNamespace(d.implementation) + "_setCode"
	if err := d.client.CallContext(ctx, nil, method, address, hexutil.Bytes(code)); err != nil {
		return errors.Wrapf(err, "%s failed", method)
	}

	d.record("set_code")

	return nil
}

// SetStorageAt overwrites a single storage slot of an address.
func (d *DevClient) SetStorageAt(ctx context.Context, address common.Address, slot, value common.Hash) error {
	if err := d.requires("setStorageAt", clients.SupportsStatePatch(d.implementation)); err != nil {
		return err
	}

	method := clients.DevNamespace(d.implementation) + "_setStorageAt"
	if err := d.client.CallContext(ctx, nil, method, address, slot, value); err != nil {
		return errors.Wrapf(err, "%s failed", method)
	}

	d.record("set_storage")

	return nil
}

// DumpState serializes the node's full world state into an opaque blob that
// LoadState accepts. Only anvil supports this.
func (d *DevClient) DumpState(ctx context.Context) ([]byte, error) {
	if err := d.requires("anvil_dumpState", clients.SupportsStateDump(d.implementation)); err != nil {
		return nil, err
	}

	var state hexutil.Bytes

	if err := d.client.CallContext(ctx, &state, "anvil_dumpState"); err != nil {
		return nil, errors.Wrap(err, "anvil_dumpState failed")
	}

	d.record("dump_state")

	return state, nil
}

// LoadState restores a state blob previously produced by DumpState. The
// loaded state is merged over the current chain, so it is typically applied
// to a fresh node.
func (d *DevClient) LoadState(ctx context.Context, state []byte) error {
	if err := d.requires("anvil_loadState", clients.SupportsStateDump(d.implementation)); err != nil {
		return err
	}

	var ok bool

	if err := d.client.CallContext(ctx, &ok, "anvil_loadState", hexutil.Bytes(state)); err != nil {
		return errors.Wrap(err, "anvil_loadState failed")
	}

	if !ok {
		return errors.New("anvil_loadState was rejected by the node")
	}

	d.record("load_state")

	return nil
}
