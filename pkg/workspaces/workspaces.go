package workspaces

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/accounts"
	"github.com/Edgewood-TD/workspaces-go/pkg/contracts"
	"github.com/Edgewood-TD/workspaces-go/pkg/execution"
	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/Edgewood-TD/workspaces-go/pkg/networks"
	"github.com/Edgewood-TD/workspaces-go/pkg/sandbox"
	"github.com/Edgewood-TD/workspaces-go/pkg/sandbox/kurtosis"
	"github.com/Edgewood-TD/workspaces-go/pkg/snapshot"
	"github.com/chuckpreslar/emission"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxSnapshotBytes bounds the decompressed size of persisted state dumps.
const maxSnapshotBytes = 1 << 30

// baseSnapshotName is the name the post-init state dump is persisted under.
const baseSnapshotName = "base"

// RootLabel is the label the funded root account is registered under.
const RootLabel = "root"

// InitFn provisions the base environment: create accounts, deploy contracts.
// It runs once per runner in sandbox mode and once per run on replay-based
// networks.
type InitFn func(ctx context.Context, w *Workspace) error

// Fn is a per-test callback executed against an isolated workspace.
type Fn func(ctx context.Context, w *Workspace) error

// Runner binds an init callback to a network mode and executes test
// callbacks against forks of the provisioned environment.
type Runner struct {
	log     logrus.FieldLogger
	config  *Config
	network networks.NetworkName
	init    InitFn

	broker         *emission.Emitter
	metrics        *Metrics
	sandboxMetrics *sandbox.Metrics
	store          *snapshot.Store

	bootstrapOnce sync.Once
	bootstrapErr  error
	base          *container
	baseState     []byte

	// forkMu serializes snapshot-revert forks, which share the base node.
	forkMu         sync.Mutex
	baseSnapshotID string

	mu     sync.Mutex
	closed bool
}

// New creates a runner with default configuration: network mode from the
// environment, sandbox defaults otherwise.
func New(log logrus.FieldLogger, init InitFn) (*Runner, error) {
	return NewWithConfig(log, nil, init)
}

// NewWithConfig creates a runner with explicit configuration. A nil config
// behaves exactly like New.
func NewWithConfig(log logrus.FieldLogger, config *Config, init InitFn) (*Runner, error) {
	if log == nil {
		log = logrus.New()
	}

	if init == nil {
		return nil, ErrNoInitFn
	}

	resolved, err := ResolveConfig(config)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		log:     log.WithField("module", "workspaces"),
		config:  resolved,
		network: resolved.Network,
		init:    init,
		broker:  emission.NewEmitter(),
	}

	if resolved.MetricsRegisterer != nil {
		r.metrics = NewMetrics(metricsNamespace)
		if err := r.metrics.Register(resolved.MetricsRegisterer); err != nil {
			return nil, errors.Wrap(err, "failed to register runner metrics")
		}

		r.sandboxMetrics = sandbox.NewMetrics(metricsNamespace)
		if err := r.sandboxMetrics.Register(resolved.MetricsRegisterer); err != nil {
			return nil, errors.Wrap(err, "failed to register sandbox metrics")
		}
	}

	if resolved.SnapshotDir != "" {
		r.store = snapshot.NewStore(r.log, resolved.SnapshotDir, maxSnapshotBytes)
	}

	return r, nil
}

// Network returns the network mode the runner is bound to.
func (r *Runner) Network() networks.NetworkName {
	return r.network
}

// Config returns the resolved runner configuration.
func (r *Runner) Config() *Config {
	return r.config
}

// Run bootstraps the base environment on first use, derives an isolated
// workspace from it, executes fn and tears the workspace down again.
func (r *Runner) Run(ctx context.Context, fn Fn) error {
	if fn == nil {
		return errors.New("a run function is required")
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return ErrRunnerClosed
	}

	if err := r.bootstrap(ctx); err != nil {
		return err
	}

	// Close may have raced the bootstrap; take the base under the lock so a
	// torn-down runner fails cleanly instead of forking a nil container.
	r.mu.Lock()
	base := r.base
	r.mu.Unlock()

	if base == nil {
		return ErrRunnerClosed
	}

	r.emitBeforeFork()

	c, err := r.fork(ctx, base)
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncRun(string(r.network), "fork_error")
		}

		return errors.Wrap(err, "failed to fork workspace")
	}

	ws := newWorkspace(r, c)
	r.emitAfterFork(ws)

	defer func() {
		r.emitBeforeTeardown(ws)
		c.teardown(context.WithoutCancel(ctx))
		r.emitAfterTeardown()
	}()

	if err := fn(ctx, ws); err != nil {
		if r.metrics != nil {
			r.metrics.IncRun(string(r.network), "error")
		}

		return err
	}

	if r.metrics != nil {
		r.metrics.IncRun(string(r.network), "ok")
	}

	return nil
}

// RunSandbox is Run when the runner is bound to a sandbox, and a no-op
// returning nil otherwise. Use it for tests that only make sense against a
// disposable local chain, such as time travel or state patching.
func (r *Runner) RunSandbox(ctx context.Context, fn Fn) error {
	if r.network != networks.NetworkNameSandbox {
		r.log.WithField("network", r.network).Debug("Skipping sandbox-only run")

		return nil
	}

	return r.Run(ctx, fn)
}

// Close tears down the base environment. Further Runs fail with
// ErrRunnerClosed. Close is idempotent.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()

		return nil
	}

	r.closed = true
	base := r.base
	r.base = nil
	r.mu.Unlock()

	if base != nil {
		if r.config.KeepAlive {
			r.log.Info("Keep-alive set, leaving base environment running")
		} else {
			base.teardown(ctx)
		}
	}

	if r.metrics != nil {
		r.metrics.Unregister(r.config.MetricsRegisterer)
	}

	if r.sandboxMetrics != nil {
		r.sandboxMetrics.Unregister(r.config.MetricsRegisterer)
	}

	return nil
}

// bootstrap builds the base environment exactly once, memoizing the error.
func (r *Runner) bootstrap(ctx context.Context) error {
	r.bootstrapOnce.Do(func() {
		r.bootstrapErr = r.buildBase(ctx)
	})

	return r.bootstrapErr
}

func (r *Runner) buildBase(ctx context.Context) error {
	r.emitBeforeBootstrap(r.config)

	started := time.Now()

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	provider, ownsProvider := r.buildProvider()

	r.log.WithFields(logrus.Fields{
		"network":  r.network,
		"provider": provider.Name(),
	}).Info("Bootstrapping base environment")

	endpoint, err := provider.Start(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to start %s provider", provider.Name())
	}

	node, err := r.startNode(ctx, "base", endpoint)
	if err != nil {
		if ownsProvider {
			if stopErr := provider.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				r.log.WithError(stopErr).Warn("Failed to stop provider after failed bootstrap")
			}
		}

		return err
	}

	implementation := node.Dev().Implementation()

	c := &container{
		log:          r.log,
		network:      r.network,
		strategy:     pickStrategy(r.network, ownsProvider, implementation),
		provider:     provider,
		ownsProvider: ownsProvider,
		endpoint:     endpoint,
		node:         node,
		contracts:    make(map[string]*contracts.Contract),
	}

	if err := r.provisionRoot(ctx, c); err != nil {
		c.teardown(context.WithoutCancel(ctx))

		return err
	}

	ws := newWorkspace(r, c)

	if err := r.init(ctx, ws); err != nil {
		c.teardown(context.WithoutCancel(ctx))

		return errors.Wrap(err, "init callback failed")
	}

	if err := r.captureBaseState(ctx, c); err != nil {
		c.teardown(context.WithoutCancel(ctx))

		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.teardown(context.WithoutCancel(ctx))

		return ErrRunnerClosed
	}

	r.base = c
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ObserveBootstrap(time.Since(started))
	}

	r.log.WithFields(logrus.Fields{
		"strategy": c.strategy,
		"duration": time.Since(started),
	}).Info("Base environment is ready")

	r.emitAfterBootstrap(ws)

	return nil
}

// buildProvider picks the endpoint provider for the network mode.
func (r *Runner) buildProvider() (sandbox.Provider, bool) {
	if r.network == networks.NetworkNameSandbox && r.config.RPCAddress == "" {
		if r.config.Devnet != nil {
			return kurtosis.NewProvider(r.log, r.config.Devnet), true
		}

		return sandbox.NewServer(r.log, r.config.Sandbox, r.sandboxMetrics), true
	}

	return sandbox.NewStaticProvider(r.config.RPCAddress), false
}

// startNode dials and starts an execution node against an endpoint.
func (r *Runner) startNode(ctx context.Context, name string, endpoint *sandbox.Endpoint) (*execution.Node, error) {
	opts := execution.DefaultOptions()

	// Only the base node registers collectors: forks would collide on the
	// same metric names.
	if name == "base" && r.config.MetricsRegisterer != nil {
		opts.MetricsNamespace = metricsNamespace
		opts.MetricsRegisterer = r.config.MetricsRegisterer
	}

	node, err := execution.NewNode(ctx, name, &execution.Config{
		RPCAddress: endpoint.RPCURL,
	}, r.log, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create execution node")
	}

	if err := node.Start(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to start execution node")
	}

	return node, nil
}

// provisionRoot sets up the funded root account and the account registry.
func (r *Runner) provisionRoot(ctx context.Context, c *container) error {
	manager := accounts.NewManager(r.log)

	var root *accounts.Account

	if r.network == networks.NetworkNameSandbox {
		count := r.config.Sandbox.Accounts
		if count <= 0 {
			count = 1
		}

		devAccounts, err := accounts.DeriveDevAccounts(count, r.config.Sandbox.Mnemonic)
		if err != nil {
			return errors.Wrap(err, "failed to derive dev accounts")
		}

		root = devAccounts[0].WithLabel(RootLabel)

		// The remaining prefunded dev accounts are registered as-is so
		// callbacks can use them without a funding round trip.
		for _, dev := range devAccounts[1:] {
			if err := manager.Add(dev); err != nil {
				return err
			}
		}
	} else {
		var err error

		root, err = accounts.FromPrivateKey(RootLabel, r.config.RootPrivateKey)
		if err != nil {
			return errors.Wrap(err, "invalid root private key")
		}
	}

	if err := manager.Add(root); err != nil {
		return err
	}

	balance, err := c.node.Balance(ctx, root.Address())
	if err != nil {
		return errors.Wrap(err, "failed to check root balance")
	}

	if balance.Sign() == 0 {
		implementation := c.node.Dev().Implementation()
		if clients.SupportsStatePatch(implementation) {
			if err := c.node.Dev().SetBalance(ctx, root.Address(), etherToWei(r.config.Sandbox.Balance)); err != nil {
				return errors.Wrap(err, "failed to fund root account")
			}
		} else {
			r.log.WithField("address", root.Address().Hex()).Warn("Root account has no balance and the node cannot patch state")
		}
	}

	c.accounts = manager
	c.root = root

	return nil
}

// captureBaseState records the post-init state so forks can start from it.
func (r *Runner) captureBaseState(ctx context.Context, c *container) error {
	switch c.strategy {
	case forkStateCopy:
		state, err := c.node.Dev().DumpState(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to dump base state")
		}

		r.baseState = state

		if r.store != nil {
			if err := r.store.Save(baseSnapshotName, state); err != nil {
				r.log.WithError(err).Warn("Failed to persist base state snapshot")
			}
		}
	case forkSnapshotRevert:
		id, err := c.node.Dev().Snapshot(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to snapshot base state")
		}

		r.baseSnapshotID = id
	case forkReplay:
		// Nothing to capture: replay reruns provisioning per run.
	}

	return nil
}

// fork derives an isolated container from the base per its strategy.
func (r *Runner) fork(ctx context.Context, base *container) (*container, error) {
	if r.metrics != nil {
		r.metrics.IncFork(string(base.strategy))
	}

	switch base.strategy {
	case forkStateCopy:
		return r.forkByStateCopy(ctx, base)
	case forkSnapshotRevert:
		return r.forkBySnapshotRevert(ctx, base)
	default:
		return r.forkByReplay(ctx, base)
	}
}

// forkByStateCopy spawns a fresh node and loads the base state dump into it.
func (r *Runner) forkByStateCopy(ctx context.Context, base *container) (*container, error) {
	config := *r.config.Sandbox
	// A fixed port belongs to the base node; forks always pick their own.
	config.Port = 0

	server := sandbox.NewServer(r.log, &config, r.sandboxMetrics)

	endpoint, err := server.Start(ctx)
	if err != nil {
		return nil, err
	}

	node, err := r.startNode(ctx, "fork", endpoint)
	if err != nil {
		if stopErr := server.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			r.log.WithError(stopErr).Warn("Failed to stop fork node after failed start")
		}

		return nil, err
	}

	if err := node.Dev().LoadState(ctx, r.baseStateDump()); err != nil {
		if stopErr := server.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			r.log.WithError(stopErr).Warn("Failed to stop fork node after failed state load")
		}

		return nil, errors.Wrap(err, "failed to load base state into fork")
	}

	node.ResetCachedState()

	return &container{
		log:          r.log,
		network:      r.network,
		strategy:     base.strategy,
		provider:     server,
		ownsProvider: true,
		endpoint:     endpoint,
		node:         node,
		accounts:     base.accounts.Clone(),
		root:         base.root,
		contracts:    base.cloneContracts(node),
	}, nil
}

// baseStateDump hands forks the post-init state, preferring the persisted
// snapshot so large dumps are not pinned in memory twice. A missing or
// corrupt file falls back to the in-memory copy; corrupt files are removed
// so later forks stop tripping over them.
func (r *Runner) baseStateDump() []byte {
	if r.store == nil {
		return r.baseState
	}

	state, err := r.store.Load(baseSnapshotName)
	if err != nil {
		if errors.Is(err, snapshot.ErrInvalidSnapshot) {
			if deleteErr := r.store.Delete(baseSnapshotName); deleteErr != nil {
				r.log.WithError(deleteErr).Warn("Failed to remove corrupt base snapshot")
			}
		}

		r.log.WithError(err).Warn("Failed to load persisted base state, using in-memory copy")

		return r.baseState
	}

	return state
}

// forkBySnapshotRevert reuses the base node and reverts it on teardown.
// Forks are serialized: the node has only one state.
func (r *Runner) forkBySnapshotRevert(_ context.Context, base *container) (*container, error) {
	r.forkMu.Lock()

	release := func(ctx context.Context) {
		defer r.forkMu.Unlock()

		if err := base.node.Dev().Revert(ctx, r.baseSnapshotID); err != nil {
			r.log.WithError(err).Warn("Failed to revert fork state")

			return
		}

		// Anvil consumes snapshot handles on revert, take a fresh one.
		id, err := base.node.Dev().Snapshot(ctx)
		if err != nil {
			r.log.WithError(err).Warn("Failed to re-snapshot base state")

			return
		}

		r.baseSnapshotID = id

		base.node.ResetCachedState()
	}

	return &container{
		log:          r.log,
		network:      r.network,
		strategy:     base.strategy,
		provider:     base.provider,
		ownsProvider: false,
		endpoint:     base.endpoint,
		node:         base.node,
		accounts:     base.accounts.Clone(),
		root:         base.root,
		contracts:    base.cloneContracts(base.node),
		releaseFork:  release,
	}, nil
}

// forkByReplay shares the base node and replays provisioning with fresh
// accounts, so concurrent runs stay disjoint on a shared chain.
func (r *Runner) forkByReplay(ctx context.Context, base *container) (*container, error) {
	manager := accounts.NewManager(r.log)
	if err := manager.Add(base.root); err != nil {
		return nil, err
	}

	c := &container{
		log:          r.log,
		network:      r.network,
		strategy:     base.strategy,
		provider:     base.provider,
		ownsProvider: false,
		endpoint:     base.endpoint,
		node:         base.node,
		accounts:     manager,
		root:         base.root,
		contracts:    make(map[string]*contracts.Contract),
		// The node is shared with the base, nothing to release.
		releaseFork: func(context.Context) {},
	}

	ws := newWorkspace(r, c)

	if err := r.init(ctx, ws); err != nil {
		return nil, errors.Wrap(err, "init callback failed during replay")
	}

	return c, nil
}

// etherToWei converts a whole-ether amount to wei.
func etherToWei(amount uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(params.Ether))
}
