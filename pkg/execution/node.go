package execution

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/cache"
	"github.com/Edgewood-TD/workspaces-go/pkg/execution/services"
	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Node wraps a JSON-RPC connection to an execution client and layers the
// harness services on top: metadata discovery, receipt tracking, nonce
// management and the dev RPC surface.
type Node struct {
	config *Config
	log    logrus.FieldLogger
	name   string
	opts   *Options

	rpc    *rpc.Client
	client *ethclient.Client
	dev    *DevClient

	services []services.Service
	metrics  *Metrics

	receipts       cache.LookupCache[common.Hash, *types.Receipt]
	receiptMetrics *cache.Metrics

	nonceMu sync.Mutex
	nonces  map[common.Address]uint64

	onReadyCallbacks []func(ctx context.Context) error
}

// NewNode dials the configured RPC endpoint and prepares the node for Start.
// Dialing an HTTP endpoint performs no network I/O, so construction is cheap
// even when the node is not up yet.
func NewNode(ctx context.Context, name string, config *Config, log logrus.FieldLogger, opts *Options) (*Node, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid execution config")
	}

	if opts == nil {
		opts = DefaultOptions()
	}

	headers := http.Header{}
	for k, v := range config.RPCHeaders {
		headers.Set(k, v)
	}

	rpcClient, err := rpc.DialOptions(ctx, config.RPCAddress, rpc.WithHeaders(headers))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", config.RPCAddress)
	}

	var (
		metrics        *Metrics
		receiptMetrics *cache.Metrics
	)

	if opts.MetricsRegisterer != nil {
		metrics = NewMetrics(opts.MetricsNamespace)
		if err := metrics.Register(opts.MetricsRegisterer); err != nil {
			return nil, errors.Wrap(err, "failed to register node metrics")
		}

		receiptMetrics = cache.NewMetrics(cache.MetricsConfig{
			Namespace: opts.MetricsNamespace,
			Name:      "receipts",
		})
		if err := receiptMetrics.Register(opts.MetricsRegisterer); err != nil {
			return nil, errors.Wrap(err, "failed to register receipt cache metrics")
		}
	}

	metadata := services.NewMetadataService(log, rpcClient, config.NetworkOverride)

	svcs := []services.Service{
		&metadata,
	}

	receipts := cache.NewLookupCacheWithConfig[common.Hash, *types.Receipt](log, cache.Config{
		TTL:     opts.ReceiptTTL,
		Metrics: receiptMetrics,
	})

	return &Node{
		config:         config,
		log:            log.WithField("module", "workspaces/execution"),
		name:           name,
		opts:           opts,
		rpc:            rpcClient,
		client:         ethclient.NewClient(rpcClient),
		services:       svcs,
		metrics:        metrics,
		receipts:       receipts,
		receiptMetrics: receiptMetrics,
		nonces:         make(map[common.Address]uint64),
	}, nil
}

// Name returns the name the node was registered under.
func (n *Node) Name() string {
	return n.name
}

// Start brings up the node services and blocks until every one of them
// reports ready or the context expires.
func (n *Node) Start(ctx context.Context) (err error) {
	if err := n.receipts.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start receipt cache")
	}

	// A failed start must not leak the cache janitor or a service scheduler.
	defer func() {
		if err == nil {
			return
		}

		stopCtx := context.WithoutCancel(ctx)

		for _, service := range n.services {
			if stopErr := service.Stop(stopCtx); stopErr != nil {
				n.log.WithError(stopErr).WithField("service", service.Name()).Warn("Failed to stop service after failed start")
			}
		}

		if stopErr := n.receipts.Stop(); stopErr != nil {
			n.log.WithError(stopErr).Warn("Failed to stop receipt cache after failed start")
		}
	}()

	for _, service := range n.services {
		ready := make(chan struct{}, 1)

		service.OnReady(ctx, func(ctx context.Context) error {
			n.log.WithField("service", service.Name()).Info("Service is ready")

			select {
			case ready <- struct{}{}:
			default:
			}

			return nil
		})

		n.log.WithField("service", service.Name()).Info("Starting service")

		if err := service.Start(ctx); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	n.log.Info("All services are ready")

	n.dev = NewDevClient(n.log, n.rpc, n.Metadata().Implementation(), n.metrics)

	for _, callback := range n.onReadyCallbacks {
		if err := callback(ctx); err != nil {
			return fmt.Errorf("failed to run on ready callback: %w", err)
		}
	}

	return nil
}

// Stop shuts down the services and closes the RPC connection.
func (n *Node) Stop(ctx context.Context) error {
	for _, service := range n.services {
		if err := service.Stop(ctx); err != nil {
			n.log.WithError(err).WithField("service", service.Name()).Warn("Failed to stop service")
		}
	}

	if err := n.receipts.Stop(); err != nil {
		n.log.WithError(err).Warn("Failed to stop receipt cache")
	}

	if n.metrics != nil {
		n.metrics.Unregister(n.opts.MetricsRegisterer)
	}

	if n.receiptMetrics != nil {
		n.receiptMetrics.Unregister(n.opts.MetricsRegisterer)
	}

	n.rpc.Close()

	return nil
}

// OnReady registers a callback invoked once all services are ready.
func (n *Node) OnReady(_ context.Context, callback func(ctx context.Context) error) {
	n.onReadyCallbacks = append(n.onReadyCallbacks, callback)
}

// RPC returns the raw RPC client.
func (n *Node) RPC() *rpc.Client {
	return n.rpc
}

// Client returns the typed RPC client.
func (n *Node) Client() *ethclient.Client {
	return n.client
}

// Dev returns the dev RPC surface. It is nil before Start completes.
func (n *Node) Dev() *DevClient {
	return n.dev
}

func (n *Node) getServiceByName(name services.Name) (services.Service, error) {
	for _, service := range n.services {
		if service.Name() == name {
			return service, nil
		}
	}

	return nil, errors.New("service not found")
}

func (n *Node) Metadata() *services.MetadataService {
	service, err := n.getServiceByName("metadata")
	if err != nil {
		// This should never happen. If it does, good luck.
		return nil
	}

	metadata, ok := service.(*services.MetadataService)
	if !ok {
		return nil
	}

	return metadata
}

// ChainID returns the chain ID reported by the node, or nil before the
// metadata service is ready.
func (n *Node) ChainID() *big.Int {
	return n.Metadata().GetChainID()
}

// Healthy reports whether the node answers a trivial RPC call.
func (n *Node) Healthy(ctx context.Context) bool {
	_, err := n.client.BlockNumber(ctx)

	return err == nil
}

// Synced checks the node is not mid-sync and all services are ready.
func (n *Node) Synced(ctx context.Context) error {
	progress, err := n.client.SyncProgress(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to fetch sync progress")
	}

	if progress != nil {
		return errors.Errorf("node is syncing, current block %d, highest %d", progress.CurrentBlock, progress.HighestBlock)
	}

	for _, service := range n.services {
		if err := service.Ready(ctx); err != nil {
			return errors.Wrapf(err, "service %s is not ready", service.Name())
		}
	}

	return nil
}

// NextNonce hands out the next nonce for an address, fetching the pending
// nonce from the node on first use and counting locally afterwards. Local
// counting keeps concurrent senders from racing the txpool.
func (n *Node) NextNonce(ctx context.Context, address common.Address) (uint64, error) {
	n.nonceMu.Lock()
	defer n.nonceMu.Unlock()

	if nonce, ok := n.nonces[address]; ok {
		n.nonces[address] = nonce + 1

		return nonce, nil
	}

	nonce, err := n.client.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to fetch nonce for %s", address.Hex())
	}

	n.nonces[address] = nonce + 1

	return nonce, nil
}

func (n *Node) forgetNonce(address common.Address) {
	n.nonceMu.Lock()
	defer n.nonceMu.Unlock()

	delete(n.nonces, address)
}

// ResetCachedState drops cached nonces and receipts. Callers must invoke it
// after reverting or loading node state out of band.
func (n *Node) ResetCachedState() {
	n.nonceMu.Lock()
	n.nonces = make(map[common.Address]uint64)
	n.nonceMu.Unlock()

	n.receipts.GetCache().DeleteAll()
}

// SendAndWait submits a signed transaction and blocks until it is mined.
func (n *Node) SendAndWait(ctx context.Context, signed *types.Transaction) (*types.Receipt, error) {
	if err := n.client.SendTransaction(ctx, signed); err != nil {
		// The nonce may now be stale, force a refetch on the next send.
		if chainID := n.ChainID(); chainID != nil {
			if sender, serr := types.Sender(types.LatestSignerForChainID(chainID), signed); serr == nil {
				n.forgetNonce(sender)
			}
		}

		return nil, errors.Wrap(err, "failed to send transaction")
	}

	if n.metrics != nil {
		n.metrics.IncTxSent()
	}

	return n.WaitForReceipt(ctx, signed.Hash())
}

// WaitForReceipt polls the node until the transaction is mined. Mined
// receipts are cached, so repeated lookups of the same hash are free.
func (n *Node) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if receipt, ok := n.receipts.Get(hash); ok {
		return receipt, nil
	}

	started := time.Now()

	operation := func() (*types.Receipt, error) {
		receipt, err := n.client.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return nil, err
			}

			return nil, backoff.Permanent(err)
		}

		return receipt, nil
	}

	receipt, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(n.opts.ReceiptPollInterval)),
		backoff.WithMaxElapsedTime(n.opts.ReceiptTimeout),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed waiting for receipt of %s", hash.Hex())
	}

	n.receipts.Set(hash, receipt)

	if n.metrics != nil {
		n.metrics.ObserveReceiptWait(time.Since(started))
	}

	return receipt, nil
}

// BuildTx assembles an unsigned dynamic fee transaction from current chain
// conditions: next nonce, suggested tip, a fee cap of tip plus twice the base
// fee, and estimated gas. A nil to means contract creation.
func (n *Node) BuildTx(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	chainID := n.ChainID()
	if chainID == nil {
		return nil, errors.New("chain ID is not available")
	}

	nonce, err := n.NextNonce(ctx, from)
	if err != nil {
		return nil, err
	}

	tip, err := n.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch gas tip cap")
	}

	head, err := n.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch head")
	}

	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas := params.TxGas

	if len(data) > 0 || to == nil {
		gas, err = n.client.EstimateGas(ctx, ethereum.CallMsg{
			From:      from,
			To:        to,
			Value:     value,
			Data:      data,
			GasTipCap: tip,
			GasFeeCap: feeCap,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to estimate gas")
		}
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        to,
		Value:     value,
		Data:      data,
	}), nil
}

// Transfer moves amount wei from the signer to an address and waits for the
// transfer to be mined.
func (n *Node) Transfer(ctx context.Context, from Signer, to common.Address, amount *big.Int) (*types.Receipt, error) {
	tx, err := n.BuildTx(ctx, from.Address(), &to, amount, nil)
	if err != nil {
		return nil, err
	}

	signed, err := from.SignTx(tx, n.ChainID())
	if err != nil {
		return nil, err
	}

	return n.SendAndWait(ctx, signed)
}

// Balance returns the current balance of an address.
func (n *Node) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := n.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch balance of %s", address.Hex())
	}

	return balance, nil
}
