package services

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/Edgewood-TD/workspaces-go/pkg/networks"
	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// MetadataService keeps the identity of the connected node fresh: chain ID,
// client version and genesis hash. Everything else in the harness keys off
// this service, so it is the first thing started after dialing.
type MetadataService struct {
	client           *rpc.Client
	log              logrus.FieldLogger
	Network          *networks.Network
	chainID          *big.Int
	clientVersion    string
	implementation   clients.Client
	scheduler        gocron.Scheduler
	genesisHash      common.Hash
	onReadyCallbacks []func(context.Context) error
	networkOverride  string
	startErr         error
	mu               sync.Mutex
}

func NewMetadataService(log logrus.FieldLogger, client *rpc.Client, networkOverride string) MetadataService {
	return MetadataService{
		client:           client,
		log:              log.WithField("module", "workspaces/execution/metadata"),
		Network:          &networks.Network{Name: networks.NetworkNameUnknown},
		implementation:   clients.ClientUnknown,
		onReadyCallbacks: []func(context.Context) error{},
		networkOverride:  networkOverride,
	}
}

func (m *MetadataService) Name() Name {
	return "metadata"
}

func (m *MetadataService) Start(ctx context.Context) error {
	go func() {
		operation := func() (string, error) {
			if err := m.RefreshAll(ctx); err != nil {
				return "", err
			}

			return "", nil
		}

		retryOpts := []backoff.RetryOption{
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithNotify(func(err error, duration time.Duration) {
				m.log.WithError(err).Warnf("Failed to refresh metadata, retrying in %s", duration)
			}),
		}

		// The retry only gives up when the context does. Record the error
		// instead of escalating: the caller owns the context and observes
		// the failure through its own deadline.
		if _, err := backoff.Retry(ctx, operation, retryOpts...); err != nil {
			m.log.WithError(err).Warn("Failed to refresh metadata")
			m.setStartError(err)

			return
		}

		if err := m.DeriveNetwork(ctx); err != nil {
			m.log.WithError(err).Error("Failed to derive network")
			m.setStartError(err)

			return
		}

		if err := m.Ready(ctx); err != nil {
			m.log.WithError(err).Warn("Failed to check metadata service readiness")
		}

		m.log.Debug("Metadata service is ready")

		for _, cb := range m.onReadyCallbacks {
			if err := cb(ctx); err != nil {
				m.log.WithError(err).Warn("Failed to execute onReady callback")
			}
		}
	}()

	s, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(
			func(ctx context.Context) {
				_ = m.RefreshAll(ctx)
			},
			ctx,
		),
	); err != nil {
		return err
	}

	s.Start()

	m.scheduler = s

	return nil
}

func (m *MetadataService) Stop(_ context.Context) error {
	if m.scheduler != nil {
		return m.scheduler.Shutdown()
	}

	return nil
}

func (m *MetadataService) OnReady(_ context.Context, cb func(context.Context) error) {
	m.onReadyCallbacks = append(m.onReadyCallbacks, cb)
}

func (m *MetadataService) setStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startErr = err
}

func (m *MetadataService) Ready(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}

	if m.chainID == nil {
		return errors.New("chain ID is not available")
	}

	if m.clientVersion == "" {
		return errors.New("client version is not available")
	}

	if m.genesisHash == (common.Hash{}) {
		return errors.New("genesis hash is not available")
	}

	return nil
}

func (m *MetadataService) RefreshAll(ctx context.Context) error {
	if err := m.fetchChainID(ctx); err != nil {
		return err
	}

	if err := m.fetchClientVersion(ctx); err != nil {
		m.log.WithError(err).Warn("Failed to fetch client version for refresh")
	}

	if err := m.fetchGenesisHash(ctx); err != nil {
		m.log.WithError(err).Warn("Failed to fetch genesis hash for refresh")
	}

	return nil
}

// DeriveNetwork maps the reported chain ID to a known network, applying the
// configured override for testnets that are not in our list.
func (m *MetadataService) DeriveNetwork(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.chainID == nil {
		return errors.New("chain ID is not available")
	}

	network := networks.DeriveFromID(m.chainID.Uint64())

	if m.networkOverride != "" && network.Name == networks.NetworkNameTestnet {
		m.log.WithFields(logrus.Fields{
			"derived_network":  network.Name,
			"override_network": m.networkOverride,
			"chain_id":         m.chainID,
		}).Info("Applying testnet network name override")

		network = &networks.Network{
			Name: networks.NetworkName(m.networkOverride),
			ID:   network.ID,
		}
	}

	m.log.WithFields(logrus.Fields{
		"name":     network.Name,
		"id":       network.ID,
		"chain_id": m.chainID,
	}).Debug("Detected network")

	m.Network = network

	return nil
}

// GetChainID returns the chain ID reported by the node, or nil before the
// first successful refresh.
func (m *MetadataService) GetChainID() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.chainID == nil {
		return nil
	}

	return new(big.Int).Set(m.chainID)
}

func (m *MetadataService) GetClientVersion() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.clientVersion
}

func (m *MetadataService) GetGenesisHash() common.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.genesisHash
}

func (m *MetadataService) GetNetwork() *networks.Network {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Network == nil {
		return nil
	}

	// Return a copy to prevent external modification
	network := *m.Network

	return &network
}

// Implementation identifies which execution client is on the other side of
// the connection. It is ClientUnknown before the first version fetch.
func (m *MetadataService) Implementation() clients.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.implementation
}

func (m *MetadataService) fetchChainID(ctx context.Context) error {
	var result hexutil.Big

	if err := m.client.CallContext(ctx, &result, "eth_chainId"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.chainID = (*big.Int)(&result)

	return nil
}

func (m *MetadataService) fetchClientVersion(ctx context.Context) error {
	var version string

	if err := m.client.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
		return err
	}

	// The first segment of the version string names the client. Matching on
	// that segment alone keeps embedded runtimes out of the picture, e.g.
	// "HardhatNetwork/2.22.5/@ethereumjs/vm/7.2.1".
	implementation, semver, _, _, _ := clients.ParseClientVersion(version)

	m.mu.Lock()
	m.clientVersion = version
	m.implementation = clients.ClientFromString(implementation)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"implementation": implementation,
		"version":        semver,
	}).Debug("Detected execution client")

	return nil
}

func (m *MetadataService) fetchGenesisHash(ctx context.Context) error {
	var block struct {
		Hash common.Hash `json:"hash"`
	}

	if err := m.client.CallContext(ctx, &block, "eth_getBlockByNumber", "0x0", false); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.genesisHash = block.Hash

	return nil
}
