package kurtosis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/Edgewood-TD/workspaces-go/pkg/sandbox"
	"github.com/ethpandaops/beacon/pkg/beacon"
	"github.com/ethpandaops/ethereum-package-go"
	epgconfig "github.com/ethpandaops/ethereum-package-go/pkg/config"
	"github.com/ethpandaops/ethereum-package-go/pkg/network"
	"github.com/ethpandaops/ethwallclock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Provider stands up a full multi-client devnet via kurtosis and exposes the
// first execution client as the workspace endpoint. Unlike the process
// provider there is no state dump support here, so workspace forks replay
// provisioning instead of copying state.
type Provider struct {
	log    logrus.FieldLogger
	config *Config

	mu      sync.Mutex
	network network.Network
}

// NewProvider creates a kurtosis provider with the given config.
func NewProvider(log logrus.FieldLogger, config *Config) *Provider {
	if config == nil {
		config = DefaultConfig()
	}

	return &Provider{
		log:    log.WithField("module", "workspaces/sandbox/kurtosis"),
		config: config,
	}
}

// Name identifies the provider in logs.
func (p *Provider) Name() string {
	return "kurtosis"
}

// Start creates (or reuses) the enclave, waits for chain genesis and returns
// the RPC endpoint of the first execution client.
func (p *Provider) Start(ctx context.Context) (*sandbox.Endpoint, error) {
	p.log.WithField("enclave", p.config.Name).Info("Setting up devnet")

	opts := []ethereum.RunOption{
		ethereum.WithTimeout(p.config.Timeout),
	}

	if p.config.Name != "" {
		opts = append(opts, ethereum.WithEnclaveName(p.config.Name))
	}

	if p.config.KeepAlive {
		opts = append(opts, ethereum.WithOrphanOnExit())
	}

	if p.config.LogLevel != "" {
		opts = append(opts, ethereum.WithGlobalLogLevel(p.config.LogLevel))
	}

	natIP := GetNATExitIP()
	p.log.WithField("nat_ip", natIP).Debug("Using NAT exit IP")

	opts = append(opts, ethereum.WithPortPublisher(&epgconfig.PortPublisherConfig{
		NatExitIP: natIP,
		EL: &epgconfig.PortPublisherComponent{
			Enabled:         true,
			PublicPortStart: 32000 + p.config.PortOffset,
		},
		CL: &epgconfig.PortPublisherComponent{
			Enabled:         true,
			PublicPortStart: 33000 + p.config.PortOffset,
		},
	}))

	opts = append(opts, ethereum.WithParticipants(p.participants()))

	net, err := ethereum.Run(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create devnet")
	}

	p.mu.Lock()
	p.network = net
	p.mu.Unlock()

	if err := p.waitForGenesis(ctx, net); err != nil {
		if cleanupErr := net.Cleanup(ctx); cleanupErr != nil {
			p.log.WithError(cleanupErr).Warn("Failed to cleanup devnet after genesis error")
		}

		return nil, errors.Wrap(err, "failed waiting for genesis")
	}

	executionClients := net.ExecutionClients().All()
	if len(executionClients) == 0 {
		return nil, errors.New("devnet has no execution clients")
	}

	client := executionClients[0]

	p.log.WithFields(logrus.Fields{
		"client":  client.Name(),
		"rpc_url": client.RPCURL(),
	}).Info("Devnet is ready")

	return &sandbox.Endpoint{
		RPCURL:         client.RPCURL(),
		Implementation: clients.ClientFromString(client.Name()),
	}, nil
}

// Stop destroys the enclave. A concurrently removed enclave is tolerated
// since parallel test packages may race on cleanup.
func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	net := p.network
	p.network = nil
	p.mu.Unlock()

	if net == nil {
		return nil
	}

	if p.config.KeepAlive {
		p.log.Info("Keep-alive set, leaving devnet running")

		return nil
	}

	if err := net.Cleanup(ctx); err != nil {
		if isEnclaveGone(err) {
			p.log.WithError(err).Debug("Enclave already removed, skipping cleanup")

			return nil
		}

		return errors.Wrapf(err, "failed to cleanup devnet %s", p.config.Name)
	}

	return nil
}

// waitForGenesis watches a consensus client until the chain's wallclock
// reports a slot past genesis.
func (p *Provider) waitForGenesis(ctx context.Context, net network.Network) error {
	consensusClients := net.ConsensusClients().All()
	if len(consensusClients) == 0 {
		return errors.New("devnet has no consensus clients")
	}

	opts := beacon.DefaultOptions()
	opts = opts.DisablePrometheusMetrics()
	opts.HealthCheck.Interval.Duration = 250 * time.Millisecond

	node := beacon.NewNode(p.log, &beacon.Config{
		Name:    "genesis-check",
		Addr:    consensusClients[0].BeaconAPIURL(),
		Headers: make(map[string]string),
	}, "workspaces", *opts)

	nodeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := node.Start(nodeCtx); err != nil {
			p.log.WithError(err).Debug("Beacon client error during genesis check")
		}
	}()

	healthyTimeout := time.After(time.Minute)

	for !node.Healthy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-healthyTimeout:
			return errors.New("timeout waiting for beacon node to be healthy")
		case <-time.After(500 * time.Millisecond):
		}
	}

	genesis, err := node.FetchGenesis(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to fetch genesis")
	}

	spec, err := node.FetchSpec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to fetch spec")
	}

	wallclock := ethwallclock.NewEthereumBeaconChain(genesis.GenesisTime, spec.SecondsPerSlot.AsDuration(), uint64(spec.SlotsPerEpoch))
	defer wallclock.Stop()

	started := time.Now()

	for {
		slot, _, err := wallclock.Now()
		if err == nil && slot.Number() > 0 {
			p.log.WithField("slot", slot.Number()).Info("Genesis has occurred")

			return nil
		}

		if time.Since(started) > 2*time.Minute {
			return errors.New("timeout waiting for genesis")
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled while waiting for genesis")
		case <-time.After(time.Second):
		}
	}
}

func (p *Provider) participants() []epgconfig.ParticipantConfig {
	count := p.config.Participants
	if count <= 0 {
		count = 1
	}

	// Geth everywhere on the execution side keeps the RPC surface uniform;
	// consensus clients are mixed for realism.
	participants := []epgconfig.ParticipantConfig{
		{ELType: "geth", CLType: "lighthouse", Count: 1},
	}

	if count > 1 {
		participants = append(participants, epgconfig.ParticipantConfig{
			ELType: "geth",
			CLType: "teku",
			Count:  count - 1,
		})
	}

	return participants
}

func isEnclaveGone(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "Couldn't find enclave") ||
		strings.Contains(msg, "No enclave with identifier") ||
		strings.Contains(msg, "enclave not found")
}

var _ sandbox.Provider = (*Provider)(nil)
