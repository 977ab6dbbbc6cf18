package sandbox

import (
	"context"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/pkg/errors"
)

// Endpoint describes a reachable node a workspace can bind to.
type Endpoint struct {
	// RPCURL is the HTTP JSON-RPC endpoint.
	RPCURL string
	// WSURL is the websocket endpoint, or "" when the node has none.
	WSURL string
	// Implementation is the detected client implementation, or
	// clients.ClientUnknown when not probed yet.
	Implementation clients.Client
}

// Provider supplies a node endpoint for a workspace run. A provider owns
// whatever machinery is behind the endpoint: a child process, a kurtosis
// enclave, or nothing at all for remote networks.
type Provider interface {
	// Start makes the endpoint reachable. It blocks until the node answers
	// RPC or the context expires.
	Start(ctx context.Context) (*Endpoint, error)
	// Stop tears the endpoint down. Stop on a never-started provider is a
	// no-op.
	Stop(ctx context.Context) error
	// Name identifies the provider in logs.
	Name() string
}

// StaticProvider wraps an endpoint that is already running elsewhere, such as
// a shared testnet or a node the test author manages by hand. Start and Stop
// manage nothing.
type StaticProvider struct {
	endpoint *Endpoint
}

// NewStaticProvider wraps the given RPC URL as a provider.
func NewStaticProvider(rpcURL string) *StaticProvider {
	return &StaticProvider{
		endpoint: &Endpoint{
			RPCURL:         rpcURL,
			Implementation: clients.ClientUnknown,
		},
	}
}

// Start returns the wrapped endpoint.
func (p *StaticProvider) Start(_ context.Context) (*Endpoint, error) {
	if p.endpoint.RPCURL == "" {
		return nil, errors.New("static provider has no RPC URL")
	}

	return p.endpoint, nil
}

// Stop is a no-op: the node's lifecycle belongs to someone else.
func (p *StaticProvider) Stop(_ context.Context) error {
	return nil
}

// Name identifies the provider in logs.
func (p *StaticProvider) Name() string {
	return "static"
}

var _ Provider = (*StaticProvider)(nil)
