package execution

import "errors"

// Config defines the configuration for an execution node connection.
type Config struct {
	// RPCAddress is the HTTP JSON-RPC endpoint of the node to connect to.
	RPCAddress string `yaml:"rpcAddress"`
	// RPCHeaders is a map of headers to send to the node.
	RPCHeaders map[string]string `yaml:"rpcHeaders"`
	// NetworkOverride is an optional network name to use instead of what's derived from the chain ID
	NetworkOverride string `yaml:"networkOverride,omitempty"`
}

// Validate checks the configuration for the execution node.
func (c *Config) Validate() error {
	if c.RPCAddress == "" {
		return errors.New("rpcAddress is required")
	}

	return nil
}
