package execution

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs transactions on behalf of a single address. Account types
// from higher layers satisfy this without importing this package.
type Signer interface {
	// Address returns the address transactions are signed for.
	Address() common.Address
	// SignTx signs the transaction for the given chain.
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}
