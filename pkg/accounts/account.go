package accounts

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Account is a labelled keypair a workspace can transact as. The private key
// is kept unexported; accounts in this package are throwaway test identities,
// but they still only leave the process through explicit key file exports.
type Account struct {
	label   string
	address common.Address
	key     *ecdsa.PrivateKey
}

// NewAccount generates a fresh account with a random key.
func NewAccount(label string) (*Account, error) {
	key, err := ecdsa.GenerateKey(gcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}

	privBytes := gcrypto.FromECDSA(key)
	if len(privBytes) != secp256k1.PrivKeyBytesLen {
		return nil, errors.Errorf("expected secp256k1 data size to be %d", secp256k1.PrivKeyBytesLen)
	}

	return newAccount(label, key), nil
}

// FromPrivateKey builds an account from a hex-encoded private key, with or
// without a 0x prefix.
func FromPrivateKey(label, privKeyHex string) (*Account, error) {
	privBytes, err := hex.DecodeString(strings.TrimPrefix(privKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode private key")
	}

	if len(privBytes) != secp256k1.PrivKeyBytesLen {
		return nil, errors.Errorf("expected secp256k1 data size to be %d", secp256k1.PrivKeyBytesLen)
	}

	return newAccount(label, secp256k1.PrivKeyFromBytes(privBytes).ToECDSA()), nil
}

func newAccount(label string, key *ecdsa.PrivateKey) *Account {
	return &Account{
		label:   label,
		address: gcrypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// Label returns the human-readable name the account is registered under.
func (a *Account) Label() string {
	return a.label
}

// Address returns the account's address.
func (a *Account) Address() common.Address {
	return a.address
}

// PrivateKeyHex returns the hex-encoded private key without a 0x prefix.
func (a *Account) PrivateKeyHex() string {
	return hex.EncodeToString(gcrypto.FromECDSA(a.key))
}

// SignTx signs a transaction for the given chain using the latest supported
// signer, so dynamic fee transactions work out of the box.
func (a *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign transaction as %s", a.label)
	}

	return signed, nil
}

// WithLabel returns a copy of the account under a different label. The key is
// shared; accounts are immutable after creation.
func (a *Account) WithLabel(label string) *Account {
	return &Account{
		label:   label,
		address: a.address,
		key:     a.key,
	}
}
