package accounts

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	gcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// DefaultMnemonic is the mnemonic anvil and hardhat seed their dev accounts
// from. Deriving from the same phrase means the sandbox's pre-funded accounts
// and our signing keys line up without any RPC round trip.
const DefaultMnemonic = "test test test test test test test test test test test junk"

// DevAccountLabel returns the registry label for the i-th derived dev account.
func DevAccountLabel(i int) string {
	return fmt.Sprintf("dev-%d", i)
}

// DeriveDevAccounts derives count accounts from a BIP-39 mnemonic along the
// standard Ethereum path m/44'/60'/0'/0/i.
func DeriveDevAccounts(count int, mnemonic string) ([]*Account, error) {
	if count <= 0 {
		return nil, errors.New("account count must be positive")
	}

	if mnemonic == "" {
		mnemonic = DefaultMnemonic
	}

	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive master key")
	}

	// m/44'/60'/0'/0
	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
	}

	parent := master
	for _, child := range path {
		parent, err = parent.Derive(child)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive account path")
		}
	}

	accounts := make([]*Account, 0, count)

	for i := 0; i < count; i++ {
		child, err := parent.Derive(uint32(i))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive account index %d", i)
		}

		privKey, err := child.ECPrivKey()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to extract key for account index %d", i)
		}

		key, err := gcrypto.ToECDSA(privKey.Serialize())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to convert key for account index %d", i)
		}

		accounts = append(accounts, newAccount(DevAccountLabel(i), key))
	}

	return accounts, nil
}
