package accounts

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// keyFile is the on-disk form of an exported account. Keys are written
// unencrypted: these are disposable test identities, never mainnet keys.
type keyFile struct {
	Label      string `json:"label"`
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// SaveKeyFile writes the account's key to dir as <label>.json so external
// tools (cast, hardhat scripts) can reuse the identity.
func SaveKeyFile(dir string, account *Account) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create key directory")
	}

	data, err := json.MarshalIndent(keyFile{
		Label:      account.Label(),
		Address:    account.Address().Hex(),
		PrivateKey: account.PrivateKeyHex(),
	}, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal key file")
	}

	path := filepath.Join(dir, account.Label()+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", errors.Wrap(err, "failed to write key file")
	}

	return path, nil
}

// LoadKeyFile reads an account previously written by SaveKeyFile.
func LoadKeyFile(path string) (*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read key file")
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, errors.Wrap(err, "failed to parse key file")
	}

	account, err := FromPrivateKey(kf.Label, kf.PrivateKey)
	if err != nil {
		return nil, err
	}

	if kf.Address != "" && account.Address().Hex() != kf.Address {
		return nil, errors.Errorf("key file address mismatch: %s != %s", account.Address().Hex(), kf.Address)
	}

	return account, nil
}
