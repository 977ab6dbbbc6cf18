package contracts

import (
	"context"
	"strings"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Deploy sends a contract-creation transaction signed by from and waits for
// it to be mined. Constructor args are packed against the ABI; bytecode is
// the raw creation code, not a hex string.
func Deploy(ctx context.Context, log logrus.FieldLogger, node *execution.Node, from execution.Signer, label, abiJSON string, bytecode []byte, args ...interface{}) (*Contract, error) {
	if len(bytecode) == 0 {
		return nil, errors.Errorf("no bytecode supplied for %s", label)
	}

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse ABI for %s", label)
	}

	data := bytecode

	if len(args) > 0 || len(parsed.Constructor.Inputs) > 0 {
		ctorArgs, err := parsed.Pack("", args...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to pack constructor args for %s", label)
		}

		data = append(append([]byte{}, bytecode...), ctorArgs...)
	}

	tx, err := node.BuildTx(ctx, from.Address(), nil, nil, data)
	if err != nil {
		return nil, revertError(err)
	}

	signed, err := from.SignTx(tx, node.ChainID())
	if err != nil {
		return nil, err
	}

	receipt, err := node.SendAndWait(ctx, signed)
	if err != nil {
		return nil, revertError(err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, errors.Wrapf(ErrExecutionReverted, "deployment of %s", label)
	}

	code, err := node.Client().CodeAt(ctx, receipt.ContractAddress, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch code of %s", label)
	}

	if len(code) == 0 {
		return nil, errors.Wrapf(ErrNoCode, "%s at %s", label, receipt.ContractAddress.Hex())
	}

	log.WithFields(logrus.Fields{
		"contract": label,
		"address":  receipt.ContractAddress.Hex(),
		"gas_used": receipt.GasUsed,
	}).Info("Deployed contract")

	return NewContract(log, node, label, receipt.ContractAddress, abiJSON)
}
