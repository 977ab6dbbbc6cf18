// Package contracts deploys and drives EVM contracts over an execution node.
// Contracts are labelled, like accounts, so test callbacks can look them up
// by name instead of carrying addresses around.
package contracts

import (
	"context"
	"math/big"
	"strings"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Contract is a deployed contract bound to the node it lives on.
type Contract struct {
	log     logrus.FieldLogger
	node    *execution.Node
	label   string
	address common.Address
	abiJSON string
	abi     abi.ABI
}

// NewContract binds an already-deployed contract at address.
func NewContract(log logrus.FieldLogger, node *execution.Node, label string, address common.Address, abiJSON string) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse ABI for %s", label)
	}

	return &Contract{
		log:     log.WithFields(logrus.Fields{"module": "workspaces/contracts", "contract": label}),
		node:    node,
		label:   label,
		address: address,
		abiJSON: abiJSON,
		abi:     parsed,
	}, nil
}

// Label returns the name the contract is registered under.
func (c *Contract) Label() string {
	return c.label
}

// Address returns the contract's deployed address.
func (c *Contract) Address() common.Address {
	return c.address
}

// ABI returns the parsed contract ABI.
func (c *Contract) ABI() abi.ABI {
	return c.abi
}

// Rebind returns a copy of the contract bound to another node. Used when a
// workspace fork copies chain state to a fresh node: addresses survive the
// copy, the connection does not.
func (c *Contract) Rebind(node *execution.Node) *Contract {
	clone := *c
	clone.node = node

	return &clone
}

// Call sends a state-mutating invocation signed by from and waits for it to
// be mined. Reverts surface as ErrExecutionReverted with the reason when the
// node reports one.
func (c *Contract) Call(ctx context.Context, from execution.Signer, method string, args ...interface{}) (*Result, error) {
	return c.CallValue(ctx, from, nil, method, args...)
}

// CallValue is Call with an attached ether value.
func (c *Contract) CallValue(ctx context.Context, from execution.Signer, value *big.Int, method string, args ...interface{}) (*Result, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s call", method)
	}

	tx, err := c.node.BuildTx(ctx, from.Address(), &c.address, value, input)
	if err != nil {
		return nil, revertError(err)
	}

	signed, err := from.SignTx(tx, c.node.ChainID())
	if err != nil {
		return nil, err
	}

	receipt, err := c.node.SendAndWait(ctx, signed)
	if err != nil {
		return nil, revertError(err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, errors.Wrapf(ErrExecutionReverted, "%s.%s reverted: %s", c.label, method, c.traceRevert(ctx, from.Address(), input, value, receipt))
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"tx":       signed.Hash().Hex(),
		"gas_used": receipt.GasUsed,
	}).Debug("Contract call mined")

	return &Result{
		TxHash:      signed.Hash(),
		Receipt:     receipt,
		GasUsed:     receipt.GasUsed,
		contractABI: c.abi,
		contract:    c.address,
	}, nil
}

// View executes a read-only method via eth_call and unpacks the return value
// into out.
func (c *Contract) View(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to pack %s call", method)
	}

	output, err := c.node.Client().CallContract(ctx, ethereum.CallMsg{
		To:   &c.address,
		Data: input,
	}, nil)
	if err != nil {
		return revertError(err)
	}

	if err := c.abi.UnpackIntoInterface(out, method, output); err != nil {
		return errors.Wrapf(err, "failed to unpack %s return value", method)
	}

	return nil
}

// traceRevert re-executes a failed transaction as a call at its mined block
// to recover the revert reason. Best effort: some nodes prune the state.
func (c *Contract) traceRevert(ctx context.Context, from common.Address, input []byte, value *big.Int, receipt *types.Receipt) string {
	_, err := c.node.Client().CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    &c.address,
		Data:  input,
		Value: value,
	}, receipt.BlockNumber)
	if err == nil {
		return "reason unavailable"
	}

	if reverted := revertError(err); errors.Is(reverted, ErrExecutionReverted) {
		return reverted.Error()
	}

	return err.Error()
}
