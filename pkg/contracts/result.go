package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// Result is the outcome of a mined, state-mutating contract invocation.
type Result struct {
	// TxHash is the transaction hash.
	TxHash common.Hash
	// Receipt is the full mined receipt.
	Receipt *types.Receipt
	// GasUsed is the gas consumed by the transaction.
	GasUsed uint64

	contractABI abi.ABI
	contract    common.Address
}

// Event decodes the first log emitted by the contract for the named event
// into out. Indexed and non-indexed fields are both populated.
func (r *Result) Event(name string, out interface{}) error {
	event, ok := r.contractABI.Events[name]
	if !ok {
		return errors.Errorf("event %s is not in the contract ABI", name)
	}

	for _, log := range r.Receipt.Logs {
		if log.Address != r.contract || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}

		if len(log.Data) > 0 {
			if err := r.contractABI.UnpackIntoInterface(out, name, log.Data); err != nil {
				return errors.Wrapf(err, "failed to unpack event %s", name)
			}
		}

		var indexed abi.Arguments

		for _, input := range event.Inputs {
			if input.Indexed {
				indexed = append(indexed, input)
			}
		}

		if len(indexed) > 0 {
			if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
				return errors.Wrapf(err, "failed to parse indexed fields of event %s", name)
			}
		}

		return nil
	}

	return errors.Wrapf(ErrEventNotFound, "%s", name)
}

// EventCount returns how many logs for the named event the contract emitted.
func (r *Result) EventCount(name string) int {
	event, ok := r.contractABI.Events[name]
	if !ok {
		return 0
	}

	count := 0

	for _, log := range r.Receipt.Logs {
		if log.Address == r.contract && len(log.Topics) > 0 && log.Topics[0] == event.ID {
			count++
		}
	}

	return count
}
