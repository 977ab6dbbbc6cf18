package contracts

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
)

var (
	// ErrExecutionReverted is wrapped around every failed contract execution.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrNoCode is returned when a deployment lands but leaves no code at
	// the contract address.
	ErrNoCode = errors.New("no code at contract address")
	// ErrEventNotFound is returned when a receipt carries no log for the
	// requested event.
	ErrEventNotFound = errors.New("event not found in receipt")
)

// errorSelector is the 4-byte selector of the solidity Error(string) ABI
// encoding that revert reasons are wrapped in.
var errorSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0}

// dataError is the shape go-ethereum RPC errors take when the node attaches
// revert return data.
type dataError interface {
	ErrorData() interface{}
}

// revertError turns a node error into an ErrExecutionReverted with the
// decoded reason when one is attached, and passes other errors through.
func revertError(err error) error {
	if err == nil {
		return nil
	}

	var de dataError
	if errors.As(err, &de) {
		if reason, ok := decodeRevertData(de.ErrorData()); ok {
			return errors.Wrap(ErrExecutionReverted, reason)
		}
	}

	if strings.Contains(err.Error(), "execution reverted") {
		return errors.Wrap(ErrExecutionReverted, strings.TrimPrefix(err.Error(), "execution reverted: "))
	}

	return err
}

// decodeRevertData extracts the reason string from Error(string) return data.
func decodeRevertData(data interface{}) (string, bool) {
	hexData, ok := data.(string)
	if !ok {
		return "", false
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
	if err != nil || len(raw) < 4 {
		return "", false
	}

	if [4]byte(raw[:4]) != errorSelector {
		return "", false
	}

	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		return "", false
	}

	unpacked, err := abi.Arguments{{Type: stringType}}.Unpack(raw[4:])
	if err != nil || len(unpacked) != 1 {
		return "", false
	}

	reason, ok := unpacked[0].(string)

	return reason, ok
}
