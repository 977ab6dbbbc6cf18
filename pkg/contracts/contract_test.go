package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const erc20ABI = `[
	{"type":"function","name":"balanceOf","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}],"anonymous":false}
]`

func TestNewContract(t *testing.T) {
	contract, err := NewContract(logrus.New(), nil, "token", common.HexToAddress("0x01"), erc20ABI)
	require.NoError(t, err)
	assert.Equal(t, "token", contract.Label())
	assert.Contains(t, contract.ABI().Methods, "balanceOf")
}

func TestNewContractBadABI(t *testing.T) {
	_, err := NewContract(logrus.New(), nil, "token", common.Address{}, "not json")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	contract, err := NewContract(logrus.New(), nil, "token", common.HexToAddress("0x01"), erc20ABI)
	require.NoError(t, err)

	rebound := contract.Rebind(nil)
	assert.Equal(t, contract.Label(), rebound.Label())
	assert.Equal(t, contract.Address(), rebound.Address())
	assert.NotSame(t, contract, rebound)
}

func TestResultEvent(t *testing.T) {
	contract, err := NewContract(logrus.New(), nil, "token", common.HexToAddress("0xc0ffee"), erc20ABI)
	require.NoError(t, err)

	event := contract.ABI().Events["Transfer"]
	from := common.HexToAddress("0xaa")
	to := common.HexToAddress("0xbb")

	uint256Type, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)

	data, err := abi.Arguments{{Type: uint256Type}}.Pack(big.NewInt(42))
	require.NoError(t, err)

	result := &Result{
		Receipt: &types.Receipt{
			Logs: []*types.Log{
				{
					// Log from another contract must be skipped.
					Address: common.HexToAddress("0xdead"),
					Topics:  []common.Hash{event.ID},
				},
				{
					Address: contract.Address(),
					Topics: []common.Hash{
						event.ID,
						common.BytesToHash(from.Bytes()),
						common.BytesToHash(to.Bytes()),
					},
					Data: data,
				},
			},
		},
		contractABI: contract.ABI(),
		contract:    contract.Address(),
	}

	var decoded struct {
		From  common.Address
		To    common.Address
		Value *big.Int
	}

	require.NoError(t, result.Event("Transfer", &decoded))
	assert.Equal(t, from, decoded.From)
	assert.Equal(t, to, decoded.To)
	assert.Equal(t, int64(42), decoded.Value.Int64())

	assert.Equal(t, 1, result.EventCount("Transfer"))
}

func TestResultEventNotFound(t *testing.T) {
	contract, err := NewContract(logrus.New(), nil, "token", common.HexToAddress("0x01"), erc20ABI)
	require.NoError(t, err)

	result := &Result{
		Receipt:     &types.Receipt{},
		contractABI: contract.ABI(),
		contract:    contract.Address(),
	}

	var decoded struct{}

	err = result.Event("Transfer", &decoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventNotFound)

	err = result.Event("Burn", &decoded)
	require.Error(t, err)
}

func TestDecodeRevertData(t *testing.T) {
	// Error("nope") ABI-encoded.
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)

	encoded, err := abi.Arguments{{Type: stringType}}.Pack("nope")
	require.NoError(t, err)

	payload := append([]byte{0x08, 0xc3, 0x79, 0xa0}, encoded...)

	reason, ok := decodeRevertData("0x" + common.Bytes2Hex(payload))
	require.True(t, ok)
	assert.Equal(t, "nope", reason)
}

func TestDecodeRevertDataMalformed(t *testing.T) {
	_, ok := decodeRevertData("0x1234")
	assert.False(t, ok)

	_, ok = decodeRevertData(12345)
	assert.False(t, ok)

	_, ok = decodeRevertData("not hex")
	assert.False(t, ok)
}

func TestRevertErrorPlainMessage(t *testing.T) {
	err := revertError(assertableError("execution reverted: balance too low"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionReverted)
	assert.Contains(t, err.Error(), "balance too low")
}

func TestRevertErrorPassthrough(t *testing.T) {
	original := assertableError("connection refused")
	err := revertError(original)
	assert.NotErrorIs(t, err, ErrExecutionReverted)

	assert.NoError(t, revertError(nil))
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
