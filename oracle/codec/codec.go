// Package codec encodes and decodes the two fixed call shapes exchanged with
// the observation contract. It is not a general ABI codec: a new contract
// method needs a new encoder here.
package codec

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

const (
	// SelectorSize is the length of a function selector in bytes.
	SelectorSize = 4
	// WordSize is the length of one ABI word in bytes.
	WordSize = 32
	// SubmitCalldataSize is the length of an encoded submitObservation call.
	SubmitCalldataSize = SelectorSize + WordSize
	// LastObservationSize is the minimum length of getLastObservation return data.
	LastObservationSize = 2 * WordSize
)

var (
	// SubmitSelector is keccak256("submitObservation(uint128)")[:4].
	SubmitSelector = [SelectorSize]byte{0xda, 0xe1, 0xee, 0x1f}
	// QuerySelector is keccak256("getLastObservation()")[:4].
	QuerySelector = [SelectorSize]byte{0xf2, 0x9f, 0x41, 0x10}
)

const (
	// SubmitSignature is the canonical signature hashed into SubmitSelector.
	SubmitSignature = "submitObservation(uint128)"
	// QuerySignature is the canonical signature hashed into QuerySelector.
	QuerySignature = "getLastObservation()"
)

// EncodeSubmit builds calldata for submitObservation(uint128).
func EncodeSubmit(value types.Value) ([]byte, error) {
	if !value.FitsSubmit() {
		return nil, errorsmod.Wrapf(types.ErrEncoding, "value %s does not fit in uint%d", value, types.MaxSubmitBits)
	}

	word := value.Bytes32()
	calldata := make([]byte, 0, SubmitCalldataSize)
	calldata = append(calldata, SubmitSelector[:]...)
	calldata = append(calldata, word[:]...)

	return calldata, nil
}

// EncodeQuery builds calldata for getLastObservation().
func EncodeQuery() []byte {
	calldata := make([]byte, SelectorSize)
	copy(calldata, QuerySelector[:])
	return calldata
}

// DecodeLastObservation decodes the 0x-prefixed hex return data of
// getLastObservation(). Bytes past the second word are ignored.
func DecodeLastObservation(raw string) (types.RemoteObservation, error) {
	data, err := hexutil.Decode(raw)
	if err != nil {
		return types.RemoteObservation{}, errorsmod.Wrapf(types.ErrDecoding, "invalid hex return data: %v", err)
	}

	return DecodeLastObservationBytes(data)
}

// DecodeLastObservationBytes is DecodeLastObservation for raw bytes.
func DecodeLastObservationBytes(data []byte) (types.RemoteObservation, error) {
	if len(data) < LastObservationSize {
		return types.RemoteObservation{}, errorsmod.Wrapf(types.ErrDecoding, "return data is %d bytes, need %d", len(data), LastObservationSize)
	}

	return types.RemoteObservation{
		Value: types.ValueFromBytes(data[:WordSize]),
		Block: types.ValueFromBytes(data[WordSize:LastObservationSize]),
	}, nil
}
