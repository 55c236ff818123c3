package tx

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	json "github.com/goccy/go-json"
)

// KindEth is the only transaction kind the signer accepts from this daemon.
const KindEth = "eth"

// Envelope is the request body of both signer endpoints.
type Envelope struct {
	Tx Tx `json:"tx"`
}

type Tx struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// SubmitData asks the signer to sign and broadcast a contract call.
type SubmitData struct {
	GasLimit uint64 `json:"gas_limit"`
	To       string `json:"to"`
	Value    uint64 `json:"value"`
	Data     string `json:"data"`
}

// CallData asks the signer for a read-only contract call.
type CallData struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// TxManager builds signer request bodies. Every submission carries the same gas allowance.
type TxManager struct {
	gasLimit uint64
}

func NewTxManager(gasLimit uint64) *TxManager {
	return &TxManager{
		gasLimit: gasLimit,
	}
}

func (txm *TxManager) GasLimit() uint64 {
	return txm.gasLimit
}

// BuildSubmitTx encodes a sign-and-submit request carrying calldata and zero value.
func (txm *TxManager) BuildSubmitTx(to common.Address, calldata []byte) ([]byte, error) {
	envelope := Envelope{
		Tx: Tx{
			Kind: KindEth,
			Data: SubmitData{
				GasLimit: txm.gasLimit,
				To:       to.Hex(),
				Value:    0,
				Data:     hexutil.Encode(calldata),
			},
		},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submit tx: %w", err)
	}

	return body, nil
}

// BuildCallTx encodes a read-only call request.
func (txm *TxManager) BuildCallTx(to common.Address, calldata []byte) ([]byte, error) {
	envelope := Envelope{
		Tx: Tx{
			Kind: KindEth,
			Data: CallData{
				To:   to.Hex(),
				Data: hexutil.Encode(calldata),
			},
		},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal call tx: %w", err)
	}

	return body, nil
}
