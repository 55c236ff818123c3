// Package contract binds the observation contract's two methods to the signer.
package contract

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GPTx-global/rofl-oracle/oracle/codec"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

// Backend is the subset of the signer client the binding needs.
type Backend interface {
	Submit(ctx context.Context, to common.Address, calldata []byte) ([]byte, error)
	Call(ctx context.Context, to common.Address, calldata []byte) (string, error)
}

type Contract struct {
	address common.Address
	backend Backend
}

func New(address common.Address, backend Backend) *Contract {
	return &Contract{
		address: address,
		backend: backend,
	}
}

func (c *Contract) Address() common.Address {
	return c.address
}

// SubmitObservation encodes value and hands it to the signer for signing and
// broadcast. Encoding failures wrap types.ErrEncoding and happen before any
// request is sent.
func (c *Contract) SubmitObservation(ctx context.Context, value types.Value) ([]byte, error) {
	calldata, err := codec.EncodeSubmit(value)
	if err != nil {
		return nil, err
	}

	return c.backend.Submit(ctx, c.address, calldata)
}

// LastObservation reads and decodes getLastObservation().
func (c *Contract) LastObservation(ctx context.Context) (types.RemoteObservation, error) {
	raw, err := c.backend.Call(ctx, c.address, codec.EncodeQuery())
	if err != nil {
		return types.RemoteObservation{}, err
	}

	return codec.DecodeLastObservation(raw)
}
