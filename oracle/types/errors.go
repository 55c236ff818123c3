package types

import (
	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace of every error registered by the daemon.
const ModuleName = "oracled"

// errors
var (
	ErrEncoding       = errorsmod.Register(ModuleName, 2, "calldata encoding failed")
	ErrDecoding       = errorsmod.Register(ModuleName, 3, "return data decoding failed")
	ErrTransport      = errorsmod.Register(ModuleName, 4, "signer transport failure")
	ErrEndpoint       = errorsmod.Register(ModuleName, 5, "signer endpoint reported failure")
	ErrResponseFormat = errorsmod.Register(ModuleName, 6, "malformed signer response")
	ErrQueueFull      = errorsmod.Register(ModuleName, 7, "pending queue is full")
	ErrInvalidValue   = errorsmod.Register(ModuleName, 8, "invalid observation value")
	ErrInvalidConfig  = errorsmod.Register(ModuleName, 9, "invalid configuration")
)
