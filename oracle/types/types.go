package types

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"github.com/spf13/cast"
)

// MaxSubmitBits is the width of the on-chain observation parameter (uint128).
const MaxSubmitBits = 128

// Value is an unsigned observation of up to 256 bits. The zero value is 0.
// Value is comparable with == and safe to copy.
type Value struct {
	n uint256.Int
}

// RemoteObservation is the last observation recorded by the contract.
type RemoteObservation struct {
	Value Value `json:"value"`
	Block Value `json:"block"`
}

func NewValue(x uint64) Value {
	var v Value
	v.n.SetUint64(x)
	return v
}

// ValueFromBig rejects negative numbers and numbers wider than 256 bits.
func ValueFromBig(b *big.Int) (Value, error) {
	if b == nil {
		return Value{}, errorsmod.Wrap(ErrInvalidValue, "value is required")
	}
	if b.Sign() < 0 {
		return Value{}, errorsmod.Wrapf(ErrInvalidValue, "negative value %s", b.String())
	}
	n, overflow := uint256.FromBig(b)
	if overflow {
		return Value{}, errorsmod.Wrapf(ErrInvalidValue, "value %s exceeds 256 bits", b.String())
	}
	return Value{n: *n}, nil
}

// ValueFromBytes interprets b as a big-endian integer. Inputs longer than
// 32 bytes keep only the trailing 32 bytes.
func ValueFromBytes(b []byte) Value {
	var v Value
	v.n.SetBytes(b)
	return v
}

// ParseValue coerces client input (JSON number, decimal string, Go integer)
// into a Value.
func ParseValue(raw any) (Value, error) {
	var s string
	switch r := raw.(type) {
	case nil:
		return Value{}, errorsmod.Wrap(ErrInvalidValue, "value is required")
	case Value:
		return r, nil
	case *big.Int:
		return ValueFromBig(r)
	case json.Number:
		s = r.String()
	default:
		var err error
		if s, err = cast.ToStringE(raw); err != nil {
			return Value{}, errorsmod.Wrapf(ErrInvalidValue, "unsupported value type %T", raw)
		}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, errorsmod.Wrap(ErrInvalidValue, "value is required")
	}
	if s[0] == '+' || s[0] == '-' {
		return Value{}, errorsmod.Wrapf(ErrInvalidValue, "%q is not an unsigned integer", s)
	}

	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Value{}, errorsmod.Wrapf(ErrInvalidValue, "%q is not an unsigned integer", s)
	}

	return ValueFromBig(b)
}

func (v Value) BitLen() int {
	return v.n.BitLen()
}

// FitsSubmit reports whether v can be passed to submitObservation(uint128).
func (v Value) FitsSubmit() bool {
	return v.n.BitLen() <= MaxSubmitBits
}

func (v Value) IsZero() bool {
	return v.n.IsZero()
}

// Bytes32 returns v as a 32-byte big-endian word.
func (v Value) Bytes32() [32]byte {
	return v.n.Bytes32()
}

func (v Value) Big() *big.Int {
	return v.n.ToBig()
}

func (v Value) Uint64() (uint64, bool) {
	return v.n.Uint64(), v.n.IsUint64()
}

// String returns the decimal representation.
func (v Value) String() string {
	return v.Big().String()
}

// MarshalJSON encodes v as a bare JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return errorsmod.Wrap(ErrInvalidValue, "value is required")
	}

	s := string(data)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return errorsmod.Wrapf(ErrInvalidValue, "bad string literal %s", s)
		}
		s = unquoted
	}

	parsed, err := ParseValue(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
