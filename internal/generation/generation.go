// Package generation defines the per-epoch economic configuration and its
// 96-bit packed encoding.
//
// Packed layout (least significant bit first):
//
//	bits  0..31  capacity
//	bits 32..63  decay rate (seconds per unit of decay)
//	bits 64..95  base loss rate
package generation

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PackedSize is the byte width of an encoded Config at the persistence boundary.
const PackedSize = 12

var ErrInvalidDecayRate = errors.New("decay rate must be non-zero")

// Config is one generation (epoch) of economic parameters.
type Config struct {
	Epoch        uint32
	Capacity     uint32
	DecayRate    uint32
	BaseLossRate uint32
	ProofRoot    common.Hash
}

// Validate checks the set-time constraints on a config.
func (c Config) Validate() error {
	if c.DecayRate == 0 {
		return ErrInvalidDecayRate
	}
	return nil
}

// Pack encodes capacity, decay rate and base loss rate into one integer.
func Pack(capacity, decayRate, baseLossRate uint32) *big.Int {
	v := new(big.Int).SetUint64(uint64(baseLossRate))
	v.Lsh(v, 32)
	v.Or(v, new(big.Int).SetUint64(uint64(decayRate)))
	v.Lsh(v, 32)
	v.Or(v, new(big.Int).SetUint64(uint64(capacity)))
	return v
}

// Unpack decodes a packed integer. Values wider than 96 bits are rejected.
func Unpack(v *big.Int) (capacity, decayRate, baseLossRate uint32, err error) {
	if v.Sign() < 0 || v.BitLen() > PackedSize*8 {
		return 0, 0, 0, fmt.Errorf("packed generation %s: out of range", v)
	}
	mask := new(big.Int).SetUint64(0xffffffff)
	field := func(shift uint) uint32 {
		return uint32(new(big.Int).And(new(big.Int).Rsh(v, shift), mask).Uint64())
	}
	return field(0), field(32), field(64), nil
}

// ParsePacked reads a hex packed value. Leading zeros are allowed so the
// fixed 24-digit form round-trips.
func ParsePacked(s string) (capacity, decayRate, baseLossRate uint32, err error) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return 0, 0, 0, fmt.Errorf("parse packed generation %q: invalid hex", s)
	}
	return Unpack(v)
}

// Packed returns the config's packed parameter word.
func (c Config) Packed() *big.Int {
	return Pack(c.Capacity, c.DecayRate, c.BaseLossRate)
}

// PackedHex returns the packed word as 0x-prefixed hex.
func (c Config) PackedHex() string {
	return hexutil.EncodeBig(c.Packed())
}

// Encode returns the fixed-width big-endian packed bytes.
func (c Config) Encode() []byte {
	out := make([]byte, PackedSize)
	c.Packed().FillBytes(out)
	return out
}

// Decode fills the parameter fields of a config from Encode output.
func Decode(epoch uint32, root common.Hash, b []byte) (Config, error) {
	if len(b) != PackedSize {
		return Config{}, fmt.Errorf("decode generation %d: want %d bytes, got %d", epoch, PackedSize, len(b))
	}
	capacity, decayRate, baseLossRate, err := Unpack(new(big.Int).SetBytes(b))
	if err != nil {
		return Config{}, err
	}
	return Config{
		Epoch:        epoch,
		Capacity:     capacity,
		DecayRate:    decayRate,
		BaseLossRate: baseLossRate,
		ProofRoot:    root,
	}, nil
}
