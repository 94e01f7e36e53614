package generation

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	packed := Pack(1_000_000_000, 86, 1)

	capacity, decayRate, loss, err := Unpack(packed)
	require.NoError(t, err)
	assert.Equal(t, uint32(1_000_000_000), capacity)
	assert.Equal(t, uint32(86), decayRate)
	assert.Equal(t, uint32(1), loss)
}

func TestPackLayout(t *testing.T) {
	packed := Pack(0x11111111, 0x22222222, 0x33333333)
	assert.Equal(t, "0x333333332222222211111111", hexutil.EncodeBig(packed))
}

func TestParsePacked(t *testing.T) {
	capacity, decayRate, loss, err := ParsePacked(hexutil.EncodeBig(Pack(100, 604800, 0)))
	require.NoError(t, err)
	assert.Equal(t, uint32(100), capacity)
	assert.Equal(t, uint32(604800), decayRate)
	assert.Zero(t, loss)

	_, _, _, err = ParsePacked("nothex")
	assert.Error(t, err)
}

func TestUnpackRejectsWideValues(t *testing.T) {
	wide := new(big.Int).Lsh(big.NewInt(1), 96)
	_, _, _, err := Unpack(wide)
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	root := common.HexToHash("0xabc")
	c := Config{Epoch: 3, Capacity: 1_000_000_000, DecayRate: 86, BaseLossRate: 1, ProofRoot: root}

	b := c.Encode()
	require.Len(t, b, PackedSize)

	got, err := Decode(3, root, b)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = Decode(3, root, b[:4])
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Config{Epoch: 1, Capacity: 10}.Validate(), ErrInvalidDecayRate)
	assert.NoError(t, Config{Epoch: 1, Capacity: 10, DecayRate: 1}.Validate())
}
