package member

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	for _, r := range []Record{
		{},
		{State: Alive, LastSettled: 1_700_000_000},
		{State: Dead, LastSettled: MaxTimestamp},
	} {
		v, err := r.Encode()
		require.NoError(t, err)
		got, err := Decode(v)
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
}

func TestEncodeRejects(t *testing.T) {
	_, err := Record{State: 3}.Encode()
	assert.Error(t, err)

	_, err = Record{State: Alive, LastSettled: MaxTimestamp + 1}.Encode()
	assert.Error(t, err)

	_, err = Decode(3)
	assert.Error(t, err)
}

func TestFieldUpdatesPreserveSibling(t *testing.T) {
	v, err := Record{State: Alive, LastSettled: 42}.Encode()
	require.NoError(t, err)

	v, err = WithState(v, Dead)
	require.NoError(t, err)
	r, _ := Decode(v)
	assert.Equal(t, Record{State: Dead, LastSettled: 42}, r)

	v, err = WithLastSettled(v, 99)
	require.NoError(t, err)
	r, _ = Decode(v)
	assert.Equal(t, Record{State: Dead, LastSettled: 99}, r)

	_, err = WithState(v, 3)
	assert.Error(t, err)
	_, err = WithLastSettled(v, MaxTimestamp+1)
	assert.Error(t, err)
}

func TestCanBecome(t *testing.T) {
	assert.True(t, Unseen.CanBecome(Alive))
	assert.True(t, Unseen.CanBecome(Dead))
	assert.True(t, Alive.CanBecome(Dead))
	assert.True(t, Alive.CanBecome(Alive))
	assert.False(t, Alive.CanBecome(Unseen))
	assert.False(t, Dead.CanBecome(Alive))
	assert.False(t, Dead.CanBecome(Unseen))
	assert.True(t, Dead.CanBecome(Dead))
}

func TestParseState(t *testing.T) {
	for _, s := range []State{Unseen, Alive, Dead} {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseState("zombie")
	assert.Error(t, err)
}
