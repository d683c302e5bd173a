package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag_Valid(t *testing.T) {
	assert.True(t, TagNbIndividuals.Valid())
	assert.True(t, TagEvolutionEnd.Valid())
	assert.False(t, Tag(0).Valid())
	assert.False(t, Tag(200).Valid())
}

func TestTag_String(t *testing.T) {
	assert.Equal(t, "MessageSize", TagMessageSize.String())
	assert.Contains(t, Tag(99).String(), "Tag(99)")
}

func TestUint64_RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 1 << 40} {
		b := EncodeUint64(v)
		require.Len(t, b, 8)
		got, err := DecodeUint64(b)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecodeUint64_WrongSize(t *testing.T) {
	_, err := DecodeUint64([]byte{1, 2, 3})
	require.Error(t, err)
}
