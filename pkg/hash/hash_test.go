package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderCanonical(t *testing.T) {
	a := NewBuilder().PutString("ab").PutString("c").Sum32()
	b := NewBuilder().PutString("a").PutString("bc").Sum32()
	assert.NotEqual(t, a, b, "length prefix separates fields")

	x := NewBuilder().PutString("k").PutI64(-1)
	first := x.Sum32()
	x.Reset()
	x.PutString("k").PutU64(^uint64(0))
	assert.Equal(t, first, x.Sum32())

	assert.Equal(t, NewBuilder().PutBytes([]byte("k")).Sum32(), NewBuilder().PutString("k").Sum32())
}

func TestParseRoundTrip(t *testing.T) {
	h := NewBuilder().PutString("sample").Sum32()
	got, err := Parse(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = Parse("0x1234")
	assert.Error(t, err)
	_, err = Parse("zz" + h.Hex()[4:])
	assert.Error(t, err)
}
