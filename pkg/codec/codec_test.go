package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_SingleMessage(t *testing.T) {
	t.Parallel()

	msgs, batch, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NoError(t, err)
	assert.False(t, batch)
	require.Len(t, msgs, 1)
	assert.Equal(t, "tools/list", msgs[0].Method)
}

func TestDecode_Batch(t *testing.T) {
	t.Parallel()

	msgs, batch, err := Decode([]byte(`[{"jsonrpc":"2.0","id":1,"method":"a"},{"jsonrpc":"2.0","id":2,"method":"b"}]`))
	require.NoError(t, err)
	assert.True(t, batch)
	require.Len(t, msgs, 2)
}

func TestDecode_EmptyPayload(t *testing.T) {
	t.Parallel()

	_, _, err := Decode([]byte("  "))
	assert.Error(t, err)
}

func TestDecode_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, _, err := Decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestEncode_SingleNotBatch(t *testing.T) {
	t.Parallel()

	msgs, _, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"x"}`))
	require.NoError(t, err)

	out, err := Encode(msgs, false)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), out[0])
}

func TestEncode_BatchAlwaysArray(t *testing.T) {
	t.Parallel()

	msgs, _, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"x"}`))
	require.NoError(t, err)

	out, err := Encode(msgs, true)
	require.NoError(t, err)
	assert.Equal(t, byte('['), out[0])
}

func TestEncode_EmptyReturnsNil(t *testing.T) {
	t.Parallel()

	out, err := Encode(nil, false)
	require.NoError(t, err)
	assert.Nil(t, out)
}
