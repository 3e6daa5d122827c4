package cursor

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetRoundTrip(t *testing.T) {
	for _, offset := range []int{0, 1, 17, 100000} {
		raw := EncodeOffset("Post", offset)
		got, err := DecodeOffset("Post", raw)
		require.NoError(t, err)
		assert.Equal(t, offset, got)
	}
}

func TestDecodeOffsetTypeMismatch(t *testing.T) {
	_, err := DecodeOffset("User", EncodeOffset("Post", 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor type mismatch")
}

func TestDecodeOffsetErrors(t *testing.T) {
	_, err := DecodeOffset("Post", "%%%")
	require.Error(t, err)

	_, err = DecodeOffset("Post", base64.StdEncoding.EncodeToString([]byte("not json")))
	require.Error(t, err)

	_, err = DecodeOffset("Post", base64.StdEncoding.EncodeToString([]byte(`{"v":2,"t":"Post","o":1}`)))
	require.Error(t, err)

	_, err = DecodeOffset("Post", base64.StdEncoding.EncodeToString([]byte(`{"v":1,"t":"Post","o":-1}`)))
	require.Error(t, err)
}
