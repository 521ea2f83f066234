package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerify_AcceptsValidSignature(t *testing.T) {
	t.Parallel()

	bodies := [][]byte{
		[]byte(`{"events":[]}`),
		[]byte(""),
		[]byte(`{"events":[{"type":"message"}]}`),
		{0x00, 0xff, 0x10},
	}
	for _, body := range bodies {
		sig := Sign(body, "channel-secret")
		require.True(t, Verify(body, sig, "channel-secret"))
	}
}

func TestVerify_RejectsSingleByteMutations(t *testing.T) {
	t.Parallel()

	body := []byte(`{"events":[{"type":"message","message":{"text":"hi"}}]}`)
	sig := Sign(body, "channel-secret")

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		require.False(t, Verify(mutated, sig, "channel-secret"), "body byte %d", i)
	}
	for i := range sig {
		mutated := []byte(sig)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		require.False(t, Verify(body, string(mutated), "channel-secret"), "sig byte %d", i)
	}
}

func TestVerify_RejectsWrongSecretAndEmptyInputs(t *testing.T) {
	t.Parallel()

	body := []byte("payload")
	sig := Sign(body, "right")

	require.False(t, Verify(body, sig, "wrong"))
	require.False(t, Verify(body, "", "right"))
	require.False(t, Verify(body, sig, ""))
}
