package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateCommitmentDeterminism(t *testing.T) {
	h1 := [32]byte{1}
	h2 := [32]byte{2}

	c := StateCommitment("ledger-a", [][32]byte{h1, h2})
	require.True(t, c.Equal(StateCommitment("ledger-a", [][32]byte{h1, h2})))

	// Different ledger identity, handle content, or handle order all change
	// the commitment.
	require.False(t, c.Equal(StateCommitment("ledger-b", [][32]byte{h1, h2})))
	require.False(t, c.Equal(StateCommitment("ledger-a", [][32]byte{h1})))
	require.False(t, c.Equal(StateCommitment("ledger-a", [][32]byte{h2, h1})))
}

func TestStateCommitmentLengthPrefixing(t *testing.T) {
	// Identity bytes must not bleed into the handle region.
	a := StateCommitment("ab", nil)
	b := StateCommitment("a", [][32]byte{{'b'}})
	require.False(t, a.Equal(b))
}

func TestCommitmentJSONRoundTrip(t *testing.T) {
	c := StateCommitment("x", [][32]byte{{7}})

	data, err := c.MarshalJSON()
	require.NoError(t, err)

	var decoded Commitment
	require.NoError(t, decoded.UnmarshalJSON(data))
	require.True(t, c.Equal(decoded))

	require.Error(t, decoded.UnmarshalJSON([]byte(`"zz"`)))
}

func TestSignVerify(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	sig, err := Sign(priv, []byte("folding data"))
	require.NoError(t, err)
	require.True(t, sig.Verify(pub, []byte("folding data")))
	require.False(t, sig.Verify(pub, []byte("tampered")))

	otherPub, _, err := GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, sig.Verify(otherPub, []byte("folding data")))

	// Round-trip through the address form.
	parsed, err := NewPublicKeyFromString(pub.String())
	require.NoError(t, err)
	require.True(t, sig.Verify(parsed, []byte("folding data")))
}
