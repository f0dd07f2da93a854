package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Commitment is a sha3-256 digest binding a decryption request to the exact
// ciphertext handles and ledger instance it was issued against.
type Commitment [32]byte

// StateCommitment computes the binding digest over a ledger identity and an
// ordered list of ciphertext handles. The same inputs always produce the same
// commitment; reordering or replacing any handle produces a different one.
//
// Layout fed to the hash: len(ledgerID) || ledgerID || n || handle_0 ... handle_{n-1}.
// Length prefixes prevent ambiguity between the identity and handle regions.
func StateCommitment(ledgerID string, handles [][32]byte) Commitment {
	h := sha3.New256()

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(ledgerID)))
	h.Write(lenBuf[:])
	h.Write([]byte(ledgerID))

	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(handles)))
	h.Write(lenBuf[:])
	for _, handle := range handles {
		h.Write(handle[:])
	}

	var c Commitment
	h.Sum(c[:0])
	return c
}

// Equal compares two commitments.
func (c Commitment) Equal(other Commitment) bool {
	return c == other
}

// String returns the hex form of the commitment.
func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// MarshalJSON encodes the commitment as a hex string.
func (c Commitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a hex string commitment.
func (c *Commitment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(c) {
		return fmt.Errorf("commitment must be %d bytes, got %d", len(c), len(raw))
	}
	copy(c[:], raw)
	return nil
}
