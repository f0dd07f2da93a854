// Package fhe defines the encrypted-arithmetic capability consumed by the
// FoldNet ledger.
//
// The ledger never performs homomorphic arithmetic or proof verification
// itself; it manipulates opaque ciphertext handles through the Engine
// interface. This keeps the batch/decryption state machine independent of any
// particular cryptosystem and fully testable against the plaintext-backed
// MockEngine in this package.
package fhe

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/foldnet/foldnet/crypto"
)

// Ciphertext is an opaque handle referencing an encrypted value held by the
// engine. Handles are manipulable only through Engine operations; the ledger
// never observes plaintext.
//
// The zero handle stands for an uninitialized value, which every engine must
// treat as encrypted zero under addition.
type Ciphertext [32]byte

// IsZero reports whether the handle is the uninitialized zero handle.
func (c Ciphertext) IsZero() bool {
	return c == Ciphertext{}
}

// String returns the hex form of the handle.
func (c Ciphertext) String() string {
	return hex.EncodeToString(c[:])
}

// MarshalJSON encodes the handle as a hex string.
func (c Ciphertext) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a hex string handle.
func (c *Ciphertext) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(c) {
		return fmt.Errorf("ciphertext handle must be %d bytes, got %d", len(c), len(raw))
	}
	copy(c[:], raw)
	return nil
}

// RequestID identifies an asynchronous decryption request issued by the
// engine. IDs are unique for the lifetime of the engine.
type RequestID uint64

// Engine is the encrypted-arithmetic capability.
//
// Implementations carry the actual cryptography (or, for MockEngine, a
// plaintext stand-in). The ledger requires:
//  1. A well-formedness check for incoming ciphertexts
//  2. Homomorphic addition on handles, without decryption
//  3. Asynchronous decryption dispatch returning a request identifier
//  4. Verification of the oracle's proof over returned cleartexts
type Engine interface {
	// IsInitialized reports whether the handle references a well-formed
	// encrypted value known to the engine. The zero handle is never
	// initialized.
	IsInitialized(ct Ciphertext) bool

	// Add homomorphically adds two encrypted values and returns a handle to
	// the encrypted sum. Either operand may be the zero handle, which acts
	// as encrypted zero. Fails if a non-zero operand is unknown to the engine.
	Add(a, b Ciphertext) (Ciphertext, error)

	// RequestDecryption dispatches an asynchronous decryption of the given
	// ordered handles to the external oracle and returns the request
	// identifier the oracle will answer under.
	RequestDecryption(handles []Ciphertext) (RequestID, error)

	// VerifySignatures checks the oracle's proof over the returned
	// cleartexts for the given request. A non-nil error means the proof is
	// invalid and the cleartexts must not be trusted.
	VerifySignatures(id RequestID, cleartexts []byte, proof []byte) error
}

// PendingRequest is a dispatched decryption request awaiting oracle
// fulfillment.
type PendingRequest struct {
	ID      RequestID
	Handles []Ciphertext
}

// DecryptionResult carries the oracle's answer for one request: the ABI-agnostic
// cleartext payload plus a proof the engine can verify.
type DecryptionResult struct {
	ID         RequestID        `json:"id"`
	Cleartexts []byte           `json:"cleartexts"`
	Proof      crypto.Signature `json:"proof"`
}
