package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/foldnet/foldnet/crypto"
)

// proofDomain separates decryption-result signatures from any other use of
// the oracle key.
const proofDomain = "foldnet/decryption-result/v1"

// MockEngine is a plaintext-backed Engine for tests and demo deployments.
//
// Every handle maps to a uint64 held in memory; "encryption" just mints a
// fresh random handle. Decryption results are signed with an Ed25519 oracle
// key so the proof-verification path exercises real signature checks even
// though no real FHE is involved.
type MockEngine struct {
	mu sync.Mutex

	values     map[Ciphertext]uint64
	pending    []PendingRequest
	dispatched map[RequestID][]Ciphertext
	nextID     RequestID

	oraclePub  crypto.PublicKey
	oraclePriv crypto.PrivateKey
}

// NewMockEngine creates a mock engine with a fresh oracle signing key.
func NewMockEngine() (*MockEngine, error) {
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &MockEngine{
		values:     make(map[Ciphertext]uint64),
		dispatched: make(map[RequestID][]Ciphertext),
		nextID:     1,
		oraclePub:  pub,
		oraclePriv: priv,
	}, nil
}

// Encrypt mints a handle for a plaintext value. Only the mock has this; the
// ledger itself never encrypts.
func (e *MockEngine) Encrypt(value uint64) (Ciphertext, error) {
	var ct Ciphertext
	if _, err := rand.Read(ct[:]); err != nil {
		return Ciphertext{}, err
	}

	e.mu.Lock()
	e.values[ct] = value
	e.mu.Unlock()
	return ct, nil
}

// IsInitialized reports whether the handle references a known encrypted value.
func (e *MockEngine) IsInitialized(ct Ciphertext) bool {
	if ct.IsZero() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.values[ct]
	return ok
}

// Add returns a handle to the sum of the two encrypted values. The zero
// handle acts as encrypted zero.
func (e *MockEngine) Add(a, b Ciphertext) (Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	av, err := e.valueLocked(a)
	if err != nil {
		return Ciphertext{}, err
	}
	bv, err := e.valueLocked(b)
	if err != nil {
		return Ciphertext{}, err
	}

	var ct Ciphertext
	if _, err := rand.Read(ct[:]); err != nil {
		return Ciphertext{}, err
	}
	e.values[ct] = av + bv
	return ct, nil
}

func (e *MockEngine) valueLocked(ct Ciphertext) (uint64, error) {
	if ct.IsZero() {
		return 0, nil
	}
	v, ok := e.values[ct]
	if !ok {
		return 0, fmt.Errorf("unknown ciphertext handle %s", ct)
	}
	return v, nil
}

// RequestDecryption queues the ordered handles for the oracle and returns
// the request identifier the callback will carry.
func (e *MockEngine) RequestDecryption(handles []Ciphertext) (RequestID, error) {
	if len(handles) == 0 {
		return 0, errors.New("no handles to decrypt")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, h := range handles {
		if _, ok := e.values[h]; !ok {
			return 0, fmt.Errorf("unknown ciphertext handle %s", h)
		}
	}

	id := e.nextID
	e.nextID++

	ordered := append([]Ciphertext(nil), handles...)
	e.dispatched[id] = ordered
	e.pending = append(e.pending, PendingRequest{ID: id, Handles: ordered})
	return id, nil
}

// VerifySignatures checks the oracle's Ed25519 proof over the cleartexts.
func (e *MockEngine) VerifySignatures(id RequestID, cleartexts []byte, proof []byte) error {
	if !crypto.Signature(proof).Verify(e.oraclePub, proofPayload(id, cleartexts)) {
		return errors.New("invalid decryption proof")
	}
	return nil
}

// TakePendingRequests drains and returns the queued decryption requests.
// Called by the oracle worker.
func (e *MockEngine) TakePendingRequests() []PendingRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.pending
	e.pending = nil
	return out
}

// Decrypt resolves a dispatched request into signed cleartexts. This is the
// oracle side of the capability; the ledger has no access to it.
func (e *MockEngine) Decrypt(id RequestID) (*DecryptionResult, error) {
	e.mu.Lock()
	handles, ok := e.dispatched[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("unknown decryption request %d", id)
	}

	plaintexts := make([]uint64, len(handles))
	for i, h := range handles {
		v, err := e.valueLocked(h)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		plaintexts[i] = v
	}
	e.mu.Unlock()

	cleartexts, err := EncodeCleartexts(plaintexts)
	if err != nil {
		return nil, err
	}

	proof, err := crypto.Sign(e.oraclePriv, proofPayload(id, cleartexts))
	if err != nil {
		return nil, err
	}

	return &DecryptionResult{ID: id, Cleartexts: cleartexts, Proof: proof}, nil
}

// OraclePublicKey returns the key decryption proofs are verified against.
func (e *MockEngine) OraclePublicKey() crypto.PublicKey {
	return e.oraclePub
}

func proofPayload(id RequestID, cleartexts []byte) []byte {
	payload := make([]byte, 0, len(proofDomain)+8+len(cleartexts))
	payload = append(payload, proofDomain...)
	payload = binary.BigEndian.AppendUint64(payload, uint64(id))
	payload = append(payload, cleartexts...)
	return payload
}

// EncodeCleartexts serializes decrypted values into the callback payload.
func EncodeCleartexts(values []uint64) ([]byte, error) {
	return json.Marshal(values)
}

// DecodeCleartexts parses a callback payload back into plaintext values.
func DecodeCleartexts(cleartexts []byte) ([]uint64, error) {
	var values []uint64
	if err := json.Unmarshal(cleartexts, &values); err != nil {
		return nil, fmt.Errorf("malformed cleartext payload: %w", err)
	}
	return values, nil
}
