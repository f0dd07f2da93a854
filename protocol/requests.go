package protocol

import (
	"time"

	"github.com/foldnet/foldnet/crypto"
	"github.com/foldnet/foldnet/fhe"
	"github.com/foldnet/foldnet/ledger"
)

// Mutating requests travel inside a Signed envelope; the signer's public key
// is the caller identity the ledger authorizes against.

// TransferOwnershipRequest hands the ledger to a new owner address.
type TransferOwnershipRequest struct {
	NewOwner ledger.Address `json:"new_owner"`
}

// ProviderRequest adds or removes a provider, depending on the route.
type ProviderRequest struct {
	Provider ledger.Address `json:"provider"`
}

// SetPausedRequest toggles the global pause flag.
type SetPausedRequest struct {
	Paused bool `json:"paused"`
}

// SetCooldownRequest replaces the rate-limit window.
type SetCooldownRequest struct {
	CooldownSeconds uint64 `json:"cooldown_seconds"`
}

// Cooldown returns the requested window as a duration.
func (r *SetCooldownRequest) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// OpenBatchRequest opens the current batch slot. The empty body still needs
// an envelope so the caller can be authenticated.
type OpenBatchRequest struct{}

// CloseBatchRequest closes the batch with the given id.
type CloseBatchRequest struct {
	BatchID ledger.BatchID `json:"batch_id"`
}

// SubmitFoldingDataRequest submits an encrypted folding score.
type SubmitFoldingDataRequest struct {
	Score fhe.Ciphertext `json:"score"`
}

// EncryptRequest asks the node's engine to mint a ciphertext handle for a
// plaintext score. Only the development engine serves this.
type EncryptRequest struct {
	Value uint64 `json:"value"`
}

// EncryptResponse returns the minted handle.
type EncryptResponse struct {
	Handle fhe.Ciphertext `json:"handle"`
}

// RequestDecryptionRequest asks for decryption of the latest closed batch.
type RequestDecryptionRequest struct{}

// RequestDecryptionResponse returns the oracle request identifier.
type RequestDecryptionResponse struct {
	RequestID fhe.RequestID `json:"request_id"`
}

// OracleCallbackRequest is the decryption oracle's answer. It is
// authenticated by the proof, not by a request envelope.
type OracleCallbackRequest struct {
	RequestID  fhe.RequestID    `json:"request_id"`
	Cleartexts []byte           `json:"cleartexts"`
	Proof      crypto.Signature `json:"proof"`
}

// LedgerInfoResponse summarizes governance state for the read surface.
type LedgerInfoResponse struct {
	LedgerID        string         `json:"ledger_id"`
	Owner           ledger.Address `json:"owner"`
	Paused          bool           `json:"paused"`
	CooldownSeconds uint64         `json:"cooldown_seconds"`
	CurrentBatchID  ledger.BatchID `json:"current_batch_id"`
}

// StatusResponse is the generic acknowledgement for mutating calls.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
