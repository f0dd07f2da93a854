package ledger

import (
	"time"

	"github.com/foldnet/foldnet/crypto"
	"github.com/foldnet/foldnet/fhe"
)

// EventKind names a ledger state transition.
type EventKind string

const (
	KindOwnershipTransferred EventKind = "ownership_transferred"
	KindProviderAdded        EventKind = "provider_added"
	KindProviderRemoved      EventKind = "provider_removed"
	KindPauseToggled         EventKind = "pause_toggled"
	KindCooldownSet          EventKind = "cooldown_set"
	KindBatchOpened          EventKind = "batch_opened"
	KindBatchClosed          EventKind = "batch_closed"
	KindFoldingDataSubmitted EventKind = "folding_data_submitted"
	KindDecryptionRequested  EventKind = "decryption_requested"
	KindDecryptionCompleted  EventKind = "decryption_completed"
)

// Event is a notification of a completed ledger state transition. Exactly one
// event is emitted per successful mutating operation, after all state changes
// for that operation have been applied.
type Event interface {
	Kind() EventKind
}

// EventSink consumes ledger events. Sinks are invoked synchronously while the
// ledger lock is held, so they must be fast and must never call back into the
// ledger.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(Event)

// Emit implements EventSink.
func (f SinkFunc) Emit(e Event) { f(e) }

// OwnershipTransferred fires when the owner identity changes.
type OwnershipTransferred struct {
	Previous Address `json:"previous"`
	New      Address `json:"new"`
}

func (OwnershipTransferred) Kind() EventKind { return KindOwnershipTransferred }

// ProviderAdded fires when a new provider is authorized. Re-adding an
// existing provider emits nothing.
type ProviderAdded struct {
	Provider Address `json:"provider"`
}

func (ProviderAdded) Kind() EventKind { return KindProviderAdded }

// ProviderRemoved fires when a provider is deauthorized. Removing a
// non-provider emits nothing.
type ProviderRemoved struct {
	Provider Address `json:"provider"`
}

func (ProviderRemoved) Kind() EventKind { return KindProviderRemoved }

// PauseToggled fires on every SetPaused call, whether or not the flag changed.
type PauseToggled struct {
	Paused bool `json:"paused"`
}

func (PauseToggled) Kind() EventKind { return KindPauseToggled }

// CooldownSet carries the previous and new cooldown durations.
type CooldownSet struct {
	Old time.Duration `json:"old"`
	New time.Duration `json:"new"`
}

func (CooldownSet) Kind() EventKind { return KindCooldownSet }

// BatchOpened fires when a batch becomes the active collection window.
type BatchOpened struct {
	BatchID BatchID `json:"batch_id"`
}

func (BatchOpened) Kind() EventKind { return KindBatchOpened }

// BatchClosed carries the frozen encrypted total and final count.
type BatchClosed struct {
	BatchID         BatchID        `json:"batch_id"`
	TotalScore      fhe.Ciphertext `json:"total_score"`
	SubmissionCount uint64         `json:"submission_count"`
}

func (BatchClosed) Kind() EventKind { return KindBatchClosed }

// FoldingDataSubmitted carries the ciphertext handle of the contribution,
// never its plaintext value.
type FoldingDataSubmitted struct {
	BatchID  BatchID        `json:"batch_id"`
	Provider Address        `json:"provider"`
	Score    fhe.Ciphertext `json:"score"`
}

func (FoldingDataSubmitted) Kind() EventKind { return KindFoldingDataSubmitted }

// DecryptionRequested records the request identifier and the binding
// commitment snapshotted at request time.
type DecryptionRequested struct {
	BatchID   BatchID           `json:"batch_id"`
	RequestID fhe.RequestID     `json:"request_id"`
	StateHash crypto.Commitment `json:"state_hash"`
}

func (DecryptionRequested) Kind() EventKind { return KindDecryptionRequested }

// DecryptionCompleted carries the plaintext batch total. Fires exactly once
// per request identifier.
type DecryptionCompleted struct {
	BatchID   BatchID       `json:"batch_id"`
	RequestID fhe.RequestID `json:"request_id"`
	Value     uint64        `json:"value"`
}

func (DecryptionCompleted) Kind() EventKind { return KindDecryptionCompleted }
