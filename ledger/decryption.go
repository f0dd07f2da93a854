package ledger

import (
	"fmt"

	"github.com/foldnet/foldnet/crypto"
	"github.com/foldnet/foldnet/fhe"
)

// decryptionHandles builds the exact ordered handle list submitted for
// decryption of a batch. The callback path must rebuild the identical list,
// so both sides go through this one function.
func decryptionHandles(b *Batch) []fhe.Ciphertext {
	return []fhe.Ciphertext{b.TotalScore}
}

// commitmentFor computes the binding digest over the handle list and this
// ledger's identity.
func (l *Ledger) commitmentFor(handles []fhe.Ciphertext) crypto.Commitment {
	raw := make([][32]byte, len(handles))
	for i, h := range handles {
		raw[i] = [32]byte(h)
	}
	return crypto.StateCommitment(l.id, raw)
}

// RequestBatchScoreDecryption dispatches decryption of the most recently
// closed batch's total to the external oracle.
//
// Closing a batch advances the current-batch counter, so the closed batch
// being decrypted is the one directly behind the current slot. The request
// is rejected while a batch is open for collection, and rejected when the
// closed batch holds no submissions. A snapshot commitment over the
// dispatched handles is stored alongside the request so the callback can
// detect any intervening mutation.
func (l *Ledger) RequestBatchScoreDecryption(caller Address) (fhe.RequestID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return 0, ErrNotOwner
	}
	if l.paused {
		return 0, ErrPaused
	}

	now := l.now()
	if last, ok := l.lastDecryption[caller]; ok && now.Before(last.Add(l.cooldown)) {
		return 0, ErrCooldownActive
	}

	// The current slot only exists once opened, and leaves the current
	// position the moment it is closed. So an existing current slot means
	// collection is still in progress.
	if cur, ok := l.batches[l.currentBatchID]; ok && cur.Active {
		return 0, ErrBatchStillActive
	}

	b, ok := l.batches[l.currentBatchID-1]
	if !ok || b.SubmissionCount == 0 {
		return 0, ErrNothingToDecrypt
	}

	handles := decryptionHandles(b)
	stateHash := l.commitmentFor(handles)

	id, err := l.engine.RequestDecryption(handles)
	if err != nil {
		return 0, fmt.Errorf("dispatching decryption: %w", err)
	}

	l.contexts[id] = &DecryptionContext{
		BatchID:   b.ID,
		StateHash: stateHash,
	}
	l.lastDecryption[caller] = now
	l.emit(DecryptionRequested{BatchID: b.ID, RequestID: id, StateHash: stateHash})
	l.log.Info("decryption requested", "batchID", b.ID, "requestID", id)
	return id, nil
}

// OnDecryptionResult consumes the oracle's callback for a previously
// dispatched request.
//
// The stored context transitions requested -> processed exactly once. Every
// failure leaves the context untouched: a replayed callback is rejected, a
// callback whose recomputed commitment no longer matches the snapshot is
// rejected, and a callback with an invalid proof or malformed cleartexts is
// rejected before any state mutation.
func (l *Ledger) OnDecryptionResult(id fhe.RequestID, cleartexts []byte, proof []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dc, ok := l.contexts[id]
	if !ok {
		return ErrUnknownRequest
	}
	if dc.Processed {
		return ErrReplayAttempt
	}

	b, ok := l.batches[dc.BatchID]
	if !ok {
		return ErrStateMismatch
	}
	if l.commitmentFor(decryptionHandles(b)) != dc.StateHash {
		return ErrStateMismatch
	}

	if err := l.engine.VerifySignatures(id, cleartexts, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	values, err := fhe.DecodeCleartexts(cleartexts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCleartexts, err)
	}
	if len(values) != 1 {
		return fmt.Errorf("%w: expected 1 cleartext, got %d", ErrMalformedCleartexts, len(values))
	}

	dc.Processed = true
	l.emit(DecryptionCompleted{BatchID: dc.BatchID, RequestID: id, Value: values[0]})
	l.log.Info("decryption completed", "batchID", dc.BatchID, "requestID", id, "value", values[0])
	return nil
}

// DecryptionContextInfo returns a copy of the stored context for a request.
func (l *Ledger) DecryptionContextInfo(id fhe.RequestID) (DecryptionContext, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dc, ok := l.contexts[id]
	if !ok {
		return DecryptionContext{}, false
	}
	return *dc, true
}
