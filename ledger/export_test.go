package ledger

import "github.com/foldnet/foldnet/fhe"

// OverrideBatchTotal swaps a stored batch's encrypted total, simulating
// out-of-band mutation of ledger state between a decryption request and its
// callback.
func (l *Ledger) OverrideBatchTotal(id BatchID, ct fhe.Ciphertext) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches[id].TotalScore = ct
}
