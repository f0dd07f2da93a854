package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foldnet/foldnet/fhe"
	"github.com/foldnet/foldnet/ledger"
	"github.com/foldnet/foldnet/testutil"
)

// closeBatchWithSubmissions opens batch 1, records the given scores from
// fresh providers, and closes the batch.
func closeBatchWithSubmissions(t *testing.T, f *testutil.Fixture, scores ...uint64) {
	t.Helper()
	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
	for _, s := range scores {
		provider := f.AddProvider(t)
		require.NoError(t, f.Ledger.SubmitFoldingData(provider, f.MustEncrypt(t, s)))
	}
	require.NoError(t, f.Ledger.CloseBatch(f.Owner, f.Ledger.CurrentBatchID()))
}

func TestDecryptionRoundTrip(t *testing.T) {
	f := testutil.NewFixture(t)
	closeBatchWithSubmissions(t, f, 5, 3)

	id, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)

	dc, ok := f.Ledger.DecryptionContextInfo(id)
	require.True(t, ok)
	require.Equal(t, ledger.BatchID(1), dc.BatchID)
	require.False(t, dc.Processed)

	// The oracle picks up the request and answers.
	pending := f.Engine.TakePendingRequests()
	require.Len(t, pending, 1)
	require.Equal(t, id, pending[0].ID)

	result, err := f.Engine.Decrypt(id)
	require.NoError(t, err)
	require.NoError(t, f.Ledger.OnDecryptionResult(id, result.Cleartexts, result.Proof))

	completed := f.Recorder.OfKind(ledger.KindDecryptionCompleted)
	require.Len(t, completed, 1)
	e := completed[0].(ledger.DecryptionCompleted)
	require.Equal(t, ledger.BatchID(1), e.BatchID)
	require.Equal(t, uint64(8), e.Value)

	dc, _ = f.Ledger.DecryptionContextInfo(id)
	require.True(t, dc.Processed)
}

func TestDecryptionReplayRejected(t *testing.T) {
	f := testutil.NewFixture(t)
	closeBatchWithSubmissions(t, f, 11)

	id, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)

	result, err := f.Engine.Decrypt(id)
	require.NoError(t, err)
	require.NoError(t, f.Ledger.OnDecryptionResult(id, result.Cleartexts, result.Proof))

	// A second, byte-identical callback is a replay.
	err = f.Ledger.OnDecryptionResult(id, result.Cleartexts, result.Proof)
	require.ErrorIs(t, err, ledger.ErrReplayAttempt)
	require.Equal(t, ledger.CategoryIntegrity, ledger.Categorize(err))

	// Still processed, and no second completion event fired.
	dc, _ := f.Ledger.DecryptionContextInfo(id)
	require.True(t, dc.Processed)
	require.Len(t, f.Recorder.OfKind(ledger.KindDecryptionCompleted), 1)
}

func TestDecryptionStateMismatch(t *testing.T) {
	f := testutil.NewFixture(t)
	closeBatchWithSubmissions(t, f, 7)

	id, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)

	result, err := f.Engine.Decrypt(id)
	require.NoError(t, err)

	// The referenced batch's total changes between request and callback.
	original, _ := f.Ledger.Batch(1)
	f.Ledger.OverrideBatchTotal(1, f.MustEncrypt(t, 999))

	err = f.Ledger.OnDecryptionResult(id, result.Cleartexts, result.Proof)
	require.ErrorIs(t, err, ledger.ErrStateMismatch)

	// The rejection did not consume the context; once the state matches the
	// snapshot again, the same callback goes through.
	dc, _ := f.Ledger.DecryptionContextInfo(id)
	require.False(t, dc.Processed)

	f.Ledger.OverrideBatchTotal(1, original.TotalScore)
	require.NoError(t, f.Ledger.OnDecryptionResult(id, result.Cleartexts, result.Proof))
}

func TestDecryptionInvalidProof(t *testing.T) {
	f := testutil.NewFixture(t)
	closeBatchWithSubmissions(t, f, 4)

	id, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)

	result, err := f.Engine.Decrypt(id)
	require.NoError(t, err)

	tampered := append([]byte(nil), result.Proof...)
	tampered[0] ^= 0xff
	err = f.Ledger.OnDecryptionResult(id, result.Cleartexts, tampered)
	require.ErrorIs(t, err, ledger.ErrInvalidProof)

	// Proof failure aborts before any state mutation: the request stays
	// fulfillable.
	require.NoError(t, f.Ledger.OnDecryptionResult(id, result.Cleartexts, result.Proof))
}

func TestDecryptionUnknownRequest(t *testing.T) {
	f := testutil.NewFixture(t)
	err := f.Ledger.OnDecryptionResult(fhe.RequestID(12345), nil, nil)
	require.ErrorIs(t, err, ledger.ErrUnknownRequest)
}

func TestRequestDecryptionGuards(t *testing.T) {
	f := testutil.NewFixture(t)

	// Fresh ledger: nothing has ever been collected.
	_, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.ErrorIs(t, err, ledger.ErrNothingToDecrypt)

	// Open batch: collection in progress, decryption refused.
	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
	provider := f.AddProvider(t)
	require.NoError(t, f.Ledger.SubmitFoldingData(provider, f.MustEncrypt(t, 1)))
	_, err = f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.ErrorIs(t, err, ledger.ErrBatchStillActive)

	require.NoError(t, f.Ledger.CloseBatch(f.Owner, 1))

	// Non-owner and paused rejections.
	_, err = f.Ledger.RequestBatchScoreDecryption(testutil.NewAddress(t))
	require.ErrorIs(t, err, ledger.ErrNotOwner)
	require.NoError(t, f.Ledger.SetPaused(f.Owner, true))
	_, err = f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.ErrorIs(t, err, ledger.ErrPaused)
	require.NoError(t, f.Ledger.SetPaused(f.Owner, false))

	_, err = f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)
}

func TestRequestDecryptionEmptyBatch(t *testing.T) {
	f := testutil.NewFixture(t)

	// A batch closed with zero submissions has nothing meaningful to decrypt.
	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
	require.NoError(t, f.Ledger.CloseBatch(f.Owner, 1))

	_, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.ErrorIs(t, err, ledger.ErrNothingToDecrypt)
	require.Equal(t, ledger.CategoryLifecycle, ledger.Categorize(err))
}

func TestRequestDecryptionCooldown(t *testing.T) {
	f := testutil.NewFixture(t, testutil.WithCooldown(time.Minute))
	closeBatchWithSubmissions(t, f, 2)

	_, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)

	// The decryption cooldown is tracked independently of submissions.
	_, err = f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.ErrorIs(t, err, ledger.ErrCooldownActive)

	f.Clock.Advance(time.Minute)
	_, err = f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)
}

func TestPendingRequestNeverFulfilled(t *testing.T) {
	f := testutil.NewFixture(t)
	closeBatchWithSubmissions(t, f, 9)

	id, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)

	// The callback never arrives. The context simply stays unprocessed and
	// the ledger keeps operating.
	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
	require.NoError(t, f.Ledger.CloseBatch(f.Owner, 2))

	dc, ok := f.Ledger.DecryptionContextInfo(id)
	require.True(t, ok)
	require.False(t, dc.Processed)
}
