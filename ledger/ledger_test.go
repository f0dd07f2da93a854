package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foldnet/foldnet/ledger"
	"github.com/foldnet/foldnet/testutil"
)

func TestBatchLifecycle(t *testing.T) {
	f := testutil.NewFixture(t)

	// Fresh ledger: batch 1 exists as a slot but was never opened.
	cur := f.Ledger.CurrentBatch()
	require.Equal(t, ledger.BatchID(1), cur.ID)
	require.False(t, cur.Active)

	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
	require.True(t, f.Ledger.CurrentBatch().Active)

	// Only one batch may be active.
	require.ErrorIs(t, f.Ledger.OpenBatch(f.Owner), ledger.ErrBatchAlreadyActive)

	// Closing a non-current id fails.
	require.ErrorIs(t, f.Ledger.CloseBatch(f.Owner, 7), ledger.ErrInvalidBatchID)

	require.NoError(t, f.Ledger.CloseBatch(f.Owner, 1))

	// Counter advanced by exactly one, new slot inactive.
	require.Equal(t, ledger.BatchID(2), f.Ledger.CurrentBatchID())
	require.False(t, f.Ledger.CurrentBatch().Active)

	// The closed slot stays readable and frozen.
	closed, ok := f.Ledger.Batch(1)
	require.True(t, ok)
	require.False(t, closed.Active)

	// Closing the unopened slot fails, as does closing batch 1 again.
	require.ErrorIs(t, f.Ledger.CloseBatch(f.Owner, 2), ledger.ErrBatchNotActive)
	require.ErrorIs(t, f.Ledger.CloseBatch(f.Owner, 1), ledger.ErrInvalidBatchID)

	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
	require.Equal(t, ledger.BatchID(2), f.Ledger.CurrentBatch().ID)

	opened := f.Recorder.OfKind(ledger.KindBatchOpened)
	require.Len(t, opened, 2)
	require.Equal(t, ledger.BatchID(1), opened[0].(ledger.BatchOpened).BatchID)
	require.Equal(t, ledger.BatchID(2), opened[1].(ledger.BatchOpened).BatchID)
}

func TestOpenBatchAuthorization(t *testing.T) {
	f := testutil.NewFixture(t)
	intruder := testutil.NewAddress(t)

	err := f.Ledger.OpenBatch(intruder)
	require.ErrorIs(t, err, ledger.ErrNotOwner)
	require.Equal(t, ledger.CategoryAuthorization, ledger.Categorize(err))
	require.Empty(t, f.Recorder.OfKind(ledger.KindBatchOpened))
}

func TestSubmitFoldingData(t *testing.T) {
	f := testutil.NewFixture(t)
	providerA := f.AddProvider(t)
	providerB := f.AddProvider(t)

	require.NoError(t, f.Ledger.OpenBatch(f.Owner))

	scoreA := f.MustEncrypt(t, 5)
	scoreB := f.MustEncrypt(t, 3)
	require.NoError(t, f.Ledger.SubmitFoldingData(providerA, scoreA))
	require.NoError(t, f.Ledger.SubmitFoldingData(providerB, scoreB))

	cur := f.Ledger.CurrentBatch()
	require.Equal(t, uint64(2), cur.SubmissionCount)
	require.True(t, f.Engine.IsInitialized(cur.TotalScore))

	submitted := f.Recorder.OfKind(ledger.KindFoldingDataSubmitted)
	require.Len(t, submitted, 2)
	first := submitted[0].(ledger.FoldingDataSubmitted)
	require.Equal(t, providerA, first.Provider)
	// The event carries the ciphertext handle, not a plaintext.
	require.Equal(t, scoreA, first.Score)
}

func TestSubmitFoldingDataRejections(t *testing.T) {
	f := testutil.NewFixture(t, testutil.WithCooldown(time.Minute))
	provider := f.AddProvider(t)
	score := f.MustEncrypt(t, 42)

	// No batch open yet.
	require.ErrorIs(t, f.Ledger.SubmitFoldingData(provider, score), ledger.ErrBatchNotActive)

	require.NoError(t, f.Ledger.OpenBatch(f.Owner))

	// Non-provider.
	err := f.Ledger.SubmitFoldingData(testutil.NewAddress(t), score)
	require.ErrorIs(t, err, ledger.ErrNotProvider)

	// Uninitialized ciphertext: both the zero handle and a random unknown one.
	require.ErrorIs(t, f.Ledger.SubmitFoldingData(provider, [32]byte{}), ledger.ErrCiphertextNotInitialized)
	require.ErrorIs(t, f.Ledger.SubmitFoldingData(provider, [32]byte{1, 2, 3}), ledger.ErrCiphertextNotInitialized)

	// Paused ledger rejects submissions regardless of batch state.
	require.NoError(t, f.Ledger.SetPaused(f.Owner, true))
	err = f.Ledger.SubmitFoldingData(provider, score)
	require.ErrorIs(t, err, ledger.ErrPaused)
	require.Equal(t, ledger.CategoryAvailability, ledger.Categorize(err))
	require.NoError(t, f.Ledger.SetPaused(f.Owner, false))

	// None of the failures touched the batch.
	cur := f.Ledger.CurrentBatch()
	require.Zero(t, cur.SubmissionCount)
	require.True(t, cur.TotalScore.IsZero())
	require.Empty(t, f.Recorder.OfKind(ledger.KindFoldingDataSubmitted))

	// And none consumed the provider's cooldown.
	require.NoError(t, f.Ledger.SubmitFoldingData(provider, score))
}

func TestSubmissionCooldown(t *testing.T) {
	f := testutil.NewFixture(t, testutil.WithCooldown(30*time.Second))
	provider := f.AddProvider(t)
	require.NoError(t, f.Ledger.OpenBatch(f.Owner))

	require.NoError(t, f.Ledger.SubmitFoldingData(provider, f.MustEncrypt(t, 1)))

	// Within the window: rejected, and the rejection does not extend it.
	f.Clock.Advance(29 * time.Second)
	err := f.Ledger.SubmitFoldingData(provider, f.MustEncrypt(t, 2))
	require.ErrorIs(t, err, ledger.ErrCooldownActive)
	require.Equal(t, ledger.CategoryRateLimit, ledger.Categorize(err))

	// Exactly at the boundary: allowed.
	f.Clock.Advance(1 * time.Second)
	require.NoError(t, f.Ledger.SubmitFoldingData(provider, f.MustEncrypt(t, 2)))

	// Cooldowns are tracked per caller.
	other := f.AddProvider(t)
	require.NoError(t, f.Ledger.SubmitFoldingData(other, f.MustEncrypt(t, 3)))
}

func TestProviderManagementIdempotence(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)

	// Re-adding emits no second event.
	require.NoError(t, f.Ledger.AddProvider(f.Owner, provider))
	require.Len(t, f.Recorder.OfKind(ledger.KindProviderAdded), 1)

	// Removing a non-provider emits nothing.
	require.NoError(t, f.Ledger.RemoveProvider(f.Owner, testutil.NewAddress(t)))
	require.Empty(t, f.Recorder.OfKind(ledger.KindProviderRemoved))

	require.NoError(t, f.Ledger.RemoveProvider(f.Owner, provider))
	require.False(t, f.Ledger.IsProvider(provider))
	require.Len(t, f.Recorder.OfKind(ledger.KindProviderRemoved), 1)

	// The owner starts as a provider and may be removed like anyone else.
	require.True(t, f.Ledger.IsProvider(f.Owner))
	require.NoError(t, f.Ledger.RemoveProvider(f.Owner, f.Owner))
	require.False(t, f.Ledger.IsProvider(f.Owner))
}

func TestTransferOwnershipUnvalidated(t *testing.T) {
	f := testutil.NewFixture(t)
	next := testutil.NewAddress(t)

	require.ErrorIs(t, f.Ledger.TransferOwnership(next, next), ledger.ErrNotOwner)

	require.NoError(t, f.Ledger.TransferOwnership(f.Owner, next))
	require.Equal(t, next, f.Ledger.Owner())
	require.ErrorIs(t, f.Ledger.OpenBatch(f.Owner), ledger.ErrNotOwner)
	require.NoError(t, f.Ledger.OpenBatch(next))

	// Ownership transfer is deliberately unvalidated: transferring to the
	// empty address bricks the governance surface and is still accepted.
	require.NoError(t, f.Ledger.TransferOwnership(next, ledger.Address("")))
	require.ErrorIs(t, f.Ledger.CloseBatch(next, 1), ledger.ErrNotOwner)
}

func TestGovernanceBypassesPauseAndCooldown(t *testing.T) {
	f := testutil.NewFixture(t, testutil.WithCooldown(time.Hour))

	require.NoError(t, f.Ledger.SetPaused(f.Owner, true))

	// Governance keeps working while paused, with no rate limiting.
	require.NoError(t, f.Ledger.AddProvider(f.Owner, testutil.NewAddress(t)))
	require.NoError(t, f.Ledger.AddProvider(f.Owner, testutil.NewAddress(t)))
	require.NoError(t, f.Ledger.SetCooldown(f.Owner, time.Minute))
	require.NoError(t, f.Ledger.TransferOwnership(f.Owner, f.Owner))

	// Batch operations do not.
	require.ErrorIs(t, f.Ledger.OpenBatch(f.Owner), ledger.ErrPaused)

	require.NoError(t, f.Ledger.SetPaused(f.Owner, false))
	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
}

func TestSetCooldownEmitsOldAndNew(t *testing.T) {
	f := testutil.NewFixture(t, testutil.WithCooldown(10*time.Second))

	require.NoError(t, f.Ledger.SetCooldown(f.Owner, 25*time.Second))

	events := f.Recorder.OfKind(ledger.KindCooldownSet)
	require.Len(t, events, 1)
	e := events[0].(ledger.CooldownSet)
	require.Equal(t, 10*time.Second, e.Old)
	require.Equal(t, 25*time.Second, e.New)
	require.Equal(t, 25*time.Second, f.Ledger.Cooldown())
}

func TestAtMostOneActiveBatch(t *testing.T) {
	f := testutil.NewFixture(t)

	active := func() int {
		n := 0
		for id := ledger.BatchID(1); id <= f.Ledger.CurrentBatchID(); id++ {
			if b, ok := f.Ledger.Batch(id); ok && b.Active {
				n++
			}
		}
		return n
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Ledger.OpenBatch(f.Owner))
		require.Equal(t, 1, active())
		require.NoError(t, f.Ledger.CloseBatch(f.Owner, f.Ledger.CurrentBatchID()))
		require.Equal(t, 0, active())
	}
}
