package oracle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foldnet/foldnet/ledger"
	"github.com/foldnet/foldnet/oracle"
	"github.com/foldnet/foldnet/testutil"
)

func TestLocalOracleFulfillsRequest(t *testing.T) {
	f := testutil.NewFixture(t)

	o := oracle.NewLocal(f.Engine, f.Ledger, oracle.WithPollInterval(5*time.Millisecond))
	o.Start(context.Background())
	defer o.Stop()

	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
	provider := f.AddProvider(t)
	require.NoError(t, f.Ledger.SubmitFoldingData(provider, f.MustEncrypt(t, 5)))
	other := f.AddProvider(t)
	require.NoError(t, f.Ledger.SubmitFoldingData(other, f.MustEncrypt(t, 3)))
	require.NoError(t, f.Ledger.CloseBatch(f.Owner, 1))

	id, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		dc, ok := f.Ledger.DecryptionContextInfo(id)
		return ok && dc.Processed
	}, 2*time.Second, 5*time.Millisecond)

	completed := f.Recorder.OfKind(ledger.KindDecryptionCompleted)
	require.Len(t, completed, 1)
	e := completed[0].(ledger.DecryptionCompleted)
	require.Equal(t, ledger.BatchID(1), e.BatchID)
	require.Equal(t, uint64(8), e.Value)
}

func TestLocalOracleStartStopIdempotent(t *testing.T) {
	f := testutil.NewFixture(t)
	o := oracle.NewLocal(f.Engine, f.Ledger, oracle.WithPollInterval(5*time.Millisecond))

	o.Start(context.Background())
	o.Start(context.Background())
	o.Stop()
	o.Stop()
}

func TestLocalOracleLatencyWindow(t *testing.T) {
	f := testutil.NewFixture(t)

	o := oracle.NewLocal(f.Engine, f.Ledger,
		oracle.WithPollInterval(5*time.Millisecond),
		oracle.WithLatency(50*time.Millisecond),
	)
	o.Start(context.Background())
	defer o.Stop()

	require.NoError(t, f.Ledger.OpenBatch(f.Owner))
	provider := f.AddProvider(t)
	require.NoError(t, f.Ledger.SubmitFoldingData(provider, f.MustEncrypt(t, 2)))
	require.NoError(t, f.Ledger.CloseBatch(f.Owner, 1))

	id, err := f.Ledger.RequestBatchScoreDecryption(f.Owner)
	require.NoError(t, err)

	// During the artificial latency the context sits in the requested state;
	// other operations proceed normally.
	dc, ok := f.Ledger.DecryptionContextInfo(id)
	require.True(t, ok)
	require.False(t, dc.Processed)
	require.NoError(t, f.Ledger.OpenBatch(f.Owner))

	require.Eventually(t, func() bool {
		dc, _ := f.Ledger.DecryptionContextInfo(id)
		return dc.Processed
	}, 2*time.Second, 10*time.Millisecond)
}
