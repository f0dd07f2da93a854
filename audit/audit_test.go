package audit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foldnet/foldnet/ledger"
)

func TestBusFanout(t *testing.T) {
	bus := NewBus()

	var opened []ledger.BatchID
	var all []ledger.EventKind
	require.NoError(t, bus.Subscribe(ledger.KindBatchOpened, func(e ledger.Event) {
		opened = append(opened, e.(ledger.BatchOpened).BatchID)
	}))
	require.NoError(t, bus.SubscribeAll(func(e ledger.Event) {
		all = append(all, e.Kind())
	}))

	bus.Emit(ledger.BatchOpened{BatchID: 1})
	bus.Emit(ledger.PauseToggled{Paused: true})
	bus.Emit(ledger.BatchOpened{BatchID: 2})

	require.Equal(t, []ledger.BatchID{1, 2}, opened)
	require.Equal(t, []ledger.EventKind{
		ledger.KindBatchOpened,
		ledger.KindPauseToggled,
		ledger.KindBatchOpened,
	}, all)
}

func TestMemoryTrailOrderAndBound(t *testing.T) {
	trail := NewMemoryTrail(3)

	for i := 1; i <= 5; i++ {
		trail.Emit(ledger.BatchOpened{BatchID: ledger.BatchID(i)})
	}

	records := trail.Records()
	require.Len(t, records, 3)
	// Oldest records are evicted; sequence numbers keep counting.
	require.Equal(t, uint64(3), records[0].Seq)
	require.Equal(t, uint64(5), records[2].Seq)
	require.Equal(t, ledger.BatchID(5), records[2].Event.(ledger.BatchOpened).BatchID)
}

func TestFanoutOrdering(t *testing.T) {
	first := NewMemoryTrail(0)
	second := NewMemoryTrail(0)
	sink := Fanout(first, second)

	sink.Emit(ledger.BatchOpened{BatchID: 9})

	require.Equal(t, 1, first.Len())
	require.Equal(t, 1, second.Len())
}
