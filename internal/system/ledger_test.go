package system

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/core/event"
	"github.com/spacemmo/server/internal/persist"
	"github.com/spacemmo/server/internal/world"
)

type mockLedger struct {
	mu      sync.Mutex
	batches [][]persist.LedgerEntry
	err     error
}

func (m *mockLedger) WriteBatch(_ context.Context, entries []persist.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, entries)
	return m.err
}

func (m *mockLedger) entries() []persist.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []persist.LedgerEntry
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func TestLedgerRecordsEventsAndFlushes(t *testing.T) {
	bus := event.NewBus()
	writer := &mockLedger{}
	ls := NewLedgerSystem(bus, writer, 3, 2, zap.NewNop())
	ls.now = func() time.Time { return time.Unix(100, 0) }
	ls.Start(context.Background())

	event.Emit(bus, event.ShipJoined{ShipID: 1, Motion: world.Motion{X: 5, Y: 6}})
	event.Emit(bus, event.RocketHit{RocketID: 77, Shooter: 1, Target: 2})
	event.Emit(bus, event.HandoffAdvised{ShipID: 1, From: 3, To: 2})
	event.Emit(bus, event.ShipLeft{ShipID: 2, Hits: 1})
	bus.SwapBuffers()
	bus.DispatchAll()

	ls.Update(0)
	if len(ls.pending) != 4 {
		t.Fatalf("pending = %d before the interval elapsed", len(ls.pending))
	}
	ls.Update(0)
	ls.Close()

	got := writer.entries()
	if len(got) != 4 {
		t.Fatalf("wrote %d entries", len(got))
	}
	wantKinds := []string{persist.KindJoin, persist.KindHit, persist.KindHandoff, persist.KindLeave}
	for i, e := range got {
		if e.Kind != wantKinds[i] {
			t.Errorf("entry %d kind = %s, want %s", i, e.Kind, wantKinds[i])
		}
		if e.Shard != 3 || !e.RecordedAt.Equal(time.Unix(100, 0)) {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
	if got[1].ShipID != 2 || got[1].OtherID != 1 || got[1].RocketID != 77 {
		t.Errorf("hit entry = %+v", got[1])
	}
	if got[2].OtherID != 2 {
		t.Errorf("handoff entry = %+v", got[2])
	}
}

func TestLedgerWriteErrorsDoNotStopTheLoop(t *testing.T) {
	bus := event.NewBus()
	writer := &mockLedger{err: errors.New("db down")}
	ls := NewLedgerSystem(bus, writer, 0, 1, zap.NewNop())
	ls.Start(context.Background())

	event.Emit(bus, event.ShipLeft{ShipID: 1})
	bus.SwapBuffers()
	bus.DispatchAll()
	ls.Update(0)

	event.Emit(bus, event.ShipLeft{ShipID: 2})
	bus.SwapBuffers()
	bus.DispatchAll()
	ls.Update(0)
	ls.Close()

	if n := len(writer.entries()); n != 2 {
		t.Errorf("attempted %d entries, want 2", n)
	}
}
