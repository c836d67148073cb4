package system

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/config"
	"github.com/spacemmo/server/internal/core/event"
	"github.com/spacemmo/server/internal/handler"
	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
)

type chanSource struct{ ch chan *net.Session }

func (c chanSource) NewSessions() <-chan *net.Session { return c.ch }

func newInputHarness(t *testing.T) (*InputSystem, chanSource, *handler.Deps, *net.SessionStore) {
	t.Helper()
	ws := newTestWorld()
	store := net.NewSessionStore()
	log := zap.NewNop()
	deps := &handler.Deps{
		Config: &config.Config{},
		Log:    log,
		World:  ws,
		Out:    handler.NewDispatcher(ws, store, log),
		Bus:    event.NewBus(),
	}
	reg := protocol.NewRegistry(log)
	handler.RegisterAll(reg, deps)
	src := chanSource{ch: make(chan *net.Session, 4)}
	return NewInputSystem(src, reg, store, deps, 8, log), src, deps, store
}

func newSession(id uint64) *net.Session {
	return net.NewSession(nil, id, net.JSON, "", net.SessionOptions{InQueueSize: 8, OutQueueSize: 32}, zap.NewNop())
}

func TestInputAcceptsDrainsAndCleansUp(t *testing.T) {
	in, src, deps, store := newInputHarness(t)
	a, b := newSession(1), newSession(2)
	src.ch <- a
	src.ch <- b
	a.InQueue <- []byte(`{"type":"join"}`)
	a.InQueue <- []byte(`not json`)
	a.InQueue <- []byte(`{"type":"warp"}`)
	b.InQueue <- []byte(`{"type":"join"}`)

	in.Update(0)
	if store.Count() != 2 {
		t.Fatalf("store has %d sessions", store.Count())
	}
	if deps.World.ShipCount() != 2 {
		t.Fatalf("ships = %d", deps.World.ShipCount())
	}
	a.FlushOutput()
	b.FlushOutput()
	for len(b.OutQueue) > 0 {
		<-b.OutQueue
	}

	a.Close()
	in.Update(0)
	if store.Get(1) != nil || deps.World.ShipBySession(1) != nil {
		t.Error("closed session not cleaned up")
	}
	b.FlushOutput()
	if len(b.OutQueue) != 1 {
		t.Fatalf("b got %d frames", len(b.OutQueue))
	}
	var del protocol.Delete
	if err := json.Unmarshal(<-b.OutQueue, &del); err != nil || del.Type != protocol.TypeDelete {
		t.Errorf("b got %+v, %v", del, err)
	}
}

func TestInputRespectsPerTickLimit(t *testing.T) {
	in, src, _, _ := newInputHarness(t)
	in.maxPerTick = 2
	s := newSession(1)
	src.ch <- s
	for i := 0; i < 5; i++ {
		s.InQueue <- []byte(`{"type":"aoi"}`)
	}
	in.Update(0)
	if len(s.InQueue) != 3 {
		t.Errorf("InQueue has %d left, want 3", len(s.InQueue))
	}
}

func TestAOIDiagPushesToOptedInSessions(t *testing.T) {
	ws := newTestWorld()
	store := net.NewSessionStore()
	out := handler.NewDispatcher(ws, store, zap.NewNop())
	diag := NewAOIDiagSystem(ws, store, out, 2)

	watcher, quiet := newSession(1), newSession(2)
	watcher.WantsAOI = true
	store.Add(watcher)
	store.Add(quiet)
	ws.AddShip(2, ws.RandomPlacement())

	diag.Update(0)
	watcher.FlushOutput()
	if len(watcher.OutQueue) != 0 {
		t.Fatal("pushed before the interval elapsed")
	}
	diag.Update(0)
	NewOutputSystem(store).Update(0)
	if len(watcher.OutQueue) != 1 || len(quiet.OutQueue) != 0 {
		t.Fatalf("watcher=%d quiet=%d frames", len(watcher.OutQueue), len(quiet.OutQueue))
	}
	var msg protocol.AOI
	if err := json.Unmarshal(<-watcher.OutQueue, &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.CellIndexes) == 0 {
		t.Error("no non-empty cells reported")
	}
}
