package handler

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/config"
	"github.com/spacemmo/server/internal/core/event"
	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/scripting"
	"github.com/spacemmo/server/internal/world"
)

type harness struct {
	deps  *Deps
	store *net.SessionStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ws := world.NewState(world.Config{
		Bounds:     world.Bounds{Width: 1000, Height: 700},
		Rows:       35,
		Cols:       50,
		CrossSize1: 7,
		CrossSize2: 15,
		Kinematics: world.DefaultKinematics(),
	})
	ws.SetRand(rand.New(rand.NewSource(3)))
	ws.SetClock(func() time.Time { return time.UnixMilli(42) })
	store := net.NewSessionStore()
	log := zap.NewNop()
	return &harness{
		store: store,
		deps: &Deps{
			Config: &config.Config{},
			Log:    log,
			World:  ws,
			Out:    NewDispatcher(ws, store, log),
			Bus:    event.NewBus(),
			Shard:  1,
		},
	}
}

func (h *harness) connect(id uint64) *net.Session {
	sess := net.NewSession(nil, id, net.JSON, "127.0.0.1", net.SessionOptions{
		InQueueSize:  4,
		OutQueueSize: 64,
	}, zap.NewNop())
	h.store.Add(sess)
	return sess
}

// received flushes the session and decodes every frame it was sent.
func received(t *testing.T, sess *net.Session) []map[string]any {
	t.Helper()
	sess.FlushOutput()
	var out []map[string]any
	for len(sess.OutQueue) > 0 {
		var m map[string]any
		if err := json.Unmarshal(<-sess.OutQueue, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func types(msgs []map[string]any) []string {
	var out []string
	for _, m := range msgs {
		out = append(out, m["type"].(string))
	}
	return out
}

func TestJoinAnnouncesBothWays(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1)
	HandleJoin(a, &protocol.Inbound{Type: protocol.TypeJoin}, h.deps)
	received(t, a)

	b := h.connect(2)
	HandleJoin(b, &protocol.Inbound{Type: protocol.TypeJoin}, h.deps)

	if b.State() != protocol.StateJoined {
		t.Errorf("state = %s", b.State())
	}
	gotB := received(t, b)
	if len(gotB) != 2 || gotB[0]["type"] != "join" || gotB[1]["type"] != "new" {
		t.Fatalf("joiner got %v", types(gotB))
	}
	if gotB[0]["shard"].(float64) != 1 || gotB[0]["id"].(float64) != 2 {
		t.Errorf("join reply = %v", gotB[0])
	}
	if gotB[1]["id"].(float64) != 1 {
		t.Errorf("existing ship = %v", gotB[1])
	}

	gotA := received(t, a)
	if len(gotA) != 1 || gotA[0]["type"] != "new" || gotA[0]["id"].(float64) != 2 {
		t.Errorf("existing player got %v", gotA)
	}
}

func TestJoinWithCarriedPosition(t *testing.T) {
	h := newHarness(t)
	sess := h.connect(1)
	HandleJoin(sess, &protocol.Inbound{
		Type:     protocol.TypeJoin,
		Position: &protocol.Position{X: 500.5, Y: 100, Dir: "right"},
	}, h.deps)

	ship := h.deps.World.ShipBySession(1)
	if ship == nil {
		t.Fatal("no ship")
	}
	if ship.X != 500.5 || ship.Y != 100 || ship.Dir != world.Right {
		t.Errorf("ship placed at %+v", ship.Motion)
	}
	msgs := received(t, sess)
	if msgs[0]["x"].(float64) != 500.5 || msgs[0]["dir"] != "right" {
		t.Errorf("join reply = %v", msgs[0])
	}
}

func TestTurnReachesOnlyTheAudience(t *testing.T) {
	h := newHarness(t)
	near := h.connect(1)
	far := h.connect(2)
	mover := h.connect(3)
	HandleJoin(near, &protocol.Inbound{Position: &protocol.Position{X: 110, Y: 110, Dir: "up"}}, h.deps)
	HandleJoin(far, &protocol.Inbound{Position: &protocol.Position{X: 900, Y: 650, Dir: "up"}}, h.deps)
	HandleJoin(mover, &protocol.Inbound{Position: &protocol.Position{X: 100, Y: 100, Dir: "up"}}, h.deps)
	for _, s := range []*net.Session{near, far, mover} {
		received(t, s)
	}

	HandleTurn(mover, &protocol.Inbound{Type: protocol.TypeTurn, X: 102, Y: 100, Dir: "left"}, h.deps)

	gotNear := received(t, near)
	if len(gotNear) != 1 || gotNear[0]["type"] != "turn" || gotNear[0]["dir"] != "left" {
		t.Errorf("near got %v", gotNear)
	}
	if got := received(t, far); len(got) != 0 {
		t.Errorf("far got %v", types(got))
	}
	if got := received(t, mover); len(got) != 0 {
		t.Errorf("sender got its own turn: %v", types(got))
	}
	ship := h.deps.World.ShipBySession(3)
	if ship.X != 102 || ship.Dir != world.Left {
		t.Errorf("ship not snapped: %+v", ship.Motion)
	}
}

func TestTurnWithBadDirectionIgnored(t *testing.T) {
	h := newHarness(t)
	sess := h.connect(1)
	HandleJoin(sess, &protocol.Inbound{Position: &protocol.Position{X: 100, Y: 100, Dir: "up"}}, h.deps)
	HandleTurn(sess, &protocol.Inbound{X: 300, Y: 300, Dir: "sideways"}, h.deps)
	if ship := h.deps.World.ShipBySession(1); ship.X != 100 {
		t.Errorf("ship moved on an invalid turn: %+v", ship.Motion)
	}
}

func TestFireTellsFirerAndAudience(t *testing.T) {
	h := newHarness(t)
	firer := h.connect(1)
	far := h.connect(2)
	HandleJoin(firer, &protocol.Inbound{Position: &protocol.Position{X: 100, Y: 100, Dir: "up"}}, h.deps)
	HandleJoin(far, &protocol.Inbound{Position: &protocol.Position{X: 900, Y: 650, Dir: "up"}}, h.deps)
	received(t, firer)
	received(t, far)

	HandleFire(firer, &protocol.Inbound{Type: protocol.TypeFire, X: 100, Y: 100, Dir: "right"}, h.deps)

	got := received(t, firer)
	if len(got) != 1 || got[0]["type"] != "fire" || got[0]["rocket"].(float64) != 42 {
		t.Errorf("firer got %v", got)
	}
	if got := received(t, far); len(got) != 0 {
		t.Errorf("far ship got %v", types(got))
	}
	if h.deps.World.RocketCount() != 1 {
		t.Error("rocket not created")
	}
}

func TestDisconnectDeletesShip(t *testing.T) {
	h := newHarness(t)
	a := h.connect(1)
	b := h.connect(2)
	HandleJoin(a, &protocol.Inbound{}, h.deps)
	HandleJoin(b, &protocol.Inbound{}, h.deps)
	received(t, a)
	received(t, b)
	shipA := h.deps.World.ShipBySession(1)

	a.Close()
	HandleDisconnect(a, h.deps)

	if h.deps.World.Ship(shipA.ID) != nil {
		t.Error("ship survived its session")
	}
	got := received(t, b)
	if len(got) != 1 || got[0]["type"] != "delete" || got[0]["id"].(float64) != float64(shipA.ID) {
		t.Errorf("remaining ship got %v", got)
	}

	// A session that never joined is a no-op.
	c := h.connect(3)
	HandleDisconnect(c, h.deps)
}

func TestRegistryRoutesByState(t *testing.T) {
	h := newHarness(t)
	reg := protocol.NewRegistry(zap.NewNop())
	RegisterAll(reg, h.deps)
	sess := h.connect(1)

	if err := reg.Dispatch(sess, sess.State(), &protocol.Inbound{Type: protocol.TypeTurn, Dir: "up"}); err == nil {
		t.Error("turn accepted before join")
	}
	if err := reg.Dispatch(sess, sess.State(), &protocol.Inbound{Type: protocol.TypeAOI}); err != nil {
		t.Errorf("aoi before join: %v", err)
	}
	if !sess.WantsAOI {
		t.Error("aoi opt-in not recorded")
	}
	if err := reg.Dispatch(sess, sess.State(), &protocol.Inbound{Type: protocol.TypeJoin}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := reg.Dispatch(sess, sess.State(), &protocol.Inbound{Type: protocol.TypeJoin}); err == nil {
		t.Error("second join accepted")
	}
}

func TestMergeExcept(t *testing.T) {
	got := mergeExcept([]world.EntityID{5, 1, 3}, []world.EntityID{3, 2}, 5)
	want := []world.EntityID{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// sendMsgPack pushes msg through the binary codec and the registry, the way
// InputSystem does for a ?codec=msgpack session.
func sendMsgPack(t *testing.T, reg *protocol.Registry, sess *net.Session, msg protocol.Inbound) {
	t.Helper()
	frame, err := net.MsgPack.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var in protocol.Inbound
	if err := sess.Decode(frame, &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := reg.Dispatch(sess, sess.State(), &in); err != nil {
		t.Fatalf("dispatch %s: %v", msg.Type, err)
	}
}

func TestNonFiniteCoordinatesAreDiscarded(t *testing.T) {
	h := newHarness(t)
	reg := protocol.NewRegistry(zap.NewNop())
	RegisterAll(reg, h.deps)
	ws := h.deps.World
	subs := ws.Interest().Subscriptions()

	watcher := h.connect(1)
	HandleJoin(watcher, &protocol.Inbound{Position: &protocol.Position{X: 100, Y: 100, Dir: "up"}}, h.deps)
	received(t, watcher)

	bad := net.NewSession(nil, 2, net.MsgPack, "127.0.0.1", net.SessionOptions{
		InQueueSize:  4,
		OutQueueSize: 64,
	}, zap.NewNop())
	h.store.Add(bad)

	sendMsgPack(t, reg, bad, protocol.Inbound{
		Type:     protocol.TypeJoin,
		Position: &protocol.Position{X: math.NaN(), Y: 100, Dir: "up"},
	})
	ship := ws.ShipBySession(2)
	if ship == nil {
		t.Fatal("join with a non-finite position should still place the ship")
	}
	if !world.Finite(ship.X, ship.Y) || !subs.Contains(ws.CellOf(ship.Motion), ship.ID) {
		t.Fatalf("ship placed at %+v", ship.Motion)
	}
	before := ship.Motion
	received(t, watcher)

	sendMsgPack(t, reg, bad, protocol.Inbound{Type: protocol.TypeTurn, X: math.NaN(), Y: 50, Dir: "left"})
	sendMsgPack(t, reg, bad, protocol.Inbound{Type: protocol.TypeTurn, X: 50, Y: math.Inf(1), Dir: "left"})
	if ship.Motion != before {
		t.Errorf("ship moved on a non-finite turn: %+v", ship.Motion)
	}

	sendMsgPack(t, reg, bad, protocol.Inbound{Type: protocol.TypeFire, X: math.Inf(-1), Y: 10, Dir: "up"})
	if ws.RocketCount() != 0 {
		t.Error("rocket created from a non-finite position")
	}
	if got := received(t, watcher); len(got) != 0 {
		t.Errorf("watcher got %v", types(got))
	}

	bad.Close()
	HandleDisconnect(bad, h.deps)
	if ws.ShipBySession(2) != nil {
		t.Fatal("ship survived disconnect")
	}
	for _, cell := range subs.NonEmptyCells() {
		if subs.Contains(cell, ship.ID) {
			t.Fatalf("ship %d still subscribed to cell %d", ship.ID, cell)
		}
	}
}

func TestJoinIgnoresNonFiniteScriptedSpawn(t *testing.T) {
	h := newHarness(t)
	engine, err := scripting.NewEngine(writeSpawnScript(t, `
function spawn_location() return { x = 0/0, y = 1/0 } end
`), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	h.deps.Scripting = engine

	sess := h.connect(1)
	HandleJoin(sess, &protocol.Inbound{Type: protocol.TypeJoin}, h.deps)
	ship := h.deps.World.ShipBySession(1)
	if ship == nil || !world.Finite(ship.X, ship.Y) {
		t.Fatalf("ship = %+v", ship)
	}
}

// writeSpawnScript lays out a scripts dir holding one world script.
func writeSpawnScript(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "world")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "spawn.lua"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}
