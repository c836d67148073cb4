package scripting

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newEngineWith(t *testing.T, script string) *Engine {
	t.Helper()
	root := t.TempDir()
	if script != "" {
		dir := filepath.Join(root, "world")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "spawn.lua"), []byte(script), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	e, err := NewEngine(root, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestSpawnLocationHook(t *testing.T) {
	e := newEngineWith(t, `
function spawn_location(width, height, shard, ship_count)
  return { x = width / 4, y = height / 4 + ship_count, dir = "left" }
end
`)
	if !e.HasSpawnHook() {
		t.Fatal("hook not detected")
	}
	loc := e.SpawnLocation(SpawnRequest{Width: 1000, Height: 700, Shard: 1, ShipCount: 3})
	if loc == nil {
		t.Fatal("nil location")
	}
	if loc.X != 250 || loc.Y != 178 || loc.Dir != "left" {
		t.Errorf("loc = %+v", *loc)
	}
}

func TestSpawnLocationAbsentOrFailing(t *testing.T) {
	if loc := newEngineWith(t, "").SpawnLocation(SpawnRequest{}); loc != nil {
		t.Errorf("no hook: got %+v", *loc)
	}
	e := newEngineWith(t, `function spawn_location() error("nope") end`)
	if loc := e.SpawnLocation(SpawnRequest{}); loc != nil {
		t.Errorf("failing hook: got %+v", *loc)
	}
	e = newEngineWith(t, `function spawn_location() return nil end`)
	if loc := e.SpawnLocation(SpawnRequest{}); loc != nil {
		t.Errorf("nil hook result: got %+v", *loc)
	}
}

func TestNewEngineRejectsBrokenScript(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "world")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644)
	if _, err := NewEngine(root, zap.NewNop()); err == nil {
		t.Error("expected a load error")
	}
}

func TestSpawnRandomFollowsInjectedRand(t *testing.T) {
	const script = `
function spawn_location(width, height)
  return { x = math.random() * width, y = math.random(1, 700), dir = "up" }
end
`
	spawn := func(seed int64) SpawnLocation {
		e := newEngineWith(t, script)
		e.SetRand(rand.New(rand.NewSource(seed)))
		loc := e.SpawnLocation(SpawnRequest{Width: 1000, Height: 700})
		if loc == nil {
			t.Fatal("nil location")
		}
		return *loc
	}

	a, b := spawn(7), spawn(7)
	if a != b {
		t.Errorf("same seed gave %+v and %+v", a, b)
	}
	if c := spawn(8); c == a {
		t.Errorf("different seeds gave the same placement %+v", c)
	}
	if a.X < 0 || a.X >= 1000 || a.Y < 1 || a.Y > 700 {
		t.Errorf("placement out of range: %+v", a)
	}
}

func TestLuaRandomRanges(t *testing.T) {
	e := newEngineWith(t, `
function spawn_location()
  local lo, hi = 100, 0
  for i = 1, 200 do
    local v = math.random(3, 5)
    if v < lo then lo = v end
    if v > hi then hi = v end
  end
  math.randomseed(42)
  return { x = lo, y = hi, dir = tostring(math.random(1)) }
end
`)
	loc := e.SpawnLocation(SpawnRequest{})
	if loc == nil {
		t.Fatal("nil location")
	}
	if loc.X != 3 || loc.Y != 5 || loc.Dir != "1" {
		t.Errorf("ranges = %+v", *loc)
	}

	bad := newEngineWith(t, `function spawn_location() return { x = math.random(5, 1) } end`)
	if loc := bad.SpawnLocation(SpawnRequest{}); loc != nil {
		t.Errorf("empty interval should fail the hook, got %+v", *loc)
	}
}
