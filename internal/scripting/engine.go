package scripting

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for server hooks.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	rng *rand.Rand
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script under scriptsDir/world.
// A missing directory yields an engine with no hooks.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:  vm,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: log,
	}
	e.installRandom()
	if err := e.loadDir(filepath.Join(scriptsDir, "world")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load world scripts: %w", err)
	}
	return e, nil
}

// SetRand makes Lua's math.random draw from rng, normally the world's own
// generator.
func (e *Engine) SetRand(rng *rand.Rand) { e.rng = rng }

// installRandom replaces math.random and math.randomseed, which gopher-lua
// backs with the process-global generator, with ones bound to e.rng.
func (e *Engine) installRandom() {
	mathLib, ok := e.vm.GetGlobal("math").(*lua.LTable)
	if !ok {
		return
	}
	e.vm.SetField(mathLib, "random", e.vm.NewFunction(e.luaRandom))
	e.vm.SetField(mathLib, "randomseed", e.vm.NewFunction(e.luaRandomSeed))
}

// luaRandom follows Lua 5.1: random() in [0,1), random(m) in [1,m],
// random(m, n) in [m,n].
func (e *Engine) luaRandom(L *lua.LState) int {
	switch L.GetTop() {
	case 0:
		L.Push(lua.LNumber(e.rng.Float64()))
	case 1:
		n := L.CheckInt(1)
		if n < 1 {
			L.ArgError(1, "interval is empty")
		}
		L.Push(lua.LNumber(e.rng.Intn(n) + 1))
	default:
		lo, hi := L.CheckInt(1), L.CheckInt(2)
		if lo > hi {
			L.ArgError(2, "interval is empty")
		}
		L.Push(lua.LNumber(lo + e.rng.Intn(hi-lo+1)))
	}
	return 1
}

func (e *Engine) luaRandomSeed(L *lua.LState) int {
	e.rng.Seed(L.CheckInt64(1))
	return 0
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// SpawnRequest is the context passed to spawn_location.
type SpawnRequest struct {
	Width     float64
	Height    float64
	Shard     int
	ShipCount int
}

// SpawnLocation is a scripted placement. Dir may be empty, meaning the
// caller picks one.
type SpawnLocation struct {
	X   float64
	Y   float64
	Dir string
}

// HasSpawnHook reports whether a spawn_location function is defined.
func (e *Engine) HasSpawnHook() bool {
	return e.vm.GetGlobal("spawn_location") != lua.LNil
}

// SpawnLocation calls Lua spawn_location(width, height, shard, ship_count).
// Returns nil when the hook is absent, errors, or returns nil.
func (e *Engine) SpawnLocation(req SpawnRequest) *SpawnLocation {
	fn := e.vm.GetGlobal("spawn_location")
	if fn == lua.LNil {
		return nil
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(req.Width), lua.LNumber(req.Height), lua.LNumber(req.Shard), lua.LNumber(req.ShipCount)); err != nil {
		e.log.Error("lua spawn_location error", zap.Error(err))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}
	return &SpawnLocation{
		X:   lFloat(rt, "x"),
		Y:   lFloat(rt, "y"),
		Dir: lStr(rt, "dir"),
	}
}

func (e *Engine) Close() {
	e.vm.Close()
}

func lFloat(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}
