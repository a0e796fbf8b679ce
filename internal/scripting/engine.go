package scripting

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/replication"
	"github.com/l1jgo/simcore/internal/sim"
)

//go:embed lua/*.lua
var builtin embed.FS

// Engine wraps a single gopher-lua VM that supplies the motion rules.
// Single-goroutine access only (game loop). Reload builds a fresh VM and
// swaps it in only when every script loads.
type Engine struct {
	vm       *lua.LState
	dir      string
	log      *zap.Logger
	fallback sim.Rules
	reloads  int
}

// NewEngine loads the built-in scripts, then every .lua file of scriptsDir
// in name order. An empty scriptsDir uses the built-ins only.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{dir: scriptsDir, log: log, fallback: sim.NewDefaultRules()}
	vm, err := e.load()
	if err != nil {
		return nil, err
	}
	e.vm = vm
	return e, nil
}

func (e *Engine) load() (*lua.LState, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	entries, err := builtin.ReadDir("lua")
	if err != nil {
		vm.Close()
		return nil, err
	}
	for _, entry := range entries {
		src, err := builtin.ReadFile("lua/" + entry.Name())
		if err != nil {
			vm.Close()
			return nil, err
		}
		if err := vm.DoString(string(src)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load builtin %s: %w", entry.Name(), err)
		}
	}

	if err := e.loadDir(vm, e.dir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if vm.GetGlobal("motion_step").Type() != lua.LTFunction {
		vm.Close()
		return nil, fmt.Errorf("load scripts: motion_step is not a function")
	}
	return vm, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(vm *lua.LState, dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Reload rebuilds the VM from disk. On failure the running rules stay.
func (e *Engine) Reload() error {
	vm, err := e.load()
	if err != nil {
		return err
	}
	e.vm.Close()
	e.vm = vm
	e.reloads++
	e.log.Info("lua scripts reloaded", zap.String("dir", e.dir), zap.Int("count", e.reloads))
	return nil
}

// Dir returns the watched scripts directory.
func (e *Engine) Dir() string { return e.dir }

// Step calls the Lua motion_step function. Script errors fall back to the
// built-in Go rules for this step.
func (e *Engine) Step(s sim.MotionState, in replication.Input, dt float32) sim.MotionState {
	fn := e.vm.GetGlobal("motion_step")
	a := in.Actions
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    6,
		Protect: true,
	},
		lua.LNumber(s.Pos.X), lua.LNumber(s.Pos.Y), lua.LNumber(s.Pos.Z),
		lua.LNumber(s.Vel.X), lua.LNumber(s.Vel.Y), lua.LNumber(s.Vel.Z),
		lua.LNumber(in.Direction.X), lua.LNumber(in.Direction.Y), lua.LNumber(in.Direction.Z),
		lua.LBool(a.Has(replication.ActionStrafeLeft)),
		lua.LBool(a.Has(replication.ActionForward)),
		lua.LBool(a.Has(replication.ActionBoost)),
		lua.LBool(a.Has(replication.ActionStop)),
		lua.LNumber(dt),
	); err != nil {
		e.log.Error("lua motion_step error", zap.Error(err))
		return e.fallback.Step(s, in, dt)
	}

	var out [6]float32
	for i := range out {
		out[i] = float32(lua.LVAsNumber(e.vm.Get(i - 6)))
	}
	e.vm.Pop(6)
	return sim.MotionState{
		Pos: vmath.Vec3{X: out[0], Y: out[1], Z: out[2]},
		Vel: vmath.Vec3{X: out[3], Y: out[4], Z: out[5]},
	}
}

func (e *Engine) Close() {
	e.vm.Close()
}
