package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hordecore/server/internal/core/ecs"
	"github.com/hordecore/server/internal/damage"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for game rules.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. A missing directory yields an engine with no rules loaded.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if scriptsDir == "" {
		return e, nil
	}

	// Loose scripts first, then the rule directories
	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "damage"), filepath.Join(scriptsDir, "regen")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// LoadString runs a chunk of Lua source, for rules that ship inline.
func (e *Engine) LoadString(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load lua chunk: %w", err)
	}
	return nil
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

// Has reports whether a global function named name is defined.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// KindFunc names the kind of an actor for scripts ("player", "hostile").
type KindFunc func(id ecs.EntityID) string

// DamageHook returns a Before-phase hook backed by the Lua function
// before_damage(ev), or nil when no script defines it.
//
// ev is {target, target_kind, amount, kind, attacker}. The function may
// return {cancel = true} to veto the event or {amount = n} to rescale it;
// returning nothing leaves the event unchanged.
func (e *Engine) DamageHook(kindOf KindFunc) damage.BeforeHook {
	if !e.Has("before_damage") {
		return nil
	}
	return &damageHook{e: e, kindOf: kindOf, ev: e.vm.NewTable()}
}

type damageHook struct {
	e      *Engine
	kindOf KindFunc
	ev     *lua.LTable // reused across calls
}

func (h *damageHook) Before(ev *damage.Event) {
	vm := h.e.vm
	fn := vm.GetGlobal("before_damage")
	if fn == lua.LNil {
		return
	}

	t := h.ev
	t.RawSetString("target", lua.LNumber(ev.Target()))
	t.RawSetString("target_kind", lua.LString(h.kindOf(ev.Target())))
	t.RawSetString("amount", lua.LNumber(ev.Context.Amount))
	t.RawSetString("kind", lua.LString(ev.Context.Kind.String()))
	t.RawSetString("attacker", lua.LNumber(ev.Context.Attacker))

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		h.e.log.Error("lua before_damage error", zap.Error(err))
		return
	}

	result := vm.Get(-1)
	vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return
	}
	if lua.LVAsBool(rt.RawGetString("cancel")) {
		ev.Cancel(damage.ReasonCancelled)
		return
	}
	if n, ok := rt.RawGetString("amount").(lua.LNumber); ok {
		ev.Rescale(float32(n))
	}
}

// RegenContext holds data for a regeneration step.
type RegenContext struct {
	Kind    string
	Current float32
	Max     float32
	Base    float32 // template regen for this step
}

// CalcRegenAmount calls Lua calc_regen_amount(ctx). Without the function,
// or on a script error, the template amount is used.
func (e *Engine) CalcRegenAmount(ctx RegenContext) float32 {
	fn := e.vm.GetGlobal("calc_regen_amount")
	if fn == lua.LNil {
		return ctx.Base
	}

	t := e.vm.NewTable()
	t.RawSetString("kind", lua.LString(ctx.Kind))
	t.RawSetString("current", lua.LNumber(ctx.Current))
	t.RawSetString("max", lua.LNumber(ctx.Max))
	t.RawSetString("base", lua.LNumber(ctx.Base))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_regen_amount error", zap.Error(err))
		return ctx.Base
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := result.(lua.LNumber)
	if !ok {
		return ctx.Base
	}
	return float32(n)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
