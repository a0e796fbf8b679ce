package system

import (
	"time"

	coresys "github.com/l1jgo/simcore/internal/core/system"
	"go.uber.org/zap"
)

// ChangeSource reports whether watched files changed since the last call.
type ChangeSource interface {
	Changed() bool
}

// Reloader swaps in freshly loaded rules.
type Reloader interface {
	Reload() error
}

// ScriptReloadSystem reloads the motion rules when the script directory
// changes. A failed reload keeps the running rules. Phase 1 (PreUpdate).
type ScriptReloadSystem struct {
	changes ChangeSource
	rules   Reloader
	log     *zap.Logger
}

func NewScriptReloadSystem(changes ChangeSource, rules Reloader, log *zap.Logger) *ScriptReloadSystem {
	return &ScriptReloadSystem{changes: changes, rules: rules, log: log}
}

func (s *ScriptReloadSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *ScriptReloadSystem) Update(_ time.Duration) {
	if !s.changes.Changed() {
		return
	}
	if err := s.rules.Reload(); err != nil {
		s.log.Error("script reload failed, keeping previous rules", zap.Error(err))
		return
	}
	s.log.Info("motion rules reloaded")
}
