package system

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/linking"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end
// and logs store faults recorded during the tick. Phase 6 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
	log   *zap.Logger
}

func NewCleanupSystem(world *ecs.World, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: world, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.world.FlushDestroyQueue()
	if err := s.world.Err(); err != nil {
		s.log.Error("entity store fault", zap.Error(err))
	}
}

// EmitDespawns emits event.EntityDespawned for every linked entity destroyed
// in w. It must be registered before links.Attach so the NetID still resolves.
func EmitDespawns(w *ecs.World, links *linking.Context, bus *event.Bus) {
	w.OnDestroy(func(h ecs.Handle) {
		if id := links.ResolveReverse(h); id != 0 {
			event.Emit(bus, event.EntityDespawned{NetID: id})
		}
	})
}
