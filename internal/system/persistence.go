package system

import (
	"context"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/persist"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
)

// CheckpointStore is the subset of persist.AvatarRepo used for saving.
type CheckpointStore interface {
	SaveBatch(ctx context.Context, batch []persist.Checkpoint) error
}

// DesyncStore records client desync reports.
type DesyncStore interface {
	Insert(ctx context.Context, rep persist.DesyncReport) error
}

// PersistenceSystem periodically checkpoints the avatars of dirty players and
// writes queued desync reports. Phase 5 (Persist).
type PersistenceSystem struct {
	worldState  *world.State
	store       *ecs.World
	clock       coresys.Clock
	checkpoints CheckpointStore
	desyncs     DesyncStore
	log         *zap.Logger
	tickCount   int
	interval    int // auto-save every N ticks

	reports []persist.DesyncReport
}

func NewPersistenceSystem(ws *world.State, store *ecs.World, clock coresys.Clock, checkpoints CheckpointStore, desyncs DesyncStore, bus *event.Bus, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	s := &PersistenceSystem{
		worldState:  ws,
		store:       store,
		clock:       clock,
		checkpoints: checkpoints,
		desyncs:     desyncs,
		log:         log,
		interval:    intervalTicks,
	}
	event.Subscribe(bus, func(e event.DesyncReported) {
		s.reports = append(s.reports, persist.DesyncReport{
			Account:   e.Account,
			SessionID: e.SessionID,
			NetID:     uint32(e.NetID),
			Frame:     e.Frame,
			Oldest:    e.Oldest,
		})
	})
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.flushReports()
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.savePlayers(true)
}

// SaveAllPlayers persists all online players immediately, ignoring dirty flags.
// Called for graceful shutdown to ensure no data is lost.
func (s *PersistenceSystem) SaveAllPlayers() {
	s.savePlayers(false)
	s.flushReports()
}

// SavePlayer checkpoints one player. Called on disconnect.
func (s *PersistenceSystem) SavePlayer(p *world.PlayerInfo) {
	cp, ok := s.checkpoint(p)
	if !ok {
		return
	}
	s.write([]persist.Checkpoint{cp})
}

// savePlayers checkpoints all players in one transaction. If dirtyOnly is
// true, only players whose Dirty flag is set are saved.
func (s *PersistenceSystem) savePlayers(dirtyOnly bool) {
	var batch []persist.Checkpoint
	var saved []*world.PlayerInfo
	s.worldState.AllPlayers(func(p *world.PlayerInfo) {
		if dirtyOnly && !p.Dirty {
			return
		}
		if cp, ok := s.checkpoint(p); ok {
			batch = append(batch, cp)
			saved = append(saved, p)
		}
	})
	if len(batch) == 0 {
		return
	}
	if s.write(batch) {
		for _, p := range saved {
			p.Dirty = false
		}
		s.log.Debug("avatars checkpointed", zap.Int("count", len(batch)))
	}
}

func (s *PersistenceSystem) checkpoint(p *world.PlayerInfo) (persist.Checkpoint, bool) {
	if s.checkpoints == nil || p.AccountID == 0 {
		return persist.Checkpoint{}, false
	}
	doc, err := s.store.SaveEntity(p.Entity)
	if err != nil {
		s.log.Error("save avatar document failed", zap.String("account", p.Account), zap.Error(err))
		return persist.Checkpoint{}, false
	}
	return persist.Checkpoint{AccountID: p.AccountID, Frame: s.clock.Frame(), Doc: doc}, true
}

func (s *PersistenceSystem) write(batch []persist.Checkpoint) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.checkpoints.SaveBatch(ctx, batch); err != nil {
		s.log.Error("checkpoint write failed", zap.Int("count", len(batch)), zap.Error(err))
		return false
	}
	return true
}

func (s *PersistenceSystem) flushReports() {
	if len(s.reports) == 0 {
		return
	}
	if s.desyncs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		for _, rep := range s.reports {
			if err := s.desyncs.Insert(ctx, rep); err != nil {
				s.log.Error("desync report write failed", zap.String("account", rep.Account), zap.Error(err))
			}
		}
		cancel()
	}
	s.reports = s.reports[:0]
}
