package system

import (
	"context"
	"time"

	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/handler"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/sim"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
)

// SessionSource is the part of net.Server the input system consumes.
type SessionSource interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
	NotifyDead(sessionID uint64)
}

// PlayerSaver checkpoints a player before it leaves the world.
type PlayerSaver interface {
	SavePlayer(p *world.PlayerInfo)
}

// InputSystem drains packet queues from all sessions and dispatches them
// through the packet registry. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	store      *net.SessionStore
	maxPerTick int
	worldState *world.State
	sim        *sim.Simulator
	bus        *event.Bus
	saver      PlayerSaver          // nil without a database
	accounts   handler.AccountStore // nil without a database
	log        *zap.Logger
}

func NewInputSystem(
	source SessionSource,
	registry *packet.Registry,
	store *net.SessionStore,
	maxPerTick int,
	worldState *world.State,
	simulator *sim.Simulator,
	bus *event.Bus,
	saver PlayerSaver,
	accounts handler.AccountStore,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		worldState: worldState,
		sim:        simulator,
		bus:        bus,
		saver:      saver,
		accounts:   accounts,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	// Process dead sessions
	for {
		select {
		case id := <-s.source.DeadSessions():
			s.store.Remove(id)
		default:
			goto doneDead
		}
	}
doneDead:

	// Drain packets from each session (up to maxPerTick per session)
	s.store.ForEach(func(sess *net.Session) {
		if sess.IsClosed() {
			// Packets sent just before the disconnect still count, e.g. a final
			// input batch followed by C_QUIT.
			s.drain(sess)
			sess.FlushOutput()
			s.handleDisconnect(sess)
			s.source.NotifyDead(sess.ID)
			s.store.Remove(sess.ID)
			return
		}
		s.drain(sess)
	})
}

func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
				sess.Log().Debug("packet dispatch error", zap.Error(err))
			}
		default:
			return
		}
	}
}

// handleDisconnect removes the player from the world: its avatar is
// checkpointed, destroyed and unlinked, and the account is marked offline.
func (s *InputSystem) handleDisconnect(sess *net.Session) {
	player := s.worldState.RemovePlayer(sess.ID)
	if player != nil {
		if s.saver != nil {
			s.saver.SavePlayer(player)
		}
		// the link is cleared by the store's destroy hook
		s.sim.World.DestroyEntity(player.Entity)
		event.Emit(s.bus, event.PlayerLeft{
			Entity:    player.Entity,
			NetID:     player.NetID,
			SessionID: sess.ID,
			Account:   player.Account,
		})
		st := player.Queue.Stats()
		sess.Log().Info("player left world",
			zap.String("account", player.Account),
			zap.Uint32("net_id", uint32(player.NetID)),
			zap.Uint64("inputs", st.Dequeued),
			zap.Uint64("discarded", st.Discarded()),
			zap.Uint64("missing", player.Missing),
		)
	}

	if s.accounts != nil && sess.AccountName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.accounts.SetOnline(ctx, sess.AccountName, false); err != nil {
			s.log.Error("mark account offline failed", zap.String("account", sess.AccountName), zap.Error(err))
		}
		cancel()
	}
}

// SessionCount returns the current number of active sessions.
func (s *InputSystem) SessionCount() int {
	return s.store.Len()
}
