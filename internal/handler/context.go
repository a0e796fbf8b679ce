package handler

import (
	"context"

	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/persist"
	"github.com/l1jgo/simcore/internal/sim"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
)

// AccountStore is the subset of persist.AccountRepo used by the hello handler.
type AccountStore interface {
	Load(ctx context.Context, name string) (*persist.AccountRow, error)
	Create(ctx context.Context, name, rawPassword, ip string) (*persist.AccountRow, error)
	ValidatePassword(hash, rawPassword string) bool
	SetOnline(ctx context.Context, name string, online bool) error
	UpdateLastActive(ctx context.Context, name, ip string) error
}

// AvatarStore loads the latest saved avatar of an account.
type AvatarStore interface {
	LoadLatest(ctx context.Context, accountID int64) (*ecs.Document, error)
}

// Deps holds all dependencies that packet handlers need.
// Accounts and Avatars are nil when no database is configured.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	World    *world.State
	Sim      *sim.Simulator
	Bus      *event.Bus
	Clock    coresys.Clock
	Accounts AccountStore
	Avatars  AvatarStore
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Handshake phase
	reg.Register(packet.C_OPCODE_HELLO,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)

	inWorld := []packet.SessionState{packet.StateInWorld}

	reg.Register(packet.C_OPCODE_INPUT, inWorld,
		func(sess any, r *packet.Reader) {
			HandleInput(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_DESYNC, inWorld,
		func(sess any, r *packet.Reader) {
			HandleDesync(sess.(*net.Session), r, deps)
		},
	)

	// Ping and quit are accepted before the hello completes
	anyState := []packet.SessionState{packet.StateHandshake, packet.StateInWorld}
	reg.Register(packet.C_OPCODE_PING, anyState,
		func(sess any, r *packet.Reader) {
			HandlePing(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_QUIT, anyState,
		func(sess any, r *packet.Reader) {
			HandleQuit(sess.(*net.Session), r, deps)
		},
	)
}
