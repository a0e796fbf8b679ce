package handler

import (
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"go.uber.org/zap"
)

// HandleInput processes C_INPUT: every record of the batch is offered to the
// player's queue. Records already received (the redundant tail of the batch)
// are discarded by the queue as stale.
// Format: [C count] count × [F dx][F dy][F dz][C strafe][C forward][C boost][C fire][C stop][D frame]
func HandleInput(sess *net.Session, r *packet.Reader, deps *Deps) {
	player := deps.World.GetBySession(sess.ID)
	if player == nil {
		return
	}
	batch, err := packet.ReadInputs(r)
	if err != nil {
		sess.Log().Debug("malformed input batch", zap.Error(err))
		return
	}
	for _, in := range batch {
		player.Queue.Enqueue(in)
	}
}
