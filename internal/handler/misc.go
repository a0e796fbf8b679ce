package handler

import (
	"github.com/l1jgo/simcore/internal/core/event"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"go.uber.org/zap"
)

// HandlePing answers C_PING with the echoed client time and the server frame.
func HandlePing(sess *net.Session, r *packet.Reader, deps *Deps) {
	ping, err := packet.ReadPing(r)
	if err != nil {
		return
	}
	sess.Send(packet.Pong{ClientTime: ping.ClientTime, Frame: deps.Clock.Frame()}.Encode())
}

// HandleDesync processes C_DESYNC: the client could not reconcile a
// correction because the frame had left its history.
// Format: [D netID][D frame][D oldest]
func HandleDesync(sess *net.Session, r *packet.Reader, deps *Deps) {
	rep, err := packet.ReadDesync(r)
	if err != nil {
		return
	}
	sess.Log().Warn("client reported desync",
		zap.String("account", sess.AccountName),
		zap.Uint32("net_id", uint32(rep.NetID)),
		zap.Uint32("frame", rep.Frame),
		zap.Uint32("oldest", rep.Oldest),
	)
	event.Emit(deps.Bus, event.DesyncReported{
		SessionID: sess.ID,
		Account:   sess.AccountName,
		NetID:     rep.NetID,
		Frame:     rep.Frame,
		Oldest:    rep.Oldest,
	})
}

// HandleQuit processes C_QUIT. Closing the session is enough; the input
// system's disconnect handling does all cleanup.
func HandleQuit(sess *net.Session, _ *packet.Reader, deps *Deps) {
	deps.Log.Info("player quit", zap.Uint64("session", sess.ID), zap.String("account", sess.AccountName))
	sess.Close()
}
