package handler

import (
	"context"
	"errors"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
	"golang.org/x/text/secure/precis"
)

// UsernameCaseMapped accepts the empty string.
var errEmptyAccount = errors.New("empty account name")

// HandleHello processes C_HELLO: version check, account validation, then the
// avatar is restored or spawned and the session enters the world.
// Format: [H version][S account][S password]
func HandleHello(sess *net.Session, r *packet.Reader, deps *Deps) {
	log := sess.Log()
	hello, err := packet.ReadHello(r)
	if err != nil {
		log.Debug("malformed hello", zap.Error(err))
		sendWelcome(sess, packet.WelcomeBadAccount, 0, deps)
		return
	}
	if hello.Version != packet.ProtocolVersion {
		log.Info("protocol version mismatch",
			zap.Uint16("client", hello.Version),
			zap.Uint16("server", packet.ProtocolVersion),
		)
		sendWelcome(sess, packet.WelcomeBadVersion, 0, deps)
		return
	}

	account, err := precis.UsernameCaseMapped.String(hello.Account)
	if err == nil && account == "" {
		err = errEmptyAccount
	}
	if err != nil {
		log.Info("rejected account name", zap.String("account", hello.Account), zap.Error(err))
		sendWelcome(sess, packet.WelcomeBadAccount, 0, deps)
		return
	}
	if deps.World.GetByAccount(account) != nil {
		sendWelcome(sess, packet.WelcomeInUse, 0, deps)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var accountID int64
	if deps.Accounts != nil {
		id, code := authenticate(ctx, sess, account, hello.Password, deps)
		if code != packet.WelcomeOK {
			sendWelcome(sess, code, 0, deps)
			return
		}
		accountID = id
	}

	h, err := restoreAvatar(ctx, sess, accountID, deps)
	if err != nil {
		log.Error("restore avatar failed", zap.String("account", account), zap.Error(err))
	}
	netID := deps.Sim.Links.ResolveReverse(h)
	if h.IsZero() {
		h, netID, err = deps.Sim.SpawnAvatar(sess.ID, spawnPoint(sess.ID))
		if err != nil {
			log.Error("spawn avatar failed", zap.Error(err))
			markOffline(account, deps)
			sendWelcome(sess, packet.WelcomeServerError, 0, deps)
			return
		}
	}

	player := world.NewPlayer(sess, account, deps.Config.Replication.MaxQueueDepth)
	player.AccountID = accountID
	player.Entity = h
	player.NetID = netID
	player.JoinedFrame = deps.Clock.Frame()
	deps.World.AddPlayer(player)

	sess.AccountName = account
	sess.SetState(packet.StateInWorld)
	sendWelcome(sess, packet.WelcomeOK, netID, deps)

	event.Emit(deps.Bus, event.PlayerJoined{
		Entity:    h,
		NetID:     netID,
		SessionID: sess.ID,
		Account:   account,
	})
	log.Info("player entered world",
		zap.String("account", account),
		zap.Uint32("net_id", uint32(netID)),
		zap.Stringer("entity", h),
	)
}

// authenticate validates the account against the store, creating it when
// auto_create is on. It returns the account id and a welcome result code.
func authenticate(ctx context.Context, sess *net.Session, account, password string, deps *Deps) (int64, byte) {
	log := sess.Log()
	row, err := deps.Accounts.Load(ctx, account)
	if err != nil {
		log.Error("load account failed", zap.Error(err))
		return 0, packet.WelcomeServerError
	}
	if row == nil {
		if !deps.Config.Accounts.AutoCreate {
			if deps.Config.Accounts.RequireAuth {
				return 0, packet.WelcomeBadAccount
			}
			return 0, packet.WelcomeOK
		}
		row, err = deps.Accounts.Create(ctx, account, password, sess.IP)
		if err != nil {
			log.Error("create account failed", zap.Error(err))
			return 0, packet.WelcomeServerError
		}
		log.Info("account created", zap.String("account", account))
	} else if deps.Config.Accounts.RequireAuth && !deps.Accounts.ValidatePassword(row.PasswordHash, password) {
		return 0, packet.WelcomeBadPassword
	}

	if row.Banned {
		log.Info("banned account refused", zap.String("account", account))
		return 0, packet.WelcomeBadAccount
	}
	if row.Online {
		return 0, packet.WelcomeInUse
	}
	if err := deps.Accounts.SetOnline(ctx, account, true); err != nil {
		log.Error("set online failed", zap.Error(err))
	}
	if err := deps.Accounts.UpdateLastActive(ctx, account, sess.IP); err != nil {
		log.Error("update last active failed", zap.Error(err))
	}
	return row.ID, packet.WelcomeOK
}

// restoreAvatar loads the account's latest avatar document. It returns the
// zero handle when there is nothing to restore.
func restoreAvatar(ctx context.Context, sess *net.Session, accountID int64, deps *Deps) (ecs.Handle, error) {
	if deps.Avatars == nil || accountID == 0 {
		return ecs.InvalidHandle, nil
	}
	doc, err := deps.Avatars.LoadLatest(ctx, accountID)
	if err != nil || doc == nil {
		return ecs.InvalidHandle, err
	}
	h, skipped, err := deps.Sim.World.LoadEntity(doc)
	if err != nil {
		return ecs.InvalidHandle, err
	}
	if len(skipped) > 0 {
		sess.Log().Warn("avatar document has unknown components", zap.Strings("keys", skipped))
	}
	if _, err := deps.Sim.AdoptAvatar(h, sess.ID); err != nil {
		deps.Sim.World.DestroyEntity(h)
		return ecs.InvalidHandle, err
	}
	return h, nil
}

// markOffline clears the online flag after a failed hello.
func markOffline(account string, deps *Deps) {
	if deps.Accounts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	deps.Accounts.SetOnline(ctx, account, false)
}

// spawnPoint spreads new avatars on a ring around the origin.
func spawnPoint(sessionID uint64) vmath.Vec3 {
	slot := float32(sessionID % 16)
	return vmath.Vec3{X: slot * 4, Y: 0, Z: 0}
}

func sendWelcome(sess *net.Session, result byte, id linking.NetID, deps *Deps) {
	sess.Send(packet.Welcome{
		Result: result,
		NetID:  id,
		Frame:  deps.Clock.Frame(),
		TickMs: uint16(deps.Config.Network.TickRate / time.Millisecond),
	}.Encode())
}
