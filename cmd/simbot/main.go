// simbot is a headless client: it logs in, walks a fixed pattern with
// client-side prediction and reports how often the server corrected it.
//
// Usage:
//
//	go run ./cmd/simbot [-addr host:port] [-account name] [-ticks n]
package main

import (
	"errors"
	"flag"
	"fmt"
	stdnet "net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/simcore/internal/client"
	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/replication"
	"github.com/l1jgo/simcore/internal/rollback"
	"github.com/l1jgo/simcore/internal/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", config.Path(), "server config, used for tick and rollback settings")
	addr := flag.String("addr", "127.0.0.1:53000", "server address")
	account := flag.String("account", "bot", "account name")
	password := flag.String("password", "", "account password")
	ticks := flag.Int("ticks", 0, "stop after n ticks, 0 = run until interrupted")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	pred, err := client.NewPredictor(sim.NewDefaultRules(), client.Options{
		Tick:       cfg.Network.TickRate,
		Window:     cfg.Rollback.Window,
		Redundancy: cfg.Replication.InputRedundancy,
		Tolerance:  float32(cfg.Rollback.Tolerance),
	})
	if err != nil {
		return err
	}

	conn, err := stdnet.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	t := net.NewTCPTransport(conn)
	defer t.Close()

	if err := t.WritePacket(packet.Hello{Version: packet.ProtocolVersion, Account: *account, Password: *password}.Encode()); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	if err := awaitWelcome(t, pred); err != nil {
		return err
	}
	log.Info("joined", zap.Uint32("net_id", uint32(pred.SelfID())), zap.Uint32("frame", pred.Frame()))

	incoming := make(chan []byte, 256)
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := t.ReadPacket()
			if err != nil {
				readErr <- err
				return
			}
			incoming <- data
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()
	start := time.Now()

loop:
	for n := 1; *ticks == 0 || n <= *ticks; n++ {
		select {
		case <-stop:
			break loop
		case err := <-readErr:
			return fmt.Errorf("connection lost: %w", err)
		case <-ticker.C:
		}

	drain:
		for {
			select {
			case data := <-incoming:
				if err := handle(t, pred, data, log); err != nil {
					return err
				}
			default:
				break drain
			}
		}

		dir, actions := pattern(pred.Frame() + 1)
		if err := t.WritePacket(pred.Tick(dir, actions)); err != nil {
			return fmt.Errorf("send input: %w", err)
		}
		if n%100 == 0 {
			ping := packet.Ping{ClientTime: uint32(time.Since(start).Milliseconds())}
			if err := t.WritePacket(ping.Encode()); err != nil {
				return fmt.Errorf("send ping: %w", err)
			}
			logStats(log, pred)
		}
	}

	logStats(log, pred)
	return t.WritePacket(packet.EncodeQuit())
}

func awaitWelcome(t net.Transport, pred *client.Predictor) error {
	if err := t.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	defer t.SetReadDeadline(time.Time{})
	for {
		data, err := t.ReadPacket()
		if err != nil {
			return fmt.Errorf("await welcome: %w", err)
		}
		r := packet.NewReader(data)
		if r.Opcode() != packet.S_OPCODE_WELCOME {
			continue
		}
		w, err := packet.ReadWelcome(r)
		if err != nil {
			return err
		}
		if w.Result != packet.WelcomeOK {
			return fmt.Errorf("login rejected: result %d", w.Result)
		}
		return pred.ApplyWelcome(w)
	}
}

func handle(t net.Transport, pred *client.Predictor, data []byte, log *zap.Logger) error {
	r := packet.NewReader(data)
	switch r.Opcode() {
	case packet.S_OPCODE_SPAWN:
		s, err := packet.ReadSpawn(r)
		if err != nil {
			return err
		}
		if err := pred.ApplySpawn(s); err != nil {
			log.Warn("spawn rejected", zap.Uint32("net_id", uint32(s.NetID)), zap.Error(err))
		}
	case packet.S_OPCODE_DESPAWN:
		d, err := packet.ReadDespawn(r)
		if err != nil {
			return err
		}
		pred.ApplyDespawn(d)
	case packet.S_OPCODE_STATE:
		st, err := packet.ReadState(r)
		if err != nil {
			return err
		}
		res, err := pred.ApplyState(st)
		var desync *rollback.DesyncError
		if errors.As(err, &desync) {
			log.Warn("desync", zap.Uint32("frame", desync.Frame), zap.Uint32("oldest", desync.Oldest))
			return t.WritePacket(pred.ReportDesync(err))
		}
		if err != nil {
			return err
		}
		if res.Outcome == rollback.Corrected {
			log.Debug("corrected", zap.Uint32("frame", st.LastInput), zap.Int("resimulated", res.Resimulated))
		}
	case packet.S_OPCODE_PONG:
		p, err := packet.ReadPong(r)
		if err != nil {
			return err
		}
		log.Info("pong", zap.Uint32("server_frame", p.Frame), zap.Uint32("client_frame", pred.Frame()))
	}
	return nil
}

// pattern walks a square and fires at each corner.
func pattern(frame uint32) (vmath.Vec3, replication.ActionFlags) {
	const side = 40
	var actions replication.ActionFlags = replication.ActionForward
	if frame%side == 0 {
		actions |= replication.ActionFire
	}
	switch (frame / side) % 4 {
	case 0:
		return vmath.Vec3{X: 1}, actions
	case 1:
		return vmath.Vec3{Z: 1}, actions
	case 2:
		return vmath.Vec3{X: -1}, actions
	default:
		return vmath.Vec3{Z: -1}, actions
	}
}

func logStats(log *zap.Logger, pred *client.Predictor) {
	s := pred.Stats()
	log.Info("prediction",
		zap.Uint32("frame", pred.Frame()),
		zap.Int("history", pred.History()),
		zap.Uint64("confirmed", s.Confirmed),
		zap.Uint64("corrected", s.Corrected),
		zap.Uint64("resynced", s.Resynced),
		zap.Uint64("desyncs", s.Desyncs),
		zap.Uint64("missed", s.Missed),
	)
}
