package world

import (
	"sort"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/replication"
)

// PlayerInfo holds in-memory data for a player currently in-world.
// Accessed only from the game loop goroutine; no locks needed.
type PlayerInfo struct {
	SessionID uint64
	Session   *net.Session
	AccountID int64 // 0 without a database
	Account   string

	Entity ecs.Handle
	NetID  linking.NetID

	Queue     *replication.InputQueue
	LastInput replication.Input // last applied, repeated when input is missing
	Missing   uint64            // ticks simulated without a queued input

	// Known is the set of entities the client has been told to spawn.
	Known map[linking.NetID]bool

	JoinedFrame uint32
	Dirty       bool // state changed since last checkpoint
}

// State is the in-memory player table.
type State struct {
	players   map[uint64]*PlayerInfo // session ID → player
	byAccount map[string]*PlayerInfo
	byEntity  map[ecs.Handle]*PlayerInfo
}

func NewState() *State {
	return &State{
		players:   make(map[uint64]*PlayerInfo, 64),
		byAccount: make(map[string]*PlayerInfo, 64),
		byEntity:  make(map[ecs.Handle]*PlayerInfo, 64),
	}
}

// NewPlayer builds a player record with an input queue of depth maxDepth.
func NewPlayer(sess *net.Session, account string, maxDepth int) *PlayerInfo {
	return &PlayerInfo{
		SessionID: sess.ID,
		Session:   sess,
		Account:   account,
		Queue:     replication.NewInputQueue(maxDepth),
		Known:     make(map[linking.NetID]bool, 32),
	}
}

func (s *State) AddPlayer(p *PlayerInfo) {
	s.players[p.SessionID] = p
	if p.Account != "" {
		s.byAccount[p.Account] = p
	}
	if !p.Entity.IsZero() {
		s.byEntity[p.Entity] = p
	}
}

// RemovePlayer removes and returns the player of sessionID, nil if absent.
func (s *State) RemovePlayer(sessionID uint64) *PlayerInfo {
	p, ok := s.players[sessionID]
	if !ok {
		return nil
	}
	delete(s.players, sessionID)
	if s.byAccount[p.Account] == p {
		delete(s.byAccount, p.Account)
	}
	if s.byEntity[p.Entity] == p {
		delete(s.byEntity, p.Entity)
	}
	return p
}

func (s *State) GetBySession(sessionID uint64) *PlayerInfo { return s.players[sessionID] }

func (s *State) GetByAccount(account string) *PlayerInfo { return s.byAccount[account] }

func (s *State) GetByEntity(h ecs.Handle) *PlayerInfo { return s.byEntity[h] }

func (s *State) PlayerCount() int { return len(s.players) }

// AllPlayers visits every player in ascending session order.
func (s *State) AllPlayers(fn func(*PlayerInfo)) {
	ids := make([]uint64, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(s.players[id])
	}
}
