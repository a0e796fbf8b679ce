package event

import (
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/linking"
)

type PlayerJoined struct {
	Entity    ecs.Handle
	NetID     linking.NetID
	SessionID uint64
	Account   string
}

type PlayerLeft struct {
	Entity    ecs.Handle
	NetID     linking.NetID
	SessionID uint64
	Account   string
}

// EntityDespawned is emitted after a linked entity is destroyed.
type EntityDespawned struct {
	NetID linking.NetID
}

type ProjectileFired struct {
	Owner      linking.NetID
	Projectile linking.NetID
	Frame      uint32
}

// DesyncReported carries a client's report that it could not reconcile an
// authoritative correction.
type DesyncReported struct {
	SessionID uint64
	Account   string
	NetID     linking.NetID
	Frame     uint32
	Oldest    uint32
}
