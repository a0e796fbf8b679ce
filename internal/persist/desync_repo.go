package persist

import (
	"context"
)

type DesyncReport struct {
	Account   string
	SessionID uint64
	NetID     uint32
	Frame     uint32
	Oldest    uint32
}

type DesyncRepo struct {
	db *DB
}

func NewDesyncRepo(db *DB) *DesyncRepo {
	return &DesyncRepo{db: db}
}

func (r *DesyncRepo) Insert(ctx context.Context, rep DesyncReport) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO desync_reports (account, session_id, net_id, frame, oldest)
		 VALUES ($1, $2, $3, $4, $5)`,
		rep.Account, int64(rep.SessionID), int64(rep.NetID), int64(rep.Frame), int64(rep.Oldest),
	)
	return err
}

