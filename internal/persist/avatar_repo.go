package persist

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// Checkpoint is one saved avatar document.
type Checkpoint struct {
	AccountID int64
	Frame     uint32
	Doc       *ecs.Document
}

// AvatarRepo stores avatar documents as YAML, one row per checkpoint.
// Checkpoint ids are ULIDs, so the latest row sorts last.
type AvatarRepo struct {
	db   *DB
	keep int // checkpoints kept per account

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewAvatarRepo(db *DB, keep int) *AvatarRepo {
	if keep <= 0 {
		keep = 3
	}
	return &AvatarRepo{db: db, keep: keep, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewID returns a time-ordered checkpoint id.
func (r *AvatarRepo) NewID(t time.Time) (ulid.ULID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.New(ulid.Timestamp(t), r.entropy)
}

// SaveBatch writes every checkpoint in a single transaction and prunes old
// rows of the accounts involved.
func (r *AvatarRepo) SaveBatch(ctx context.Context, batch []Checkpoint) error {
	if len(batch) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		for _, cp := range batch {
			body, err := cp.Doc.Marshal()
			if err != nil {
				return fmt.Errorf("checkpoint account %d: %w", cp.AccountID, err)
			}
			id, err := r.NewID(now)
			if err != nil {
				return fmt.Errorf("checkpoint id: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO checkpoints (id, account_id, frame, body) VALUES ($1, $2, $3, $4)`,
				id.String(), cp.AccountID, int64(cp.Frame), string(body),
			); err != nil {
				return fmt.Errorf("checkpoint insert: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`DELETE FROM checkpoints WHERE account_id = $1 AND id NOT IN (
				     SELECT id FROM checkpoints WHERE account_id = $1 ORDER BY id DESC LIMIT $2)`,
				cp.AccountID, r.keep,
			); err != nil {
				return fmt.Errorf("checkpoint prune: %w", err)
			}
		}
		return nil
	})
}

// LoadLatest returns the newest document of accountID, or nil when none exists.
func (r *AvatarRepo) LoadLatest(ctx context.Context, accountID int64) (*ecs.Document, error) {
	var body string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT body FROM checkpoints WHERE account_id = $1 ORDER BY id DESC LIMIT 1`, accountID,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ecs.ParseDocument([]byte(body))
}
