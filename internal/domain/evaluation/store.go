package evaluation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"kpieval/internal/domain/notifications"
	"kpieval/internal/platform/db"
	"kpieval/internal/platform/querier"
)

// Store is bound to the pool for reads and rebound to a pgx.Tx inside InTx.
type Store struct {
	DB         querier.Querier
	beginner   db.TxBeginner
	maxElapsed time.Duration
}

func NewStore(pool *db.Pool, maxElapsed time.Duration) *Store {
	return &Store{DB: pool, beginner: pool, maxElapsed: maxElapsed}
}

func (s *Store) InTx(ctx context.Context, fn func(TxStore) error) error {
	return db.RunInTx(ctx, s.beginner, s.maxElapsed, func(tx pgx.Tx) error {
		return fn(&Store{DB: tx})
	})
}

func (s *Store) Notifications() notifications.TxStore {
	return notifications.NewStore(s.DB)
}
