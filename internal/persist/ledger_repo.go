package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Ledger entry kinds.
const (
	KindJoin    = "join"
	KindLeave   = "leave"
	KindHit     = "hit"
	KindHandoff = "handoff"
)

// LedgerEntry is one append-only combat record. It is never read back into
// game state.
type LedgerEntry struct {
	Shard      int
	Kind       string
	ShipID     uint64
	OtherID    uint64 // shooter for hits, destination shard for handoffs
	RocketID   int64
	X, Y       float64
	Hits       int
	Kills      int
	RecordedAt time.Time
}

var ledgerColumns = []string{
	"shard", "kind", "ship_id", "other_id", "rocket_id", "x", "y", "hits", "kills", "recorded_at",
}

type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// WriteBatch copies a batch of entries in a single transaction.
func (r *LedgerRepo) WriteBatch(ctx context.Context, entries []LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows := pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
		e := entries[i]
		return []any{
			int16(e.Shard), e.Kind, int64(e.ShipID), int64(e.OtherID), e.RocketID,
			e.X, e.Y, int32(e.Hits), int32(e.Kills), e.RecordedAt,
		}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"combat_ledger"}, ledgerColumns, rows); err != nil {
		return fmt.Errorf("ledger copy: %w", err)
	}
	return tx.Commit(ctx)
}

// ShipTotals is a per-ship summary for operators.
type ShipTotals struct {
	ShipID uint64
	Kills  int
}

// TopKillers returns the ships with the most recorded hits dealt on a shard.
func (r *LedgerRepo) TopKillers(ctx context.Context, shard, limit int) ([]ShipTotals, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT other_id, COUNT(*) FROM combat_ledger
		 WHERE shard = $1 AND kind = $2
		 GROUP BY other_id ORDER BY COUNT(*) DESC, other_id LIMIT $3`,
		shard, KindHit, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top killers: %w", err)
	}
	defer rows.Close()

	var out []ShipTotals
	for rows.Next() {
		var id int64
		var kills int
		if err := rows.Scan(&id, &kills); err != nil {
			return nil, fmt.Errorf("top killers scan: %w", err)
		}
		out = append(out, ShipTotals{ShipID: uint64(id), Kills: kills})
	}
	return out, rows.Err()
}
