package event

import (
	"context"

	"backend-eventmap/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// lockCollection takes a row lock on the collection for the rest of tx so that
// position assignment and reordering within one collection are serialized.
func lockCollection(ctx context.Context, tx pgx.Tx, collection string) error {
	var name string
	err := tx.QueryRow(ctx, `SELECT name FROM collections WHERE name=$1 FOR UPDATE`, collection).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("collection %q", collection)
	}
	return errors.Wrapf(err, "lock collection %q", collection)
}

// nextPosition returns one past the highest position in the collection, or 1
// when it is empty.
func nextPosition(ctx context.Context, tx pgx.Tx, collection string) (int, error) {
	var next int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), 0) + 1
		FROM events WHERE collection_name=$1
	`, collection).Scan(&next)
	if err != nil {
		return 0, errors.Wrapf(err, "next position in %q", collection)
	}
	return next, nil
}

// resequence assigns position i+1 to ids[i]. Any id outside the collection
// aborts the sequence; the caller's transaction discards the partial updates.
func resequence(ctx context.Context, tx pgx.Tx, collection string, ids []int64) error {
	for i, id := range ids {
		tag, err := tx.Exec(ctx, `
			UPDATE events SET position=$1
			WHERE id=$2 AND collection_name=$3
		`, i+1, id, collection)
		if err != nil {
			return errors.Wrapf(err, "set position of event %d", id)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("event %d in collection %q", id, collection)
		}
	}
	return nil
}

func checkOrder(ids []int64) error {
	if len(ids) == 0 {
		return apperr.Validation("ordered ids must not be empty", "ids")
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apperr.Validation("event id listed twice", "ids")
		}
		seen[id] = struct{}{}
	}
	return nil
}
