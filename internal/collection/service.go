// Package collection manages the named groups that own events.
package collection

import (
	"context"
	"strings"

	"backend-eventmap/internal/db"
	"backend-eventmap/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

type Notifier interface {
	Notify(collection, action string, eventID int64)
}

type Service struct {
	db       db.Querier
	notifier Notifier
}

func NewService(db db.Querier, notifier Notifier) *Service {
	return &Service{db: db, notifier: notifier}
}

// List returns every collection name in byte order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM collections ORDER BY name COLLATE "C"`)
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Service) Create(ctx context.Context, name string) (Collection, error) {
	if strings.TrimSpace(name) == "" {
		return Collection{}, apperr.Validation("missing required fields", "name")
	}

	c := Collection{Name: name}
	err := s.db.QueryRow(ctx, `
		INSERT INTO collections (name)
		VALUES ($1)
		RETURNING created_at
	`, name).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Collection{}, apperr.Conflict("collection %q", name)
		}
		return Collection{}, errors.Wrapf(err, "create collection %q", name)
	}
	s.notify(name, "collection_created")
	return c, nil
}

// Delete removes the collection and every event it owns in one transaction.
// The active pointer is left untouched even if it names this collection.
func (s *Service) Delete(ctx context.Context, name string) error {
	err := db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM events WHERE collection_name=$1`, name); err != nil {
			return errors.Wrapf(err, "delete events of %q", name)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM collections WHERE name=$1`, name)
		if err != nil {
			return errors.Wrapf(err, "delete collection %q", name)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("collection %q", name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(name, "collection_deleted")
	return nil
}

func (s *Service) notify(name, action string) {
	if s.notifier != nil {
		s.notifier.Notify(name, action, 0)
	}
}
