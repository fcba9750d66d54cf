// Package active stores the single collection shown to anonymous readers.
package active

import (
	"context"
	"strings"

	"backend-eventmap/internal/db"
	"backend-eventmap/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Notifier receives a change notice after the pointer moves.
type Notifier interface {
	Notify(collection, action string, eventID int64)
}

type Service struct {
	db       db.Querier
	fallback string
	notifier Notifier
}

func NewService(db db.Querier, fallback string, notifier Notifier) *Service {
	return &Service{db: db, fallback: fallback, notifier: notifier}
}

// Get returns the active collection name, or the fallback when none was set.
func (s *Service) Get(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `SELECT name FROM active_collection WHERE id = 1`).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.fallback, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load active collection")
	}
	return name, nil
}

// Set points readers at name. The collection does not have to exist yet.
func (s *Service) Set(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("missing required fields", "name")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO active_collection (id, name)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, name)
	if err != nil {
		return "", errors.Wrap(err, "store active collection")
	}
	if s.notifier != nil {
		s.notifier.Notify(name, "activated", 0)
	}
	return name, nil
}
