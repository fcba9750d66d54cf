// Package event stores the ordered, geo-located events of each collection.
package event

import (
	"context"
	"time"

	"backend-eventmap/internal/db"
	"backend-eventmap/internal/geocode"
	"backend-eventmap/internal/routing"
	"backend-eventmap/internal/shared/apperr"
	"backend-eventmap/internal/shared/geo"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const columns = `id, collection_name, title, type, date, description, address, latitude, longitude, position, favorite`

type Notifier interface {
	Notify(collection, action string, eventID int64)
}

type Service struct {
	db        db.Querier
	geocoder  geocode.Resolver
	notifier  Notifier
	tolerance float64
}

// NewService builds the event store. toleranceM is the radius in meters within
// which a new event counts as sitting on an existing one; 0 means exact match.
func NewService(db db.Querier, geocoder geocode.Resolver, notifier Notifier, toleranceM float64) *Service {
	return &Service{db: db, geocoder: geocoder, notifier: notifier, tolerance: toleranceM}
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		e    Event
		date time.Time
	)
	err := row.Scan(&e.ID, &e.CollectionName, &e.Title, &e.Type, &date, &e.Description,
		&e.Address, &e.Latitude, &e.Longitude, &e.Position, &e.Favorite)
	if err != nil {
		return Event{}, err
	}
	e.Date = date.Format(dateLayout)
	return e, nil
}

func (s *Service) query(ctx context.Context, sql string, args ...any) ([]Event, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// List returns the events of a collection by ascending position, ties broken
// by id. An unknown collection yields an empty list.
func (s *Service) List(ctx context.Context, collection string) ([]Event, error) {
	events, err := s.query(ctx, `
		SELECT `+columns+`
		FROM events
		WHERE collection_name=$1
		ORDER BY position, id
	`, collection)
	return events, errors.Wrapf(err, "list events of %q", collection)
}

// Favorites is List restricted to favorite events.
func (s *Service) Favorites(ctx context.Context, collection string) ([]Event, error) {
	events, err := s.query(ctx, `
		SELECT `+columns+`
		FROM events
		WHERE collection_name=$1 AND favorite
		ORDER BY position, id
	`, collection)
	return events, errors.Wrapf(err, "list favorites of %q", collection)
}

func (s *Service) Get(ctx context.Context, collection string, id int64) (Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx, `
		SELECT `+columns+`
		FROM events
		WHERE id=$1 AND collection_name=$2
	`, id, collection))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, apperr.NotFound("event %d in collection %q", id, collection)
	}
	if err != nil {
		return Event{}, errors.Wrapf(err, "get event %d", id)
	}
	return e, nil
}

// prepare validates in and fills in its coordinate, calling the geocoder when
// none was supplied. It never touches the database.
func (s *Service) prepare(ctx context.Context, in Input) (prepared, error) {
	p, err := in.validate()
	if err != nil {
		return prepared{}, err
	}
	if in.hasCoordinate() {
		return p, nil
	}
	if s.geocoder == nil {
		return prepared{}, errors.Wrapf(apperr.ErrGeocode, "%q: no geocoder configured", p.address)
	}
	pt, err := s.geocoder.Resolve(ctx, p.address)
	if err != nil {
		return prepared{}, err
	}
	p.point = pt
	return p, nil
}

// Create inserts a new event at the end of the collection, or at the supplied
// position. Events sitting on an existing coordinate are rejected.
func (s *Service) Create(ctx context.Context, collection string, in Input) (Event, error) {
	created, err := s.createOne(ctx, collection, in, true)
	if err != nil {
		return Event{}, err
	}
	s.notify(collection, "created", created.ID)
	return created, nil
}

// insert stores p under the collection lock. With checkProximity unset the
// location check is skipped.
func (s *Service) insert(ctx context.Context, tx pgx.Tx, collection string, p prepared, checkProximity bool) (Event, error) {
	if err := lockCollection(ctx, tx, collection); err != nil {
		return Event{}, err
	}

	if checkProximity {
		existing, err := coordinates(ctx, tx, collection)
		if err != nil {
			return Event{}, err
		}
		if geo.Occupied(existing, p.point, s.tolerance) {
			return Event{}, errors.Wrapf(apperr.ErrDuplicateLocation, "(%v, %v) in %q", p.point.Lat, p.point.Lng, collection)
		}
	}

	var (
		position int
		err      error
	)
	if p.position != nil {
		position = *p.position
	} else if position, err = nextPosition(ctx, tx, collection); err != nil {
		return Event{}, err
	}
	favorite := p.favorite != nil && *p.favorite

	e, err := scanEvent(tx.QueryRow(ctx, `
		INSERT INTO events (collection_name, title, type, date, description, address, latitude, longitude, position, favorite)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+columns,
		collection, p.title, p.typ, p.date, p.description, p.address, p.point.Lat, p.point.Lng, position, favorite))
	if err != nil {
		return Event{}, errors.Wrapf(err, "insert event into %q", collection)
	}
	return e, nil
}

func coordinates(ctx context.Context, tx pgx.Tx, collection string) ([]geo.Point, error) {
	rows, err := tx.Query(ctx, `SELECT latitude, longitude FROM events WHERE collection_name=$1`, collection)
	if err != nil {
		return nil, errors.Wrapf(err, "load coordinates of %q", collection)
	}
	defer rows.Close()

	var points []geo.Point
	for rows.Next() {
		var p geo.Point
		if err := rows.Scan(&p.Lat, &p.Lng); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Update replaces the writable fields of an event. Position and favorite keep
// their stored value when not supplied. The location check only runs on
// create, so an update may move an event onto another one's coordinate.
func (s *Service) Update(ctx context.Context, collection string, id int64, in Input) (Event, error) {
	p, err := s.prepare(ctx, in)
	if err != nil {
		return Event{}, err
	}

	var position, favorite any
	if p.position != nil {
		position = *p.position
	}
	if p.favorite != nil {
		favorite = *p.favorite
	}

	e, err := scanEvent(s.db.QueryRow(ctx, `
		UPDATE events
		SET title=$3, type=$4, date=$5, description=$6, address=$7,
			latitude=$8, longitude=$9,
			position=COALESCE($10, position),
			favorite=COALESCE($11, favorite)
		WHERE id=$1 AND collection_name=$2
		RETURNING `+columns,
		id, collection, p.title, p.typ, p.date, p.description, p.address, p.point.Lat, p.point.Lng, position, favorite))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, apperr.NotFound("event %d in collection %q", id, collection)
	}
	if err != nil {
		return Event{}, errors.Wrapf(err, "update event %d", id)
	}
	s.notify(collection, "updated", id)
	return e, nil
}

// Delete removes an event. Deleting an id that does not exist is not an error.
func (s *Service) Delete(ctx context.Context, collection string, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM events WHERE id=$1 AND collection_name=$2`, id, collection)
	if err != nil {
		return errors.Wrapf(err, "delete event %d", id)
	}
	if tag.RowsAffected() > 0 {
		s.notify(collection, "deleted", id)
	}
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *Service) ToggleFavorite(ctx context.Context, collection string, id int64) (bool, error) {
	var favorite bool
	err := s.db.QueryRow(ctx, `
		UPDATE events SET favorite = NOT favorite
		WHERE id=$1 AND collection_name=$2
		RETURNING favorite
	`, id, collection).Scan(&favorite)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.NotFound("event %d in collection %q", id, collection)
	}
	if err != nil {
		return false, errors.Wrapf(err, "toggle favorite of event %d", id)
	}
	s.notify(collection, "favorite_toggled", id)
	return favorite, nil
}

// Reorder gives ids[i] position i+1. Either every listed event is moved or none
// is. Events of the collection that are not listed keep their position.
func (s *Service) Reorder(ctx context.Context, collection string, ids []int64) error {
	if err := checkOrder(ids); err != nil {
		return err
	}
	err := db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockCollection(ctx, tx, collection); err != nil {
			return err
		}
		return resequence(ctx, tx, collection, ids)
	})
	if err != nil {
		return err
	}
	s.notify(collection, "reordered", 0)
	return nil
}

// BulkCreate inserts items in order, each in its own transaction. It stops at
// the first failure: earlier items stay committed and later ones are skipped.
// Imported items are always appended, any supplied position is ignored, and
// the location check does not apply.
func (s *Service) BulkCreate(ctx context.Context, collection string, items []Input) BulkResult {
	res := BulkResult{Items: make([]BulkItem, 0, len(items)), Created: []Event{}}
	for i, in := range items {
		if res.FailedIndex != nil {
			res.Items = append(res.Items, BulkItem{Index: i, Status: BulkSkipped})
			continue
		}

		in.Position = nil
		created, err := s.createOne(ctx, collection, in, false)
		if err != nil {
			idx := i
			res.FailedIndex = &idx
			res.Items = append(res.Items, BulkItem{Index: i, Status: BulkFailed, Error: err.Error()})
			continue
		}
		res.Created = append(res.Created, created)
		res.Items = append(res.Items, BulkItem{Index: i, Status: BulkCreated, Event: &created})
	}
	if len(res.Created) > 0 {
		s.notify(collection, "bulk_created", 0)
	}
	return res
}

func (s *Service) createOne(ctx context.Context, collection string, in Input, checkProximity bool) (Event, error) {
	p, err := s.prepare(ctx, in)
	if err != nil {
		return Event{}, err
	}
	var created Event
	err = db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		e, err := s.insert(ctx, tx, collection, p, checkProximity)
		created = e
		return err
	})
	return created, err
}

// Route projects the events of a collection, in position order, onto a road
// route. With favoritesOnly set only favorite events are visited.
func (s *Service) Route(ctx context.Context, projector routing.Projector, collection, mode string, favoritesOnly bool) (routing.Route, error) {
	if !routing.ValidMode(mode) {
		return routing.Route{}, apperr.Validation("unsupported mode "+mode, "mode")
	}

	var (
		events []Event
		err    error
	)
	if favoritesOnly {
		events, err = s.Favorites(ctx, collection)
	} else {
		events, err = s.List(ctx, collection)
	}
	if err != nil {
		return routing.Route{}, err
	}

	points := make([]geo.Point, len(events))
	for i, e := range events {
		points[i] = e.Point()
	}
	return projector.Route(ctx, points, mode)
}

func (s *Service) notify(collection, action string, id int64) {
	if s.notifier != nil {
		s.notifier.Notify(collection, action, id)
	}
}
