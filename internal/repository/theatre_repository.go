// Package repository contains data access logic separated from HTTP handlers.
// This file defines repository methods for theatres and their screens. A
// theatre belongs to a single owner and may contain multiple screens.
package repository

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// TheatreRepo encapsulates queries for theatres and screens.
type TheatreRepo struct {
	db *sql.DB
}

// NewTheatreRepo constructs a TheatreRepo with the provided DB handle.
func NewTheatreRepo(db *sql.DB) *TheatreRepo {
	return &TheatreRepo{db: db}
}

// Create inserts a theatre.  On success the ID field is populated.
func (r *TheatreRepo) Create(ctx context.Context, t *model.Theatre) error {
	const q = "INSERT INTO theatres (owner_id, name, address, city) VALUES (?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, t.OwnerID, t.Name, t.Address, t.City)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEntry
		}
		return errors.Wrap(err, "insert theatre")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "theatre id")
	}
	t.ID = uint64(id)
	return nil
}

// GetByID returns the theatre or ErrTheatreNotFound.
func (r *TheatreRepo) GetByID(ctx context.Context, id uint64) (*model.Theatre, error) {
	const q = "SELECT id, owner_id, name, address, city, created_at FROM theatres WHERE id = ?"
	var t model.Theatre
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.OwnerID, &t.Name, &t.Address, &t.City, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTheatreNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get theatre")
	}
	return &t, nil
}

// List returns theatres, optionally restricted to one city.
func (r *TheatreRepo) List(ctx context.Context, city string) ([]model.Theatre, error) {
	q := "SELECT id, owner_id, name, address, city, created_at FROM theatres"
	var args []any
	if city != "" {
		q += " WHERE city = ?"
		args = append(args, city)
	}
	q += " ORDER BY name, id"
	return r.list(ctx, q, args...)
}

// ListScoped returns the theatres visible within scope.
func (r *TheatreRepo) ListScoped(ctx context.Context, scope Scope) ([]model.Theatre, error) {
	where, args := scope.theatreFilter()
	return r.list(ctx, "SELECT t.id, t.owner_id, t.name, t.address, t.city, t.created_at FROM theatres t WHERE "+where+" ORDER BY t.name, t.id", args...)
}

func (r *TheatreRepo) list(ctx context.Context, q string, args ...any) ([]model.Theatre, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list theatres")
	}
	defer rows.Close()
	var out []model.Theatre
	for rows.Next() {
		var t model.Theatre
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Address, &t.City, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan theatre")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateScreen inserts a screen under a theatre.
func (r *TheatreRepo) CreateScreen(ctx context.Context, s *model.Screen) error {
	const q = "INSERT INTO screens (theatre_id, name, capacity) VALUES (?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, s.TheatreID, s.Name, s.Capacity)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEntry
		}
		return errors.Wrap(err, "insert screen")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "screen id")
	}
	s.ID = uint64(id)
	return nil
}

// GetScreen returns a screen together with the owner of its theatre.
func (r *TheatreRepo) GetScreen(ctx context.Context, id uint64) (*model.Screen, uint64, error) {
	return r.screen(ctx, r.db, id, "")
}

// GetScreenForUpdateTx is GetScreen holding the screen row until the
// transaction ends.  Adding seats and scheduling shows both take this
// lock first so the two never interleave on one screen.
func (r *TheatreRepo) GetScreenForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Screen, uint64, error) {
	return r.screen(ctx, tx, id, " FOR UPDATE")
}

func (r *TheatreRepo) screen(ctx context.Context, q queryer, id uint64, lock string) (*model.Screen, uint64, error) {
	query := `SELECT sc.id, sc.theatre_id, sc.name, sc.capacity, sc.created_at, t.owner_id
	          FROM screens sc JOIN theatres t ON t.id = sc.theatre_id
	          WHERE sc.id = ?` + lock
	var (
		s       model.Screen
		ownerID uint64
	)
	err := q.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.TheatreID, &s.Name, &s.Capacity, &s.CreatedAt, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrScreenNotFound
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "get screen")
	}
	return &s, ownerID, nil
}

// ListScreens returns the screens of a theatre ordered by name.
func (r *TheatreRepo) ListScreens(ctx context.Context, theatreID uint64) ([]model.Screen, error) {
	const q = "SELECT id, theatre_id, name, capacity, created_at FROM screens WHERE theatre_id = ? ORDER BY name, id"
	rows, err := r.db.QueryContext(ctx, q, theatreID)
	if err != nil {
		return nil, errors.Wrap(err, "list screens")
	}
	defer rows.Close()
	var out []model.Screen
	for rows.Next() {
		var s model.Screen
		if err := rows.Scan(&s.ID, &s.TheatreID, &s.Name, &s.Capacity, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan screen")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a theatre.  Its screens and seats go with it through
// ON DELETE CASCADE.  A theatre with shows on any screen is kept and
// ErrInUse is returned.
func (r *TheatreRepo) Delete(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.db, "theatres", id, ErrTheatreNotFound)
}
