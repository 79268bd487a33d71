package repository

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// MovieRepo encapsulates all database queries related to movies.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the provided DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

const movieColumns = `id, title, description, duration_minutes, language, genre, release_date, rating, poster_url, trailer_url, created_at`

// Create inserts a movie and populates its ID.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	const q = `INSERT INTO movies (title, description, duration_minutes, language, genre, release_date, rating, poster_url, trailer_url)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, m.Title, m.Description, m.DurationMinutes, m.Language, m.Genre,
		m.ReleaseDate, m.Rating, m.PosterURL, m.TrailerURL)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEntry
		}
		return errors.Wrap(err, "insert movie")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "movie id")
	}
	m.ID = uint64(id)
	return nil
}

// GetByID returns a movie or ErrMovieNotFound.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	m, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get movie")
	}
	return m, nil
}

// List returns all movies, newest release first.
func (r *MovieRepo) List(ctx context.Context) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY release_date DESC, id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list movies")
	}
	defer rows.Close()
	var out []model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan movie")
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovie(s scanner) (*model.Movie, error) {
	var (
		m       model.Movie
		release sql.NullTime
	)
	if err := s.Scan(&m.ID, &m.Title, &m.Description, &m.DurationMinutes, &m.Language, &m.Genre,
		&release, &m.Rating, &m.PosterURL, &m.TrailerURL, &m.CreatedAt); err != nil {
		return nil, err
	}
	if release.Valid {
		t := release.Time
		m.ReleaseDate = &t
	}
	return &m, nil
}

// Delete removes a movie.  A movie referenced by shows is kept and
// ErrInUse is returned.
func (r *MovieRepo) Delete(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.db, "movies", id, ErrMovieNotFound)
}
