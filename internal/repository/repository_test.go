package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestTransitionTxLocksBatch(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowSeatRepo(db)
	holder := uint64(42)
	until := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE show_seats SET status = ?, locked_by = ?, locked_until = ?, version = version + 1 WHERE show_id = ? AND status = ? AND id IN (?,?)")).
		WithArgs("LOCKED", sqlmock.AnyArg(), sqlmock.AnyArg(), 7, "AVAILABLE", 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := NewTransactor(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		n, err := repo.TransitionTx(context.Background(), tx, Transition{
			ShowID: 7, IDs: []uint64{1, 2},
			From: model.ShowSeatAvailable, To: model.ShowSeatLocked,
			Holder: &holder, LockedUntil: &until,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionTxMatchesHolderWhenReleasing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowSeatRepo(db)
	holder := uint64(9)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = ?, locked_by = NULL, locked_until = NULL, version = version + 1 WHERE show_id = ? AND status = ? AND locked_by = ? AND id IN (?)")).
		WithArgs("AVAILABLE", 3, "LOCKED", 9, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	errPartial := errors.New("partial")
	err := NewTransactor(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		n, err := repo.TransitionTx(context.Background(), tx, Transition{
			ShowID: 3, IDs: []uint64{5}, From: model.ShowSeatLocked, To: model.ShowSeatAvailable, Holder: &holder,
		})
		require.NoError(t, err)
		if n != 1 {
			return errPartial
		}
		return nil
	})
	assert.ErrorIs(t, err, errPartial)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBulkTxDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowSeatRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO show_seats (show_id, seat_id, status, price_cents, version) VALUES (?, ?, ?, ?, ?),(?, ?, ?, ?, ?)")).
		WithArgs(1, 10, "AVAILABLE", 200, 0, 1, 10, "AVAILABLE", 200, 0).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := NewTransactor(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		return repo.InsertBulkTx(context.Background(), tx, []model.ShowSeat{
			{ShowID: 1, SeatID: 10, Status: model.ShowSeatAvailable, PriceCents: 200},
			{ShowID: 1, SeatID: 10, Status: model.ShowSeatAvailable, PriceCents: 200},
		})
	})
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDsForUpdateTxScansLock(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowSeatRepo(db)
	until := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "show_id", "seat_id", "status", "price_cents", "locked_by", "locked_until", "version"}).
		AddRow(1, 7, 100, "AVAILABLE", 200, nil, nil, 0).
		AddRow(2, 7, 101, "LOCKED", 250, 5, until, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM show_seats ss WHERE ss.show_id = ? AND ss.id IN (?,?) ORDER BY ss.id FOR UPDATE")).
		WithArgs(7, 1, 2).
		WillReturnRows(rows)
	mock.ExpectCommit()

	var got []model.ShowSeat
	err := NewTransactor(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		var err error
		got, err = repo.GetByIDsForUpdateTx(context.Background(), tx, 7, []uint64{1, 2})
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ShowSeatAvailable, got[0].Status)
	assert.Nil(t, got[0].LockedBy)
	assert.True(t, got[1].HeldBy(5))
	assert.Equal(t, until, *got[1].LockedUntil)
	assert.EqualValues(t, 250, got[1].PriceCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingCreateTxInsertsSeats(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings (user_id, show_id, status, total_amount_cents, booked_at)")).
		WithArgs(3, 7, "PENDING", 400, now).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booking_seats (booking_id, show_seat_id, price_cents) VALUES (?, ?, ?),(?, ?, ?)")).
		WithArgs(11, 1, 200, 11, 2, 200).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	b := &model.Booking{
		UserID: 3, ShowID: 7, Status: model.BookingPending, TotalAmountCents: 400, BookedAt: now,
		Seats: []model.BookingSeat{{ShowSeatID: 1, PriceCents: 200}, {ShowSeatID: 2, PriceCents: 200}},
	}
	err := NewTransactor(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		return repo.CreateTx(context.Background(), tx, b)
	})
	require.NoError(t, err)
	assert.EqualValues(t, 11, b.ID)
	assert.EqualValues(t, 11, b.Seats[1].BookingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingGetScopedOutsideScope(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = ? AND b.user_id = ?")).
		WithArgs(5, 3).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetScoped(context.Background(), 5, CustomerScope(3))
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingUpdateStatusTxConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)
	txn := "T1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ?, transaction_id = ? WHERE id = ? AND status = ?")).
		WithArgs("CONFIRMED", "T1", 5, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewTransactor(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		return repo.UpdateStatusTx(context.Background(), tx, 5, model.BookingPending, model.BookingConfirmed, &txn)
	})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, password_hash, role) VALUES (?,?,?)")).
		WithArgs("a@b.io", sqlmock.AnyArg(), "CUSTOMER").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.Create(context.Background(), " A@B.io ", "secret", model.RoleCustomer, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRefreshRejectsExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	cols := []string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 3, "h1", now.Add(-time.Hour), nil, now.Add(-48*time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("h2").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(2, 3, "h2", now.Add(time.Hour), nil, now))

	_, err := repo.ValidateRefresh(context.Background(), "h1")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	uid, err := repo.ValidateRefresh(context.Background(), "h2")
	require.NoError(t, err)
	assert.EqualValues(t, 3, uid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardScopes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDashboardRepo(db)
	ctx := context.Background()

	n, err := repo.CountTheatres(ctx, CustomerScope(3))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.CountUsers(ctx, OwnerScope(2))
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM theatres t WHERE t.owner_id = ?")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(4))
	n, err = repo.CountTheatres(ctx, OwnerScope(2))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.owner_id = ? AND b.status = ?")).
		WithArgs(2, "CONFIRMED").
		WillReturnRows(sqlmock.NewRows([]string{"c", "s"}).AddRow(3, 1200))
	agg, err := repo.Bookings(ctx, OwnerScope(2), BookingWindow{Status: model.BookingConfirmed})
	require.NoError(t, err)
	assert.Equal(t, BookingAggregate{Count: 3, AmountCents: 1200}, agg)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=0")).
		WillReturnRows(sqlmock.NewRows([]string{"c", "s"}).AddRow(0, 0))
	_, err = repo.Bookings(ctx, Scope{}, BookingWindow{})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxMarksDeadlockAsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowSeatRepo(db)
	holder := uint64(4)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE show_seats SET status = ?")).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx := context.Background()
	tx := NewTransactor(db)
	err := tx.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := repo.TransitionTx(ctx, tx, Transition{
			ShowID: 1, IDs: []uint64{2}, From: model.ShowSeatLocked, To: model.ShowSeatBooked, Holder: &holder,
		})
		return err
	})
	assert.ErrorIs(t, err, ErrConflict)

	err = tx.WithTx(ctx, func(*sql.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrConflict, "lock wait timeout on commit")

	plain := errors.New("boom")
	err = tx.WithTx(ctx, func(*sql.Tx) error { return plain })
	assert.ErrorIs(t, err, plain)
	assert.False(t, errors.Is(err, ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScreenRowLockAndSeatsInTx(t *testing.T) {
	db, mock := newMock(t)
	theatres := NewTheatreRepo(db)
	seats := NewSeatRepo(db)
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sc.id = ? FOR UPDATE")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "theatre_id", "name", "capacity", "created_at", "owner_id"}).
			AddRow(3, 1, "Hall", 100, created, 9))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seats (screen_id, row_label, seat_label, tier) VALUES (?, ?, ?, ?),(?, ?, ?, ?)")).
		WithArgs(3, "A", "1", "SILVER", 3, "A", "2", "GOLD").
		WillReturnResult(sqlmock.NewResult(20, 2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "screen_id", "row_label", "seat_label", "tier", "created_at"}).
			AddRow(20, 3, "A", "1", "SILVER", created).
			AddRow(21, 3, "A", "2", "GOLD", created))
	mock.ExpectCommit()

	ctx := context.Background()
	var got []model.Seat
	err := NewTransactor(db).WithTx(ctx, func(tx *sql.Tx) error {
		screen, owner, err := theatres.GetScreenForUpdateTx(ctx, tx, 3)
		if err != nil {
			return err
		}
		assert.EqualValues(t, 9, owner)
		assert.EqualValues(t, 100, screen.Capacity)
		if err := seats.CreateBulkTx(ctx, tx, []model.Seat{
			{ScreenID: 3, RowLabel: "A", SeatLabel: "1", Tier: model.TierSilver},
			{ScreenID: 3, RowLabel: "A", SeatLabel: "2", Tier: model.TierGold},
		}); err != nil {
			return err
		}
		got, err = seats.ListByScreenTx(ctx, tx, 3)
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 21, got[1].ID)
	assert.Equal(t, model.TierGold, got[1].Tier)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTierPricesTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowSeatRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY se.tier")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"tier", "price"}).AddRow("SILVER", 200).AddRow("GOLD", 450))
	mock.ExpectCommit()

	var got map[model.SeatTier]uint32
	err := NewTransactor(db).WithTx(context.Background(), func(tx *sql.Tx) error {
		var err error
		got, err = repo.TierPricesTx(context.Background(), tx, 7)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, map[model.SeatTier]uint32{model.TierSilver: 200, model.TierGold: 450}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReferencedAndMissing(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies WHERE id = ?")).
		WithArgs(5).
		WillReturnError(&mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"})
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies WHERE id = ?")).
		WithArgs(6).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM theatres WHERE id = ?")).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewMovieRepo(db).Delete(ctx, 5)
	assert.ErrorIs(t, err, ErrInUse)
	require.NoError(t, NewMovieRepo(db).Delete(ctx, 6))
	err = NewTheatreRepo(db).Delete(ctx, 8)
	assert.ErrorIs(t, err, ErrTheatreNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordReset(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPasswordResetRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_resets SET used_at=? WHERE user_id=? AND used_at IS NULL")).
		WithArgs(now, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_resets (user_id, code_hash, expires_at) VALUES (?,?,?)")).
		WithArgs(3, "h1", now.Add(10*time.Minute)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Issue(ctx, 3, "h1", now.Add(10*time.Minute)))

	mock.ExpectQuery(regexp.QuoteMeta("FROM password_resets WHERE user_id=? AND code_hash=? AND used_at IS NULL AND expires_at > ?")).
		WithArgs(3, "bad", now).
		WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, repo.Check(ctx, 3, "bad"), ErrOTPInvalid)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_resets SET used_at=?")).
		WithArgs(now, 3, "bad", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.Reset(ctx, 3, "bad", "$2a$hash"), ErrOTPInvalid)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_resets SET used_at=?")).
		WithArgs(now, 3, "h1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=? WHERE id=?")).
		WithArgs("$2a$hash", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL")).
		WithArgs(now, 3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	require.NoError(t, repo.Reset(ctx, 3, "h1", "$2a$hash"))
	require.NoError(t, mock.ExpectationsWereMet())
}
