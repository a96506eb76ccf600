package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveScopeCommitsAllUpdatesInOneTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepositoryWithDB(mock)
	key := ScopeKey{DoctorID: uuid.New(), Date: Date("2026-03-02")}

	a := &Appointment{ID: uuid.New(), Status: StatusCancelled, Phase: PhaseWaiting, QueuePosition: 2}
	b := &Appointment{ID: uuid.New(), Status: StatusScheduled, Phase: PhaseWaiting, QueuePosition: 2}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(a.ID, a.Status, a.Phase, a.QueuePosition, a.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointments").
		WithArgs(b.ID, b.Status, b.Phase, b.QueuePosition, b.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = repo.SaveScope(context.Background(), key, []*Appointment{a, b})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveScopeRollsBackWhenARowIsMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepositoryWithDB(mock)
	key := ScopeKey{DoctorID: uuid.New(), Date: Date("2026-03-02")}

	a := &Appointment{ID: uuid.New(), Status: StatusScheduled, Phase: PhaseWaiting, QueuePosition: 1}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(a.ID, a.Status, a.Phase, a.QueuePosition, a.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = repo.SaveScope(context.Background(), key, []*Appointment{a})
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveScopeSkipsEmptyChangeSets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepositoryWithDB(mock)
	err = repo.SaveScope(context.Background(), ScopeKey{}, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetAppointmentByID(context.Background(), id)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestFindCorruptScopes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepositoryWithDB(mock)
	doctorID := uuid.New()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT doctor_id, scope_date").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "scope_date"}).AddRow(doctorID, day))

	keys, err := repo.FindCorruptScopes(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, doctorID, keys[0].DoctorID)
	assert.Equal(t, Date("2026-03-02"), keys[0].Date)
}
