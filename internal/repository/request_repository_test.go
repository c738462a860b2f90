package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/timeoff-service/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requestRows(reqs ...domain.Request) *pgxmock.Rows {
	rows := pgxmock.NewRows(requestColumns)
	for _, r := range reqs {
		rows.AddRow(r.ID, r.RequesterID, r.DepartmentID, r.ManagerID, r.StartDate, r.EndDate,
			r.TotalBusinessDays, r.ManagerComment, string(r.Status), r.Version, r.CreatedAt, r.UpdatedAt)
	}
	return rows
}

func sampleRequest(id int64) domain.Request {
	now := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	return domain.Request{
		ID:                id,
		RequesterID:       4,
		DepartmentID:      2,
		ManagerID:         ptr(int64(9)),
		StartDate:         day(2025, 2, 3),
		EndDate:           day(2025, 2, 7),
		TotalBusinessDays: 5,
		ManagerComment:    (*string)(nil),
		Status:            domain.RequestStatusPending,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestRequestRepository_GetByID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		want    *domain.Request
		wantErr error
	}{
		{
			name: "found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM time_off_requests WHERE id = \$1`).
					WithArgs(int64(1)).
					WillReturnRows(requestRows(sampleRequest(1)))
			},
			want: ptr(sampleRequest(1)),
		},
		{
			name: "missing",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM time_off_requests WHERE id = \$1`).
					WithArgs(int64(2)).
					WillReturnRows(requestRows())
			},
			wantErr: pgx.ErrNoRows,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := newMock(t)
			tt.setup(mock)
			repo := NewRequestRepository(mock)

			id := int64(1)
			if tt.wantErr != nil {
				id = 2
			}
			got, err := repo.GetByID(context.Background(), id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want.ID, got.ID)
				assert.Equal(t, domain.RequestStatusPending, got.Status)
				assert.Equal(t, int64(9), *got.ManagerID)
				assert.Nil(t, got.ManagerComment)
				assert.Equal(t, 5, got.TotalBusinessDays)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRequestRepository_Create(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	created := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO time_off_requests (.+) VALUES (.+) RETURNING id, version, created_at, updated_at`).
		WithArgs(int64(4), int64(2), pgxmock.AnyArg(), day(2025, 2, 3), day(2025, 2, 7), 5, pgxmock.AnyArg(), "PENDING").
		WillReturnRows(pgxmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
			AddRow(int64(31), int64(1), created, created))

	req := &domain.Request{
		RequesterID:  4,
		DepartmentID: 2,
		ManagerID:    ptr(int64(9)),
		Status:       domain.RequestStatusPending,
	}
	req.SetDateRange(day(2025, 2, 3), day(2025, 2, 7))

	require.NoError(t, NewRequestRepository(mock).Create(context.Background(), req))
	assert.Equal(t, int64(31), req.ID)
	assert.Equal(t, int64(1), req.Version)
	assert.Equal(t, created, req.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_Update(t *testing.T) {
	t.Parallel()

	t.Run("bumps version", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		updated := time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`UPDATE time_off_requests SET (.+) WHERE id = \$7 AND version = \$8 RETURNING version, updated_at`).
			WithArgs(pgxmock.AnyArg(), day(2025, 2, 3), day(2025, 2, 7), 5, pgxmock.AnyArg(), "APPROVED", int64(1), int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}).AddRow(int64(2), updated))

		req := sampleRequest(1)
		req.Status = domain.RequestStatusApproved
		require.NoError(t, NewRequestRepository(mock).Update(context.Background(), &req))
		assert.Equal(t, int64(2), req.Version)
		assert.Equal(t, updated, req.UpdatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE time_off_requests`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), int64(1), int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}))

		req := sampleRequest(1)
		err := NewRequestRepository(mock).Update(context.Background(), &req)
		require.ErrorIs(t, err, ErrVersionConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestRepository_Delete(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM time_off_requests WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM time_off_requests WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewRequestRepository(mock)
	require.NoError(t, repo.Delete(context.Background(), 3))
	require.ErrorIs(t, repo.Delete(context.Background(), 4), pgx.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_FindOverlap(t *testing.T) {
	t.Parallel()

	t.Run("returns earliest", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectQuery(`SELECT (.+) FROM time_off_requests WHERE requester_id = \$1 AND start_date <= \$2 AND end_date >= \$3 ORDER BY start_date ASC, id ASC LIMIT 1`).
			WithArgs(int64(4), day(2025, 2, 9), day(2025, 2, 5)).
			WillReturnRows(requestRows(sampleRequest(12)))

		got, err := NewRequestRepository(mock).FindOverlap(context.Background(), 4, day(2025, 2, 5), day(2025, 2, 9), 0)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(12), got.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("excludes request and returns nil when clear", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectQuery(`WHERE requester_id = \$1 AND start_date <= \$2 AND end_date >= \$3 AND id <> \$4`).
			WithArgs(int64(4), day(2025, 2, 9), day(2025, 2, 5), int64(12)).
			WillReturnRows(requestRows())

		got, err := NewRequestRepository(mock).FindOverlap(context.Background(), 4, day(2025, 2, 5), day(2025, 2, 9), 12)
		require.NoError(t, err)
		assert.Nil(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		boom := errors.New("connection reset")
		mock.ExpectQuery(`FROM time_off_requests`).
			WithArgs(int64(4), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(boom)

		_, err := NewRequestRepository(mock).FindOverlap(context.Background(), 4, day(2025, 2, 5), day(2025, 2, 9), 0)
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestRepository_List(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	status := domain.RequestStatusPending
	mock.ExpectQuery(`SELECT (.+) FROM time_off_requests WHERE manager_id = \$1 AND status = \$2 ORDER BY start_date DESC, id DESC LIMIT 10 OFFSET 20`).
		WithArgs(int64(9), "PENDING").
		WillReturnRows(requestRows(sampleRequest(2), sampleRequest(1)))

	got, err := NewRequestRepository(mock).List(context.Background(), RequestFilter{
		ManagerID: ptr(int64(9)),
		Status:    &status,
		Limit:     10,
		Offset:    20,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPageToLimitOffset(t *testing.T) {
	t.Parallel()

	limit, offset := PageToLimitOffset(3, 10)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	limit, offset = PageToLimitOffset(0, 0)
	assert.Zero(t, limit)
	assert.Zero(t, offset)

	limit, offset = PageToLimitOffset(-1, 5)
	assert.Equal(t, 5, limit)
	assert.Zero(t, offset)
}
