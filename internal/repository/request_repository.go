package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/timeoff-service/internal/domain"
)

// ErrVersionConflict is returned when an update targets a stale version.
var ErrVersionConflict = errors.New("request was modified concurrently")

// DefaultPageSize applies when a caller asks for a page without a size.
const DefaultPageSize = 20

// RequestFilter narrows request listings. Nil fields are ignored.
// Limit == 0 returns every match.
type RequestFilter struct {
	ManagerID *int64
	UserID    *int64
	Status    *domain.RequestStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// RequestRepository encapsulates time-off request persistence.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	Update(ctx context.Context, req *domain.Request) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Request, error)
	// FindOverlap returns the earliest request of userID intersecting
	// [start, end], ignoring excludeID, or nil when there is none.
	FindOverlap(ctx context.Context, userID int64, start, end time.Time, excludeID int64) (*domain.Request, error)
	List(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
}

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var requestColumns = []string{
	"id", "requester_id", "department_id", "manager_id", "start_date", "end_date",
	"total_business_days", "manager_comment", "status", "version", "created_at", "updated_at",
}

type requestRepository struct {
	db DBTX
}

// NewRequestRepository instantiates the Postgres repository.
func NewRequestRepository(db DBTX) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	query, args, err := psql.Insert("time_off_requests").
		Columns("requester_id", "department_id", "manager_id", "start_date", "end_date",
			"total_business_days", "manager_comment", "status").
		Values(req.RequesterID, req.DepartmentID, req.ManagerID, req.StartDate, req.EndDate,
			req.TotalBusinessDays, req.ManagerComment, string(req.Status)).
		Suffix("RETURNING id, version, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&req.ID, &req.Version, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// Update writes the mutable fields if req.Version is still current and
// bumps req.Version on success.
func (r *requestRepository) Update(ctx context.Context, req *domain.Request) error {
	query, args, err := psql.Update("time_off_requests").
		Set("manager_id", req.ManagerID).
		Set("start_date", req.StartDate).
		Set("end_date", req.EndDate).
		Set("total_business_days", req.TotalBusinessDays).
		Set("manager_comment", req.ManagerComment).
		Set("status", string(req.Status)).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": req.ID}).
		Where(sq.Eq{"version": req.Version}).
		Suffix("RETURNING version, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&req.Version, &req.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return fmt.Errorf("update request: %w", err)
	}
	return nil
}

func (r *requestRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("time_off_requests").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	query, args, err := psql.Select(requestColumns...).
		From("time_off_requests").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return r.fetchSingle(ctx, query, args...)
}

func (r *requestRepository) FindOverlap(ctx context.Context, userID int64, start, end time.Time, excludeID int64) (*domain.Request, error) {
	builder := psql.Select(requestColumns...).
		From("time_off_requests").
		Where(sq.Eq{"requester_id": userID}).
		Where(sq.LtOrEq{"start_date": end}).
		Where(sq.GtOrEq{"end_date": start})
	if excludeID > 0 {
		builder = builder.Where(sq.NotEq{"id": excludeID})
	}
	query, args, err := builder.OrderBy("start_date ASC", "id ASC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build overlap query: %w", err)
	}
	req, err := r.fetchSingle(ctx, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	builder := psql.Select(requestColumns...).From("time_off_requests")
	if filter.ManagerID != nil {
		builder = builder.Where(sq.Eq{"manager_id": *filter.ManagerID})
	}
	if filter.UserID != nil {
		builder = builder.Where(sq.Eq{"requester_id": *filter.UserID})
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"end_date": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(sq.LtOrEq{"start_date": *filter.To})
	}
	builder = builder.OrderBy("start_date DESC", "id DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(max(filter.Offset, 0)))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

func (r *requestRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Request, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query request: %w", err)
		}
		return nil, pgx.ErrNoRows
	}
	return scanRequest(rows)
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var (
		req    domain.Request
		status string
	)
	if err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.DepartmentID,
		&req.ManagerID,
		&req.StartDate,
		&req.EndDate,
		&req.TotalBusinessDays,
		&req.ManagerComment,
		&status,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	req.Status = domain.RequestStatus(status)
	req.StartDate = domain.DateOf(req.StartDate)
	req.EndDate = domain.DateOf(req.EndDate)
	return &req, nil
}

// PageToLimitOffset converts 1-based page numbers to limit/offset.
// A zero pageSize leaves the listing unpaged.
func PageToLimitOffset(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		return 0, 0
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
