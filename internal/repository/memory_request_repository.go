package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/timeoff-service/internal/domain"
)

type memoryRequestRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]domain.Request
	now    func() time.Time
}

// NewMemoryRequestRepository returns a process-local repository used when no
// Postgres DSN is configured and in tests. It follows the Postgres
// repository's semantics, including optimistic versioning.
func NewMemoryRequestRepository() RequestRepository {
	return &memoryRequestRepository{rows: make(map[int64]domain.Request), now: time.Now}
}

func (r *memoryRequestRepository) Create(ctx context.Context, req *domain.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	req.ID = r.nextID
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now
	r.rows[req.ID] = cloneRequest(*req)
	return nil
}

func (r *memoryRequestRepository) Update(ctx context.Context, req *domain.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[req.ID]
	if !ok || current.Version != req.Version {
		return ErrVersionConflict
	}
	req.Version++
	req.UpdatedAt = r.now()
	stored := cloneRequest(*req)
	stored.RequesterID = current.RequesterID
	stored.DepartmentID = current.DepartmentID
	stored.CreatedAt = current.CreatedAt
	r.rows[req.ID] = stored
	return nil
}

func (r *memoryRequestRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *memoryRequestRepository) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneRequest(req)
	return &out, nil
}

func (r *memoryRequestRepository) FindOverlap(ctx context.Context, userID int64, start, end time.Time, excludeID int64) (*domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *domain.Request
	for _, req := range r.rows {
		if req.RequesterID != userID || req.ID == excludeID || !req.Overlaps(start, end) {
			continue
		}
		if found == nil || req.StartDate.Before(found.StartDate) ||
			(req.StartDate.Equal(found.StartDate) && req.ID < found.ID) {
			c := cloneRequest(req)
			found = &c
		}
	}
	return found, nil
}

func (r *memoryRequestRepository) List(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]domain.Request, 0, len(r.rows))
	for _, req := range r.rows {
		if matches(req, filter) {
			out = append(out, cloneRequest(req))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Limit > 0 {
		offset := max(filter.Offset, 0)
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:min(offset+filter.Limit, len(out))]
	}
	return out, nil
}

func matches(req domain.Request, filter RequestFilter) bool {
	if filter.ManagerID != nil && !req.AssignedTo(*filter.ManagerID) {
		return false
	}
	if filter.UserID != nil && req.RequesterID != *filter.UserID {
		return false
	}
	if filter.Status != nil && req.Status != *filter.Status {
		return false
	}
	if filter.From != nil && req.EndDate.Before(domain.DateOf(*filter.From)) {
		return false
	}
	if filter.To != nil && req.StartDate.After(domain.DateOf(*filter.To)) {
		return false
	}
	return true
}

func cloneRequest(req domain.Request) domain.Request {
	if req.ManagerID != nil {
		id := *req.ManagerID
		req.ManagerID = &id
	}
	if req.ManagerComment != nil {
		comment := *req.ManagerComment
		req.ManagerComment = &comment
	}
	return req
}
