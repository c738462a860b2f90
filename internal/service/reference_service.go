package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/timeoff-service/internal/cache"
	"github.com/spec-kit/timeoff-service/internal/domain"
	"github.com/spec-kit/timeoff-service/internal/observability"
)

// Cache keys for reference data.
const (
	UsersCacheKey       = "users_all"
	DepartmentsCacheKey = "departments_all"
	GradesCacheKey      = "grades_all"
)

// DefaultReferenceTTL is how long reference data is served from cache.
const DefaultReferenceTTL = 30 * time.Minute

// ReferenceSource fetches reference data from the directory service.
type ReferenceSource interface {
	FetchUsers(ctx context.Context) ([]domain.User, error)
	FetchDepartments(ctx context.Context) ([]domain.Department, error)
	FetchGrades(ctx context.Context) ([]domain.Grade, error)
}

// ReferenceService serves users, departments and grades through a shared
// cache so that a miss triggers one upstream fetch per key.
type ReferenceService struct {
	source  ReferenceSource
	cache   *cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// ReferenceDependencies bundles collaborators for ReferenceService.
type ReferenceDependencies struct {
	Source  ReferenceSource
	Cache   *cache.Cache
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewReferenceService constructs the service.
func NewReferenceService(deps ReferenceDependencies) *ReferenceService {
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.Options{})
	}
	if deps.TTL <= 0 {
		deps.TTL = DefaultReferenceTTL
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ReferenceService{
		source:  deps.Source,
		cache:   deps.Cache,
		ttl:     deps.TTL,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

func (s *ReferenceService) Users(ctx context.Context) ([]domain.User, error) {
	return cache.Load(ctx, s.cache, UsersCacheKey, s.ttl, func(ctx context.Context) ([]domain.User, error) {
		users, err := s.source.FetchUsers(ctx)
		s.recordFetch(UsersCacheKey, len(users), err)
		return users, err
	})
}

func (s *ReferenceService) Departments(ctx context.Context) ([]domain.Department, error) {
	return cache.Load(ctx, s.cache, DepartmentsCacheKey, s.ttl, func(ctx context.Context) ([]domain.Department, error) {
		departments, err := s.source.FetchDepartments(ctx)
		s.recordFetch(DepartmentsCacheKey, len(departments), err)
		return departments, err
	})
}

// Grades returns grades with IsManagerGrade resolved at load time.
func (s *ReferenceService) Grades(ctx context.Context) ([]domain.Grade, error) {
	return cache.Load(ctx, s.cache, GradesCacheKey, s.ttl, func(ctx context.Context) ([]domain.Grade, error) {
		grades, err := s.source.FetchGrades(ctx)
		s.recordFetch(GradesCacheKey, len(grades), err)
		if err != nil {
			return nil, err
		}
		for i := range grades {
			grades[i].IsManagerGrade = domain.ResolveManagerGrade(grades[i].Name)
		}
		return grades, nil
	})
}

// UserByID returns nil without error when the user is unknown.
func (s *ReferenceService) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			u := users[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (s *ReferenceService) DepartmentByID(ctx context.Context, id int64) (*domain.Department, error) {
	departments, err := s.Departments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range departments {
		if departments[i].ID == id {
			d := departments[i]
			return &d, nil
		}
	}
	return nil, nil
}

func (s *ReferenceService) GradeByID(ctx context.Context, id int64) (*domain.Grade, error) {
	grades, err := s.Grades(ctx)
	if err != nil {
		return nil, err
	}
	for i := range grades {
		if grades[i].ID == id {
			g := grades[i]
			return &g, nil
		}
	}
	return nil, nil
}

// Refresh drops every cached key so the next read refetches.
func (s *ReferenceService) Refresh() {
	for _, key := range []string{UsersCacheKey, DepartmentsCacheKey, GradesCacheKey} {
		s.cache.Invalidate(key)
	}
}

func (s *ReferenceService) recordFetch(key string, count int, err error) {
	s.metrics.RecordReferenceFetch(key, err)
	if err != nil {
		s.logger.Error("reference data fetch failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.logger.Debug("reference data loaded", zap.String("key", key), zap.Int("count", count))
}
