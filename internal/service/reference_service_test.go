package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/timeoff-service/internal/cache"
	"github.com/spec-kit/timeoff-service/internal/domain"
)

type stubSource struct {
	userCalls  atomic.Int32
	gradeCalls atomic.Int32
	delay      time.Duration
	users      []domain.User
	grades     []domain.Grade
	depts      []domain.Department
	err        error
}

func newStubSource() *stubSource {
	return &stubSource{
		users: []domain.User{
			{ID: employeeID, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", GradeID: 1},
			{ID: managerID, FullName: "Grace Hopper", Email: "grace@example.com", GradeID: 2},
			{ID: colleagueID, FirstName: "Alan", LastName: "Turing", GradeID: 3},
		},
		grades: []domain.Grade{
			{ID: 1, Name: "Engineer"},
			{ID: 2, Name: "Engineering MANAGER"},
		},
		depts: []domain.Department{{ID: departmentID, Name: "Research"}},
	}
}

func (s *stubSource) FetchUsers(context.Context) ([]domain.User, error) {
	s.userCalls.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.User(nil), s.users...), nil
}

func (s *stubSource) FetchDepartments(context.Context) ([]domain.Department, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Department(nil), s.depts...), nil
}

func (s *stubSource) FetchGrades(context.Context) ([]domain.Grade, error) {
	s.gradeCalls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Grade(nil), s.grades...), nil
}

func TestReferenceService_ConcurrentMissFetchesOnce(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	src.delay = 50 * time.Millisecond
	refs := NewReferenceService(ReferenceDependencies{Source: src})

	const callers = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			users, err := refs.Users(context.Background())
			if err == nil && len(users) != 3 {
				err = errors.New("short user list")
			}
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.userCalls.Load())
}

func TestReferenceService_ResolvesManagerGradesOnLoad(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	refs := NewReferenceService(ReferenceDependencies{Source: src})

	grade, err := refs.GradeByID(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, grade)
	assert.True(t, grade.IsManagerGrade)

	grade, err = refs.GradeByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, grade.IsManagerGrade)

	missing, err := refs.GradeByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, int32(1), src.gradeCalls.Load())
}

func TestReferenceService_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	src.err = errors.New("core api down")
	refs := NewReferenceService(ReferenceDependencies{Source: src, TTL: time.Minute})

	_, err := refs.UserByID(context.Background(), employeeID)
	require.Error(t, err)

	src.err = nil
	user, err := refs.UserByID(context.Background(), employeeID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Ada Lovelace", user.DisplayName())
	assert.Equal(t, int32(2), src.userCalls.Load())
}

func TestReferenceService_TTLAndRefresh(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	src := newStubSource()
	refs := NewReferenceService(ReferenceDependencies{
		Source: src,
		Cache:  cache.New(cache.Options{Now: clock}),
	})
	ctx := context.Background()

	_, err := refs.Users(ctx)
	require.NoError(t, err)
	_, err = refs.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.userCalls.Load())

	mu.Lock()
	now = now.Add(DefaultReferenceTTL)
	mu.Unlock()
	_, err = refs.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.userCalls.Load())

	refs.Refresh()
	_, err = refs.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.userCalls.Load())

	dept, err := refs.DepartmentByID(ctx, departmentID)
	require.NoError(t, err)
	assert.Equal(t, "Research", dept.Name)
}
