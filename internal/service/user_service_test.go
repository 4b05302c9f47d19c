package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/dto"
	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
)

type mockUserRepo struct {
	createErr error
	users     map[string]*models.User
	listUsers []models.User
	listCount int
	listErr   error
	entries   []*models.ActivityLog
	tokens    map[string]string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.createErr != nil {
		return nil, fmt.Errorf("create user: %w", m.createErr)
	}
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			copy := *existing
			return &copy, nil
		}
	}
	copy := *user
	copy.ID = newID()
	m.users[copy.ID] = &copy
	return &copy, nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole, at time.Time, entry *models.ActivityLog) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Role = role
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockUserRepo) SetBlocked(ctx context.Context, id string, blocked bool, at time.Time, entry *models.ActivityLog) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Blocked = blocked
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockUserRepo) UpdateDeliveryToken(ctx context.Context, id, token string, at time.Time) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	if m.tokens == nil {
		m.tokens = make(map[string]string)
	}
	m.tokens[id] = token
	return nil
}

type invalidationCounter struct {
	calls int
}

func (c *invalidationCounter) InvalidateRecipients(ctx context.Context) {
	c.calls++
}

func newUserFixture() (*UserService, *mockUserRepo, *invalidationCounter) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"user1":  {ID: "user1", Email: "student@uni.edu", Role: models.RoleStudent},
		"admin1": {ID: "admin1", Email: "head@uni.edu", Role: models.RoleAdmin},
	}}
	counter := &invalidationCounter{}
	return NewUserService(repo, counter, newTestPolicy(), validator.New(), zap.NewNop()), repo, counter
}

func TestUserServiceList(t *testing.T) {
	svc, repo, _ := newUserFixture()
	repo.listUsers = []models.User{{ID: "1", Email: "a@example.com"}}
	repo.listCount = 1

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestUserServiceRegisterIsIdempotent(t *testing.T) {
	svc, _, _ := newUserFixture()

	user, err := svc.Register(context.Background(), dto.RegisterUserRequest{Email: "New@Uni.edu", DisplayName: "New"})
	require.NoError(t, err)
	assert.Equal(t, "new@uni.edu", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)

	again, err := svc.Register(context.Background(), dto.RegisterUserRequest{Email: "new@uni.edu", DisplayName: "New"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	_, err = svc.Register(context.Background(), dto.RegisterUserRequest{Email: "not-an-email", DisplayName: "X"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceRegisterStoreFailures(t *testing.T) {
	svc, repo, _ := newUserFixture()
	req := dto.RegisterUserRequest{ID: "user1", Email: "renamed@uni.edu", DisplayName: "Renamed"}

	repo.createErr = &pq.Error{Code: "23505", Constraint: "users_pkey"}
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.False(t, appErrors.IsTransient(err))

	repo.createErr = &pq.Error{Code: "22P02"}
	_, err = svc.Register(context.Background(), req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	repo.createErr = errors.New("driver: bad connection")
	_, err = svc.Register(context.Background(), req)
	assert.True(t, appErrors.IsTransient(err))
}

func TestUserServiceUpdateRole(t *testing.T) {
	svc, repo, counter := newUserFixture()

	user, err := svc.UpdateRole(context.Background(), "user1", dto.UpdateRoleRequest{Role: "security"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSecurity, user.Role)
	assert.Equal(t, models.RoleSecurity, repo.users["user1"].Role)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.ActivityUserRoleChanged, repo.entries[0].Action)
	assert.Equal(t, "STUDENT", *repo.entries[0].PreviousValue)
	assert.Equal(t, 1, counter.calls)

	_, err = svc.UpdateRole(context.Background(), "user1", dto.UpdateRoleRequest{Role: "JANITOR"}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateRole(context.Background(), "user1", dto.UpdateRoleRequest{Role: "ADMIN"}, securityActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.UpdateRole(context.Background(), "ghost", dto.UpdateRoleRequest{Role: "ADMIN"}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceSetBlocked(t *testing.T) {
	svc, repo, counter := newUserFixture()

	user, err := svc.SetBlocked(context.Background(), "user1", true, adminActor)
	require.NoError(t, err)
	assert.True(t, user.Blocked)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, models.ActivityUserBlocked, repo.entries[0].Action)
	assert.Equal(t, 1, counter.calls)

	_, err = svc.SetBlocked(context.Background(), "user1", true, adminActor)
	require.NoError(t, err)
	assert.Len(t, repo.entries, 1)

	_, err = svc.SetBlocked(context.Background(), "admin1", true, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceUpdateDeliveryToken(t *testing.T) {
	svc, repo, counter := newUserFixture()

	err := svc.UpdateDeliveryToken(context.Background(), dto.DeliveryTokenRequest{Token: " tok-1 "}, studentActor)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", repo.tokens["user1"])
	assert.Equal(t, 1, counter.calls)

	err = svc.UpdateDeliveryToken(context.Background(), dto.DeliveryTokenRequest{}, &Actor{ID: "ghost"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
