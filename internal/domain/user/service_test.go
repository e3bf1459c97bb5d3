package user

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock implementations ---

type mockRepo struct {
	users     map[string]*User
	lookupErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[string]*User)}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	if _, ok := m.users[u.Email]; ok {
		return ErrEmailTaken
	}
	u.ID = int64(len(m.users) + 1)
	m.users[u.Email] = u
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	u, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// --- Tests ---

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	svc := NewService(repo, bcrypt.MinCost)

	u, err := svc.Register(ctx, RegisterRequest{
		Email:    "  Carol@Example.COM ",
		Password: "secret1",
		Name:     " Carol ",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "carol@example.com", u.Email)
	assert.Equal(t, "Carol", u.Name)
	assert.Equal(t, RoleUser, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.True(t, CheckPassword(u.PasswordHash, "secret1"))
	assert.False(t, u.CreatedAt.IsZero())

	_, err = svc.Register(ctx, RegisterRequest{Email: "carol@example.com", Password: "another"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestService_RegisterInvalid(t *testing.T) {
	svc := NewService(newMockRepo(), bcrypt.MinCost)

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{name: "empty email", req: RegisterRequest{Password: "secret1"}},
		{name: "no at sign", req: RegisterRequest{Email: "carol", Password: "secret1"}},
		{name: "short password", req: RegisterRequest{Email: "carol@example.com", Password: "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_RegisterLookupFailure(t *testing.T) {
	repo := newMockRepo()
	repo.lookupErr = errors.New("db down")
	svc := NewService(repo, bcrypt.MinCost)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.c", Password: "secret1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailTaken)
	assert.Empty(t, repo.users)
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo(), bcrypt.MinCost)

	registered, err := svc.Register(ctx, RegisterRequest{Email: "dave@example.com", Password: "hunter22"})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "DAVE@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	_, err = svc.Authenticate(ctx, "dave@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := svc.Get(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "dave@example.com", got.Email)
	assert.False(t, got.IsAdmin())
}

func TestService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	svc := NewService(repo, bcrypt.MinCost)

	admin, err := svc.EnsureAdmin(ctx, "Admin@Example.com", "admin123")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "admin@example.com", admin.Email)

	again, err := svc.EnsureAdmin(ctx, "admin@example.com", "different")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)
	assert.Len(t, repo.users, 1)

	_, err = svc.EnsureAdmin(ctx, "root@example.com", "123")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewService_DefaultCost(t *testing.T) {
	svc := NewService(newMockRepo(), 0)
	assert.Equal(t, bcrypt.DefaultCost, svc.cost)
}
