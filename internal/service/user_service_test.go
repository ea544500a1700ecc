package service

import (
	"context"
	"testing"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockUserRepo enforces the unique username and email constraints.
type mockUserRepo struct {
	nextID int64
	users  map[int64]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{nextID: 1, users: make(map[int64]*domain.User)}
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
		if existing.Username == user.Username {
			return repository.ErrUsernameTaken
		}
	}
	user.ID = m.nextID
	m.nextID++
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func TestRegisterHashesPassword(t *testing.T) {
	users := newMockUserRepo()
	svc := NewUserService(users, "test-secret")

	user, err := svc.Register(context.Background(), RegisterRequest{
		Username: "ana",
		Email:    "ana@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")))
}

func TestRegisterValidation(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = svc.Register(ctx, RegisterRequest{Username: "ana", Email: "a@b.c", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	users := newMockUserRepo()
	svc := NewUserService(users, "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "a@b.c", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Username: "ana", Email: "other@b.c", Password: "hunter22"})
	assert.ErrorIs(t, err, repository.ErrUsernameTaken)
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	users := newMockUserRepo()
	svc := NewUserService(users, "test-secret")
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "a@b.c", Password: "hunter22"})
	require.NoError(t, err)

	user, token, err := svc.Login(ctx, "ana", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, token)

	userID, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, userID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := newMockUserRepo()
	svc := NewUserService(users, "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "a@b.c", Password: "hunter22"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ana", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyTokenRejectsForeignSecret(t *testing.T) {
	users := newMockUserRepo()
	issuer := NewUserService(users, "secret-one")
	verifier := NewUserService(users, "secret-two")
	ctx := context.Background()

	registered, err := issuer.Register(ctx, RegisterRequest{Username: "ana", Email: "a@b.c", Password: "hunter22"})
	require.NoError(t, err)

	token, err := issuer.IssueToken(registered)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}
