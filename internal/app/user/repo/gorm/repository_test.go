//go:build testutil

package gorm

import (
	"context"
	"os"
	"testing"

	"github.com/crealith/authcore/internal/app/user"
	"github.com/crealith/authcore/internal/infrastructure/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var shared *db.TestDB

func TestMain(m *testing.M) {
	var stop func()
	shared, stop = db.StartPostgres()
	code := m.Run()
	stop()
	os.Exit(code)
}

func newRepo(t *testing.T) *gormRepo {
	gdb, _, cleanup := shared.CreateIsolatedDB(t)
	t.Cleanup(cleanup)
	return NewRepository(gdb)
}

func createReq() (user.CreateUserReq, uuid.UUID) {
	return user.CreateUserReq{
		Email:     uuid.New().String() + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		Role:      user.RoleBuyer,
	}, uuid.New()
}

func TestRepo_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := newRepo(t)
	req, id := createReq()

	require.NoError(t, repo.CreateUser(ctx, req, id, "bcrypt-hash"))

	got, hash, err := repo.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, req.Email, got.Email)
	require.Equal(t, req.FirstName, got.FirstName)
	require.Equal(t, req.LastName, got.LastName)
	require.Equal(t, user.RoleBuyer, got.Role)
	require.Equal(t, "bcrypt-hash", hash)
	require.NotZero(t, got.CreatedAt)
	require.Nil(t, got.DeletedAt)

	byEmail, _, err := repo.GetUserByEmail(ctx, req.Email)
	require.NoError(t, err)
	require.Equal(t, id, byEmail.ID)
}

func TestRepo_Get_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := newRepo(t)

	_, _, err := repo.GetUser(ctx, uuid.New())
	require.ErrorIs(t, err, user.ErrUserNotFound())

	_, _, err = repo.GetUserByEmail(ctx, "absent@example.com")
	require.ErrorIs(t, err, user.ErrUserNotFound())
}

func TestRepo_Create_DuplicateEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := newRepo(t)
	req, id := createReq()

	require.NoError(t, repo.CreateUser(ctx, req, id, "bcrypt-hash"))

	err := repo.CreateUser(ctx, req, uuid.New(), "other-hash")
	require.ErrorIs(t, err, user.ErrUserWithEmailAlreadyExists())
}

func TestRepo_ChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := newRepo(t)
	req, id := createReq()
	require.NoError(t, repo.CreateUser(ctx, req, id, "old-hash"))

	require.NoError(t, repo.ChangePassword(ctx, id, "new-hash"))

	_, hash, err := repo.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new-hash", hash)

	err = repo.ChangePassword(ctx, uuid.New(), "irrelevant")
	require.ErrorIs(t, err, user.ErrUserNotFound())
}
