package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/testutil"
)

func TestUserRepository_CreateAndFind(t *testing.T) {
	repo := NewUserRepository(testutil.NewDB(t))
	ctx := context.Background()

	user := &models.User{Username: "alice", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	byName, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
	assert.Equal(t, "hash", byName.PasswordHash)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = repo.FindByUsername(ctx, "bob")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	repo := NewUserRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "alice", PasswordHash: "h1"}))
	err := repo.Create(ctx, &models.User{Username: "alice", PasswordHash: "h2"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestUserRepository_UsernamesAreCaseSensitive(t *testing.T) {
	repo := NewUserRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "alice", PasswordHash: "h"}))
	require.NoError(t, repo.Create(ctx, &models.User{Username: "Alice", PasswordHash: "h"}))

	_, err := repo.FindByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func newMockRepo(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return NewUserRepository(db), mock
}

func TestUserRepository_StorageFailureIsNotNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(errors.New("connection refused"))

	_, err := repo.FindByUsername(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateTranslatesUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "alice", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreatePropagatesOtherErrors(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "alice", PasswordHash: "h"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateUsername)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
