package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/user-management/internal/migrations"
	"github.com/magabrotheeeer/user-management/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err, "failed to create storage")

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))

	cleanup := func() {
		storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// TestDataFactory создает тестовые данные.
type TestDataFactory struct {
	storage *Storage
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает пользователя и возвращает его идентификатор.
func (f *TestDataFactory) CreateUser(t *testing.T, u models.User) string {
	t.Helper()
	if u.PasswordHash == "" {
		u.PasswordHash = "hashedpassword"
	}
	id, err := f.storage.Create(context.Background(), u)
	require.NoError(t, err)
	return id
}

// BlacklistAt добавляет отозванный токен с заданным временем создания.
func (f *TestDataFactory) BlacklistAt(t *testing.T, userID, token string, createdAt time.Time) {
	t.Helper()
	_, err := f.storage.DB.Exec(context.Background(),
		`INSERT INTO black_listed_tokens (user_id, token, created_at) VALUES ($1, $2, $3)`,
		userID, token, createdAt)
	require.NoError(t, err)
}

func (f *TestDataFactory) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.storage.DB.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}
