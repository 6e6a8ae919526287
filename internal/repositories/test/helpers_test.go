package repositories_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/docker/go-connections/nat"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testEnv 聚合一个已迁移数据库上的全部仓储。
type testEnv struct {
	pool          *pgxpool.Pool
	tx            txmanager.Manager
	users         *repositories.UsersRepository
	channels      *repositories.ChannelsRepository
	videos        *repositories.VideosRepository
	comments      *repositories.CommentsRepository
	likes         *repositories.LikesRepository
	views         *repositories.VideoViewsRepository
	subscriptions *repositories.SubscriptionsRepository
	notifications *repositories.NotificationsRepository
	stats         *repositories.ChannelDailyStatsRepository
	watchLists    *repositories.WatchListsRepository
}

func newTestEnv(ctx context.Context, t *testing.T) *testEnv {
	t.Helper()

	dsn, terminate := startPostgres(ctx, t)
	t.Cleanup(terminate)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	applyMigrations(ctx, t, pool)

	logger := log.NewStdLogger(io.Discard)
	guard := storecall.NewGuard(storecall.Config{Timeout: 5 * time.Second}, logger)
	return &testEnv{
		pool:          pool,
		tx:            newTxManager(t, pool),
		users:         repositories.NewUsersRepository(pool, guard, logger),
		channels:      repositories.NewChannelsRepository(pool, guard, logger),
		videos:        repositories.NewVideosRepository(pool, guard, logger),
		comments:      repositories.NewCommentsRepository(pool, guard, logger),
		likes:         repositories.NewLikesRepository(pool, guard, logger),
		views:         repositories.NewVideoViewsRepository(pool, guard, logger),
		subscriptions: repositories.NewSubscriptionsRepository(pool, guard, logger),
		notifications: repositories.NewNotificationsRepository(pool, guard, logger),
		stats:         repositories.NewChannelDailyStatsRepository(pool, guard, logger),
		watchLists:    repositories.NewWatchListsRepository(pool, guard, logger),
	}
}

func newTxManager(t *testing.T, pool *pgxpool.Pool) txmanager.Manager {
	t.Helper()
	mgr, err := txmanager.NewManager(pool, txmanager.Config{}, txmanager.Dependencies{Logger: log.NewStdLogger(io.Discard)})
	require.NoError(t, err)
	return mgr
}

// seedUser 直接写入用户行，用户资料不归本服务维护。
func (e *testEnv) seedUser(ctx context.Context, t *testing.T, handle string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := e.pool.Exec(ctx, `INSERT INTO engagement.users (id, handle, display_name) VALUES ($1, $2, $2)`, id, handle)
	require.NoError(t, err)
	return id
}

func (e *testEnv) seedChannel(ctx context.Context, t *testing.T, ownerID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := e.pool.Exec(ctx, `INSERT INTO engagement.channels (id, owner_id, name) VALUES ($1, $2, 'channel')`, id, ownerID)
	require.NoError(t, err)
	return id
}

func (e *testEnv) seedVideo(ctx context.Context, t *testing.T, channelID, ownerID uuid.UUID) uuid.UUID {
	t.Helper()
	video, err := e.videos.Create(ctx, nil, repositories.CreateVideoInput{
		ChannelID: channelID,
		OwnerID:   ownerID,
		Title:     "clip",
		MediaURL:  "https://cdn.example.com/clip.mp4",
		MediaKey:  "videos/clip.mp4",
	})
	require.NoError(t, err)
	return video.ID
}

func startPostgres(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "engagement",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://postgres:postgres@%s:%s/engagement?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skip repository integration test: cannot start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/engagement?sslmode=disable", host, port.Port())
	cleanup := func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(termCtx)
	}
	return dsn, cleanup
}

func applyMigrations(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	migrationsDir := filepath.Join("..", "..", "..", "migrations")
	files, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".sql" {
			continue
		}
		paths = append(paths, filepath.Join(migrationsDir, f.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		sqlBytes, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		_, execErr := pool.Exec(ctx, string(sqlBytes))
		require.NoErrorf(t, execErr, "apply migration %s", filepath.Base(path))
	}
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func stringPtr(val string) *string {
	return &val
}
