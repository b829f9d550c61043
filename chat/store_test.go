package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, fmt.Sprintf("postgres://test:test@%s:%s/test", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestRoomsAndMessages(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	chatStore, err := NewStore(ctx, pool)
	require.NoError(t, err)

	room, err := chatStore.CreateRoom(ctx, "Konsultasi Syariah")
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)

	rooms, err := chatStore.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Konsultasi Syariah", rooms[0].Name)

	first, err := chatStore.CreateMessage(ctx, room.ID, "user-1", "Assalamualaikum")
	require.NoError(t, err)
	_, err = chatStore.CreateMessage(ctx, room.ID, "user-2", "Waalaikumsalam")
	require.NoError(t, err)

	messages, err := chatStore.ListMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID, "messages come back in creation order")
}

func TestMessageOperationsOnMissingRoom(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	chatStore, err := NewStore(ctx, pool)
	require.NoError(t, err)

	_, err = chatStore.CreateMessage(ctx, "no-such-room", "user-1", "halo")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = chatStore.ListMessages(ctx, "no-such-room")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
