package storage

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s StructureStore) {
	ctx := context.Background()

	_, err := s.Load(ctx, "Missing")
	assert.ErrorIs(t, err, ErrNotFound)

	payload := bytes.Repeat([]byte("Block(0,0,0,STONE)"), 64)
	require.NoError(t, s.Store(ctx, "Well", payload))

	got, err := s.Load(ctx, "Well")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.Store(ctx, "Well", []byte{1, 2, 3}))
	got, err = s.Load(ctx, "Well")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got, "Запись перезаписывается")

	require.NoError(t, s.Delete(ctx, "Well"))
	_, err = s.Load(ctx, "Well")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "Well"), "Повторное удаление не ошибка")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Load(cancelled, "Well")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)

	data := []byte{7}
	require.NoError(t, s.Store(context.Background(), "Copy", data))
	data[0] = 8
	got, err := s.Load(context.Background(), "Copy")
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, got, "Хранилище держит копию")
	assert.Equal(t, 1, s.Len())
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Store(context.Background(), "Tower", []byte("tower")))
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "Повторное закрытие безопасно")

	_, err = s.Load(context.Background(), "Tower")
	assert.Error(t, err)

	s, err = NewBadgerStore(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(context.Background(), "Tower")
	require.NoError(t, err)
	assert.Equal(t, []byte("tower"), got)
}

func TestBadgerStore_Corrupt(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.storeRaw("Broken", []byte("not zstd at all")))
	_, err = s.Load(context.Background(), "Broken")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR не задан")
	}

	config := DefaultRedisConfig()
	config.Addr = addr
	config.KeyPrefix = "otg:test:"
	s, err := NewRedisStore(context.Background(), config)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}
