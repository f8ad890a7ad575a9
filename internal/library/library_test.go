package library

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/customobjects/internal/customobject"
	"github.com/annel0/customobjects/internal/logging"
	"github.com/annel0/customobjects/internal/metrics"
	"github.com/annel0/customobjects/internal/storage"
)

const towerSource = `Author: test
Block(0,0,0,COBBLESTONE)
Block(0,1,0,COBBLESTONE)
Block(0,2,0,TORCH:5)
Branch(0,3,0,Roof,NORTH,100)
`

const roofSource = `Block(0,0,0,WOOD)
Block(1,0,0,WOOD)
`

type fixture struct {
	dir     string
	store   *storage.MemoryStore
	metrics *metrics.Collector
	lib     *Library
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Tower.bo4"), towerSource)
	writeFile(t, filepath.Join(dir, "roofs", "Roof.bo3"), roofSource)
	writeFile(t, filepath.Join(dir, "README.txt"), "не структура")

	f := &fixture{
		dir:     dir,
		store:   storage.NewMemoryStore(),
		metrics: metrics.NewCollector(),
	}
	f.lib = f.newLibrary()
	return f
}

func (f *fixture) newLibrary() *Library {
	return New(Options{
		Dir:     f.dir,
		Store:   f.store,
		Metrics: f.metrics,
		Logger:  logging.NewWriterLogger("test", io.Discard, logging.ERROR),
	})
}

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestLibrary_GetFromText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.lib.Get(ctx, "tower")
	require.NoError(t, err)
	assert.Equal(t, "Tower", h.Name())
	assert.Equal(t, customobject.KindBO4, h.Kind())
	assert.Len(t, h.Functions(), 4)

	again, err := f.lib.Get(ctx, "TOWER")
	require.NoError(t, err)
	assert.Same(t, h, again, "Повторный запрос отдаёт тот же экземпляр")

	roof, err := f.lib.Get(ctx, "Roof")
	require.NoError(t, err)
	assert.Equal(t, customobject.KindBO3, roof.Kind())

	assert.Equal(t, 2, f.store.Len(), "Бинарный кеш заполнен")
	assert.Contains(t, scrape(t, f.metrics), `customobjects_structures_loaded_total{source="text"} 2`)
	assert.Equal(t, 2, f.lib.Len())

	_, err = f.lib.Get(ctx, "Castle")
	assert.ErrorIs(t, err, ErrStructureNotFound)
}

func TestLibrary_GetFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.lib.Get(ctx, "Tower")
	require.NoError(t, err)

	// Новая библиотека с тем же кешем; текст очищен, значит чтение только из кеша
	writeFile(t, filepath.Join(f.dir, "Tower.bo4"), "")
	lib := f.newLibrary()

	cached, err := lib.Get(ctx, "Tower")
	require.NoError(t, err)
	require.Len(t, cached.Functions(), len(original.Functions()))
	for i, fn := range original.Functions() {
		assert.Equal(t, fn.Format(), cached.Functions()[i].Format())
	}
}

func TestLibrary_CorruptCacheFallsBackToText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Store(ctx, "tower", []byte{1, 0, 0, 0, 0, 0, 9, 0xFF}))

	h, err := f.lib.Get(ctx, "Tower")
	require.NoError(t, err)
	assert.Len(t, h.Functions(), 4, "Структура перечитана из текста")
	assert.Contains(t, scrape(t, f.metrics), "customobjects_cache_decode_failures_total 1")

	data, err := f.store.Load(ctx, "tower")
	require.NoError(t, err)
	_, err = customobject.DecodeStructure("Tower", "", data, customobject.HolderOptions{})
	assert.NoError(t, err, "Кеш перезаписан корректной записью")
}

func TestLibrary_ConcurrentGetParsesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 32
	results := make([]*customobject.Holder, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := f.lib.Get(ctx, "Tower")
			assert.NoError(t, err)
			results[i] = h
		}(i)
	}
	wg.Wait()

	for _, h := range results {
		assert.Same(t, results[0], h)
	}
}

func TestLibrary_LoadAll(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.dir, "Broken.bo3"), "Block(0,0)\nЧто-то\n")

	n, err := f.lib.LoadAll(context.Background())
	require.NoError(t, err, "Ошибки разбора строк не ошибка загрузки")
	assert.Equal(t, 3, n)

	names, err := f.lib.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"Broken", "Roof", "Tower"}, names)
}

func TestLibrary_LoadAllCollectsErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.lib.Names()
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, "roofs", "Roof.bo3")))

	n, err := f.lib.LoadAll(context.Background())
	assert.Equal(t, 1, n, "Остальные структуры загружены")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLibrary_InvalidateAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.lib.Get(ctx, "Tower")
	require.NoError(t, err)

	require.NoError(t, f.lib.Invalidate(ctx, "Tower"))
	_, err = f.store.Load(ctx, "tower")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	second, err := f.lib.Get(ctx, "Tower")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	writeFile(t, filepath.Join(f.dir, "Castle.bo4"), roofSource)
	_, err = f.lib.Get(ctx, "Castle")
	assert.ErrorIs(t, err, ErrStructureNotFound, "Каталог уже просканирован")

	f.lib.Reset()
	assert.Equal(t, 0, f.lib.Len())
	_, err = f.lib.Get(ctx, "Castle")
	assert.NoError(t, err)
}

// gatedStore задерживает первый Load до закрытия release
type gatedStore struct {
	*storage.MemoryStore
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *gatedStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return s.MemoryStore.Load(ctx, key)
}

func TestLibrary_InvalidateDuringLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := &gatedStore{
		MemoryStore: f.store,
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	lib := New(Options{
		Dir:     f.dir,
		Store:   store,
		Metrics: f.metrics,
		Logger:  logging.NewWriterLogger("test", io.Discard, logging.ERROR),
	})

	type result struct {
		h   *customobject.Holder
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := lib.Get(ctx, "Tower")
		done <- result{h, err}
	}()

	<-store.started
	require.NoError(t, lib.Invalidate(ctx, "Tower"))
	close(store.release)

	stale := <-done
	require.NoError(t, stale.err)
	assert.Equal(t, 0, lib.Len(), "Загрузка до инвалидации не должна попасть в память")
	_, err := f.store.Load(ctx, "tower")
	assert.ErrorIs(t, err, storage.ErrNotFound, "И в бинарный кеш тоже")

	fresh, err := lib.Get(ctx, "Tower")
	require.NoError(t, err)
	assert.NotSame(t, stale.h, fresh)
	assert.Equal(t, 1, lib.Len())
}

func TestLibrary_ResetDuringLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := &gatedStore{
		MemoryStore: f.store,
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	lib := New(Options{
		Dir:     f.dir,
		Store:   store,
		Metrics: f.metrics,
		Logger:  logging.NewWriterLogger("test", io.Discard, logging.ERROR),
	})

	done := make(chan error, 1)
	go func() {
		_, err := lib.Get(ctx, "Tower")
		done <- err
	}()

	<-store.started
	lib.Reset()
	close(store.release)

	require.NoError(t, <-done)
	assert.Equal(t, 0, lib.Len())
}

func TestLibrary_LocalBusInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bus := NewLocalBus()

	other := f.newLibrary()
	require.NoError(t, f.lib.AttachInvalidator(ctx, bus.Join()))
	require.NoError(t, other.AttachInvalidator(ctx, bus.Join()))

	_, err := f.lib.Get(ctx, "Tower")
	require.NoError(t, err)
	_, err = other.Get(ctx, "Tower")
	require.NoError(t, err)
	require.Equal(t, 1, other.Len())

	require.NoError(t, f.lib.Invalidate(ctx, "Tower"))
	assert.Equal(t, 0, f.lib.Len())
	assert.Equal(t, 0, other.Len(), "Другой узел получил инвалидацию")
}

func TestNATSInvalidator(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL не задан")
	}

	a, err := NewNATSInvalidator(NATSConfig{URL: url, Subject: "customobjects.test"}, "")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewNATSInvalidator(NATSConfig{URL: url, Subject: "customobjects.test"}, "")
	require.NoError(t, err)
	defer b.Close()

	got := make(chan string, 1)
	require.NoError(t, b.Subscribe(context.Background(), func(name string) error {
		got <- name
		return nil
	}))
	require.NoError(t, b.conn.Flush())
	require.NoError(t, a.Publish(context.Background(), "tower"))
	assert.Equal(t, "tower", <-got)
}
