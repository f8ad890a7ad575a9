package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/annel0/customobjects/internal/customobject"
	"github.com/annel0/customobjects/internal/logging"
	"github.com/annel0/customobjects/internal/material"
	"github.com/annel0/customobjects/internal/metadata"
	"github.com/annel0/customobjects/internal/metrics"
	"github.com/annel0/customobjects/internal/storage"
)

// ErrStructureNotFound - в каталоге нет файла структуры с таким именем
var ErrStructureNotFound = errors.New("library: structure not found")

// Расширения файлов структур и их семейства
var extensions = map[string]customobject.Kind{
	".bo3": customobject.KindBO3,
	".bo4": customobject.KindBO4,
}

// Options - зависимости библиотеки
type Options struct {
	Dir      string
	Store    storage.StructureStore // nil - бинарный кеш выключен
	Registry *material.Registry
	Loader   metadata.Loader
	Metrics  *metrics.Collector
	Logger   *logging.Logger
	// Workers ограничивает параллелизм LoadAll, 0 без ограничения
	Workers int
}

type structureFile struct {
	name string
	path string
	kind customobject.Kind
}

// Library - кеш разобранных структур, принадлежащий оркестратору.
// Структура загружается один раз, одновременные запросы объединяются.
type Library struct {
	opts Options

	mu       sync.RWMutex
	holders  map[string]*customobject.Holder
	files    map[string]structureFile
	scanned  bool
	group    singleflight.Group
	notifier Invalidator

	// gens растёт при каждой инвалидации ключа, epoch - при Reset.
	// Загрузка, начатая до инвалидации, результат в память не кладёт.
	gens  map[string]uint64
	epoch uint64
}

func New(opts Options) *Library {
	if opts.Logger == nil {
		opts.Logger = logging.GetLibraryLogger()
	}
	if opts.Loader == nil {
		opts.Loader = metadata.NewFileLoader()
	}
	return &Library{
		opts:    opts,
		holders: make(map[string]*customobject.Holder),
		gens:    make(map[string]uint64),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (l *Library) holderOptions(kind customobject.Kind) customobject.HolderOptions {
	return customobject.HolderOptions{
		Kind:     kind,
		Registry: l.opts.Registry,
		Loader:   l.opts.Loader,
		Logger:   l.opts.Logger,
	}
}

// Get возвращает структуру по имени (без учёта регистра).
// Порядок: память, бинарный кеш, текстовый файл.
func (l *Library) Get(ctx context.Context, name string) (*customobject.Holder, error) {
	key := normalize(name)
	l.mu.RLock()
	h, ok := l.holders[key]
	l.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		l.mu.RLock()
		h, ok := l.holders[key]
		gen, epoch := l.gens[key], l.epoch
		l.mu.RUnlock()
		if ok {
			return h, nil
		}

		file, err := l.lookup(key)
		if err != nil {
			return nil, err
		}
		h, fromText, err := l.load(ctx, key, file)
		if err != nil {
			return nil, err
		}

		if !l.commit(key, h, gen, epoch) {
			l.opts.Logger.Debug("Структура %s сброшена во время загрузки", key)
			return h, nil
		}
		if fromText {
			l.storeCached(ctx, key, h)
			// инвалидация могла прийти между commit и записью
			if !l.current(key, gen, epoch) && l.opts.Store != nil {
				_ = l.opts.Store.Delete(ctx, key)
			}
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*customobject.Holder), nil
}

// commit кладёт структуру в память, если ключ не инвалидировали с начала загрузки
func (l *Library) commit(key string, h *customobject.Holder, gen, epoch uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gens[key] != gen || l.epoch != epoch {
		return false
	}
	l.holders[key] = h
	return true
}

func (l *Library) current(key string, gen, epoch uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gens[key] == gen && l.epoch == epoch
}

// load возвращает структуру и признак того, что она разобрана из текста
func (l *Library) load(ctx context.Context, key string, file structureFile) (*customobject.Holder, bool, error) {
	if h := l.loadCached(ctx, key, file); h != nil {
		l.opts.Metrics.StructureLoaded(metrics.SourceCache)
		return h, false, nil
	}

	f, err := os.Open(file.path)
	if err != nil {
		return nil, false, fmt.Errorf("library: %w", err)
	}
	defer f.Close()

	h, parseErrors, err := customobject.ParseStructure(file.name, file.path, f, l.holderOptions(file.kind))
	if err != nil {
		return nil, false, err
	}
	l.opts.Metrics.ParseErrors(len(parseErrors))
	l.opts.Metrics.StructureLoaded(metrics.SourceText)
	if len(parseErrors) > 0 {
		l.opts.Logger.Warn("Структура %s: пропущено строк: %d", file.name, len(parseErrors))
	}
	return h, true, nil
}

// loadCached возвращает nil при промахе. Повреждённая запись удаляется.
func (l *Library) loadCached(ctx context.Context, key string, file structureFile) *customobject.Holder {
	if l.opts.Store == nil {
		return nil
	}

	data, err := l.opts.Store.Load(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case errors.Is(err, storage.ErrCorrupt):
		l.discard(ctx, key, err, nil)
		return nil
	default:
		l.opts.Logger.Warn("Кеш недоступен для %s: %v", file.name, err)
		return nil
	}

	h, err := customobject.DecodeStructure(file.name, file.path, data, l.holderOptions(file.kind))
	if err != nil {
		l.discard(ctx, key, err, data)
		return nil
	}
	l.opts.Logger.Debug("Структура %s загружена из кеша", file.name)
	return h
}

func (l *Library) discard(ctx context.Context, key string, cause error, data []byte) {
	l.opts.Metrics.DecodeFailure()
	l.opts.Logger.LogDecodeError(key, cause, data)
	if err := l.opts.Store.Delete(ctx, key); err != nil {
		l.opts.Logger.Warn("Не удалось удалить запись кеша %s: %v", key, err)
	}
}

func (l *Library) storeCached(ctx context.Context, key string, h *customobject.Holder) {
	if l.opts.Store == nil {
		return
	}
	data, err := customobject.EncodeStructure(h)
	if err != nil {
		l.opts.Logger.Warn("Структура %s не кешируется: %v", h.Name(), err)
		return
	}
	if err := l.opts.Store.Store(ctx, key, data); err != nil {
		l.opts.Logger.Warn("Не удалось записать кеш %s: %v", h.Name(), err)
	}
}

func (l *Library) lookup(key string) (structureFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.scanLocked(); err != nil {
		return structureFile{}, err
	}
	file, ok := l.files[key]
	if !ok {
		return structureFile{}, fmt.Errorf("%w: %s", ErrStructureNotFound, key)
	}
	return file, nil
}

func (l *Library) scanLocked() error {
	if l.scanned {
		return nil
	}
	files, err := scanDir(l.opts.Dir)
	if err != nil {
		return err
	}
	l.files = files
	l.scanned = true
	return nil
}

// scanDir находит файлы .bo3/.bo4 в каталоге и подкаталогах.
// При совпадении имён побеждает первый в лексическом порядке путь.
func scanDir(dir string) (map[string]structureFile, error) {
	files := make(map[string]structureFile)
	if dir == "" {
		return files, nil
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		kind, ok := extensions[ext]
		if !ok {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		key := normalize(name)
		if _, dup := files[key]; !dup {
			files[key] = structureFile{name: name, path: path, kind: kind}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("library: scan %s: %w", dir, err)
	}
	return files, nil
}

// Names возвращает имена всех найденных структур
func (l *Library) Names() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.scanLocked(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(l.files))
	for _, f := range l.files {
		names = append(names, f.name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadAll загружает все структуры каталога параллельно.
// Ошибка одной структуры не прерывает загрузку остальных; ошибки объединяются.
func (l *Library) LoadAll(ctx context.Context) (int, error) {
	names, err := l.Names()
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	if l.opts.Workers > 0 {
		g.SetLimit(l.opts.Workers)
	}

	var (
		mu     sync.Mutex
		errs   []error
		loaded int
	)
	for _, name := range names {
		g.Go(func() error {
			_, err := l.Get(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return nil
			}
			loaded++
			return nil
		})
	}
	_ = g.Wait()

	l.opts.Logger.Info("Загружено структур: %d из %d", loaded, len(names))
	return loaded, errors.Join(errs...)
}

// Invalidate забывает структуру в памяти и в бинарном кеше
// и уведомляет другие узлы, если подключён Invalidator.
func (l *Library) Invalidate(ctx context.Context, name string) error {
	key := normalize(name)
	if err := l.evict(ctx, key); err != nil {
		return err
	}
	l.mu.RLock()
	notifier := l.notifier
	l.mu.RUnlock()
	if notifier != nil {
		return notifier.Publish(ctx, key)
	}
	return nil
}

func (l *Library) evict(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.holders, key)
	l.gens[key]++
	l.mu.Unlock()
	l.group.Forget(key)

	if l.opts.Store != nil {
		if err := l.opts.Store.Delete(ctx, key); err != nil {
			return fmt.Errorf("library: invalidate %s: %w", key, err)
		}
	}
	l.opts.Logger.Debug("Структура %s сброшена", key)
	return nil
}

// Reset очищает память и список файлов; следующий Get перечитает каталог.
// Бинарный кеш не трогается. Незавершённые загрузки в память не попадут.
func (l *Library) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.holders = make(map[string]*customobject.Holder)
	l.files = nil
	l.scanned = false
	l.epoch++
}

// Len возвращает число структур в памяти
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.holders)
}

// AttachInvalidator подписывает библиотеку на удалённые инвалидации
func (l *Library) AttachInvalidator(ctx context.Context, inv Invalidator) error {
	if err := inv.Subscribe(ctx, func(key string) error {
		return l.evict(ctx, key)
	}); err != nil {
		return err
	}
	l.mu.Lock()
	l.notifier = inv
	l.mu.Unlock()
	return nil
}
