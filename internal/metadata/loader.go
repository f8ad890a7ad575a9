// Package metadata загружает вспомогательные NBT-теги блоков (содержимое сундуков,
// спаунеров и т.п.), на которые ссылаются функции структур по имени файла.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
)

// ErrNotFound - метаданные с таким именем отсутствуют
var ErrNotFound = errors.New("metadata not found")

// Tag - загруженный NBT-тег
type Tag struct {
	Name     string                 // имя файла метаданных
	RootName string                 // имя корневого тега
	Root     map[string]interface{} // декодированный корневой compound
	Raw      []byte                 // несжатое NBT-содержимое
}

// Loader разрешает тег по имени и расположению файла-владельца структуры.
// Реализации должны быть безопасны для конкурентного вызова.
type Loader interface {
	Load(name, owner string) (*Tag, error)
}

// Decode разбирает NBT-данные; gzip-сжатие определяется автоматически.
func Decode(name string, data []byte) (*Tag, error) {
	raw := data
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("metadata: gzip %s: %w", name, err)
		}
		defer zr.Close()

		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("metadata: gzip %s: %w", name, err)
		}
	}

	var root map[string]interface{}
	rootName, err := nbt.NewDecoder(bytes.NewReader(raw)).Decode(&root)
	if err != nil {
		return nil, fmt.Errorf("metadata: nbt %s: %w", name, err)
	}

	return &Tag{
		Name:     name,
		RootName: rootName,
		Root:     root,
		Raw:      raw,
	}, nil
}

// FileLoader читает файлы метаданных из каталога файла структуры
type FileLoader struct{}

// NewFileLoader создаёт загрузчик с файловой системы
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load читает <каталог owner>/<name>
func (l *FileLoader) Load(name, owner string) (*Tag, error) {
	if name == "" || !filepath.IsLocal(name) {
		return nil, fmt.Errorf("metadata: недопустимое имя %q", name)
	}

	path := filepath.Join(filepath.Dir(owner), name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("metadata: read %s: %w", path, err)
	}

	return Decode(name, data)
}

// MemoryLoader хранит теги в памяти. Используется в тестах и для встроенных структур.
type MemoryLoader struct {
	mu    sync.RWMutex
	tags  map[string]*Tag
	calls int64
}

// NewMemoryLoader создаёт пустой загрузчик в памяти
func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{tags: make(map[string]*Tag)}
}

// Put регистрирует тег под именем
func (l *MemoryLoader) Put(name string, tag *Tag) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tags[name] = tag
}

// Load возвращает тег по имени; owner не учитывается
func (l *MemoryLoader) Load(name, owner string) (*Tag, error) {
	atomic.AddInt64(&l.calls, 1)

	l.mu.RLock()
	defer l.mu.RUnlock()

	tag, ok := l.tags[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tag, nil
}

// Calls возвращает число вызовов Load
func (l *MemoryLoader) Calls() int64 {
	return atomic.LoadInt64(&l.calls)
}
