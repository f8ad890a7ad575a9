package storage

import (
	"context"
	"errors"
)

// ErrNotFound - запись отсутствует в хранилище
var ErrNotFound = errors.New("storage: not found")

// ErrCorrupt - значение найдено, но не распаковывается
var ErrCorrupt = errors.New("storage: corrupt value")

// StructureStore хранит бинарные записи разобранных структур.
// Ключ - имя структуры, значение - запись customobject.EncodeStructure.
type StructureStore interface {
	// Load возвращает запись или ErrNotFound
	Load(ctx context.Context, key string) ([]byte, error)
	// Store сохраняет запись, перезаписывая предыдущую
	Store(ctx context.Context, key string, data []byte) error
	// Delete удаляет запись; отсутствие записи не ошибка
	Delete(ctx context.Context, key string) error
	Close() error
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
