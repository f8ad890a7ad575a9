package generator

import (
	"sync"

	"github.com/annel0/customobjects/internal/material"
	"github.com/annel0/customobjects/internal/vec"
)

// World - мир, в который размещаются блоки структур
type World interface {
	GetMaterial(pos vec.Vec3) material.Material
	SetMaterial(pos vec.Vec3, m material.Material) error
}

// MemoryWorld хранит изменённые блоки в карте. Незаданная позиция - воздух (нулевой материал).
type MemoryWorld struct {
	mu     sync.RWMutex
	blocks map[vec.Vec3]material.Material
}

func NewMemoryWorld() *MemoryWorld {
	return &MemoryWorld{blocks: make(map[vec.Vec3]material.Material)}
}

func (w *MemoryWorld) GetMaterial(pos vec.Vec3) material.Material {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blocks[pos]
}

func (w *MemoryWorld) SetMaterial(pos vec.Vec3, m material.Material) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if m.IsZero() {
		delete(w.blocks, pos)
		return nil
	}
	w.blocks[pos] = m
	return nil
}

// Len возвращает число непустых блоков
func (w *MemoryWorld) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.blocks)
}

// Bounds возвращает минимальный и максимальный углы занятого объёма
func (w *MemoryWorld) Bounds() (min, max vec.Vec3, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for pos := range w.blocks {
		if !ok {
			min, max, ok = pos, pos, true
			continue
		}
		min = vec.Vec3{X: minInt(min.X, pos.X), Y: minInt(min.Y, pos.Y), Z: minInt(min.Z, pos.Z)}
		max = vec.Vec3{X: maxInt(max.X, pos.X), Y: maxInt(max.Y, pos.Y), Z: maxInt(max.Z, pos.Z)}
	}
	return min, max, ok
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
