package material

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ErrUnknownMaterial возвращается, если имя не соответствует ни одному блоку
var ErrUnknownMaterial = errors.New("unknown material")

// Registry хранит соответствие имя/ID -> тип блока.
// После заполнения используется только на чтение и безопасен для конкурентного доступа.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Definition
	byID   map[uint16]Definition
}

// NewRegistry создаёт пустой регистр
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Definition),
		byID:   make(map[uint16]Definition),
	}
}

// Register добавляет тип блока в регистр
func (r *Registry) Register(def Definition) error {
	name := strings.ToUpper(strings.TrimSpace(def.Name))
	if name == "" {
		return fmt.Errorf("пустое имя материала (id %d)", def.ID)
	}
	def.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		return fmt.Errorf("материал %s уже зарегистрирован (id %d)", name, existing.ID)
	}
	if existing, ok := r.byID[def.ID]; ok {
		return fmt.Errorf("id %d уже занят материалом %s", def.ID, existing.Name)
	}

	r.byName[name] = def
	r.byID[def.ID] = def
	return nil
}

// Definition возвращает тип блока по имени
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[strings.ToUpper(name)]
	return def, ok
}

// Len возвращает число зарегистрированных типов
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Parse разбирает строку материала: NAME, NAME:data, minecraft:name[:data], id[:data].
func (r *Registry) Parse(input string) (Material, error) {
	s := strings.TrimSpace(input)
	if len(s) >= len("minecraft:") && strings.EqualFold(s[:len("minecraft:")], "minecraft:") {
		s = s[len("minecraft:"):]
	}
	if s == "" {
		return Material{}, fmt.Errorf("%w: %q", ErrUnknownMaterial, input)
	}

	blockPart, dataPart := s, ""
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		blockPart, dataPart = s[:i], s[i+1:]
	}

	var data uint8
	if dataPart != "" {
		v, err := strconv.Atoi(dataPart)
		if err != nil || v < 0 || v > MaxData {
			return Material{}, fmt.Errorf("%w: недопустимые данные блока в %q", ErrUnknownMaterial, input)
		}
		data = uint8(v)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if def, ok := r.byName[strings.ToUpper(blockPart)]; ok {
		return def.material(data), nil
	}
	if id, err := strconv.Atoi(blockPart); err == nil && id >= 0 && id <= 0xFFFF {
		if def, ok := r.byID[uint16(id)]; ok {
			return def.material(data), nil
		}
	}
	return Material{}, fmt.Errorf("%w: %q", ErrUnknownMaterial, input)
}

// MustParse как Parse, но паникует при ошибке. Только для констант и тестов.
func (r *Registry) MustParse(input string) Material {
	m, err := r.Parse(input)
	if err != nil {
		panic(err)
	}
	return m
}

// Rotate поворачивает материал на steps шагов по часовой стрелке.
// Материалы без ориентации и неизвестные материалы возвращаются без изменений.
func (r *Registry) Rotate(m Material, steps int) Material {
	if m.IsZero() {
		return m
	}
	def, ok := r.Definition(m.Block)
	if !ok || def.Orientation == OrientationNone {
		return m
	}

	steps %= 4
	if steps < 0 {
		steps += 4
	}

	data := m.Data
	for i := 0; i < steps; i++ {
		data = rotateData(def.Orientation, data)
	}
	return m.WithData(data)
}

// DefaultRegistry возвращает регистр с базовым набором ванильных блоков
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range defaultDefinitions {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

var defaultDefinitions = []Definition{
	{ID: 0, Name: "AIR"},
	{ID: 1, Name: "STONE"},
	{ID: 2, Name: "GRASS"},
	{ID: 3, Name: "DIRT"},
	{ID: 4, Name: "COBBLESTONE"},
	{ID: 5, Name: "WOOD"},
	{ID: 6, Name: "SAPLING"},
	{ID: 7, Name: "BEDROCK"},
	{ID: 8, Name: "WATER"},
	{ID: 9, Name: "STATIONARY_WATER"},
	{ID: 10, Name: "LAVA"},
	{ID: 12, Name: "SAND"},
	{ID: 13, Name: "GRAVEL"},
	{ID: 14, Name: "GOLD_ORE"},
	{ID: 15, Name: "IRON_ORE"},
	{ID: 16, Name: "COAL_ORE"},
	{ID: 17, Name: "LOG", Orientation: OrientationAxis},
	{ID: 18, Name: "LEAVES"},
	{ID: 20, Name: "GLASS"},
	{ID: 24, Name: "SANDSTONE"},
	{ID: 35, Name: "WOOL"},
	{ID: 45, Name: "BRICK"},
	{ID: 48, Name: "MOSSY_COBBLESTONE"},
	{ID: 50, Name: "TORCH", Orientation: OrientationTorch},
	{ID: 53, Name: "WOOD_STAIRS", Orientation: OrientationStairs},
	{ID: 54, Name: "CHEST", Orientation: OrientationFacing},
	{ID: 61, Name: "FURNACE", Orientation: OrientationFacing},
	{ID: 65, Name: "LADDER", Orientation: OrientationFacing},
	{ID: 67, Name: "COBBLESTONE_STAIRS", Orientation: OrientationStairs},
	{ID: 68, Name: "WALL_SIGN", Orientation: OrientationFacing},
	{ID: 78, Name: "SNOW"},
	{ID: 79, Name: "ICE"},
	{ID: 80, Name: "SNOW_BLOCK"},
	{ID: 81, Name: "CACTUS"},
	{ID: 98, Name: "SMOOTH_BRICK"},
	{ID: 108, Name: "BRICK_STAIRS", Orientation: OrientationStairs},
	{ID: 109, Name: "SMOOTH_STAIRS", Orientation: OrientationStairs},
	{ID: 128, Name: "SANDSTONE_STAIRS", Orientation: OrientationStairs},
	{ID: 130, Name: "ENDER_CHEST", Orientation: OrientationFacing},
	{ID: 146, Name: "TRAPPED_CHEST", Orientation: OrientationFacing},
	{ID: 162, Name: "LOG_2", Orientation: OrientationAxis},
}
