package customobject

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/annel0/customobjects/internal/logging"
	"github.com/annel0/customobjects/internal/material"
	"github.com/annel0/customobjects/internal/metadata"
)

var (
	defaultRegistry     *material.Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry возвращает общий регистр ванильных материалов
func DefaultRegistry() *material.Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = material.DefaultRegistry()
	})
	return defaultRegistry
}

// HolderOptions - зависимости структуры
type HolderOptions struct {
	Kind     Kind
	Registry *material.Registry
	Loader   metadata.Loader
	Logger   *logging.Logger
}

func (o HolderOptions) withDefaults() HolderOptions {
	if o.Registry == nil {
		o.Registry = DefaultRegistry()
	}
	if o.Logger == nil {
		o.Logger = logging.GetParserLogger()
	}
	return o
}

// metadataResult - мемоизированный результат загрузки тега (успех или ошибка)
type metadataResult struct {
	tag *metadata.Tag
	err error
}

// Holder владеет разобранными функциями одной структуры.
// После построения неизменяем, кроме кеша метаданных, который
// заполняется конкурентно по принципу «первый записавший побеждает».
type Holder struct {
	name     string
	file     string
	kind     Kind
	settings map[string]string

	functions []Function

	registry *material.Registry
	loader   metadata.Loader
	logger   *logging.Logger

	tags  sync.Map // имя -> *metadataResult
	group singleflight.Group
}

// NewHolder создаёт пустую структуру. Функции добавляются только при разборе.
func NewHolder(name, file string, opts HolderOptions) *Holder {
	opts = opts.withDefaults()
	return &Holder{
		name:     name,
		file:     file,
		kind:     opts.Kind,
		settings: make(map[string]string),
		registry: opts.Registry,
		loader:   opts.Loader,
		logger:   opts.Logger,
	}
}

// Name возвращает имя структуры
func (h *Holder) Name() string { return h.name }

// File возвращает путь к файлу определения
func (h *Holder) File() string { return h.file }

// Kind возвращает семейство формата
func (h *Holder) Kind() Kind { return h.kind }

// Registry возвращает регистр материалов структуры
func (h *Holder) Registry() *material.Registry { return h.registry }

// Functions возвращает функции в порядке определения. Срез не изменять.
func (h *Holder) Functions() []Function { return h.functions }

// Blocks возвращает только блоки
func (h *Holder) Blocks() []*BlockFunction {
	var blocks []*BlockFunction
	for _, f := range h.functions {
		if f.Type() == FunctionBlock {
			blocks = append(blocks, f.(*BlockFunction))
		}
	}
	return blocks
}

// Branches возвращает только точки ветвления
func (h *Holder) Branches() []*BranchFunction {
	var branches []*BranchFunction
	for _, f := range h.functions {
		if t := f.Type(); t == FunctionBranch || t == FunctionWeightedBranch {
			branches = append(branches, f.(*BranchFunction))
		}
	}
	return branches
}

// Setting возвращает значение настройки (ключ без учёта регистра)
func (h *Holder) Setting(key string) (string, bool) {
	v, ok := h.settings[strings.ToLower(key)]
	return v, ok
}

// SettingKeys возвращает ключи настроек в отсортированном порядке
func (h *Holder) SettingKeys() []string {
	keys := make([]string, 0, len(h.settings))
	for k := range h.settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h *Holder) setSetting(key, value string) {
	h.settings[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
}

func (h *Holder) add(f Function) {
	h.functions = append(h.functions, f)
}

// ResolveMetadata загружает тег метаданных по имени относительно файла структуры.
// Результат (включая ошибку) запоминается; одновременные первые обращения
// объединяются, гонка записи безопасна - сохраняется первый результат.
func (h *Holder) ResolveMetadata(name string) (*metadata.Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: пустое имя", metadata.ErrNotFound)
	}
	if cached, ok := h.tags.Load(name); ok {
		res := cached.(*metadataResult)
		return res.tag, res.err
	}

	v, _, _ := h.group.Do(name, func() (interface{}, error) {
		res := &metadataResult{}
		if h.loader == nil {
			res.err = fmt.Errorf("%w: загрузчик метаданных не задан", metadata.ErrNotFound)
		} else {
			res.tag, res.err = h.loader.Load(name, h.file)
		}
		actual, _ := h.tags.LoadOrStore(name, res)
		return actual, nil
	})

	res := v.(*metadataResult)
	return res.tag, res.err
}

func (h *Holder) String() string {
	return fmt.Sprintf("%s[%s, %d functions]", h.name, h.kind, len(h.functions))
}
