package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации генератора структур.
type Config struct {
	Structures StructuresConfig `yaml:"structures"`
	Cache      CacheConfig      `yaml:"cache"`
	Generation GenerationConfig `yaml:"generation"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	NATS       NATSConfig       `yaml:"nats"`
}

type StructuresConfig struct {
	Dir string `yaml:"dir"`
	// Workers - число параллельных загрузок в LoadAll, 0 без ограничения
	Workers int `yaml:"workers"`
}

// Backend бинарного кеша
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Backend   string        `yaml:"backend"`
	Path      string        `yaml:"path"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

type GenerationConfig struct {
	MaxDepth      int `yaml:"max_depth"`
	MaxStructures int `yaml:"max_structures"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Structures: StructuresConfig{Dir: "structures"},
		Cache: CacheConfig{
			Enabled: true,
			Backend: BackendBadger,
			Path:    "data",
		},
		Generation: GenerationConfig{
			MaxDepth:      8,
			MaxStructures: 256,
		},
		Logging: LoggingConfig{
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		NATS: NATSConfig{Subject: "customobjects.invalidate"},
	}
}

// GetMetricsPort возвращает порт метрик с поддержкой fallback значений
func (m *MetricsConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(m.Port, "OTG_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// Validate проверяет значения после чтения файла
func (c *Config) Validate() error {
	if c.Structures.Dir == "" {
		return fmt.Errorf("config: structures.dir не задан")
	}
	switch c.Cache.Backend {
	case BackendMemory, BackendBadger, BackendRedis:
	default:
		return fmt.Errorf("config: неизвестный cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return fmt.Errorf("config: cache.redis_addr обязателен для backend redis")
	}
	if c.Generation.MaxDepth < 0 || c.Generation.MaxStructures < 0 {
		return fmt.Errorf("config: отрицательные лимиты генерации")
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV OTG_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("OTG_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
