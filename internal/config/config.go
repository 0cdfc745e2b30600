package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса стриминга патчей.

type Config struct {
	Streaming StreamingConfig `yaml:"streaming"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
}

// StreamingConfig описывает адресацию патчей и параметры видимости
type StreamingConfig struct {
	PatchSize   float64 `yaml:"patch_size"`   // Размер патча в мировых единицах
	Prefix      string  `yaml:"prefix"`       // Префикс идентификаторов патчей
	Radius      int     `yaml:"radius"`       // Радиус видимости в патчах (>=1)
	WorldBound  int     `yaml:"world_bound"`  // Граница мира в патчах от центра (0 = без границы)
	TickMs      int     `yaml:"tick_ms"`      // Период тика планировщика
	SweepEvery  int     `yaml:"sweep_every"`  // Пересчёт видимости каждые N тиков
	GenSeed     int64   `yaml:"gen_seed"`     // Сид генератора рельефа
	GenDisabled bool    `yaml:"gen_disabled"` // Отключить генерацию отсутствующих патчей
}

type StorageConfig struct {
	Path string `yaml:"path"` // Каталог BadgerDB
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`       // Пусто — зеркалирование в Redis отключено
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // Пусто — in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "PATCH_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "PATCH_METRICS_PORT", 2112)
}

// PatchSizeOrDefault возвращает размер патча, 100 мировых единиц по умолчанию
func (s *StreamingConfig) PatchSizeOrDefault() float64 {
	if s.PatchSize > 0 {
		return s.PatchSize
	}
	return 100
}

// PrefixOrDefault возвращает префикс идентификаторов, "patch" по умолчанию
func (s *StreamingConfig) PrefixOrDefault() string {
	if s.Prefix != "" {
		return s.Prefix
	}
	return "patch"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV PATCH_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PATCH_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
