// Package config 加载服务配置。
//
// 优先级：环境变量（ADKIT_ 前缀）> 配置文件（CONFIG_PATH 或 config.yaml）> 内置默认值。
//
//	ADKIT_POSTGRES_DSN=postgres://...   -> postgres.dsn
//	ADKIT_RECOMMEND_TIMEOUT=1500ms      -> recommend.timeout
//	ADKIT_CACHE_BREAKER_FAILURES=5      -> cache.breaker_failures
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/adkit/core"
)

// EnvPrefix 是环境变量前缀
const EnvPrefix = "ADKIT_"

// ConfigPathEnvVar 指定配置文件路径
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths 未指定 CONFIG_PATH 时依次查找
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/adkit/config.yaml",
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Postgres  PostgresConfig  `koanf:"postgres"`
	Cache     CacheConfig     `koanf:"cache"`
	Recommend RecommendConfig `koanf:"recommend"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Ranker    RankerConfig    `koanf:"ranker"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"` // 每个客户端每秒请求数，0 表示不限流
}

// RedisConfig 中 Addr 为空时使用进程内缓存
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	PoolSize int    `koanf:"pool_size" validate:"gte=0"`
}

type PostgresConfig struct {
	DSN             string        `koanf:"dsn" validate:"required"`
	MaxConns        int           `koanf:"max_conns" validate:"gt=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
}

type CacheConfig struct {
	TTL             time.Duration `koanf:"ttl" validate:"gt=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type RecommendConfig struct {
	Timeout        time.Duration `koanf:"timeout" validate:"gt=0"`
	TopK           int           `koanf:"top_k" validate:"gt=0"`
	Tolerance      float64       `koanf:"tolerance" validate:"gte=0,lt=1"`
	Filter         string        `koanf:"filter"`          // CEL 表达式，为空不过滤
	BlockedBanners []int64       `koanf:"blocked_banners"` // 屏蔽的 banner ID
}

type EmbeddingConfig struct {
	Provider  string `koanf:"provider" validate:"oneof=hash http"`
	BaseURL   string `koanf:"base_url" validate:"required_if=Provider http"`
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	Dimension int    `koanf:"dimension" validate:"gt=0"`
	BatchSize int    `koanf:"batch_size" validate:"gt=0"`
}

// RankerConfig 的 Type 为 heuristic 时不加载模型
type RankerConfig struct {
	Type      string        `koanf:"type" validate:"oneof=heuristic lr rpc"`
	ModelPath string        `koanf:"model_path" validate:"required_if=Type lr"`
	Endpoint  string        `koanf:"endpoint" validate:"required_if=Type rpc"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `koanf:"level" validate:"oneof=debug info warn error"`
	Development bool   `koanf:"development"`
}

// Default 返回内置默认值
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			MaxConns:        5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: CacheConfig{
			TTL:             3 * time.Minute,
			BreakerFailures: 5,
			BreakerTimeout:  10 * time.Second,
		},
		Recommend: RecommendConfig{
			Timeout:   time.Second,
			TopK:      20,
			Tolerance: 0.10,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Dimension: 64,
			BatchSize: 32,
		},
		Ranker: RankerConfig{
			Type:    "heuristic",
			Timeout: 300 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 按 默认值 -> 配置文件 -> 环境变量 的顺序加载并校验。
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile 使用指定的配置文件加载，configPath 为空时只使用默认值与环境变量。
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate 校验字段约束
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc 把环境变量名转换为配置路径：
// 去掉前缀、转小写，第一个下划线作为层级分隔。
//
//   - ADKIT_REDIS_ADDR -> redis.addr
//   - ADKIT_POSTGRES_MAX_CONNS -> postgres.max_conns
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// sliceConfigPaths 环境变量中以逗号分隔的列表字段
var sliceConfigPaths = []string{
	"recommend.blocked_banners",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		ids := make([]int64, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			id, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %q is not an integer", path, p)
			}
			ids = append(ids, id)
		}
		if err := k.Set(path, ids); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// recommendSettings 把 recommend 段与 cache.ttl 合并为 core.RecommendConfig
type recommendSettings struct {
	recommend RecommendConfig
	ttl       time.Duration
}

func (s recommendSettings) DefaultTopK() int               { return s.recommend.TopK }
func (s recommendSettings) DefaultTolerance() float64      { return s.recommend.Tolerance }
func (s recommendSettings) DefaultCacheTTL() time.Duration { return s.ttl }
func (s recommendSettings) DefaultTimeout() time.Duration  { return s.recommend.Timeout }

// RecommendSettings 返回推荐链路参数
func (c *Config) RecommendSettings() core.RecommendConfig {
	return recommendSettings{recommend: c.Recommend, ttl: c.Cache.TTL}
}
