// Package config carrega a configuração do serviço a partir de variáveis de ambiente
// e, opcionalmente, de um arquivo YAML (--config).
//
// Cada chave "a.b" também é lida da variável de ambiente "A_B"
// (ex: rate.key_header -> RATE_KEY_HEADER, concurrency.max -> CONCURRENCY_MAX).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"api-demo/logging"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	ListenAddr  string            `mapstructure:"listen_addr"`
	Log         logging.Config    `mapstructure:"log"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Rate        RateConfig        `mapstructure:"rate"`
	RateStats   RateStatsConfig   `mapstructure:"rate_stats"`
	Burst       BurstConfig       `mapstructure:"burst"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // redis | memory
}

type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	OpTimeout      time.Duration `mapstructure:"op_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	StartupRetries uint64        `mapstructure:"startup_retries"`
}

// RateConfig é o limitador de janela fixa aplicado em /limited.
type RateConfig struct {
	Limit      int           `mapstructure:"limit"`
	Window     time.Duration `mapstructure:"window"`
	Prefix     string        `mapstructure:"prefix"`
	KeyHeader  string        `mapstructure:"key_header"`
	TrustXFF   bool          `mapstructure:"trust_xff"`
	AddHeaders bool          `mapstructure:"add_headers"`
}

type RateStatsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	Bucket    string        `mapstructure:"bucket"` // minute | none
	TrackKeys bool          `mapstructure:"track_keys"`
}

// BurstConfig é o token bucket local (por processo) aplicado antes da janela fixa,
// com a mesma chave de cliente (rate.prefix, rate.key_header, rate.trust_xff).
type BurstConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Size    int     `mapstructure:"size"`
}

type ConcurrencyConfig struct {
	Max     int           `mapstructure:"max"` // 0 desativa
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	SlowKey        string        `mapstructure:"slow_key"`
	ReportKey      string        `mapstructure:"report_key"`
	SlowTTL        time.Duration `mapstructure:"slow_ttl"`
	ComputeDelay   time.Duration `mapstructure:"compute_delay"`
	ComputeTimeout time.Duration `mapstructure:"compute_timeout"`
}

var defaults = map[string]interface{}{
	"listen_addr": ":5000",

	"log.level":             "info",
	"log.format":            logging.FormatJSON,
	"log.output":            logging.OutputStdout,
	"log.nocolor":           false,
	"log.file.path":         "",
	"log.file.max_size":     "250M",
	"log.file.max_backups":  10,
	"log.file.max_age_days": 0,
	"log.file.compress":     false,

	"store.backend": BackendRedis,

	"redis.addr":            "localhost:6379",
	"redis.password":        "",
	"redis.db":              0,
	"redis.op_timeout":      time.Second,
	"redis.dial_timeout":    2 * time.Second,
	"redis.startup_retries": 5,

	"rate.limit":       5,
	"rate.window":      60 * time.Second,
	"rate.prefix":      "rate_limit",
	"rate.key_header":  "",
	"rate.trust_xff":   false,
	"rate.add_headers": false,

	"rate_stats.enabled":    false,
	"rate_stats.prefix":     "ratelimit:stats",
	"rate_stats.ttl":        24 * time.Hour,
	"rate_stats.bucket":     "minute",
	"rate_stats.track_keys": false,

	"burst.enabled": false,
	"burst.rps":     50.0,
	"burst.size":    100,

	"concurrency.max":     100,
	"concurrency.timeout": time.Duration(0),

	"cache.slow_key":        "slow_result",
	"cache.report_key":      "slow_report",
	"cache.slow_ttl":        10 * time.Second,
	"cache.compute_delay":   2 * time.Second,
	"cache.compute_timeout": 10 * time.Second,
}

// Load lê a configuração. args são os argumentos de linha de comando (sem o nome do programa).
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("api", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	if *configPath != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", *configPath, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr: cannot be empty")
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis.addr: required when store.backend is redis")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if c.Redis.OpTimeout <= 0 {
		return errors.New("redis.op_timeout: must be > 0")
	}
	if c.Rate.Limit <= 0 {
		return errors.New("rate.limit: must be > 0")
	}
	if c.Rate.Window < time.Second {
		return errors.New("rate.window: must be >= 1s")
	}
	if c.Rate.Window%time.Second != 0 {
		return errors.New("rate.window: must be a whole number of seconds")
	}
	if strings.TrimSpace(c.Rate.Prefix) == "" {
		return errors.New("rate.prefix: cannot be empty")
	}
	switch c.RateStats.Bucket {
	case "minute", "none":
	default:
		return fmt.Errorf("rate_stats.bucket: unknown bucket %q", c.RateStats.Bucket)
	}
	if c.Burst.Enabled {
		if c.Burst.RPS <= 0 {
			return errors.New("burst.rps: must be > 0")
		}
		if c.Burst.Size <= 0 {
			return errors.New("burst.size: must be > 0")
		}
	}
	if c.Concurrency.Max < 0 {
		return errors.New("concurrency.max: must be >= 0")
	}
	if strings.TrimSpace(c.Cache.SlowKey) == "" {
		return errors.New("cache.slow_key: cannot be empty")
	}
	if strings.TrimSpace(c.Cache.ReportKey) == "" || c.Cache.ReportKey == c.Cache.SlowKey {
		return errors.New("cache.report_key: cannot be empty or equal to cache.slow_key")
	}
	if c.Cache.SlowTTL <= 0 {
		return errors.New("cache.slow_ttl: must be > 0")
	}
	if c.Cache.ComputeDelay < 0 {
		return errors.New("cache.compute_delay: must be >= 0")
	}
	return nil
}
