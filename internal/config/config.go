package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rl1809/inventory-reservation/internal/resilience"
)

const (
	DriverMemory    = "memory"
	DriverMySQL     = "mysql"
	DriverZooKeeper = "zookeeper"
	DriverRedis     = "redis"
	DriverKafka     = "kafka"
	DriverNone      = "none"
)

type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	HTTP        ServerConfig      `yaml:"http"`
	GRPC        ServerConfig      `yaml:"grpc"`
	Store       StoreConfig       `yaml:"store"`
	Lock        LockConfig        `yaml:"lock"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Events      EventsConfig      `yaml:"events"`
	Payment     PaymentConfig     `yaml:"payment"`
	Seed        SeedConfig        `yaml:"seed"`
}

type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"logLevel"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	Driver   string `yaml:"driver"`
	MySQLDSN string `yaml:"mysqlDsn"`
}

type LockConfig struct {
	Driver    string          `yaml:"driver"`
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper"`
}

type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	Root           string        `yaml:"root"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
	WaitTimeout    time.Duration `yaml:"waitTimeout"`
}

type IdempotencyConfig struct {
	Driver    string        `yaml:"driver"`
	RedisAddr string        `yaml:"redisAddr"`
	TTL       time.Duration `yaml:"ttl"`
}

type EventsConfig struct {
	Driver  string   `yaml:"driver"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type PaymentConfig struct {
	FailureRate float64                  `yaml:"failureRate"`
	Seed        int64                    `yaml:"seed"`
	Latency     time.Duration            `yaml:"latency"`
	Retry       resilience.RetryPolicy   `yaml:"retry"`
	Breaker     resilience.BreakerPolicy `yaml:"breaker"`
}

type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration that runs entirely in process.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name:            "inventory-reservation",
			Env:             "dev",
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		HTTP: ServerConfig{Addr: ":8080"},
		GRPC: ServerConfig{Addr: ":50051"},
		Store: StoreConfig{
			Driver:   DriverMemory,
			MySQLDSN: "root:root@tcp(localhost:3306)/inventory?parseTime=true",
		},
		Lock: LockConfig{
			Driver: DriverMemory,
			ZooKeeper: ZooKeeperConfig{
				Servers:        []string{"localhost:2181"},
				Root:           "/inventory/locks",
				SessionTimeout: 5 * time.Second,
				WaitTimeout:    30 * time.Second,
			},
		},
		Idempotency: IdempotencyConfig{
			Driver:    DriverMemory,
			RedisAddr: "localhost:6379",
			TTL:       24 * time.Hour,
		},
		Events: EventsConfig{
			Driver:  DriverNone,
			Brokers: []string{"localhost:9092"},
			Topic:   "inventory.stock-events",
		},
		Payment: PaymentConfig{
			FailureRate: 0.3,
			Retry:       resilience.DefaultRetryPolicy(),
			Breaker:     resilience.DefaultBreakerPolicy(),
		},
		Seed: SeedConfig{Enabled: true},
	}
}

// Load reads path over the defaults, then applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Service.Name, "SERVICE_NAME")
	setString(&cfg.Service.Env, "ENV")
	setString(&cfg.Service.LogLevel, "LOG_LEVEL")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.GRPC.Addr, "GRPC_ADDR")
	setString(&cfg.Store.Driver, "STORE_DRIVER")
	setString(&cfg.Store.MySQLDSN, "MYSQL_DSN")
	setString(&cfg.Lock.Driver, "LOCK_DRIVER")
	setList(&cfg.Lock.ZooKeeper.Servers, "ZK_SERVERS")
	setString(&cfg.Idempotency.Driver, "IDEMPOTENCY_DRIVER")
	setString(&cfg.Idempotency.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Events.Driver, "EVENTS_DRIVER")
	setList(&cfg.Events.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Events.Topic, "KAFKA_TOPIC")

	if v, ok := lookup("PAYMENT_FAILURE_RATE"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PAYMENT_FAILURE_RATE: %w", err)
		}
		cfg.Payment.FailureRate = rate
	}
	if v, ok := lookup("PAYMENT_SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PAYMENT_SEED: %w", err)
		}
		cfg.Payment.Seed = seed
	}
	if v, ok := lookup("SEED_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEED_ENABLED: %w", err)
		}
		cfg.Seed.Enabled = enabled
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error

	check := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown driver %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	check("store.driver", c.Store.Driver, DriverMemory, DriverMySQL)
	check("lock.driver", c.Lock.Driver, DriverMemory, DriverZooKeeper)
	check("idempotency.driver", c.Idempotency.Driver, DriverNone, DriverMemory, DriverRedis)
	check("events.driver", c.Events.Driver, DriverNone, DriverKafka)

	if c.Payment.FailureRate < 0 || c.Payment.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("payment.failureRate must be within [0, 1], got %v", c.Payment.FailureRate))
	}
	if c.Payment.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("payment.retry.maxAttempts must be at least 1"))
	}
	if c.Payment.Retry.Delay < 0 {
		errs = append(errs, errors.New("payment.retry.delay must not be negative"))
	}
	switch c.Payment.Retry.Backoff {
	case resilience.BackoffFixed, resilience.BackoffExponential:
	default:
		errs = append(errs, fmt.Errorf("payment.retry.backoff: unknown strategy %q", c.Payment.Retry.Backoff))
	}
	if r := c.Payment.Breaker.FailureRatio; r <= 0 || r > 1 {
		errs = append(errs, fmt.Errorf("payment.breaker.failureRatio must be within (0, 1], got %v", r))
	}
	if c.Events.Driver == DriverKafka && c.Events.Topic == "" {
		errs = append(errs, errors.New("events.topic is required for kafka"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
