package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Graph      GraphConfig
	Sync       SyncConfig
	Storage    StorageConfig
	Migrations MigrationsConfig
	Seed       SeedConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
	// WSOrigins restricts browser origins allowed on /ws/skills.
	WSOrigins []string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
}

// Enabled reports whether enough connection settings are present to dial Postgres.
func (c DatabaseConfig) Enabled() bool {
	return c.DBHost != "" && c.DBPort != "" && c.DBName != "" && c.DBUser != ""
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	TTL      time.Duration
}

type JWTConfig struct {
	AccessSecret    string
	AccessExpiresIn time.Duration
}

type GraphConfig struct {
	WorkerBin      string
	DBPath         string
	CallTimeout    time.Duration
	MaxConcurrency int64
	// MaxTimeouts is how many calls in a row may time out before the worker
	// process is replaced.
	MaxTimeouts int
}

// SeedConfig lists skills inserted as manual entries at startup.
type SeedConfig struct {
	Skills []string
}

type SyncConfig struct {
	Workers     int
	RPS         float64
	MaxTries    uint
	Buffer      int
	RabbitMQURL string
	QueueName   string
}

type StorageConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Enabled reports whether resume objects can be fetched from object storage.
func (c StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

type MigrationsConfig struct {
	Dir string
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
		WSOrigins:   splitList(opt("WS_ALLOWED_ORIGINS")),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST"),
		DBPort:     opt("DB_PORT"),
		DBName:     opt("DB_NAME"),
		DBUser:     opt("DB_USER"),
		DBPassword: opt("DB_PASSWORD"),
		DBSSLMode:  stringOr(opt("DB_SSL_MODE"), "disable"),

		ConnectTimeout:        seconds(opt("DB_CONNECT_TIMEOUT"), 5*time.Second),
		PoolMaxConns:          int32(intOr(opt("DB_POOL_MAX_CONNS"), 10)),
		PoolMinConns:          int32(intOr(opt("DB_POOL_MIN_CONNS"), 0)),
		PoolMaxConnLifetime:   seconds(opt("DB_POOL_MAX_CONN_LIFETIME"), time.Hour),
		PoolMaxConnIdleTime:   seconds(opt("DB_POOL_MAX_CONN_IDLE_TIME"), 30*time.Minute),
		PoolHealthCheckPeriod: seconds(opt("DB_POOL_HEALTH_CHECK_PERIOD"), time.Minute),
	}

	cfg.Redis = RedisConfig{
		Host:     stringOr(opt("REDIS_HOST"), "localhost"),
		Port:     stringOr(opt("REDIS_PORT"), "6379"),
		Password: opt("REDIS_PASSWORD"),
		TTL:      seconds(opt("REDIS_TTL"), 600*time.Second),
	}

	cfg.JWT = JWTConfig{
		AccessSecret:    opt("JWT_ACCESS_SECRET"),
		AccessExpiresIn: seconds(opt("JWT_ACCESS_EXPIRES_IN"), 15*time.Minute),
	}

	cfg.Graph = GraphConfig{
		WorkerBin:      stringOr(opt("KG_WORKER_BIN"), "kgworker"),
		DBPath:         stringOr(opt("KG_DB_PATH"), "careerhunt_kg.db"),
		CallTimeout:    millis(opt("KG_CALL_TIMEOUT_MS"), 5*time.Second),
		MaxConcurrency: int64(intOr(opt("KG_MAX_CONCURRENCY"), 8)),
		MaxTimeouts:    intOr(opt("KG_MAX_TIMEOUTS"), 3),
	}

	cfg.Sync = SyncConfig{
		Workers:     intOr(opt("GRAPH_SYNC_WORKERS"), 2),
		RPS:         floatOr(opt("GRAPH_SYNC_RPS"), 20),
		MaxTries:    uint(intOr(opt("GRAPH_SYNC_MAX_TRIES"), 5)),
		Buffer:      intOr(opt("GRAPH_SYNC_BUFFER"), 1024),
		RabbitMQURL: opt("RABBITMQ_URL"),
		QueueName:   stringOr(opt("RABBITMQ_QUEUE"), "kg_updates"),
	}

	cfg.Storage = StorageConfig{
		Bucket:    opt("S3_BUCKET"),
		Region:    stringOr(opt("S3_REGION"), "auto"),
		Endpoint:  opt("S3_ENDPOINT"),
		AccessKey: opt("S3_ACCESS_KEY"),
		SecretKey: opt("S3_SECRET_KEY"),
	}

	cfg.Migrations = MigrationsConfig{Dir: opt("MIGRATIONS_DIR")}
	cfg.Seed = SeedConfig{Skills: splitList(opt("SEED_SKILLS"))}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOr(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func floatOr(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func seconds(raw string, def time.Duration) time.Duration {
	v := intOr(raw, -1)
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}

func millis(raw string, def time.Duration) time.Duration {
	v := intOr(raw, -1)
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
