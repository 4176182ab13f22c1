package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Worker    WorkerConfig    `json:"worker" yaml:"worker"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Jobs      JobsConfig      `json:"jobs" yaml:"jobs"`
}

type ServerConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            string        `json:"port" yaml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	Environment     string        `json:"environment" yaml:"environment"`
	AllowedOrigins  []string      `json:"allowed_origins" yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver" yaml:"driver"`
	SQLitePath      string        `json:"sqlite_path" yaml:"sqlite_path"`
	Host            string        `json:"host" yaml:"host"`
	Port            string        `json:"port" yaml:"port"`
	User            string        `json:"user" yaml:"user"`
	Password        string        `json:"password" yaml:"password"`
	Name            string        `json:"name" yaml:"name"`
	SSLMode         string        `json:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	RunMigrations   bool          `json:"run_migrations" yaml:"run_migrations"`
	LogLevel        string        `json:"log_level" yaml:"log_level"`
}

type RedisConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Host         string        `json:"host" yaml:"host"`
	Port         string        `json:"port" yaml:"port"`
	Password     string        `json:"password" yaml:"password"`
	DB           int           `json:"db" yaml:"db"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

type CacheConfig struct {
	L1TTL time.Duration `json:"l1_ttl" yaml:"l1_ttl"`
	L2TTL time.Duration `json:"l2_ttl" yaml:"l2_ttl"`

	// Redis tier breaker: open after BreakerFailures consecutive errors,
	// retry after BreakerCooldown, close after BreakerTrialCalls successes.
	BreakerFailures   int           `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown   time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown"`
	BreakerTrialCalls int           `json:"breaker_trial_calls" yaml:"breaker_trial_calls"`
}

type WorkerConfig struct {
	Concurrency  int           `json:"concurrency" yaml:"concurrency"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	Queues       []string      `json:"queues" yaml:"queues"`
}

type AuthConfig struct {
	JWTSecret    string        `json:"jwt_secret" yaml:"jwt_secret"`
	Issuer       string        `json:"issuer" yaml:"issuer"`
	SessionTTL   time.Duration `json:"session_ttl" yaml:"session_ttl"`
	BCryptCost   int           `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	CookieName   string        `json:"cookie_name" yaml:"cookie_name"`
	CookieDomain string        `json:"cookie_domain" yaml:"cookie_domain"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	Distributed     bool          `json:"distributed" yaml:"distributed"`
	RequestsPerMin  int           `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize       int           `json:"burst_size" yaml:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

type StorageConfig struct {
	Bucket            string        `json:"bucket" yaml:"bucket"`
	Region            string        `json:"region" yaml:"region"`
	Endpoint          string        `json:"endpoint" yaml:"endpoint"`
	AccessKeyID       string        `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey   string        `json:"secret_access_key" yaml:"secret_access_key"`
	UsePathStyle      bool          `json:"use_path_style" yaml:"use_path_style"`
	UploadURLExpiry   time.Duration `json:"upload_url_expiry" yaml:"upload_url_expiry"`
	DownloadURLExpiry time.Duration `json:"download_url_expiry" yaml:"download_url_expiry"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type JobsConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	ReminderSchedule string        `json:"reminder_schedule" yaml:"reminder_schedule"`
	ReminderWindow   time.Duration `json:"reminder_window" yaml:"reminder_window"`
	CleanupSchedule  string        `json:"cleanup_schedule" yaml:"cleanup_schedule"`
	RequestRetention time.Duration `json:"request_retention" yaml:"request_retention"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			SQLitePath:      "teamhub.db",
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "teamhub",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			RunMigrations:   true,
			LogLevel:        "warn",
		},
		Redis: RedisConfig{
			Enabled:      true,
			Host:         "localhost",
			Port:         "6379",
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			L1TTL:             time.Minute,
			L2TTL:             5 * time.Minute,
			BreakerFailures:   5,
			BreakerCooldown:   30 * time.Second,
			BreakerTrialCalls: 3,
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			PollInterval: 5 * time.Second,
			Queues:       []string{"default", "reminders", "maintenance"},
		},
		Auth: AuthConfig{
			JWTSecret:  defaultJWTSecret,
			Issuer:     "teamhub",
			SessionTTL: 7 * 24 * time.Hour,
			BCryptCost: 10,
			CookieName: "session",
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			RequestsPerMin:  100,
			BurstSize:       10,
			CleanupInterval: 10 * time.Minute,
		},
		Storage: StorageConfig{
			Region:            "us-east-1",
			UploadURLExpiry:   5 * time.Minute,
			DownloadURLExpiry: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Jobs: JobsConfig{
			Enabled:          true,
			ReminderSchedule: "@every 15m",
			ReminderWindow:   24 * time.Hour,
			CleanupSchedule:  "0 3 * * *",
			RequestRetention: 30 * 24 * time.Hour,
		},
	}
}

const defaultJWTSecret = "your-secret-key"

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by CONFIG_FILE, and environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	base := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, base); err != nil {
			return nil, err
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", base.Server.Host),
			Port:            getEnv("PORT", base.Server.Port),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", base.Server.ReadTimeout),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", base.Server.WriteTimeout),
			IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", base.Server.IdleTimeout),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", base.Server.ShutdownTimeout),
			Environment:     getEnv("ENVIRONMENT", base.Server.Environment),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", base.Server.AllowedOrigins),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", base.Database.Driver),
			SQLitePath:      getEnv("DB_SQLITE_PATH", base.Database.SQLitePath),
			Host:            getEnv("DB_HOST", base.Database.Host),
			Port:            getEnv("DB_PORT", base.Database.Port),
			User:            getEnv("DB_USER", base.Database.User),
			Password:        getEnv("DB_PASSWORD", base.Database.Password),
			Name:            getEnv("DB_NAME", base.Database.Name),
			SSLMode:         getEnv("DB_SSL_MODE", base.Database.SSLMode),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", base.Database.MaxOpenConns),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", base.Database.MaxIdleConns),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", base.Database.ConnMaxLifetime),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", base.Database.ConnMaxIdleTime),
			RunMigrations:   getEnvAsBool("DB_RUN_MIGRATIONS", base.Database.RunMigrations),
			LogLevel:        getEnv("DB_LOG_LEVEL", base.Database.LogLevel),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", base.Redis.Enabled),
			Host:         getEnv("REDIS_HOST", base.Redis.Host),
			Port:         getEnv("REDIS_PORT", base.Redis.Port),
			Password:     getEnv("REDIS_PASSWORD", base.Redis.Password),
			DB:           getEnvAsInt("REDIS_DB", base.Redis.DB),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", base.Redis.PoolSize),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", base.Redis.MinIdleConns),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", base.Redis.MaxRetries),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", base.Redis.DialTimeout),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", base.Redis.ReadTimeout),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", base.Redis.WriteTimeout),
		},
		Cache: CacheConfig{
			L1TTL:             getEnvAsDuration("CACHE_L1_TTL", base.Cache.L1TTL),
			L2TTL:             getEnvAsDuration("CACHE_L2_TTL", base.Cache.L2TTL),
			BreakerFailures:   getEnvAsInt("CACHE_BREAKER_FAILURES", base.Cache.BreakerFailures),
			BreakerCooldown:   getEnvAsDuration("CACHE_BREAKER_COOLDOWN", base.Cache.BreakerCooldown),
			BreakerTrialCalls: getEnvAsInt("CACHE_BREAKER_TRIAL_CALLS", base.Cache.BreakerTrialCalls),
		},
		Worker: WorkerConfig{
			Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", base.Worker.Concurrency),
			PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", base.Worker.PollInterval),
			Queues:       getEnvAsList("WORKER_QUEUES", base.Worker.Queues),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", base.Auth.JWTSecret),
			Issuer:       getEnv("JWT_ISSUER", base.Auth.Issuer),
			SessionTTL:   getEnvAsDuration("SESSION_TTL", base.Auth.SessionTTL),
			BCryptCost:   getEnvAsInt("BCRYPT_COST", base.Auth.BCryptCost),
			CookieName:   getEnv("SESSION_COOKIE_NAME", base.Auth.CookieName),
			CookieDomain: getEnv("SESSION_COOKIE_DOMAIN", base.Auth.CookieDomain),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool("RATE_LIMIT_ENABLED", base.RateLimit.Enabled),
			Distributed:     getEnvAsBool("RATE_LIMIT_DISTRIBUTED", base.RateLimit.Distributed),
			RequestsPerMin:  getEnvAsInt("RATE_LIMIT_RPM", base.RateLimit.RequestsPerMin),
			BurstSize:       getEnvAsInt("RATE_LIMIT_BURST", base.RateLimit.BurstSize),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP", base.RateLimit.CleanupInterval),
		},
		Storage: StorageConfig{
			Bucket:            getEnv("S3_BUCKET", base.Storage.Bucket),
			Region:            getEnv("AWS_REGION", base.Storage.Region),
			Endpoint:          getEnv("S3_ENDPOINT", base.Storage.Endpoint),
			AccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", base.Storage.AccessKeyID),
			SecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", base.Storage.SecretAccessKey),
			UsePathStyle:      getEnvAsBool("S3_USE_PATH_STYLE", base.Storage.UsePathStyle),
			UploadURLExpiry:   getEnvAsDuration("S3_UPLOAD_URL_EXPIRY", base.Storage.UploadURLExpiry),
			DownloadURLExpiry: getEnvAsDuration("S3_DOWNLOAD_URL_EXPIRY", base.Storage.DownloadURLExpiry),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", base.Log.Level),
			Format: getEnv("LOG_FORMAT", base.Log.Format),
		},
		Jobs: JobsConfig{
			Enabled:          getEnvAsBool("JOBS_ENABLED", base.Jobs.Enabled),
			ReminderSchedule: getEnv("JOBS_REMINDER_SCHEDULE", base.Jobs.ReminderSchedule),
			ReminderWindow:   getEnvAsDuration("JOBS_REMINDER_WINDOW", base.Jobs.ReminderWindow),
			CleanupSchedule:  getEnv("JOBS_CLEANUP_SCHEDULE", base.Jobs.CleanupSchedule),
			RequestRetention: getEnvAsDuration("JOBS_REQUEST_RETENTION", base.Jobs.RequestRetention),
		},
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Database.Password == "" && config.Database.Driver == "postgres" && config.IsProduction() {
		return nil, fmt.Errorf("database password is required in production")
	}

	if config.Auth.JWTSecret == defaultJWTSecret && config.IsProduction() {
		return nil, fmt.Errorf("JWT secret must be set in production")
	}

	return config, nil
}

func loadFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetMigrationURL returns the URL form of the postgres DSN.
func (c *Config) GetMigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
