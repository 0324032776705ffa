package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort        = 5173
	defaultEnv         = "development"
	defaultDBDriver    = "sqlite"
	defaultDBFile      = "jobtrail.db"
	defaultDBHost      = "127.0.0.1"
	defaultDBPort      = 3306
	defaultDBUser      = "root"
	defaultDBPassword  = "password"
	defaultDBName      = "jobtrail"
	defaultDBCharset   = "utf8mb4"
	defaultRedisHost   = "localhost"
	defaultRedisPort   = 6379
	defaultRedisDB     = 0
	defaultRuntimeURL  = "http://127.0.0.1:8580"
	defaultModelSubdir = "models"
	defaultDataSubdir  = "data"
)

// AppConfig holds runtime startup configuration loaded from YAML.
// User-mutable AI settings live in the database, not here.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	LocalRuntime   LocalRuntimeConfig    `yaml:"local_runtime"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	APISecret      string                `yaml:"api_secret"`
}

type DatabaseRuntimeConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" | "mysql"
	File     string `yaml:"file"`   // sqlite database file
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LocalRuntimeConfig points at the llama-server-compatible process that
// executes on-device models.
type LocalRuntimeConfig struct {
	URL            string `yaml:"url"`
	RequestTimeout int    `yaml:"request_timeout_sec"`
}

type RuntimePathsConfig struct {
	Data   string `yaml:"data"`
	Models string `yaml:"models"`
	Logs   string `yaml:"logs"`
}

// Load reads and validates the YAML config file, applying defaults and
// environment fallbacks.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: defaults plus env are enough for a local desktop setup.
	case err != nil:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if cfg.Database.Driver != "sqlite" && cfg.Database.Driver != "mysql" {
		return nil, fmt.Errorf("invalid database.driver %q, expected sqlite or mysql", cfg.Database.Driver)
	}
	if cfg.Redis.URL == "" && (cfg.Redis.Port < 1 || cfg.Redis.Port > 65535) {
		return nil, fmt.Errorf("invalid redis.port %d, expected 1-65535", cfg.Redis.Port)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:   defaultDBDriver,
			Host:     defaultDBHost,
			Port:     defaultDBPort,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		LocalRuntime: LocalRuntimeConfig{
			URL:            defaultRuntimeURL,
			RequestTimeout: 120,
		},
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("JOBTRAIL_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("JOBTRAIL_ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBTRAIL_REDIS_URL")); v != "" {
		cfg.Redis.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBTRAIL_DB_DSN")); v != "" {
		cfg.Database.Driver = "mysql"
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBTRAIL_MODEL_DIR")); v != "" {
		cfg.Paths.Models = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBTRAIL_LOCAL_RUNTIME_URL")); v != "" {
		cfg.LocalRuntime.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBTRAIL_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBTRAIL_API_SECRET")); v != "" {
		cfg.APISecret = v
	}
}

func normalize(cfg *AppConfig) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaultDBDriver
	}
	cfg.Paths.Data = ResolveRuntimePath(cfg.Paths.Data, defaultDataSubdir)
	cfg.Paths.Models = ResolveRuntimePath(cfg.Paths.Models, defaultModelSubdir)
	cfg.Paths.Logs = ResolveRuntimePath(cfg.Paths.Logs, "logs")
	cfg.LocalRuntime.URL = strings.TrimRight(strings.TrimSpace(cfg.LocalRuntime.URL), "/")
	if cfg.LocalRuntime.URL == "" {
		cfg.LocalRuntime.URL = defaultRuntimeURL
	}
	if cfg.LocalRuntime.RequestTimeout <= 0 {
		cfg.LocalRuntime.RequestTimeout = 120
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env != "production" }

// RedisURL assembles the redis connection URL from discrete fields when no
// explicit URL was configured.
func (c *AppConfig) RedisURL() string {
	if strings.TrimSpace(c.Redis.URL) != "" {
		return strings.TrimSpace(c.Redis.URL)
	}
	auth := ""
	if c.Redis.Username != "" || c.Redis.Password != "" {
		auth = c.Redis.Username + ":" + c.Redis.Password + "@"
	}
	return fmt.Sprintf("redis://%s%s:%d/%d", auth, c.Redis.Host, c.Redis.Port, c.Redis.DB)
}

// MySQLDSN assembles the MySQL DSN from discrete fields when no explicit DSN
// was configured.
func (c *AppConfig) MySQLDSN() string {
	if strings.TrimSpace(c.Database.DSN) != "" {
		return strings.TrimSpace(c.Database.DSN)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.Charset)
}
