package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Inbox      InboxConfig      `mapstructure:"inbox"`
	Accounting AccountingConfig `mapstructure:"accounting"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	AccessExpMinutes int    `mapstructure:"access_exp_minutes"`
	RefreshExpDays   int    `mapstructure:"refresh_exp_days"`
	BcryptCost       int    `mapstructure:"bcrypt_cost"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StorageConfig struct {
	Root          string `mapstructure:"root"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb"`
}

type ScraperConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	Model        string `mapstructure:"model"`
}

type InboxConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	UserEmail       string        `mapstructure:"user_email"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	TokenFile       string        `mapstructure:"token_file"`
	Interval        time.Duration `mapstructure:"interval"`
}

// AccountingConfig selects the transport for subscription/usage reads: "database" or "api".
type AccountingConfig struct {
	Source     string        `mapstructure:"source"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	APIToken   string        `mapstructure:"api_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads .env, then configs/config.yaml (optional), then JOBTRACKR_* environment variables.
func Load(env string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")

	v.SetEnvPrefix("JOBTRACKR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", env)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Fall back to the variable names the first prototype used.
	if cfg.LLM.GeminiAPIKey == "" {
		cfg.LLM.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &cfg
	appConfigMu.Unlock()

	return &cfg, nil
}

// Get returns the last loaded configuration.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func (c *Config) Validate() error {
	switch c.Accounting.Source {
	case "database", "":
		c.Accounting.Source = "database"
	case "api":
		if c.Accounting.APIBaseURL == "" {
			return fmt.Errorf("accounting.api_base_url is required when accounting.source is api")
		}
	default:
		return fmt.Errorf("unknown accounting.source %q", c.Accounting.Source)
	}
	if c.Server.Mode == "release" && c.Auth.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("auth.jwt_secret must be set in release mode")
	}
	if c.Scraper.PollInterval <= 0 {
		c.Scraper.PollInterval = 3 * time.Second
	}
	return nil
}

const defaultJWTSecret = "change-me-in-production"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "jobtracker")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("auth.jwt_secret", defaultJWTSecret)
	v.SetDefault("auth.access_exp_minutes", 60)
	v.SetDefault("auth.refresh_exp_days", 7)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.root", "./data/storage")
	v.SetDefault("storage.public_base_url", "/files")
	v.SetDefault("storage.max_upload_mb", 10)

	v.SetDefault("scraper.base_url", "http://localhost:5000")
	v.SetDefault("scraper.api_key", "")
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.run_timeout", 15*time.Minute)
	v.SetDefault("scraper.poll_interval", 3*time.Second)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")

	v.SetDefault("inbox.enabled", false)
	v.SetDefault("inbox.user_email", "")
	v.SetDefault("inbox.credentials_file", "credential.json")
	v.SetDefault("inbox.token_file", "token.json")
	v.SetDefault("inbox.interval", time.Minute)

	v.SetDefault("accounting.source", "database")
	v.SetDefault("accounting.api_base_url", "")
	v.SetDefault("accounting.api_token", "")
	v.SetDefault("accounting.timeout", 10*time.Second)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests", 120)
	v.SetDefault("ratelimit.window", time.Minute)
}
