package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	APISecret     string             `mapstructure:"api_secret"`
	Store         StoreConfig        `mapstructure:"store"`
	AuthDB        StoreConfig        `mapstructure:"authdb"`
	Rules         RulesConfig        `mapstructure:"rules"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Chat          ChatConfig         `mapstructure:"chat"`
	Log           LogConfig          `mapstructure:"log"`
	Monitor       MonitorConfig      `mapstructure:"monitor"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	RoutePrefix     string        `mapstructure:"route_prefix"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects and configures a key-value backend.
type StoreConfig struct {
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Prefix string      `mapstructure:"prefix"`
	Redis  RedisConfig `mapstructure:"redis"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

// RedisConfig holds either a redis:// URL or discrete connection fields.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RulesConfig points at the rules peers. Each game type lives under BaseURL/{type}.
type RulesConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotificationConfig configures the notification peer.
type NotificationConfig struct {
	URL       string        `mapstructure:"url"`
	From      string        `mapstructure:"from"`
	FullState bool          `mapstructure:"full_state"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ChatConfig configures the chat peer.
type ChatConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig selects level, encoding and sinks.
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	Output string        `mapstructure:"output"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures lumberjack rotation.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MonitorConfig controls the prometheus collectors.
type MonitorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init loads configuration once from configPath (or ./config.yaml, ./config/config.yaml),
// then the TURNGAME_* environment.
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()
		var loaded *Config
		loaded, err = load(v, configPath)
		if err != nil {
			return
		}
		mu.Lock()
		cfg = loaded
		mu.Unlock()
	})
	return err
}

// Load reads a configuration without touching the package singleton.
func Load(configPath string) (*Config, error) {
	return load(viper.New(), configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TURNGAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.route_prefix", "turngame/v1")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Empty disables the secret-bypass identity.
	v.SetDefault("api_secret", "")

	v.SetDefault("store.driver", "redis")
	v.SetDefault("store.prefix", "turngame/v1")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.max_idle_conns", 10)
	v.SetDefault("store.max_open_conns", 100)
	v.SetDefault("store.conn_max_lifetime", "1h")
	v.SetDefault("store.log_level", "warn")

	v.SetDefault("authdb.driver", "redis")
	v.SetDefault("authdb.prefix", "")
	v.SetDefault("authdb.redis.addr", "localhost:6379")
	v.SetDefault("authdb.max_idle_conns", 10)
	v.SetDefault("authdb.max_open_conns", 100)
	v.SetDefault("authdb.conn_max_lifetime", "1h")
	v.SetDefault("authdb.log_level", "warn")

	v.SetDefault("rules.base_url", "http://localhost:8080")
	v.SetDefault("rules.timeout", "30s")

	v.SetDefault("notifications.url", "")
	v.SetDefault("notifications.from", "turngame/v1")
	v.SetDefault("notifications.full_state", false)
	v.SetDefault("notifications.timeout", "10s")

	v.SetDefault("chat.url", "")
	v.SetDefault("chat.timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "turngame.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.namespace", "turngame")
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	for name, s := range map[string]StoreConfig{"store": c.Store, "authdb": c.AuthDB} {
		switch s.Driver {
		case "redis":
			if s.Redis.URL == "" && s.Redis.Addr == "" {
				return fmt.Errorf("%s.redis: url or addr required", name)
			}
		case "sqlite", "sqlite3", "postgres", "postgresql", "mysql":
			if s.DSN == "" {
				return fmt.Errorf("%s.dsn required for driver %s", name, s.Driver)
			}
		default:
			return fmt.Errorf("%s.driver: unsupported driver %q", name, s.Driver)
		}
	}
	if c.Rules.BaseURL == "" {
		return fmt.Errorf("rules.base_url required")
	}
	return nil
}

// Get returns the loaded configuration.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch reloads the configuration when the file changes and hands it to callback.
func Watch(callback func(*Config)) {
	if v == nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("config reload failed: %v\n", err)
			return
		}

		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}
	})
	v.WatchConfig()
}
