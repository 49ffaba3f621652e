package config

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	config       = viper.New()
	configHolder atomic.Value
)

var Module = fx.Module("config",
	fx.Provide(New),
)

type Config struct {
	AppEnv  string `mapstructure:"APP_ENV"`
	AppName string `mapstructure:"APP_NAME"`
	TLS     struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"` // sqlite, postgres, mysql
		Host           string `mapstructure:"HOST"`
		Port           int    `mapstructure:"PORT"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		Name           string `mapstructure:"NAME"` // database name, or file path for sqlite
		SSLMode        string `mapstructure:"SSL_MODE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Chat struct {
		BaseURL    string        `mapstructure:"BASE_URL"`
		InstanceID string        `mapstructure:"INSTANCE_ID"`
		Token      string        `mapstructure:"TOKEN"`
		ChatID     string        `mapstructure:"CHAT_ID"`
		Timeout    time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"CHAT"`
	Simulation struct {
		ActivateDelay time.Duration `mapstructure:"ACTIVATE_DELAY"`
		ProofDelay    time.Duration `mapstructure:"PROOF_DELAY"`
		CompleteDelay time.Duration `mapstructure:"COMPLETE_DELAY"`
		PayoutDelay   time.Duration `mapstructure:"PAYOUT_DELAY"`
		StatusLimit   int           `mapstructure:"STATUS_LIMIT"`
	} `mapstructure:"SIMULATION"`
}

func setDefaults() {
	config.SetDefault("APP_ENV", "development")
	config.SetDefault("APP_NAME", "bookingops")
	config.SetDefault("HTTP_SERVER.ADDR", ":8080")
	config.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	config.SetDefault("DATABASE.TYPE", "sqlite")
	config.SetDefault("DATABASE.NAME", "bookingops.db")
	config.SetDefault("DATABASE.SSL_MODE", "disable")
	config.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	config.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 25)
	config.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	config.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 10*time.Minute)
	config.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	config.SetDefault("REDIS.DB", 0)
	config.SetDefault("REDIS.POOL_SIZE", 10)
	config.SetDefault("REDIS.POOL_TIMEOUT", 30*time.Second)
	config.SetDefault("CHAT.TIMEOUT", 10*time.Second)
	config.SetDefault("SIMULATION.ACTIVATE_DELAY", 5*time.Second)
	config.SetDefault("SIMULATION.PROOF_DELAY", 5*time.Second)
	config.SetDefault("SIMULATION.COMPLETE_DELAY", 5*time.Second)
	config.SetDefault("SIMULATION.PAYOUT_DELAY", 2*time.Second)
	config.SetDefault("SIMULATION.STATUS_LIMIT", 10)
}

// New loads configuration from an optional yaml file (CONFIG_PATH) with
// environment variable overrides. The latest snapshot is kept in an atomic
// holder refreshed whenever the file changes.
func New() (*Config, error) {
	setDefaults()

	config.SetConfigType("yaml")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if path := config.GetString("CONFIG_PATH"); path != "" {
		config.SetConfigFile(path)
		if err := config.ReadInConfig(); err != nil {
			return nil, err
		}

		config.WatchConfig()
		config.OnConfigChange(func(e fsnotify.Event) {
			zap.L().Info("config file changed, reloading", zap.String("file", e.Name))

			var newcfg Config
			if err := config.Unmarshal(&newcfg); err != nil {
				zap.L().Error("failed to reload config", zap.Error(err))
				return
			}
			configHolder.Store(&newcfg)
		})
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	configHolder.Store(&cfg)

	return &cfg, nil
}

// Current returns the most recently loaded configuration snapshot.
func Current() *Config {
	if cfg, ok := configHolder.Load().(*Config); ok {
		return cfg
	}
	return nil
}
