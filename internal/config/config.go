package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "PLUGMON"
	DefaultLogLevel   = "info"
	DefaultDatabase   = "/var/lib/plugmon/power.db"
	DefaultBaseURL    = "https://api.switch-bot.com/v1.1"
	DefaultTimeout    = 30 * time.Second
	DefaultHTTPAddr   = "0.0.0.0:8001"
	DefaultMQTTPrefix = "plugmon"
	defaultConfigName = "plugmon"
	defaultConfigDir  = "/etc"
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Database  string          `mapstructure:"database"`
	SwitchBot SwitchBotConfig `mapstructure:"switchbot"`
	Collector CollectorConfig `mapstructure:"collector"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	InfluxDB  InfluxDBConfig  `mapstructure:"influxdb"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
}

type SwitchBotConfig struct {
	Token    string        `mapstructure:"token"`
	Secret   string        `mapstructure:"secret"`
	DeviceID string        `mapstructure:"device_id"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type CollectorConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type InfluxDBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
}

// HasCredentials reports whether the upstream API can be used at all.
func (c *Config) HasCredentials() bool {
	return c.SwitchBot.Token != "" && c.SwitchBot.Secret != ""
}

// Validate checks values that would make the service misbehave. Missing
// upstream credentials are allowed; they only disable collection.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !logger.LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Database == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "database path is required")
	}
	if c.SwitchBot.Timeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "switchbot.timeout must be positive")
	}
	if c.Collector.Concurrency < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "collector.concurrency must be at least 1")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return errFactory.WithData(errors.ErrInvalidConfig, "influxdb.url and influxdb.bucket are required")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "mqtt.broker is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errFactory.WithData(errors.ErrInvalidConfig, "mqtt.qos must be 0, 1 or 2")
	}

	return nil
}

// Load registers the common flags on fs, parses args and merges flags,
// environment, the .env file, the TOML config file and defaults, in that
// order of precedence.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	errFactory := errors.New()

	fs.String("config", "", "Path to the TOML config file")
	fs.String("env-file", ".env", "Path to a .env file with credentials")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("database", DefaultDatabase, "Path to the SQLite database")
	fs.String("addr", DefaultHTTPAddr, "HTTP listen address")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	envFile, _ := fs.GetString("env-file")
	if err := loadEnvFile(envFile); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Upstream variable names used by existing deployments
	_ = v.BindEnv("switchbot.token", EnvPrefix+"_SWITCHBOT_TOKEN", "SWITCHBOT_TOKEN")
	_ = v.BindEnv("switchbot.secret", EnvPrefix+"_SWITCHBOT_SECRET", "SWITCHBOT_SECRET")
	_ = v.BindEnv("switchbot.device_id", EnvPrefix+"_SWITCHBOT_DEVICE_ID", "SWITCHBOT_DEVICE_ID")

	for key, flagName := range map[string]string{
		"log_level": "log-level",
		"database":  "database",
		"http.addr": "addr",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	if err := readConfigFile(v, fs); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("switchbot.token", "")
	v.SetDefault("switchbot.secret", "")
	v.SetDefault("switchbot.device_id", "")
	v.SetDefault("switchbot.base_url", DefaultBaseURL)
	v.SetDefault("switchbot.timeout", DefaultTimeout)
	v.SetDefault("collector.concurrency", 1)
	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("influxdb.enabled", false)
	v.SetDefault("influxdb.url", "")
	v.SetDefault("influxdb.token", "")
	v.SetDefault("influxdb.org", "")
	v.SetDefault("influxdb.bucket", "")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "plugmon")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", DefaultMQTTPrefix)
	v.SetDefault("mqtt.qos", 1)
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	errFactory := errors.New()

	path, _ := fs.GetString("config")
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(defaultConfigName)
	v.SetConfigType("toml")
	v.AddConfigPath(defaultConfigDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// loadEnvFile loads a .env file if present. Variables already set in the
// environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return godotenv.Load(path)
}
