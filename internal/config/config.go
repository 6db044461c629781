package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "INFLUX_S3"

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Storage       StorageConfig       `mapstructure:"storage"`
	InfluxDB      InfluxDBConfig      `mapstructure:"influxdb"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Restore       RestoreConfig       `mapstructure:"restore"`
	RestorePoints RestorePointsConfig `mapstructure:"restore_points"`
	Notify        NotifyConfig        `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"`

	// AWS S3
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Prefix       string `mapstructure:"prefix"`
	Profile      string `mapstructure:"profile"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`

	// Local directory acting as the bucket
	LocalPath string `mapstructure:"local_path"`
}

type InfluxDBConfig struct {
	Binary         string `mapstructure:"binary"`
	DataDir        string `mapstructure:"data_dir"`
	MetaDir        string `mapstructure:"meta_dir"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceManager string `mapstructure:"service_manager"`
	Owner          string `mapstructure:"owner"`
}

type BackupConfig struct {
	ScratchDir    string        `mapstructure:"scratch_dir"`
	ShardPattern  string        `mapstructure:"shard_pattern"`
	Schedule      string        `mapstructure:"schedule"`
	RetentionDays int           `mapstructure:"retention_days"`
	LockTimeout   time.Duration `mapstructure:"lock_timeout"`
}

type RestoreConfig struct {
	Path string `mapstructure:"path"`
}

type RestorePointsConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Load reads configuration from defaults, the yaml file at path and
// INFLUX_S3_* environment variables, in increasing order of precedence. An
// empty path skips the file; a path that cannot be read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "influx-s3")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")

	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.prefix", "influxdb")
	v.SetDefault("storage.profile", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use_path_style", false)
	v.SetDefault("storage.local_path", "")

	v.SetDefault("influxdb.binary", "influxd")
	v.SetDefault("influxdb.data_dir", "/var/lib/influxdb/data")
	v.SetDefault("influxdb.meta_dir", "/var/lib/influxdb/meta")
	v.SetDefault("influxdb.service_name", "influxdb")
	v.SetDefault("influxdb.service_manager", "service")
	v.SetDefault("influxdb.owner", "influxdb:influxdb")

	v.SetDefault("backup.scratch_dir", "/var/tmp/restore")
	v.SetDefault("backup.shard_pattern", "*.[0-9][0-9]")
	v.SetDefault("backup.schedule", "")
	v.SetDefault("backup.retention_days", 0)
	v.SetDefault("backup.lock_timeout", "0s")

	v.SetDefault("restore.path", "/var/tmp")

	v.SetDefault("restore_points.timezone", "America/Los_Angeles")

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", 0)
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for s3 storage")
		}
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required for local storage")
		}
	default:
		return fmt.Errorf("unsupported storage.type: %q", c.Storage.Type)
	}

	if c.Storage.Prefix == "" {
		return fmt.Errorf("storage.prefix is required")
	}

	switch c.InfluxDB.ServiceManager {
	case "service", "systemd":
	default:
		return fmt.Errorf("unsupported influxdb.service_manager: %q", c.InfluxDB.ServiceManager)
	}

	if c.InfluxDB.Binary == "" {
		return fmt.Errorf("influxdb.binary is required")
	}
	if c.InfluxDB.DataDir == "" || c.InfluxDB.MetaDir == "" {
		return fmt.Errorf("influxdb.data_dir and influxdb.meta_dir are required")
	}
	if c.Backup.ShardPattern == "" {
		return fmt.Errorf("backup.shard_pattern is required")
	}

	if _, err := time.LoadLocation(c.RestorePoints.Timezone); err != nil {
		return fmt.Errorf("invalid restore_points.timezone: %w", err)
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == 0 {
			return fmt.Errorf("notify.telegram.bot_token and notify.telegram.chat_id are required when enabled")
		}
	}

	return nil
}

// Location returns the zone restore point timestamps are rendered in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.RestorePoints.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
