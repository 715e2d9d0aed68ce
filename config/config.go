package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/webitel/inspection-exporter/internal/errors"
)

type AppConfig struct {
	File        string             `json:"-"`
	Consul      *ConsulConfig      `json:"consul,omitempty"`
	HTTP        *HTTPConfig        `json:"http,omitempty"`
	Redis       *RedisConfig       `json:"redis,omitempty"`
	Database    *DatabaseConfig    `json:"database,omitempty"`
	Export      *ExportConfig      `json:"export,omitempty"`
	Storage     *StorageConfig     `json:"storage,omitempty"`
	Render      *RenderConfig      `json:"render,omitempty"`
	Retention   *RetentionConfig   `json:"retention,omitempty"`
	Permissions *PermissionsConfig `json:"permissions,omitempty"`
}

type ConsulConfig struct {
	Id            string `json:"id"`
	Address       string `json:"address"`
	PublicAddress string `json:"publicAddress"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	Url string `json:"url"`
}

type ExportConfig struct {
	Workers          int           `json:"workers"`
	SettleDelay      time.Duration `json:"settleDelay"`
	InterExportDelay time.Duration `json:"interExportDelay"`
}

type StorageConfig struct {
	Provider    string `json:"provider"`
	Dir         string `json:"dir"`
	S3Bucket    string `json:"s3Bucket"`
	S3Region    string `json:"s3Region"`
	S3Endpoint  string `json:"s3Endpoint"`
	S3AccessKey string `json:"-"`
	S3SecretKey string `json:"-"`
}

type RenderConfig struct {
	Theme          string `json:"theme"`
	Width          int    `json:"width"`
	ViewportHeight int    `json:"viewportHeight"`
	PhotoMaxWidth  int    `json:"photoMaxWidth"`
}

type RetentionConfig struct {
	Keep int `json:"keep"`
}

type PermissionsConfig struct {
	File string `json:"file"`
}

func LoadConfig() (*AppConfig, error) {
	return load(pflag.CommandLine, os.Args[1:])
}

func load(fs *pflag.FlagSet, args []string) (*AppConfig, error) {
	v := viper.New()
	if err := bindFlagsAndEnv(fs, v, args); err != nil {
		return nil, err
	}

	configFile := getConfigFilePath(v)
	if configFile != "" {
		if err := loadFromFile(v, configFile); err != nil {
			return nil, err
		}
	}

	cfg := buildAppConfig(v, configFile)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindFlagsAndEnv(fs *pflag.FlagSet, v *viper.Viper, args []string) error {
	fs.String("config_file", "", "Configuration file in JSON format")

	// database
	fs.String("data_source", "", "Data source")

	// consul
	fs.String("id", "", "Service id")
	fs.String("consul", "", "Host to consul")

	// http
	fs.String("http_addr", ":8080", "HTTP listen address")
	fs.String("public_addr", "", "Public HTTP address with port, registered in consul")

	// redis
	fs.String("redis_addr", "localhost:6379", "Redis address")
	fs.String("redis_password", "", "Redis password")
	fs.Int("redis_db", 0, "Redis DB number")

	// export
	fs.Int("workers", 2, "Number of concurrent export workers")
	fs.Duration("settle_delay", 200*time.Millisecond, "Wait before capturing a rendered report")
	fs.Duration("inter_export_delay", 500*time.Millisecond, "Wait between files of a latest-only export")

	// storage
	fs.String("storage_provider", "filesystem", "Blob storage: filesystem, s3 or memory")
	fs.String("storage_dir", "./data", "Root directory of filesystem storage")
	fs.String("s3_bucket", "", "S3 bucket")
	fs.String("s3_region", "", "S3 region")
	fs.String("s3_endpoint", "", "S3 endpoint override")

	// render
	fs.String("render_theme", "light", "Report theme: light or dark")
	fs.Int("render_width", 794, "Report width in pixels before upscaling")
	fs.Int("render_viewport_height", 900, "Height of the on-screen report panel")
	fs.Int("photo_max_width", 400, "Photo width inside the report")

	// retention & permissions
	fs.Int("retention_keep", 3, "Inspections per vehicle that keep their photos")
	fs.String("permissions_file", "", "JSON file overriding the role permission table")

	if err := fs.Parse(args); err != nil {
		return errors.New("could not parse flags", errors.WithCause(err))
	}

	_ = v.BindPFlags(fs)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit mapping
	_ = v.BindEnv("id", "CONSUL_ID")
	_ = v.BindEnv("consul", "CONSUL_HOST")
	_ = v.BindEnv("http_addr", "HTTP_ADDR")
	_ = v.BindEnv("public_addr", "PUBLIC_ADDR")
	_ = v.BindEnv("redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis_db", "REDIS_DB")
	_ = v.BindEnv("s3_access_key", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("s3_secret_key", "AWS_SECRET_ACCESS_KEY")
	return nil
}

func getConfigFilePath(v *viper.Viper) string {
	file := v.GetString("config_file")
	if file == "" {
		file = os.Getenv("INSPECTION_EXPORTER_CONFIG_FILE")
	}
	return file
}

func loadFromFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return errors.New(fmt.Sprintf("could not load config file: %s", err.Error()))
	}
	return nil
}

func buildAppConfig(v *viper.Viper, file string) *AppConfig {
	return &AppConfig{
		File:     file,
		Database: &DatabaseConfig{Url: v.GetString("data_source")},
		HTTP:     &HTTPConfig{Addr: v.GetString("http_addr")},
		Export: &ExportConfig{
			Workers:          v.GetInt("workers"),
			SettleDelay:      v.GetDuration("settle_delay"),
			InterExportDelay: v.GetDuration("inter_export_delay"),
		},
		Consul: &ConsulConfig{
			Id:            v.GetString("id"),
			Address:       v.GetString("consul"),
			PublicAddress: v.GetString("public_addr"),
		},
		Redis: &RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Storage: &StorageConfig{
			Provider:    v.GetString("storage_provider"),
			Dir:         v.GetString("storage_dir"),
			S3Bucket:    v.GetString("s3_bucket"),
			S3Region:    v.GetString("s3_region"),
			S3Endpoint:  v.GetString("s3_endpoint"),
			S3AccessKey: v.GetString("s3_access_key"),
			S3SecretKey: v.GetString("s3_secret_key"),
		},
		Render: &RenderConfig{
			Theme:          v.GetString("render_theme"),
			Width:          v.GetInt("render_width"),
			ViewportHeight: v.GetInt("render_viewport_height"),
			PhotoMaxWidth:  v.GetInt("photo_max_width"),
		},
		Retention:   &RetentionConfig{Keep: v.GetInt("retention_keep")},
		Permissions: &PermissionsConfig{File: v.GetString("permissions_file")},
	}
}

func validateConfig(cfg *AppConfig) error {
	if cfg.Database.Url == "" {
		return errors.New("Data source is required")
	}
	if cfg.HTTP.Addr == "" {
		return errors.New("HTTP address is required")
	}
	if cfg.Consul.Address != "" {
		if cfg.Consul.Id == "" {
			return errors.New("Service id is required")
		}
		if cfg.Consul.PublicAddress == "" {
			return errors.New("Public address is required")
		}
	}
	if cfg.Redis.Addr == "" {
		return errors.New("Redis address is required")
	}
	switch cfg.Storage.Provider {
	case "filesystem":
		if cfg.Storage.Dir == "" {
			return errors.New("Storage dir is required")
		}
	case "s3":
		if cfg.Storage.S3Bucket == "" {
			return errors.New("S3 bucket is required")
		}
	case "memory":
	default:
		return errors.New(fmt.Sprintf("unknown storage provider %q", cfg.Storage.Provider))
	}
	if cfg.Retention.Keep < 1 {
		return errors.New("retention_keep must be at least 1")
	}
	return nil
}
