// Package config loads billcheck settings from defaults, an optional YAML
// file and BILLCHECK_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, with dots in
// keys replaced by underscores (cache.dir → BILLCHECK_CACHE_DIR).
const EnvPrefix = "BILLCHECK"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Cache   CacheConfig   `mapstructure:"cache"`
	AWS     AWSConfig     `mapstructure:"aws"`
	CMS     CMSConfig     `mapstructure:"cms"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Minio   MinioConfig   `mapstructure:"minio"`
	Server  ServerConfig  `mapstructure:"server"`
	Extract ExtractConfig `mapstructure:"extract"`
	Worker  WorkerConfig  `mapstructure:"worker"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	Dir      string        `mapstructure:"dir"`
	TTL      time.Duration `mapstructure:"ttl"`
	S3Bucket string        `mapstructure:"s3_bucket"`
	S3Prefix string        `mapstructure:"s3_prefix"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

type CMSConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Retries  int           `mapstructure:"retries"`
	Snapshot string        `mapstructure:"snapshot"`
}

type UploadConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	MaxUploadMB int      `mapstructure:"max_upload_mb"`
}

type ExtractConfig struct {
	AllowFallback bool `mapstructure:"allow_fallback"`
}

type WorkerConfig struct {
	Count int `mapstructure:"count"`
}

// Cache and upload backends.
const (
	BackendFile  = "file"
	BackendS3    = "s3"
	BackendNone  = "none"
	BackendMinio = "minio"
)

func setDefaults(v *viper.Viper) {
	tmp := os.TempDir()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("cache.backend", BackendFile)
	v.SetDefault("cache.dir", filepath.Join(tmp, "billcheck_cache"))
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.s3_bucket", "")
	v.SetDefault("cache.s3_prefix", "billcheck-cache/")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("cms.base_url", "https://data.cms.gov/data-api/v1/dataset")
	v.SetDefault("cms.timeout", 30*time.Second)
	v.SetDefault("cms.retries", 3)
	v.SetDefault("cms.snapshot", "")
	v.SetDefault("upload.backend", BackendFile)
	v.SetDefault("upload.dir", filepath.Join(tmp, "billcheck_uploads"))
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_upload_mb", 25)
	v.SetDefault("extract.allow_fallback", true)
	v.SetDefault("worker.count", 3)
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Env values arrive as one comma-separated string.
	cfg.Server.CORSOrigins = splitList(strings.Join(cfg.Server.CORSOrigins, ","))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile:
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the file cache")
		}
	case BackendS3:
		if c.Cache.S3Bucket == "" {
			return fmt.Errorf("cache.s3_bucket is required when cache.backend is %q", BackendS3)
		}
	case BackendNone:
	default:
		return fmt.Errorf("cache.backend must be %q, %q, or %q, got %q", BackendFile, BackendS3, BackendNone, c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}

	switch c.Upload.Backend {
	case BackendFile:
	case BackendMinio:
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return fmt.Errorf("minio.endpoint and minio.bucket are required when upload.backend is %q", BackendMinio)
		}
	default:
		return fmt.Errorf("upload.backend must be %q or %q, got %q", BackendFile, BackendMinio, c.Upload.Backend)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be \"json\" or \"console\", got %q", c.Log.Format)
	}
	if c.CMS.Retries < 1 {
		return fmt.Errorf("cms.retries must be at least 1")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be at least 1")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be at least 1")
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}
