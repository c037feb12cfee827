package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "CYRUSTRACK"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "cyrustrack.db"
	defaultLogLevel      = "info"
	defaultLocalDataPath = "cyrustrack-local.json"
	defaultGeocoderURL   = "https://nominatim.openstreetmap.org/search"
	defaultS3Region      = "us-east-1"
)

// AppConfig captures runtime configuration for the API server and CLI tools.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	LocalDataPath string
	RemoteBaseURL string
	GeocoderURL   string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Endpoint    string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("local.data_path", defaultLocalDataPath)
	configViper.SetDefault("remote.base_url", "")
	configViper.SetDefault("geocoder.url", defaultGeocoderURL)
	configViper.SetDefault("s3.region", defaultS3Region)
	configViper.SetDefault("s3.bucket", "")
	configViper.SetDefault("s3.endpoint", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		LocalDataPath: configViper.GetString("local.data_path"),
		RemoteBaseURL: configViper.GetString("remote.base_url"),
		GeocoderURL:   configViper.GetString("geocoder.url"),
		S3Region:      configViper.GetString("s3.region"),
		S3Bucket:      configViper.GetString("s3.bucket"),
		S3AccessKey:   configViper.GetString("s3.access_key"),
		S3SecretKey:   configViper.GetString("s3.secret_key"),
		S3Endpoint:    configViper.GetString("s3.endpoint"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.LocalDataPath) == "" {
		return fmt.Errorf("local.data_path is required")
	}
	return nil
}
