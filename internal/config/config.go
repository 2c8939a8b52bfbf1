package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are read by Viper from a config file or environment variables.
type Config struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
}

// RemoteConfig points at the GitHub repository used as the shared store.
// Token may also arrive via the FITSYNC_REMOTE_TOKEN environment variable so
// it never has to live in the config file.
type RemoteConfig struct {
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
	Token  string `mapstructure:"token"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // empty means stderr only
}

// ServerConfig configures the local status API used by serve mode.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// Load reads configuration from file or environment variables. A missing
// config file is fine; defaults and environment variables still apply.
func Load(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("fitsync")
	viper.AutomaticEnv()
	// Nested keys map to env vars: remote.token -> FITSYNC_REMOTE_TOKEN.
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("remote.branch", "main")
	viper.SetDefault("storage.path", "fitsync.db")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("server.address", "127.0.0.1:7788")

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
