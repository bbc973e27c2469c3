// Package config holds the global loomkit settings. Values come from
// viper, which merges flags, LOOMKIT_* environment variables and the
// optional config file.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const (
	KeyCacheDir        = "cache_dir"
	KeyWorkDir         = "work_dir"
	KeyOffline         = "offline"
	KeyThreads         = "threads"
	KeyLogLevel        = "log_level"
	KeyDownloadRetries = "download_retries"
	KeyDownloadTimeout = "download_timeout"
)

type Config struct {
	CacheDir        string
	WorkDir         string
	Offline         bool
	Threads         int
	LogLevel        string
	DownloadRetries int
	// DownloadTimeout is in seconds.
	DownloadTimeout int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyCacheDir, defaultCacheDir())
	v.SetDefault(KeyWorkDir, ".loomkit")
	v.SetDefault(KeyOffline, false)
	v.SetDefault(KeyThreads, runtime.NumCPU())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyDownloadRetries, 3)
	v.SetDefault(KeyDownloadTimeout, 300)
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "loomkit")
	}
	return filepath.Join(".loomkit", "cache")
}

// Load reads the global viper instance.
func Load() Config {
	return FromViper(viper.GetViper())
}

func FromViper(v *viper.Viper) Config {
	SetDefaults(v)
	threads := v.GetInt(KeyThreads)
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return Config{
		CacheDir:        v.GetString(KeyCacheDir),
		WorkDir:         v.GetString(KeyWorkDir),
		Offline:         v.GetBool(KeyOffline),
		Threads:         threads,
		LogLevel:        v.GetString(KeyLogLevel),
		DownloadRetries: v.GetInt(KeyDownloadRetries),
		DownloadTimeout: v.GetInt(KeyDownloadTimeout),
	}
}
