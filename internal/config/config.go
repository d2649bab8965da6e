// Package config loads claudia settings through a viper singleton.
//
// Values resolve in priority order: explicit flags (applied by the CLI),
// CLAUDIA_* environment variables, the .claudia.yaml config file, then
// built-in defaults.
package config

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyStateDir            = "state_dir"
	KeyPort                = "port"
	KeyMaxConcurrent       = "max_concurrent"
	KeyLockTimeout         = "lock_timeout"
	KeyCleanupThreshold    = "cleanup_threshold"
	KeyCleanupInterval     = "cleanup_interval"
	KeyFlushInterval       = "flush_interval"
	KeyRequestTimeout      = "request_timeout"
	KeyAutoCompleteParents = "auto_complete_parents"
	KeyAutoShutdown        = "auto_shutdown"
	KeyLogLevel            = "log_level"
)

var (
	mu sync.RWMutex
	v  *viper.Viper
)

// Initialize reads configuration for the given project directory. Safe to
// call more than once; the last call wins. A missing config file is not an
// error, defaults and environment variables still apply.
func Initialize(projectDir string) error {
	nv := viper.New()
	setDefaults(nv)

	nv.SetConfigName(".claudia")
	nv.SetConfigType("yaml")
	if projectDir != "" {
		nv.AddConfigPath(projectDir)
	}
	nv.AddConfigPath(".")
	nv.AddConfigPath("$HOME")

	nv.SetEnvPrefix("CLAUDIA")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return err
		}
	}

	mu.Lock()
	v = nv
	mu.Unlock()
	return nil
}

// instance returns the active viper, lazily building a defaults-only one
// when Initialize has not run (tests, library use).
func instance() *viper.Viper {
	mu.RLock()
	cur := v
	mu.RUnlock()
	if cur != nil {
		return cur
	}

	mu.Lock()
	defer mu.Unlock()
	if v == nil {
		nv := viper.New()
		setDefaults(nv)
		nv.SetEnvPrefix("CLAUDIA")
		nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		nv.AutomaticEnv()
		v = nv
	}
	return v
}

// Reset drops the singleton so the next access rebuilds from defaults.
// Intended for tests.
func Reset() {
	mu.Lock()
	v = nil
	mu.Unlock()
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault(KeyStateDir, ".agent-state")
	nv.SetDefault(KeyPort, 0)
	nv.SetDefault(KeyMaxConcurrent, 1)
	nv.SetDefault(KeyLockTimeout, "10s")
	nv.SetDefault(KeyCleanupThreshold, "180s")
	nv.SetDefault(KeyCleanupInterval, "30s")
	nv.SetDefault(KeyFlushInterval, "1s")
	nv.SetDefault(KeyRequestTimeout, "5s")
	nv.SetDefault(KeyAutoCompleteParents, false)
	nv.SetDefault(KeyAutoShutdown, false)
	nv.SetDefault(KeyLogLevel, "info")
}

// Set overrides a single key on the active instance. Used by the CLI to
// push explicit flag values down into the config layer.
func Set(key string, value any) {
	instance().Set(key, value)
}

// GetString returns a string config value.
func GetString(key string) string { return instance().GetString(key) }

// GetBool returns a boolean config value.
func GetBool(key string) bool { return instance().GetBool(key) }

// GetInt returns an integer config value.
func GetInt(key string) int { return instance().GetInt(key) }

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration { return instance().GetDuration(key) }

// Settings is a point-in-time copy of every tunable. Components hold a
// Settings value instead of reading the singleton so behavior is fixed at
// construction.
type Settings struct {
	StateDir            string
	Port                int
	MaxConcurrent       int
	LockTimeout         time.Duration
	CleanupThreshold    time.Duration
	CleanupInterval     time.Duration
	FlushInterval       time.Duration
	RequestTimeout      time.Duration
	AutoCompleteParents bool
	AutoShutdown        bool
	LogLevel            string
}

// Current snapshots the active configuration.
func Current() Settings {
	return Settings{
		StateDir:            GetString(KeyStateDir),
		Port:                GetInt(KeyPort),
		MaxConcurrent:       GetInt(KeyMaxConcurrent),
		LockTimeout:         GetDuration(KeyLockTimeout),
		CleanupThreshold:    GetDuration(KeyCleanupThreshold),
		CleanupInterval:     GetDuration(KeyCleanupInterval),
		FlushInterval:       GetDuration(KeyFlushInterval),
		RequestTimeout:      GetDuration(KeyRequestTimeout),
		AutoCompleteParents: GetBool(KeyAutoCompleteParents),
		AutoShutdown:        GetBool(KeyAutoShutdown),
		LogLevel:            GetString(KeyLogLevel),
	}
}

// Defaults returns the built-in settings without consulting files or the
// environment.
func Defaults() Settings {
	nv := viper.New()
	setDefaults(nv)
	return Settings{
		StateDir:            nv.GetString(KeyStateDir),
		Port:                nv.GetInt(KeyPort),
		MaxConcurrent:       nv.GetInt(KeyMaxConcurrent),
		LockTimeout:         nv.GetDuration(KeyLockTimeout),
		CleanupThreshold:    nv.GetDuration(KeyCleanupThreshold),
		CleanupInterval:     nv.GetDuration(KeyCleanupInterval),
		FlushInterval:       nv.GetDuration(KeyFlushInterval),
		RequestTimeout:      nv.GetDuration(KeyRequestTimeout),
		AutoCompleteParents: nv.GetBool(KeyAutoCompleteParents),
		AutoShutdown:        nv.GetBool(KeyAutoShutdown),
		LogLevel:            nv.GetString(KeyLogLevel),
	}
}
