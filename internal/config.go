package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const AppName = "tdb"

type TdbConfig struct {
	AppName string `mapstructure:"app_name"`

	Log struct {
		Level string `mapstructure:"level"`
		Color bool   `mapstructure:"color"`
	} `mapstructure:"log"`

	Shell struct {
		Prompt          string `mapstructure:"prompt"`
		HistoryFile     string `mapstructure:"history_file"`
		HistoryLimit    int    `mapstructure:"history_limit"`
		ListConfirmRows int    `mapstructure:"list_confirm_rows"`
	} `mapstructure:"shell"`

	Storage struct {
		Watch bool `mapstructure:"watch"`
	} `mapstructure:"storage"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"no-color":  "log.color",
	"history":   "shell.history_file",
	"watch":     "storage.watch",
}

// RegisterFlags adds the flags that override config keys.
func RegisterFlags(f *flag.FlagSet) {
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.Bool("no-color", false, "Disable colored log output")
	f.String("history", defaultHistoryPath(), "History file path, empty to disable")
	f.Bool("watch", true, "Warn when the table file is changed by another process")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", AppName)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.color", true)
	v.SetDefault("shell.prompt", "tdb> ")
	v.SetDefault("shell.history_file", defaultHistoryPath())
	v.SetDefault("shell.history_limit", 2000)
	v.SetDefault("shell.list_confirm_rows", 100)
	v.SetDefault("storage.watch", true)
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (skipped when path is empty) and the flags of f that were set on the
// command line. f may be nil.
func LoadConfig(path string, f *flag.FlagSet) (*TdbConfig, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if f != nil {
		for name, key := range flagKeys {
			fl := f.Lookup(name)
			if fl == nil || !fl.Changed {
				continue
			}
			if name == "no-color" {
				v.Set(key, fl.Value.String() != "true")
				continue
			}
			if err := v.BindPFlag(key, fl); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg TdbConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *TdbConfig) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	if c.Shell.HistoryLimit < 0 {
		return errors.New("config: shell.history_limit must not be negative")
	}
	if c.Shell.ListConfirmRows < 0 {
		return errors.New("config: shell.list_confirm_rows must not be negative")
	}
	return nil
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/tdb/config.yaml (or the OS
// equivalent) if that file exists, otherwise "".
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, AppName, "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tdb_history"
	}
	return filepath.Join(home, ".tdb_history")
}
