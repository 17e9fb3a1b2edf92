// Package config loads gitodb CLI settings from defaults, an optional YAML
// file, GITODB_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/meigma/gitodb/explode"
	"github.com/meigma/gitodb/object"
	"github.com/meigma/gitodb/pack"
)

const (
	// AppName is the application name.
	AppName = "gitodb"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "gitodb"
	// configFileExt is the extension a config file must have to be found.
	configFileExt = ".yaml"
	// EnvPrefix prefixes environment variables, e.g. GITODB_EXPLODE_CHECK.
	EnvPrefix = "GITODB"
)

// Config holds every CLI setting.
type Config struct {
	Explode ExplodeConfig `mapstructure:"explode"`
	Log     LogConfig     `mapstructure:"log"`
}

// ExplodeConfig configures pack explosion.
type ExplodeConfig struct {
	// Check is a safety check key, see explode.SafetyCheckKeys.
	Check string `mapstructure:"check"`
	// Threads caps decoding workers; 0 uses all CPUs.
	Threads int `mapstructure:"threads"`
	// MaxObjectSize is the largest decoded object in bytes; 0 means no limit.
	MaxObjectSize uint64 `mapstructure:"max_object_size"`
	// DeletePack removes the pack files after a clean run.
	DeletePack bool `mapstructure:"delete_pack"`
	// Hash is the object hash function, sha1 or sha256.
	Hash string `mapstructure:"hash"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"check":           "explode.check",
	"threads":         "explode.threads",
	"max-object-size": "explode.max_object_size",
	"delete-pack":     "explode.delete_pack",
	"hash":            "explode.hash",
	"verbose":         "log.verbose",
}

// findConfigFile returns the first gitodb.yaml in the working directory or
// Dir, or "" if there is none.
func findConfigFile() string {
	candidates := []string{ConfigFileName + configFileExt}
	if dir, err := Dir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ConfigFileName+configFileExt))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Explode: ExplodeConfig{
			Check:         "all",
			MaxObjectSize: pack.DefaultMaxObjectSize,
			Hash:          object.SHA1.String(),
		},
	}
}

// Dir returns the per-user configuration directory for gitodb.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load reads the configuration. An explicit path must exist; otherwise
// gitodb.yaml is looked up in the working directory and then in Dir, and
// a missing file is not an error. Flags from flags that were set on the
// command line override all other sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("explode.check", defaults.Explode.Check)
	v.SetDefault("explode.threads", defaults.Explode.Threads)
	v.SetDefault("explode.max_object_size", defaults.Explode.MaxObjectSize)
	v.SetDefault("explode.delete_pack", defaults.Explode.DeletePack)
	v.SetDefault("explode.hash", defaults.Explode.Hash)
	v.SetDefault("log.verbose", defaults.Log.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}

// ExplodeOptions validates the explode settings and converts them to options.
// An unknown safety check key is reported as an explode.KindConfig error.
func (c *Config) ExplodeOptions() ([]explode.Option, error) {
	check, err := explode.ParseSafetyCheck(c.Explode.Check)
	if err != nil {
		return nil, err
	}
	hash, err := object.ParseHashKind(c.Explode.Hash)
	if err != nil {
		return nil, &explode.Error{Kind: explode.KindConfig, Key: c.Explode.Hash, Err: err}
	}
	if c.Explode.Threads < 0 {
		return nil, &explode.Error{Kind: explode.KindConfig, Key: fmt.Sprint(c.Explode.Threads)}
	}
	return []explode.Option{
		explode.WithSafetyCheck(check),
		explode.WithThreadLimit(c.Explode.Threads),
		explode.WithMaxObjectSize(c.Explode.MaxObjectSize),
		explode.WithDeletePack(c.Explode.DeletePack),
		explode.WithHashKind(hash),
	}, nil
}
