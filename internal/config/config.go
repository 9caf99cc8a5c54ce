// Package config loads vaultx settings from defaults, vaultx.yaml, VAULTX_* environment
// variables and command flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Supported storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

const (
	// FileName is the config file name without extension.
	FileName = "vaultx"
	// EnvPrefix is prepended to every environment override (VAULTX_VAULT_DIR, ...).
	EnvPrefix = "vaultx"
	// DefaultAutoLock is the idle period after which an interactive session locks.
	DefaultAutoLock = 10 * time.Minute
)

// Config keys.
const (
	KeyVaultDir         = "vault_dir"
	KeyBackend          = "backend"
	KeySealed           = "sealed"
	KeyAutoLock         = "auto_lock"
	KeyLogLevel         = "log_level"
	KeyGeneratorLength  = "generator.length"
	KeyGeneratorUpper   = "generator.upper"
	KeyGeneratorLower   = "generator.lower"
	KeyGeneratorDigits  = "generator.digits"
	KeyGeneratorSymbols = "generator.symbols"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Generator holds the default password generation settings.
type Generator struct {
	Length  int  `mapstructure:"length" yaml:"length"`
	Upper   bool `mapstructure:"upper" yaml:"upper"`
	Lower   bool `mapstructure:"lower" yaml:"lower"`
	Digits  bool `mapstructure:"digits" yaml:"digits"`
	Symbols bool `mapstructure:"symbols" yaml:"symbols"`
}

// Config is the resolved vaultx configuration.
type Config struct {
	VaultDir  string        `mapstructure:"vault_dir" yaml:"vault_dir"`
	Backend   string        `mapstructure:"backend" yaml:"backend"`
	Sealed    bool          `mapstructure:"sealed" yaml:"sealed"`
	AutoLock  time.Duration `mapstructure:"auto_lock" yaml:"auto_lock"`
	LogLevel  string        `mapstructure:"log_level" yaml:"log_level"`
	Generator Generator     `mapstructure:"generator" yaml:"generator"`
}

// FlagKeys maps command flag names to the config keys they override.
var FlagKeys = map[string]string{
	"vault-dir": KeyVaultDir,
	"backend":   KeyBackend,
	"sealed":    KeySealed,
	"auto-lock": KeyAutoLock,
	"log-level": KeyLogLevel,
	"length":    KeyGeneratorLength,
	"upper":     KeyGeneratorUpper,
	"lower":     KeyGeneratorLower,
	"digits":    KeyGeneratorDigits,
	"symbols":   KeyGeneratorSymbols,
}

// DefaultVaultDir returns ~/.vaultx, or .vaultx when the home directory is unknown.
func DefaultVaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vaultx"
	}
	return filepath.Join(home, ".vaultx")
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		KeyVaultDir:         DefaultVaultDir(),
		KeyBackend:          BackendFile,
		KeySealed:           false,
		KeyAutoLock:         DefaultAutoLock,
		KeyLogLevel:         "warn",
		KeyGeneratorLength:  16,
		KeyGeneratorUpper:   true,
		KeyGeneratorLower:   true,
		KeyGeneratorDigits:  true,
		KeyGeneratorSymbols: true,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(dir, FileName, FileName+".yaml"), nil
}

func systemDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("ProgramData"), "VaultX")
	}
	return "/etc/vaultx"
}

// Load resolves the configuration. path, when non-empty, names an explicit config
// file that must exist. cmd may be nil; otherwise its flags that appear in FlagKeys
// are bound so that flags set on the command line take precedence.
func Load(cmd *cobra.Command, path string) (*Config, error) {
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if userPath, err := DefaultPath(); err == nil {
			v.AddConfigPath(filepath.Dir(userPath))
		}
		v.AddConfigPath(systemDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range FlagKeys {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.VaultDir = expandHome(cfg.VaultDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: backend must be %q or %q, got %q", ErrInvalidConfig, BackendFile, BackendSQLite, c.Backend)
	}
	if strings.TrimSpace(c.VaultDir) == "" {
		return fmt.Errorf("%w: vault_dir is empty", ErrInvalidConfig)
	}
	if c.AutoLock < 0 {
		return fmt.Errorf("%w: auto_lock must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Write stores cfg as YAML at path (DefaultPath when empty) with owner-only permissions.
func Write(cfg *Config, path string) (string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
