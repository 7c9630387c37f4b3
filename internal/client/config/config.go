package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	KeyServer       = "server"
	KeyToken        = "token"
	KeyPollInterval = "poll_interval"
	KeyTimeout      = "timeout"

	envPrefix   = "TANDEM"
	fileMode    = 0o600
	dirMode     = 0o700
	tempPattern = ".cli-*.toml.tmp"
)

// Keys lists every key Set accepts.
var Keys = []string{KeyServer, KeyToken, KeyPollInterval, KeyTimeout}

// Config holds runtime settings for the CLI.
//
// Fields:
//   - ServerAddr: host:port of the coordinator gRPC endpoint.
//   - Token: bearer token identifying the actor.
//   - PollInterval: fixed delay between join polls while waiting.
//   - Timeout: per-call deadline.
type Config struct {
	ServerAddr   string
	Token        string
	PollInterval time.Duration
	Timeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "127.0.0.1:50051"
	c.Token = ""
	c.PollInterval = 3 * time.Second
	c.Timeout = 10 * time.Second
}

// DefaultPath returns ~/.config/tandem/cli.toml under home.
func DefaultPath(home string) string {
	return filepath.Join(home, ".config", "tandem", "cli.toml")
}

// Load reads the file at path (if present) and the environment into v and
// returns the resolved Config. Flags should be bound to v before calling.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	var d Config
	d.LoadDefaults()
	v.SetDefault(KeyServer, d.ServerAddr)
	v.SetDefault(KeyToken, d.Token)
	v.SetDefault(KeyPollInterval, d.PollInterval)
	v.SetDefault(KeyTimeout, d.Timeout)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	c := &Config{
		ServerAddr:   v.GetString(KeyServer),
		Token:        v.GetString(KeyToken),
		PollInterval: v.GetDuration(KeyPollInterval),
		Timeout:      v.GetDuration(KeyTimeout),
	}
	if c.PollInterval <= 0 {
		return nil, fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if c.Timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive", KeyTimeout)
	}
	return c, nil
}

func knownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Set stores key = value in the TOML file at path, creating it if needed.
func Set(path, key, value string) error {
	if !knownKey(key) {
		return fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	if key == KeyPollInterval || key == KeyTimeout {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	values := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("decode config file: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read config file: %w", err)
	}
	values[key] = value

	return write(path, values)
}

func write(path string, values map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}

	cleanup = false
	return nil
}
