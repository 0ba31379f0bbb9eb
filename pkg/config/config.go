package config

import (
	"log"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

// Filename is the default file location for onedev-browser config
var Filename = "~/.onedev-browser.yml"

const (
	defaultSocketPath     = "/tmp/onedev-browser.sock"
	defaultSettingsPath   = "~/.onedev-browser-settings.yml"
	defaultRequestTimeout = 30 * time.Second
)

// Config is the host configuration, read from a yaml file. Credentials are
// not part of it; they live in the settings file at SettingsPath.
type Config struct {
	SocketPath   string `yaml:"socket_path"`
	SettingsPath string `yaml:"settings_path"`

	// RequestTimeout bounds each oneDev request. Zero disables the bound.
	RequestTimeout *time.Duration `yaml:"request_timeout"`
}

// Load a Config from a yaml string, filling in defaults for anything unset.
func Load(yml string) (Config, error) {
	var config Config

	if err := yaml.Unmarshal([]byte(yml), &config); err != nil {
		return Config{}, err
	}

	if len(config.SocketPath) == 0 {
		config.SocketPath = defaultSocketPath
	}
	if len(config.SettingsPath) == 0 {
		config.SettingsPath = defaultSettingsPath
	}

	return config, nil
}

// LoadFromFile attempts to load a Config from a given yaml file.
// A missing file is not an error: the defaults are returned instead.
func LoadFromFile(path string) (Config, error) {
	realpath, err := homedir.Expand(path)
	if err != nil {
		return Config{}, err
	}

	yml, err := os.ReadFile(realpath)
	if os.IsNotExist(err) {
		return Load("")
	}
	if err != nil {
		return Config{}, err
	}

	return Load(string(yml))
}

// LoadFromDefault loads a config from the default location.
func LoadFromDefault() (Config, error) {
	return LoadFromFile(Filename)
}

// MustLoadFromDefault loads from the default config location, and exits if
// there's an error.
func MustLoadFromDefault() Config {
	cfg, err := LoadFromFile(Filename)
	if err != nil {
		log.Fatal("couldn't load config: ", err)
	}
	return cfg
}

// Timeout returns the configured request timeout, or the default if none was
// given.
func (c Config) Timeout() time.Duration {
	if c.RequestTimeout == nil {
		return defaultRequestTimeout
	}
	return *c.RequestTimeout
}

// ExpandedSettingsPath returns SettingsPath with a leading ~ expanded.
func (c Config) ExpandedSettingsPath() (string, error) {
	return homedir.Expand(c.SettingsPath)
}

// ExpandedSocketPath returns SocketPath with a leading ~ expanded.
func (c Config) ExpandedSocketPath() (string, error) {
	return homedir.Expand(c.SocketPath)
}
