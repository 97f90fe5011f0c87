// Package config loads hudman's configuration: embedded defaults, an
// optional user file, and HUDMAN_* environment overrides, in that order.
package config

import (
	_ "embed"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	hudmanerrors "github.com/tf2hud/hudman/pkg/errors"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// Config holds all user-tunable settings.
type Config struct {
	// MaxDownloadBytes is the byte ceiling for a single archive download
	MaxDownloadBytes int64 `koanf:"max_download_bytes"`

	// FetchTimeout bounds a single download end to end
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// MaxConcurrentTransfers bounds how many installs fetch at once
	MaxConcurrentTransfers int `koanf:"max_concurrent_transfers"`

	// IndexURL is the remote HUD index document (YAML); empty disables it
	IndexURL string `koanf:"index_url"`

	// GameDir overrides game-directory detection when set
	GameDir string `koanf:"game_dir"`
}

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Load builds the effective configuration. configFilePath may point to a
// missing file; only a present-but-unreadable file is an error.
func Load(configFilePath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, hudmanerrors.Wrap(err, hudmanerrors.ErrConfigLoad, "failed to load default config")
	}

	// 2. User config file, if present
	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err == nil {
			if err := k.Load(file.Provider(configFilePath), toml.Parser()); err != nil {
				return nil, hudmanerrors.Wrapf(err, hudmanerrors.ErrConfigLoad,
					"failed to load config from %s", configFilePath)
			}
		}
	}

	// 3. Environment overrides: HUDMAN_MAX_DOWNLOAD_BYTES, HUDMAN_INDEX_URL, ...
	err := k.Load(env.Provider("HUDMAN_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "HUDMAN_"))
	}), nil)
	if err != nil {
		return nil, hudmanerrors.Wrap(err, hudmanerrors.ErrConfigLoad, "failed to load env vars")
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, hudmanerrors.Wrap(err, hudmanerrors.ErrConfigLoad, "failed to unmarshal configuration")
	}

	return &cfg, nil
}

// GetDefaultConfigContent returns the annotated default configuration file,
// used by the genconfig command.
func GetDefaultConfigContent() string {
	return string(defaultConfig)
}
