package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	configutil "github.com/je4/utils/v2/pkg/config"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/rs/zerolog"
)

type PachdConfig struct {
	Host      configutil.EnvString `toml:"host"`
	Port      int                  `toml:"port"`
	AuthToken configutil.EnvString `toml:"authtoken"`
	TLS       bool                 `toml:"tls"`
}

type FSConfig struct {
	Delimiter string `toml:"delimiter"`
	TempDir   string `toml:"tempdir"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type Config struct {
	Pachd *PachdConfig `toml:"Pachd"`
	FS    *FSConfig    `toml:"FS"`
	Log   LogConfig    `toml:"Log"`
}

func Default() *Config {
	return &Config{
		Pachd: &PachdConfig{
			Host: "localhost",
			Port: 80,
		},
		FS: &FSConfig{
			Delimiter: "/",
			TempDir:   os.TempDir(),
		},
		Log: LogConfig{
			Level: "ERROR",
		},
	}
}

func Load(data string) (*Config, error) {
	conf := Default()
	if _, err := toml.Decode(data, conf); err != nil {
		return nil, errors.Wrap(err, "Error on loading config")
	}
	return conf, nil
}

func LoadFile(fp string) (*Config, error) {
	data, err := os.ReadFile(fp)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file '%s'", fp)
	}
	return Load(string(data))
}

// LoadDefault loads ~/.fspach/config.toml when it exists and falls back
// to the built-in defaults otherwise.
func LoadDefault() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Default(), nil
	}
	fp := filepath.Join(home, ".fspach", "config.toml")
	if _, err := os.Stat(fp); err != nil {
		return Default(), nil
	}
	return LoadFile(fp)
}

// NewLogger builds a logger per the Log section. An empty file logs to
// stderr; an unknown level falls back to error.
func (conf *Config) NewLogger() (zLogger.ZLogger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if conf.Log.File != "" {
		f, err := os.OpenFile(conf.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "cannot open logfile '%s'", conf.Log.File)
		}
		out = f
		closer = f
	}
	level, err := zerolog.ParseLevel(strings.ToLower(conf.Log.Level))
	if err != nil {
		level = zerolog.ErrorLevel
	}
	l := zerolog.New(out).Level(level).With().Timestamp().Logger()
	var logger zLogger.ZLogger = &l
	return logger, closer, nil
}
