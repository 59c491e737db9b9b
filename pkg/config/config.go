// Package config loads chatwidget settings from flags, CHATWIDGET_* env
// vars and an optional YAML file, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/chatwidget/pkg/api"
	"github.com/go-go-golems/chatwidget/pkg/logging"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/go-go-golems/chatwidget/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName   = "chatwidget"
	EnvPrefix = "CHATWIDGET"
)

// DefaultQuickReplies are the suggested questions of the initial screen.
var DefaultQuickReplies = []string{
	"How we can get access to InfusionBall Membership?",
	"What are the benefits of InfusionBall Membership?",
	"How much does InfusionBall Membership cost?",
}

type TurnLogSettings struct {
	// DSN is a sqlite DSN or a plain file path. Empty disables the log.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ResolveDSN turns a plain path into a WAL-mode sqlite DSN.
func (t TurnLogSettings) ResolveDSN() (string, error) {
	dsn := strings.TrimSpace(t.DSN)
	if dsn == "" || strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return dsn, nil
	}
	return turnlog.DSNForFile(dsn)
}

func (t TurnLogSettings) Enabled() bool { return strings.TrimSpace(t.DSN) != "" }

type Settings struct {
	BaseURL      string               `mapstructure:"base_url" yaml:"base_url"`
	Title        string               `mapstructure:"title" yaml:"title"`
	QuickReplies []string             `mapstructure:"quick_replies" yaml:"quick_replies"`
	Log          logging.Settings     `mapstructure:"log" yaml:"log"`
	Redis        redisstream.Settings `mapstructure:"redis" yaml:"redis"`
	TurnLog      TurnLogSettings      `mapstructure:"turn_log" yaml:"turn_log"`
}

func Defaults() Settings {
	return Settings{
		BaseURL:      api.DefaultBaseURL,
		Title:        "ChatBot",
		QuickReplies: append([]string(nil), DefaultQuickReplies...),
		Log:          logging.Settings{Level: "info"},
		Redis:        redisstream.DefaultSettings(),
	}
}

// Validate normalizes the base URL and checks cross-field requirements.
func (s *Settings) Validate() error {
	base, err := api.NormalizeBaseURL(s.BaseURL)
	if err != nil {
		return err
	}
	s.BaseURL = base
	if s.Redis.Enabled && strings.TrimSpace(s.Redis.Addr) == "" {
		return errors.New("redis is enabled but redis.addr is empty")
	}
	return nil
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"base-url":       "base_url",
	"title":          "title",
	"log-level":      "log.level",
	"log-file":       "log.file",
	"log-format":     "log.format",
	"redis-enabled":  "redis.enabled",
	"redis-addr":     "redis.addr",
	"redis-group":    "redis.group",
	"redis-consumer": "redis.consumer",
	"redis-stream":   "redis.stream",
	"turn-log":       "turn_log.dsn",
}

// AddFlags registers the persistent flags every command shares.
func AddFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("config", "", "Config file (default $HOME/.chatwidget/config.yaml)")
	fs.String("base-url", d.BaseURL, "Chatbot backend base URL")
	fs.String("title", d.Title, "Widget title")
	fs.String("log-level", d.Log.Level, "Log level (trace, debug, info, warn, error)")
	fs.String("log-file", "", "Write logs to a rotating file")
	fs.String("log-format", "", "Log format (console, json)")
	fs.Bool("redis-enabled", false, "Publish conversation events on Redis Streams")
	fs.String("redis-addr", d.Redis.Addr, "Redis address host:port")
	fs.String("redis-group", d.Redis.Group, "Redis consumer group")
	fs.String("redis-consumer", d.Redis.Consumer, "Redis consumer name")
	fs.String("redis-stream", d.Redis.Stream, "Redis stream name prefix")
	fs.String("turn-log", "", "SQLite file or DSN recording finished turns")
}

// NewViper builds a viper instance with defaults, env binding and the
// config file. An explicit configFile must exist; the default one may not.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, "."+AppName))
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return v, nil
}

// BindFlags makes explicitly set flags override env and file values.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "bind flag %s", name)
		}
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, errors.Wrap(err, "decode settings")
	}
	if len(s.QuickReplies) == 0 {
		s.QuickReplies = append([]string(nil), DefaultQuickReplies...)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("title", d.Title)
	v.SetDefault("quick_replies", d.QuickReplies)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.group", d.Redis.Group)
	v.SetDefault("redis.consumer", d.Redis.Consumer)
	v.SetDefault("redis.stream", d.Redis.Stream)
	v.SetDefault("turn_log.dsn", d.TurnLog.DSN)
}
