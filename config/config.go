// Package config loads the trigger-sim configuration from yml files and the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/RuiFG/streaming-trigger/log"
	"github.com/RuiFG/streaming-trigger/trigger"
	"github.com/RuiFG/streaming-trigger/window"
)

type Application struct {
	Debug           bool          `mapstructure:"debug"`
	Log             Log           `mapstructure:"log"`
	Trigger         trigger.Spec  `mapstructure:"trigger"`
	Window          Window        `mapstructure:"window"`
	AllowedLateness time.Duration `mapstructure:"allowed_lateness"`
	Watermark       Watermark     `mapstructure:"watermark"`
	State           State         `mapstructure:"state"`
	Metrics         Metrics       `mapstructure:"metrics"`
}

type Log struct {
	Level   string `mapstructure:"level"`
	Encoder string `mapstructure:"encoder"`
}

type Window struct {
	Kind   string        `mapstructure:"kind"`
	Size   time.Duration `mapstructure:"size"`
	Period time.Duration `mapstructure:"period"`
	Gap    time.Duration `mapstructure:"gap"`
	Offset time.Duration `mapstructure:"offset"`
}

type Watermark struct {
	// Inputs is the number of upstream watermark inputs.
	Inputs int `mapstructure:"inputs"`
	// OutOfOrderness, when set, derives watermarks from element timestamps.
	OutOfOrderness time.Duration `mapstructure:"out_of_orderness"`
}

type State struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type Metrics struct {
	Listen   string        `mapstructure:"listen"`
	Interval time.Duration `mapstructure:"interval"`
}

// New returns a viper instance reading <configName>.yml from "." and
// "./config/", with environment variables prefixed by appName overriding it.
func New(appName string, configName string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config/")
	v.SetConfigName(configName)

	v.SetDefault("debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoder", "console")
	v.SetDefault("trigger.kind", "after_watermark")
	v.SetDefault("trigger.anchor", "end")
	v.SetDefault("window.kind", "tumbling")
	v.SetDefault("window.size", time.Minute)
	v.SetDefault("allowed_lateness", time.Duration(0))
	v.SetDefault("watermark.inputs", 1)
	v.SetDefault("state.backend", "memory")
	v.SetDefault("state.dir", "./state")
	v.SetDefault("metrics.interval", time.Second)
	return v
}

// Load reads the config file, merges the "<configName>-<env>" overlay when the
// env key is set, and decodes the result. A missing config file leaves the
// defaults in place.
func Load(v *viper.Viper) (*Application, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.WithMessage(err, "failed to read config")
		}
	} else if err = mergeOverlay(v); err != nil {
		return nil, err
	}
	return decode(v)
}

// mergeOverlay merges <config>-<env>.yml over the loaded config. The overlay is optional.
func mergeOverlay(v *viper.Viper) error {
	env := v.GetString("env")
	if env == "" || v.ConfigFileUsed() == "" {
		return nil
	}
	overlay := viper.New()
	overlay.SetConfigFile(strings.TrimSuffix(v.ConfigFileUsed(), filepath.Ext(v.ConfigFileUsed())) + "-" + env + ".yml")
	if err := overlay.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.WithMessage(err, "failed to read config overlay")
	}
	return v.MergeConfigMap(overlay.AllSettings())
}

func decode(v *viper.Viper) (*Application, error) {
	application := &Application{}
	if err := v.Unmarshal(application); err != nil {
		return nil, errors.WithMessage(err, "failed to decode config")
	}
	if err := application.validate(); err != nil {
		return nil, err
	}
	return application, nil
}

// Watch decodes the config again whenever the file changes.
func Watch(v *viper.Viper, onChange func(application *Application, err error)) {
	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		if err := v.ReadInConfig(); err != nil {
			onChange(nil, errors.WithMessagef(err, "failed to reload %s", event.Name))
			return
		}
		if err := mergeOverlay(v); err != nil {
			onChange(nil, err)
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()
}

func (a *Application) validate() error {
	if _, err := a.Assigner(); err != nil {
		return err
	}
	if _, err := a.Trigger.Build(); err != nil {
		return errors.WithMessage(err, "invalid trigger")
	}
	if a.AllowedLateness < 0 {
		return errors.Errorf("allowed_lateness can't less than 0")
	}
	if a.Watermark.Inputs < 1 {
		return errors.Errorf("watermark.inputs must be positive")
	}
	switch a.State.Backend {
	case "memory", "nutsdb":
	default:
		return errors.Errorf("unknown state backend %q", a.State.Backend)
	}
	_, err := log.ParseLevel(a.Log.Level)
	return err
}

func (a *Application) Assigner() (window.Assigner, error) {
	switch strings.ToLower(a.Window.Kind) {
	case "tumbling":
		return window.Tumbling(a.Window.Size, a.Window.Offset)
	case "sliding":
		return window.Sliding(a.Window.Size, a.Window.Period, a.Window.Offset)
	case "sessions", "session":
		return window.Sessions(a.Window.Gap)
	case "global":
		return window.GlobalAssigner(), nil
	default:
		return nil, errors.Errorf("unknown window kind %q", a.Window.Kind)
	}
}

// LogLevel is the configured level, debug when Debug is set.
func (a *Application) LogLevel() log.Level {
	if a.Debug {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(a.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func (a *Application) LogEncoder() log.OutputEncoder {
	if strings.EqualFold(a.Log.Encoder, "json") {
		return log.JsonOutputEncoder
	}
	return log.ConsoleOutputEncoder
}
