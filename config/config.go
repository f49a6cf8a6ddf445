// Package config loads the daemon configuration from a local file, with an
// optional document from the Consul KV store merged on top.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/cdwhistler/netscan/logger"
	"github.com/cdwhistler/netscan/plugins"
	"github.com/cdwhistler/netscan/scheduler"
	"github.com/cdwhistler/netscan/targets"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("config")

type Config struct {
	Interface string           `mapstructure:"interface" json:"interface"`
	Netns     string           `mapstructure:"netns" json:"netns"`
	Refresh   RefreshConfig    `mapstructure:"refresh" json:"refresh"`
	Render    RenderConfig     `mapstructure:"render" json:"render"`
	Reap      ReapConfig       `mapstructure:"reap" json:"reap"`
	Probe     ProbeConfig      `mapstructure:"probe" json:"probe"`
	NBNS      NBNSConfig       `mapstructure:"nbns" json:"nbns"`
	Trigger   TriggerConfig    `mapstructure:"trigger" json:"trigger"`
	Logging   logger.Config    `mapstructure:"logging" json:"logging"`
	Plugins   []plugins.Config `mapstructure:"plugins" json:"plugins"`
}

type RefreshConfig struct {
	Window      time.Duration `mapstructure:"-" json:"window"`
	MinInterval time.Duration `mapstructure:"-" json:"min_interval"`
}

type RenderConfig struct {
	Interval time.Duration `mapstructure:"-" json:"interval"`
}

type ReapConfig struct {
	Max int `mapstructure:"max" json:"max"`
}

type ProbeConfig struct {
	Workers    int           `mapstructure:"workers" json:"workers"`
	Pace       time.Duration `mapstructure:"-" json:"pace"`
	Subnet     bool          `mapstructure:"subnet" json:"subnet"`
	RangeStart string        `mapstructure:"range_start" json:"range_start"`
	RangeEnd   string        `mapstructure:"range_end" json:"range_end"`
}

type NBNSConfig struct {
	Bind string `mapstructure:"bind" json:"bind"`
	Port int    `mapstructure:"port" json:"port"`
}

type TriggerConfig struct {
	File string `mapstructure:"file" json:"file"`
}

// SetDefaults registers a default for every key.
func SetDefaults(v *viper.Viper) {
	d := scheduler.DefaultConfig()
	v.SetDefault("interface", "br0")
	v.SetDefault("netns", "")
	v.SetDefault("refresh.window", d.Window.String())
	v.SetDefault("refresh.min_interval", d.MinInterval.String())
	v.SetDefault("render.interval", d.RenderInterval.String())
	v.SetDefault("reap.max", d.ReapMax)
	v.SetDefault("probe.workers", d.Workers)
	v.SetDefault("probe.pace", d.Pace.String())
	v.SetDefault("probe.subnet", d.ProbeSubnet)
	v.SetDefault("probe.range_start", "")
	v.SetDefault("probe.range_end", "")
	v.SetDefault("nbns.bind", "0.0.0.0")
	v.SetDefault("nbns.port", 137)
	v.SetDefault("trigger.file", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
}

// Decode builds a Config from the merged settings of v.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"refresh.window", &c.Refresh.Window},
		{"refresh.min_interval", &c.Refresh.MinInterval},
		{"render.interval", &c.Render.Interval},
		{"probe.pace", &c.Probe.Pace},
	}
	for _, d := range durations {
		val, err := toDuration(v.Get(d.key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = val
	}
	if c.Refresh.Window <= 0 {
		return nil, errors.New("refresh.window must be positive")
	}
	if (c.Probe.RangeStart == "") != (c.Probe.RangeEnd == "") {
		return nil, errors.New("probe.range_start and probe.range_end go together")
	}
	return &c, nil
}

// toDuration accepts a duration string or a plain number of seconds.
func toDuration(v interface{}) (time.Duration, error) {
	if s, ok := v.(string); ok {
		if secs, err := cast.ToFloat64E(s); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return cast.ToDurationE(s)
	}
	switch v.(type) {
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	return cast.ToDurationE(v)
}

// Scheduler converts the refresh settings. prefixRange is used when no
// explicit range is configured.
func (c *Config) Scheduler(prefixRange targets.Range) (scheduler.Config, error) {
	sc := scheduler.Config{
		Window:         c.Refresh.Window,
		MinInterval:    c.Refresh.MinInterval,
		RenderInterval: c.Render.Interval,
		ReapMax:        c.Reap.Max,
		Workers:        c.Probe.Workers,
		Pace:           c.Probe.Pace,
		ProbeSubnet:    c.Probe.Subnet,
		Range:          prefixRange,
	}
	if c.Probe.RangeStart != "" {
		r, err := targets.ParseRange(c.Probe.RangeStart, c.Probe.RangeEnd)
		if err != nil {
			return sc, err
		}
		sc.Range = r
		// a range given explicitly is always probed
		sc.ProbeSubnet = true
	}
	return sc, nil
}
