// Package plugins holds the registry of presentation sinks. A sink gets
// every rendered snapshot of the device table.
package plugins

import (
	"fmt"

	"github.com/cdwhistler/netscan/device"
	"github.com/cdwhistler/netscan/logger"
)

var log = logger.GetLogger("plugins")

// Sink consumes rendered device tables.
type Sink interface {
	Render(devices []device.Device) error
	Close() error
}

// Controller is the part of the scheduler sinks may drive.
type Controller interface {
	// Refresh asks for a debounced refresh cycle.
	Refresh()
	// Snapshot returns the table as of the last render.
	Snapshot() []device.Device
}

// SetupFunc builds a sink from its configuration arguments.
type SetupFunc func(ctl Controller, args ...string) (Sink, error)

// Plugin represents a sink plugin object
type Plugin struct {
	Name  string
	Setup SetupFunc
}

// Config names a plugin and its arguments in the daemon configuration.
type Config struct {
	Name string   `mapstructure:"name" json:"name"`
	Args []string `mapstructure:"args" json:"args"`
}

// RegisteredPlugins maps a plugin name to a Plugin instance.
var RegisteredPlugins = make(map[string]*Plugin)

// RegisterPlugin registers a plugin by its name and setup function.
func RegisterPlugin(plugin *Plugin) error {
	log.Printf("Registering plugin '%s'", plugin.Name)
	if _, ok := RegisteredPlugins[plugin.Name]; ok {
		return fmt.Errorf("plugin '%s' is already registered", plugin.Name)
	}
	if plugin.Setup == nil {
		return fmt.Errorf("plugin '%s' has no setup function", plugin.Name)
	}
	RegisteredPlugins[plugin.Name] = plugin
	return nil
}

// LoadPlugins sets up every configured plugin in order. On error the
// sinks already set up are closed.
func LoadPlugins(ctl Controller, configs []Config) ([]Sink, error) {
	sinks := make([]Sink, 0, len(configs))
	for _, cfg := range configs {
		plugin, ok := RegisteredPlugins[cfg.Name]
		if !ok {
			closeAll(sinks)
			return nil, fmt.Errorf("unknown plugin '%s'", cfg.Name)
		}
		log.Printf("Loading plugin '%s'", cfg.Name)
		sink, err := plugin.Setup(ctl, cfg.Args...)
		if err != nil {
			closeAll(sinks)
			return nil, fmt.Errorf("setup plugin '%s': %w", cfg.Name, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Warnf("Close sink: %v", err)
		}
	}
}
