package config

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/consul/api"
	"github.com/spf13/viper"
)

// KV is the part of the Consul KV client the manager reads from.
type KV interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
}

type configManager struct {
	v          *viper.Viper
	kv         KV
	key        string
	filename   string
	configPath string
}

// NewConfigManager reads from configPath and, if kv is not nil, from key in
// the KV store.
func NewConfigManager(kv KV, configPath string, key string) *configManager {
	v := viper.New()
	SetDefaults(v)
	return &configManager{
		v:          v,
		kv:         kv,
		key:        key,
		filename:   filepath.Join(configPath, configFile),
		configPath: configPath,
	}
}

// NewConsulKV connects to the agent at address.
func NewConsulKV(address string) (KV, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client %s: %w", address, err)
	}
	return client.KV(), nil
}

// ReadLocalConfig reads config.{json,yaml,...} from the config path. A
// missing file leaves the defaults in place.
func (c *configManager) ReadLocalConfig() error {
	c.v.SetConfigName(configName)
	c.v.AddConfigPath(c.configPath)
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Warnf("No config file in %s, using defaults", c.configPath)
			return nil
		}
		return fmt.Errorf("read local config file: %w", err)
	}
	log.Infof("Loaded config file %s", c.v.ConfigFileUsed())
	return nil
}

// ReadRemoteConfig merges the JSON document stored at the key over the
// local settings.
func (c *configManager) ReadRemoteConfig() error {
	if c.kv == nil {
		return nil
	}
	pair, _, err := c.kv.Get(c.key, nil)
	if err != nil {
		return fmt.Errorf("get key %s: %w", c.key, err)
	}
	if pair == nil {
		log.Warnf("Key %s not found in consul", c.key)
		return nil
	}
	remote := viper.New()
	remote.SetConfigType(remoteConfigType)
	if err := remote.ReadConfig(bytes.NewReader(pair.Value)); err != nil {
		return fmt.Errorf("read remote config: %w", err)
	}
	if err := c.v.MergeConfigMap(remote.AllSettings()); err != nil {
		return fmt.Errorf("merge remote config: %w", err)
	}
	log.Infof("Merged remote config from key %s", c.key)
	return nil
}

// WriteLocalConfig stores the merged settings as config.json so the next
// start works without the KV store.
func (c *configManager) WriteLocalConfig() error {
	if err := c.v.WriteConfigAs(c.filename); err != nil {
		return fmt.Errorf("write config as %s: %w", configFile, err)
	}
	return nil
}

// Load reads the local file, merges the remote document if any and
// decodes the result.
func (c *configManager) Load() (*Config, error) {
	if err := c.ReadLocalConfig(); err != nil {
		return nil, err
	}
	if c.kv != nil {
		if err := c.ReadRemoteConfig(); err != nil {
			return nil, err
		}
		if err := c.WriteLocalConfig(); err != nil {
			log.Errorf("write local config: %v", err)
		}
	}
	return Decode(c.v)
}
