package config

const (
	configName       = "config"
	configFile       = "config.json"
	remoteConfigType = "json"
	DefaultConsulKey = "netscan/config"
)
