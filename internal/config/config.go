package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SessionConfig holds tick-loop and alignment settings.
type SessionConfig struct {
	PeerID      int           `json:"peerId" mapstructure:"peerId"`
	TickRate    int           `json:"tickRate" mapstructure:"tickRate"`
	AlignMode   string        `json:"alignMode" mapstructure:"alignMode"`
	SettleDelay time.Duration `json:"settleDelay" mapstructure:"settleDelay"`
	InterpRate  float64       `json:"interpRate" mapstructure:"interpRate"`
	PeerName    string        `json:"peerName" mapstructure:"peerName"`
}

// SensorConfig holds sensor stream settings.
type SensorConfig struct {
	Source          string `json:"source" mapstructure:"source"`
	Listen          string `json:"listen" mapstructure:"listen"`
	SendEveryNTicks int    `json:"sendEveryNTicks" mapstructure:"sendEveryNTicks"`
	Compress        bool   `json:"compress" mapstructure:"compress"`
	Schema          string `json:"schema" mapstructure:"schema"`
}

// TransportConfig holds session transport settings.
type TransportConfig struct {
	Type   string `json:"type" mapstructure:"type"`
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig holds calibration persistence settings.
type StorageConfig struct {
	Path string `json:"path" mapstructure:"path"`
	Slot string `json:"slot" mapstructure:"slot"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds session-stats telemetry settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./relaylogs")

	viper.SetDefault("session.peerId", 1)
	viper.SetDefault("session.tickRate", 30)
	viper.SetDefault("session.alignMode", "auto")
	viper.SetDefault("session.settleDelay", "2s")
	viper.SetDefault("session.interpRate", 8.0)
	viper.SetDefault("session.peerName", "")

	viper.SetDefault("sensor.source", "udp")
	viper.SetDefault("sensor.listen", "127.0.0.1:16801")
	viper.SetDefault("sensor.sendEveryNTicks", 1)
	viper.SetDefault("sensor.compress", true)
	viper.SetDefault("sensor.schema", "reduced10")

	viper.SetDefault("transport.type", "loopback")
	viper.SetDefault("transport.url", "ws://localhost:5100/session")
	viper.SetDefault("transport.secret", "")

	viper.SetDefault("storage.path", "./relay_calibration.db")
	viper.SetDefault("storage.slot", "default")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "holoshare-relay")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "holoshare")
	viper.SetDefault("influx.bucket", "session_stats")

	viper.SetConfigName("relay.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSessionConfig returns the session settings.
func GetSessionConfig() SessionConfig {
	return SessionConfig{
		PeerID:      viper.GetInt("session.peerId"),
		TickRate:    viper.GetInt("session.tickRate"),
		AlignMode:   viper.GetString("session.alignMode"),
		SettleDelay: viper.GetDuration("session.settleDelay"),
		InterpRate:  viper.GetFloat64("session.interpRate"),
		PeerName:    viper.GetString("session.peerName"),
	}
}

// GetSensorConfig returns the sensor stream settings.
func GetSensorConfig() SensorConfig {
	return SensorConfig{
		Source:          viper.GetString("sensor.source"),
		Listen:          viper.GetString("sensor.listen"),
		SendEveryNTicks: viper.GetInt("sensor.sendEveryNTicks"),
		Compress:        viper.GetBool("sensor.compress"),
		Schema:          viper.GetString("sensor.schema"),
	}
}

// GetTransportConfig returns the transport settings.
func GetTransportConfig() TransportConfig {
	return TransportConfig{
		Type:   viper.GetString("transport.type"),
		URL:    viper.GetString("transport.url"),
		Secret: viper.GetString("transport.secret"),
	}
}

// GetStorageConfig returns the calibration persistence settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Path: viper.GetString("storage.path"),
		Slot: viper.GetString("storage.slot"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the session-stats telemetry settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}
