package config

import "time"

// Config holds runtime settings for the LinkVault CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the owner gRPC endpoint.
//   - HTTPBaseURL: base URL of the public HTTP API, used for uploads.
//   - SessionDB: path of the local SQLite file that keeps the session.
//   - OnlineCheckInterval: how often the client probes server reachability.
type Config struct {
	ServerEndpointAddr  string
	HTTPBaseURL         string
	SessionDB           string
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.HTTPBaseURL = "http://127.0.0.1:8080"
	c.SessionDB = "linkvault.db"
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
