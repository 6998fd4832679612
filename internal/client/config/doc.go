// Package config loads runtime configuration for the LinkVault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the gRPC endpoint
//	-u string   base URL of the HTTP endpoint
//	-s string   session database path
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "http_base_url": "http://127.0.0.1:8080",
//	  "session_db": "linkvault.db",
//	  "online_check_interval": "3s"
//	}
package config
