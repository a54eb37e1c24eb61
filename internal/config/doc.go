// Package config handles configuration loading for cnc-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	upstream:
//	  api_key: "${CNC_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	upstream:
//	  timeout: "30s"
//	sse:
//	  heartbeat_interval: "30s"
//
// # Configuration Sections
//
// Server identity and listen address:
//
//	server:
//	  name: "cnc-gateway"
//	  version: "1.0.0"
//	  http_addr: "0.0.0.0:6018"
//
// Upstream data API:
//
//	upstream:
//	  base_url: "https://rmms.example.com/api/method/iot."
//	  api_key: "${CNC_API_KEY}"
//	  timeout: "30s"
//	  max_concurrent: 100
//
// Optional call ledger:
//
//	database:
//	  path: "/var/lib/cnc-gateway/ledger.db"
//
// Optional mail delivery:
//
//	smtp:
//	  host: "smtp.example.com"
//	  port: 587
//	  user: "gateway@example.com"
//	  password: "${SMTP_PASSWORD}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
