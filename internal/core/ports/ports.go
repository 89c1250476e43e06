// Package ports declares the boundaries of the analysis core. Outbound ports are
// the pluggable inference capabilities and the async job infrastructure; inbound
// ports are what the HTTP, MCP and worker adapters drive.
package ports
