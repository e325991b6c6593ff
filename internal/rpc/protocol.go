// Package rpc implements the Unix-domain-socket transport the CLI and
// any other local client use to reach the daemon's gateway: a
// newline-delimited JSON request/response protocol, grounded on the
// teacher's own wire shape (Operation string + Args/Data as
// json.RawMessage, a flat Error string on failure).
package rpc

import "encoding/json"

// Request is one RPC call from client to daemon. Gateway selects which
// of the two entrypoints (query or mutate) the call is routed through;
// Domain and Operation name the handler within it, matching the
// "<domain>.<operation>" keys the gateway's registry is built from.
type Request struct {
	Gateway   string          `json:"gateway"`
	Domain    string          `json:"domain"`
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// Response is one RPC reply. Data carries the whole marshaled gateway
// envelope, on success and on failure alike (or the payload of a
// built-in operation such as ping); Error is a flattened message for clients
// that don't need the full structured error (the CLI prints the
// gateway's own envelope separately — see cmd/cleo).
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PingResponse answers an operations.ping health probe.
type PingResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// HealthResponse answers an operations.health check.
type HealthResponse struct {
	Status         string  `json:"status"`
	Version        string  `json:"version"`
	Uptime         float64 `json:"uptimeSeconds"`
	DBResponseTime float64 `json:"dbResponseMs"`
	ActiveConns    int32   `json:"activeConnections"`
	MaxConns       int     `json:"maxConnections"`
	Error          string  `json:"error,omitempty"`
}
