package rpc

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cleo-dev/cleo/internal/audit"
	"github.com/cleo-dev/cleo/internal/daemonlog"
	"github.com/cleo-dev/cleo/internal/gateway"
	"github.com/cleo-dev/cleo/internal/storage"
)

// Operation names answered directly by the server, outside the
// gateway's (domain, operation) registry.
const (
	OpPing     = "ping"
	OpHealth   = "health"
	OpShutdown = "shutdown"
)

// DefaultMaxConnections caps how many requests the daemon serves
// concurrently; callers beyond this are rejected immediately rather
// than queued, matching the teacher's non-blocking semaphore admission.
const DefaultMaxConnections = 32

// DefaultRequestTimeout bounds how long a single request may take
// before its connection's read/write deadlines expire.
const DefaultRequestTimeout = 30 * time.Second

// Server is the daemon's Unix-socket RPC front end: it owns the
// listener and per-connection bookkeeping (server_lifecycle_conn.go)
// and dispatches every non-meta request into a gateway.Gateway.
type Server struct {
	socketPath     string
	version        string
	requestTimeout time.Duration
	maxConns       int

	gateway *gateway.Gateway
	storage storage.Storage
	metrics *Metrics
	log     *daemonlog.Logger

	mu       sync.RWMutex
	listener net.Listener
	shutdown bool

	connSemaphore chan struct{}
	activeConns   int32

	readyChan    chan struct{}
	doneChan     chan struct{}
	shutdownChan chan struct{}
	stopOnce     sync.Once

	startedAt time.Time
}

// Config bundles the dependencies New needs to build a Server.
type Config struct {
	SocketPath     string
	Version        string
	Gateway        *gateway.Gateway
	Storage        storage.Storage
	RequestTimeout time.Duration
	MaxConnections int
	// Log receives accept/reject/shutdown/panic events. Defaults to a
	// discarding logger when nil.
	Log *daemonlog.Logger
}

// New builds a Server. It does not listen until Start is called.
func New(cfg Config) *Server {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	log := cfg.Log
	if log == nil {
		log = daemonlog.Discard()
	}
	return &Server{
		socketPath:     cfg.SocketPath,
		version:        cfg.Version,
		requestTimeout: requestTimeout,
		maxConns:       maxConns,
		gateway:        cfg.Gateway,
		storage:        cfg.Storage,
		metrics:        NewMetrics(),
		log:            log,
		connSemaphore:  make(chan struct{}, maxConns),
		readyChan:      make(chan struct{}),
		doneChan:       make(chan struct{}),
		shutdownChan:   make(chan struct{}),
		startedAt:      time.Now(),
	}
}

// handleRequest answers ping/health/shutdown directly and routes every
// other request through the server's gateway, keyed on req.Gateway
// ("query" or "mutate", defaulting to query for unset/unknown values).
func (s *Server) handleRequest(req *Request, ctx context.Context) Response {
	switch req.Operation {
	case OpPing:
		return s.marshalResponse(PingResponse{Message: "pong", Version: s.version})
	case OpHealth:
		return s.handleHealth()
	case OpShutdown:
		return s.handleShutdown(req)
	}

	var params map[string]any
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return Response{Success: false, Error: "invalid params: " + err.Error()}
		}
	}

	if req.Gateway == "mutate" {
		return s.respondEnvelope(s.gateway.Mutate(ctx, req.Domain, req.Operation, params, req.Actor))
	}
	return s.respondEnvelope(s.gateway.Query(ctx, req.Domain, req.Operation, params, req.Actor))
}

// respondEnvelope marshals a gateway envelope into the wire Response
// shape, flattening its structured error into Response.Error for
// clients that don't unmarshal the full envelope.
func (s *Server) respondEnvelope(env audit.Response) Response {
	data, err := json.Marshal(env)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	resp := Response{Success: env.Success, Data: data}
	if env.Error != nil {
		resp.Error = env.Error.Message
	}
	return resp
}

func (s *Server) marshalResponse(v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Data: data}
}

// handleHealth pings storage with a cheap stats query and reports
// connection/version metadata.
func (s *Server) handleHealth() Response {
	start := time.Now()
	_, err := s.storage.GetStats(context.Background())
	dbMs := float64(time.Since(start).Microseconds()) / 1000

	health := HealthResponse{
		Status:         "healthy",
		Version:        s.version,
		Uptime:         time.Since(s.startedAt).Seconds(),
		DBResponseTime: dbMs,
		ActiveConns:    atomic.LoadInt32(&s.activeConns),
		MaxConns:       s.maxConns,
	}
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
	}

	data, marshalErr := json.Marshal(health)
	if marshalErr != nil {
		return Response{Success: false, Error: marshalErr.Error()}
	}
	return Response{Success: health.Status == "healthy", Data: data, Error: health.Error}
}
