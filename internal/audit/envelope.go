package audit

import (
	"time"

	"github.com/google/uuid"
)

// SpecVersion and SchemaVersion are carried verbatim on every envelope.
const (
	SpecVersion   = "1.1.0"
	SchemaVersion = 1
	Transport     = "mcp"
	MVI           = "standard"
	ContextVersion = 1
)

// Meta is the gateway-meta envelope attached to every response.
type Meta struct {
	SpecVersion    string    `json:"specVersion"`
	SchemaVersion  int       `json:"schemaVersion"`
	Timestamp      time.Time `json:"timestamp"`
	Operation      string    `json:"operation"`
	RequestID      string    `json:"requestId"`
	Transport      string    `json:"transport"`
	Strict         bool      `json:"strict"`
	MVI            string    `json:"mvi"`
	ContextVersion int       `json:"contextVersion"`
	Gateway        string    `json:"gateway"`
	Domain         string    `json:"domain"`
	DurationMs     int64     `json:"duration_ms"`
}

// ErrorInfo is the shape of a failed response's "error" field.
type ErrorInfo struct {
	Code         string   `json:"code"`
	ExitCode     int      `json:"exitCode"`
	Message      string   `json:"message"`
	Details      any      `json:"details,omitempty"`
	Fix          string   `json:"fix,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// BatchResult is the {succeeded, failed} payload of a partial-batch
// response.
type BatchResult struct {
	Succeeded []any `json:"succeeded"`
	Failed    []any `json:"failed"`
}

// Response is the full envelope the gateway returns for a call: exactly
// one of Data/Error/Partial's BatchResult is populated depending on
// Success and Partial.
type Response struct {
	Meta    Meta       `json:"_meta"`
	Success bool       `json:"success"`
	Partial bool       `json:"partial,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// Builder accumulates the timing and identity needed to produce a
// Response once a call finishes.
type Builder struct {
	gateway   string
	domain    string
	operation string
	requestID string
	start     time.Time
}

// NewBuilder starts timing a call and mints its requestId.
func NewBuilder(gateway, domain, operation string) *Builder {
	return &Builder{
		gateway:   gateway,
		domain:    domain,
		operation: operation,
		requestID: uuid.NewString(),
		start:     time.Now(),
	}
}

func (b *Builder) meta() Meta {
	return Meta{
		SpecVersion:    SpecVersion,
		SchemaVersion:  SchemaVersion,
		Timestamp:      time.Now(),
		Operation:      b.operation,
		RequestID:      b.requestID,
		Transport:      Transport,
		Strict:         true,
		MVI:            MVI,
		ContextVersion: ContextVersion,
		Gateway:        b.gateway,
		Domain:         b.domain,
		DurationMs:     time.Since(b.start).Milliseconds(),
	}
}

// Success builds a success envelope.
func (b *Builder) Success(data any) Response {
	return Response{Meta: b.meta(), Success: true, Data: data}
}

// PartialSuccess builds a success envelope marked partial, carrying the
// succeeded/failed split of a batch operation.
func (b *Builder) PartialSuccess(result BatchResult) Response {
	return Response{Meta: b.meta(), Success: true, Partial: true, Data: result}
}

// Failure builds an error envelope from a mapped error.
func (b *Builder) Failure(errInfo ErrorInfo) Response {
	return Response{Meta: b.meta(), Success: false, Error: &errInfo}
}

// RequestID returns the requestId minted for this call, for correlating
// the eventual audit row with the response envelope.
func (b *Builder) RequestID() string { return b.requestID }
