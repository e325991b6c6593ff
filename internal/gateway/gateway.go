package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cleo-dev/cleo/internal/audit"
	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/security"
	"github.com/cleo-dev/cleo/internal/types"
)

const (
	gatewayQuery  = "query"
	gatewayMutate = "mutate"
)

// Gateway is the two-entrypoint router cleo_query and cleo_mutate both
// dial into, generalized from the teacher's single Unix-socket request
// loop (internal/rpc/server_lifecycle_conn.go's handleConnection) into
// an explicit read/write split: Query only ever reaches handlers the
// registry marked "query", Mutate only "mutate" ones.
type Gateway struct {
	registry    map[string]routeEntry
	limiter     *security.Limiter
	audit       *audit.Logger
	log         *zap.Logger
	projectRoot string
}

// New builds a Gateway dispatching into svc's domain services. auditLog
// and log may be nil (a no-op logger and an unaudited gateway are both
// valid for tests); limiter may be nil to disable rate limiting.
func New(svc *Services, limiter *security.Limiter, auditLog *audit.Logger, log *zap.Logger, projectRoot string) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		registry:    buildRegistry(svc),
		limiter:     limiter,
		audit:       auditLog,
		log:         log,
		projectRoot: projectRoot,
	}
}

// Query dispatches a read-only call.
func (g *Gateway) Query(ctx context.Context, domain, operation string, params map[string]any, actor string) audit.Response {
	return g.dispatch(ctx, gatewayQuery, domain, operation, params, actor)
}

// Mutate dispatches a write call.
func (g *Gateway) Mutate(ctx context.Context, domain, operation string, params map[string]any, actor string) audit.Response {
	return g.dispatch(ctx, gatewayMutate, domain, operation, params, actor)
}

// dispatch implements the gateway's seven-step pipeline: lookup,
// rate-limit, sanitize, audit-open, invoke, audit-close, envelope.
func (g *Gateway) dispatch(ctx context.Context, gatewayName, domain, operation string, params map[string]any, actor string) audit.Response {
	b := audit.NewBuilder(gatewayName, domain, operation)

	// 1. lookup
	key := domain + "." + operation
	entry, ok := g.registry[key]
	if !ok || entry.gateway != gatewayName {
		return b.Failure(mapError(clerr.New(clerr.CodeUnknownOperation, clerr.ExitInvalidInput,
			"unknown operation: "+gatewayName+" "+key)))
	}

	// 2. rate limit
	if g.limiter != nil {
		cat := security.CategoryFor(gatewayName, domain, operation)
		check := g.limiter.Check(cat)
		if !check.Allowed {
			err := clerr.New(clerr.CodeRateLimitExceeded, clerr.ExitGeneral,
				"rate limit exceeded for "+string(cat)).WithDetails(map[string]any{"retryAfter": check.ResetMs})
			return b.Failure(mapError(err))
		}
	}

	// 3. sanitize
	if params == nil {
		params = map[string]any{}
	}
	if err := security.SanitizeParams(params, g.projectRoot); err != nil {
		return b.Failure(mapError(err))
	}

	// 4. audit-open: snapshot what identifies the aggregate before the
	// call runs, for the audit row's Before/TaskID fields.
	taskID, _ := params["taskId"].(string)

	// 5. invoke
	start := time.Now()
	data, err := entry.handler(ctx, params, actor)
	duration := time.Since(start)

	// 6/7. audit-close + envelope
	if err != nil {
		g.recordAudit(ctx, domain, operation, taskID, actor, nil, err)
		g.log.Warn("gateway call failed", zap.String("domain", domain), zap.String("operation", operation), zap.Error(err))
		return b.Failure(mapError(err))
	}

	g.recordAudit(ctx, domain, operation, taskID, actor, data, nil)
	g.log.Debug("gateway call succeeded", zap.String("domain", domain), zap.String("operation", operation), zap.Duration("duration", duration))
	return b.Success(data)
}

// recordAudit appends one audit row, swallowing the logging error itself
// (a failed audit write must never mask the call's own result) but
// surfacing it at warn level.
func (g *Gateway) recordAudit(ctx context.Context, domain, operation, taskID, actor string, result any, callErr error) {
	if g.audit == nil {
		return
	}
	entry := types.AuditEntry{
		Action: domain + "." + operation,
		TaskID: taskID,
		Actor:  actor,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	} else if result != nil {
		entry.After = map[string]any{"result": result}
	}
	if err := g.audit.Log(ctx, entry); err != nil {
		g.log.Warn("audit log append failed", zap.Error(err))
	}
}

// mapError converts any error a handler returned into an ErrorInfo
// envelope field: a *clerr.CleoError carries its own code/exit/fix, an
// unrecognised error becomes E_INTERNAL, exit code 1.
func mapError(err error) audit.ErrorInfo {
	if ce, ok := err.(*clerr.CleoError); ok {
		return audit.ErrorInfo{
			Code:         string(ce.Code),
			ExitCode:     ce.ExitCode,
			Message:      ce.Message,
			Details:      ce.Details,
			Fix:          ce.Fix,
			Alternatives: alternativeStrings(ce.Alternatives),
		}
	}
	internal := clerr.Internal(err)
	return audit.ErrorInfo{
		Code:     string(internal.Code),
		ExitCode: internal.ExitCode,
		Message:  internal.Message,
	}
}

func alternativeStrings(alts []clerr.Alternative) []string {
	if len(alts) == 0 {
		return nil
	}
	out := make([]string, len(alts))
	for i, a := range alts {
		out[i] = a.Action + ": " + a.Command
	}
	return out
}
