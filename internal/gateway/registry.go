// Package gateway implements the two-entrypoint router — cleo_query and
// cleo_mutate — that dispatches a {domain, operation, params} envelope
// into the Domain Operations layer, per the pipeline
// internal/rpc/server_lifecycle_conn.go's connection loop feeds requests
// into: lookup, rate-limit, sanitise, audit-open, invoke, audit-close,
// envelope.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/domain/admin"
	"github.com/cleo-dev/cleo/internal/domain/lifecycledomain"
	"github.com/cleo-dev/cleo/internal/domain/release"
	"github.com/cleo-dev/cleo/internal/domain/session"
	"github.com/cleo-dev/cleo/internal/domain/taskwork"
	"github.com/cleo-dev/cleo/internal/domain/tasks"
	"github.com/cleo-dev/cleo/internal/types"
)

// Services bundles one constructed instance of every domain package the
// registry dispatches into.
type Services struct {
	Tasks     *tasks.Service
	TaskWork  *taskwork.Service
	Sessions  *session.Service
	Lifecycle *lifecycledomain.Service
	Admin     *admin.Service
	Release   *release.Service

	// ConfigDir is the project's .cleo/ directory, passed to
	// admin.Service.ConfigSet so config.json writes land next to the
	// rest of the project's persisted state.
	ConfigDir string
}

// handlerFunc implements one (domain, operation) pair. actor is the
// caller identity SanitizeParams left untouched (not a sanitised
// field), threaded through for audit attribution.
type handlerFunc func(ctx context.Context, params map[string]any, actor string) (any, error)

// routeEntry pairs a handler with the gateway (query|mutate) it is only
// reachable from, enforcing the same membership spec.md's operation-
// naming convention derives from the verb.
type routeEntry struct {
	gateway string
	handler handlerFunc
}

// decode remarshals params through encoding/json into out, the same
// loose (case-insensitive field name) binding net/http handlers commonly
// rely on; params have already passed through security.SanitizeParams.
func decode(params map[string]any, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func str(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func boolean(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func integer(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// buildRegistry wires every (domain, operation) pair spec.md names onto
// svc's methods. Query operations return data the handler builds
// directly; mutate operations may return nil alongside a nil error for
// void methods (envelope.Success(nil)).
func buildRegistry(svc *Services) map[string]routeEntry {
	reg := map[string]routeEntry{}

	reg["tasks.add"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		var p tasks.AddParams
		if err := decode(params, &p); err != nil {
			return nil, clerr.Wrap(clerr.CodeInvalidInput, clerr.ExitInvalidInput, "decode tasks.add params", err)
		}
		if p.CreatedBy == "" {
			p.CreatedBy = actor
		}
		return svc.Tasks.Add(ctx, p)
	}}

	reg["tasks.show"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.Show(ctx, str(params, "taskId"))
	}}

	reg["tasks.update"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		updates, _ := params["updates"].(map[string]any)
		return svc.Tasks.Update(ctx, str(params, "taskId"), updates, actor)
	}}

	reg["tasks.complete"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.Complete(ctx, str(params, "taskId"), actor)
	}}

	reg["tasks.delete"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Tasks.Delete(ctx, str(params, "taskId"), str(params, "reason"), boolean(params, "cascade"))
	}}

	reg["tasks.list"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		var f types.TaskFilter
		_ = decode(params, &f)
		return svc.Tasks.List(ctx, f)
	}}

	reg["tasks.find"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		var f types.TaskFilter
		_ = decode(params, &f)
		return svc.Tasks.Find(ctx, str(params, "query"), f)
	}}

	reg["tasks.archive"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.Archive(ctx, str(params, "taskId"), str(params, "reason"), actor)
	}}

	reg["tasks.stale"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		var f types.StaleFilter
		_ = decode(params, &f)
		return svc.Tasks.Stale(ctx, f)
	}}

	reg["tasks.claim"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.Claim(ctx, str(params, "taskId"), actor)
	}}

	reg["tasks.analyze"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.Analyze(ctx, integer(params, "limit"))
	}}

	reg["tasks.labels.list"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.ListLabels(ctx)
	}}

	reg["tasks.labels.show"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.ShowLabel(ctx, str(params, "label"))
	}}

	reg["tasks.labels.stats"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.Stats(ctx)
	}}

	reg["tasks.dependencies.add"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Tasks.AddDependency(ctx, str(params, "taskId"), str(params, "dependsOn"), actor)
	}}

	reg["tasks.dependencies.remove"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Tasks.RemoveDependency(ctx, str(params, "taskId"), str(params, "dependsOn"))
	}}

	reg["tasks.dependencies.tree"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.DependencyTree(ctx, str(params, "taskId"))
	}}

	reg["tasks.dependencies.cycles"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.DetectCycles(ctx)
	}}

	reg["tasks.relations.add"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Tasks.AddRelation(ctx, str(params, "taskId"), str(params, "relatedTo"), types.RelationType(str(params, "kind")))
	}}

	reg["tasks.relations.list"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.ListRelations(ctx, str(params, "taskId"))
	}}

	reg["tasks.relations.suggest"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.Suggest(ctx, str(params, "taskId"))
	}}

	reg["tasks.relations.discover"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Tasks.Discover(ctx, str(params, "taskId"), str(params, "query"))
	}}

	reg["taskwork.focus.start"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.TaskWork.Start(ctx, str(params, "sessionId"), str(params, "taskId"))
	}}

	reg["taskwork.focus.stop"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.TaskWork.Stop(ctx, str(params, "sessionId"))
	}}

	reg["taskwork.focus.get"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.TaskWork.Current(ctx, str(params, "sessionId"))
	}}

	reg["taskwork.focus.history"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.TaskWork.History(ctx, str(params, "sessionId"), integer(params, "limit"))
	}}

	reg["session.start"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		var p session.StartParams
		if err := decode(params, &p); err != nil {
			return nil, clerr.Wrap(clerr.CodeInvalidInput, clerr.ExitInvalidInput, "decode session.start params", err)
		}
		if p.Agent == "" {
			p.Agent = actor
		}
		return svc.Sessions.Start(ctx, p)
	}}

	reg["session.end"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Sessions.End(ctx, str(params, "sessionId"), str(params, "note"), boolean(params, "requireNote"))
	}}

	reg["session.close"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Sessions.Close(ctx, str(params, "sessionId"))
	}}

	reg["session.status"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Sessions.Status(ctx)
	}}

	reg["session.show"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Sessions.Show(ctx, str(params, "sessionId"))
	}}

	reg["session.list"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Sessions.List(ctx, str(params, "status"), integer(params, "limit"))
	}}

	reg["session.suspend"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Sessions.Suspend(ctx, str(params, "sessionId"))
	}}

	reg["session.resume"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Sessions.Resume(ctx, str(params, "sessionId"))
	}}

	reg["session.switch"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Sessions.Switch(ctx, str(params, "sessionId"))
	}}

	reg["lifecycle.start"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Lifecycle.Start(ctx, str(params, "taskId"))
	}}

	reg["lifecycle.progress"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Lifecycle.Progress(ctx, str(params, "taskId"), boolean(params, "force"))
	}}

	reg["lifecycle.goto"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Lifecycle.GoTo(ctx, str(params, "taskId"), types.StageName(str(params, "target")), boolean(params, "force"))
	}}

	reg["lifecycle.skip"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Lifecycle.Skip(ctx, str(params, "taskId"), str(params, "reason"), boolean(params, "force"))
	}}

	reg["lifecycle.block"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Lifecycle.Block(ctx, str(params, "taskId"), str(params, "reason"))
	}}

	reg["lifecycle.unblock"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Lifecycle.Unblock(ctx, str(params, "taskId"))
	}}

	reg["lifecycle.record"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		checkedBy := str(params, "checkedBy")
		if checkedBy == "" {
			checkedBy = actor
		}
		return nil, svc.Lifecycle.RecordGate(ctx, str(params, "taskId"), str(params, "gate"),
			types.GateResultValue(str(params, "result")), checkedBy, str(params, "details"), str(params, "reason"))
	}}

	reg["lifecycle.evidence.record"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Lifecycle.AddEvidence(ctx, str(params, "taskId"), str(params, "uri"),
			types.EvidenceType(str(params, "kind")), str(params, "description"))
	}}

	reg["system.dashboard"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Admin.Dashboard(ctx)
	}}

	reg["system.health"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Admin.Health(ctx)
	}}

	reg["system.config.get"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Admin.ConfigGet(str(params, "key"))
	}}

	reg["system.config.set"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Admin.ConfigSet(svc.ConfigDir, str(params, "key"), params["value"])
	}}

	reg["system.config.all"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Admin.ConfigAll()
	}}

	reg["admin.purge-tombstones"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		days := integer(params, "retentionDays")
		return svc.Admin.PurgeTombstones(ctx, time.Duration(days)*24*time.Hour)
	}}

	reg["admin.compact"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return nil, svc.Admin.Compact(ctx)
	}}

	reg["admin.compact-stats"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Admin.CompactStats(ctx, integer(params, "tombstoned"))
	}}

	reg["admin.safe-stop"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return svc.Admin.SafeStop(ctx, str(params, "note"))
	}}

	reg["release.changelog"] = routeEntry{"query", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		since, _ := time.Parse(time.RFC3339, str(params, "since"))
		return svc.Release.Changelog(ctx, since)
	}}

	reg["release.bump"] = routeEntry{"mutate", func(ctx context.Context, params map[string]any, actor string) (any, error) {
		return release.Bump(str(params, "current"), release.BumpKind(str(params, "kind")))
	}}

	return reg
}
