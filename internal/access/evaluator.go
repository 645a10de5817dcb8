// Package access composes the rate limiter, the role and permission guards
// and the ownership checker into a single decision per inbound action, and
// trims outgoing records to each action's field allow-list.
package access

import (
	"context"
	"log/slog"

	"github.com/usergate/usergate/internal/ratelimit"
	"github.com/usergate/usergate/internal/rbac"
)

// Request describes one inbound action.
type Request struct {
	Action rbac.Action
	// Caller is nil for anonymous requests.
	Caller *rbac.Caller
	// Target is the identity acted upon; nil when the action has none.
	Target     *string
	Origin     string
	Credential string
}

// Recorder receives one observation per decision.
type Recorder interface {
	ObserveDecision(action, decision string)
}

// Evaluator runs the fixed enforcement pipeline.
type Evaluator struct {
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	recorder Recorder
}

// NewEvaluator builds an Evaluator. Logger and recorder are optional.
func NewEvaluator(limiter *ratelimit.Limiter, logger *slog.Logger, recorder Recorder) *Evaluator {
	if limiter == nil {
		limiter = ratelimit.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{limiter: limiter, logger: logger, recorder: recorder}
}

// Evaluate decides whether req may proceed. The order is fixed: rate limit,
// caller presence, role guard, permission guard, ownership. The first denial
// wins. Unknown actions panic.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) Decision {
	decision := e.evaluate(ctx, req)
	if e.recorder != nil {
		e.recorder.ObserveDecision(string(req.Action), decision.String())
	}
	if decision != Allowed {
		e.logger.DebugContext(ctx, "access denied",
			slog.String("action", string(req.Action)),
			slog.String("decision", decision.String()),
			slog.String("origin", req.Origin),
			slog.Bool("anonymous", req.Caller == nil),
		)
	}
	return decision
}

func (e *Evaluator) evaluate(ctx context.Context, req Request) Decision {
	rule := rbac.MustLookup(req.Action)

	if rule.RateLimit.Max > 0 {
		if !e.limiter.AllowRequest(ctx, string(req.Action), req.Origin, req.Credential, rule.RateLimit.Window, rule.RateLimit.Max) {
			return DeniedRateLimited
		}
	}

	if rule.RequiresCaller() && req.Caller == nil {
		return DeniedUnauthenticated
	}
	if !rbac.AllowRole(req.Action, req.Caller) {
		return DeniedForbidden
	}
	if !rbac.AllowPermission(req.Action, req.Caller) {
		return DeniedForbidden
	}
	if rule.Ownership != nil {
		if req.Target == nil {
			return DeniedForbidden
		}
		if !rbac.CanAct(req.Caller, *req.Target, rule.Ownership.Broad, rule.Ownership.Own) {
			return DeniedForbidden
		}
	}
	return Allowed
}

// Project trims record to the field allow-list registered for action.
func (e *Evaluator) Project(action rbac.Action, record map[string]any) Projection {
	return Project(record, rbac.MustLookup(action).Fields)
}

// ProjectAll projects every record for action.
func (e *Evaluator) ProjectAll(action rbac.Action, records []map[string]any) []Projection {
	fields := rbac.MustLookup(action).Fields
	out := make([]Projection, 0, len(records))
	for _, record := range records {
		out = append(out, Project(record, fields))
	}
	return out
}
