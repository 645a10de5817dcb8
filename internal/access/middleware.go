package access

import (
	"net"
	"net/http"
	"strings"

	"github.com/usergate/usergate/internal/platform/httpx"
	"github.com/usergate/usergate/internal/rbac"
	"github.com/usergate/usergate/internal/shared"
)

// TargetFunc extracts the target identity from a request. It returns nil
// when the request carries none.
type TargetFunc func(*http.Request) *string

// QueryTarget reads the target from a query parameter. An empty value still
// counts as a target so that ownership can deny it.
func QueryTarget(param string) TargetFunc {
	return func(r *http.Request) *string {
		value := strings.TrimSpace(r.URL.Query().Get(param))
		return &value
	}
}

// Gate enforces the decision for action before next runs. Nothing about the
// request body or the target's existence is consulted.
func (e *Evaluator) Gate(action rbac.Action, target TargetFunc) func(http.Handler) http.Handler {
	rule := rbac.MustLookup(action)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := Request{
				Action:     action,
				Caller:     shared.CallerFromContext(r.Context()),
				Origin:     Origin(r),
				Credential: shared.CredentialFromContext(r.Context()),
			}
			if target != nil {
				req.Target = target(r)
			}
			decision := e.Evaluate(r.Context(), req)
			if decision == Allowed {
				next.ServeHTTP(w, r)
				return
			}
			if decision == DeniedRateLimited {
				httpx.RetryAfter(w, rule.RateLimit.Window)
			}
			httpx.RespondError(w, decision.Err())
		})
	}
}

// Origin returns the network origin of r. It expects RealIP to have already
// rewritten RemoteAddr from forwarding headers.
func Origin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
