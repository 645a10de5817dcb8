package shared

import (
	"context"

	"github.com/usergate/usergate/internal/rbac"
)

type callerContextKey struct{}

type credentialContextKey struct{}

// ContextWithCaller stores the authenticated caller in context.
func ContextWithCaller(ctx context.Context, caller *rbac.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller, or nil for anonymous requests.
func CallerFromContext(ctx context.Context) *rbac.Caller {
	caller, _ := ctx.Value(callerContextKey{}).(*rbac.Caller)
	return caller
}

// ContextWithCredential stores the raw bearer credential in context.
func ContextWithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialContextKey{}, credential)
}

// CredentialFromContext returns the raw bearer credential or "".
func CredentialFromContext(ctx context.Context) string {
	credential, _ := ctx.Value(credentialContextKey{}).(string)
	return credential
}
