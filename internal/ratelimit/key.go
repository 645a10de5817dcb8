package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Scope distinguishes what a key is derived from.
type Scope string

const (
	ScopeOrigin    Scope = "origin"
	ScopePrincipal Scope = "principal"
)

// Anonymous is the principal value used when a request carries no credential.
const Anonymous = "anonymous"

// Key identifies one counter.
type Key struct {
	Scope Scope
	Value string
}

// OriginKey derives the origin-scoped key from a network address.
func OriginKey(origin string) Key {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "unknown"
	}
	return Key{Scope: ScopeOrigin, Value: origin}
}

// PrincipalKey derives the principal-scoped key from a caller credential.
// The credential itself is never stored, only its digest.
func PrincipalKey(credential string) Key {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Key{Scope: ScopePrincipal, Value: Anonymous}
	}
	sum := sha256.Sum256([]byte(credential))
	return Key{Scope: ScopePrincipal, Value: hex.EncodeToString(sum[:16])}
}

// String renders the key the way it is stored, prefixed by ns.
func (k Key) String() string {
	prefix := "token:"
	if k.Scope == ScopeOrigin {
		prefix = "ip:"
	}
	return prefix + k.Value
}

func storageKey(ns string, k Key) string {
	if ns == "" {
		return k.String()
	}
	return ns + ":" + k.String()
}
