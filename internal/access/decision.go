package access

import "github.com/usergate/usergate/internal/shared"

// Decision is the outcome of evaluating one inbound action.
type Decision int

const (
	Allowed Decision = iota
	DeniedUnauthenticated
	DeniedForbidden
	DeniedRateLimited
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedUnauthenticated:
		return "unauthenticated"
	case DeniedForbidden:
		return "forbidden"
	case DeniedRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Err maps a denial onto the shared error sentinels. Allowed yields nil.
func (d Decision) Err() error {
	switch d {
	case Allowed:
		return nil
	case DeniedUnauthenticated:
		return shared.ErrUnauthenticated
	case DeniedRateLimited:
		return shared.ErrRateLimited
	default:
		return shared.ErrForbidden
	}
}
