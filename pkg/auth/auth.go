package auth

import (
	"context"
	"net/http"
)

// Identity is the (user, role) pair supplied by the upstream authentication
// collaborator. The gateway terminates the bearer credential and forwards the
// resolved identity in headers; this service trusts those headers.
type Identity struct {
	UserID string
	Role   string
}

const (
	RoleAdmin = "admin"

	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

type contextKey string

const identityKey contextKey = "identity"

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// Middleware copies the forwarded identity headers into the request context.
// Missing headers yield a zero Identity; handlers decide whether anonymous
// access is acceptable per operation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := Identity{
				UserID: r.Header.Get(HeaderUserID),
				Role:   r.Header.Get(HeaderRole),
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}

// WithIdentity returns a context carrying the given identity. Used by tests
// and non-HTTP callers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
