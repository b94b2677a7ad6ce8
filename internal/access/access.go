// Package access is the single ownership policy for every owned resource.
// Admins reach everything; other principals reach only what they own.
package access

import (
	"context"
	"errors"

	"stylegen/internal/domain"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   domain.UserRole
}

func (p Principal) IsAdmin() bool { return p.Role == domain.UserRoleAdmin }

// Anonymous reports whether the principal carries no identity.
func (p Principal) Anonymous() bool { return p.UserID == "" }

// Owned is implemented by every resource that belongs to a user. An empty
// owner marks a global resource.
type Owned interface {
	Owner() string
}

// Authorize decides whether p may act on a resource owned by ownerID.
func Authorize(p Principal, ownerID string) error {
	switch {
	case p.Anonymous():
		return domain.ErrUnauthorized
	case p.IsAdmin(), ownerID == p.UserID:
		return nil
	default:
		return domain.ErrForbidden
	}
}

// AuthorizeRead is Authorize with global resources readable by everyone.
func AuthorizeRead(p Principal, ownerID string) error {
	if ownerID == "" && !p.Anonymous() {
		return nil
	}
	return Authorize(p, ownerID)
}

// Load fetches a resource and applies Authorize to it.
func Load[T Owned](ctx context.Context, p Principal, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.Anonymous() {
		return zero, domain.ErrUnauthorized
	}
	v, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	if err := Authorize(p, v.Owner()); err != nil {
		return zero, err
	}
	return v, nil
}

// LoadReadable is Load with AuthorizeRead semantics.
func LoadReadable[T Owned](ctx context.Context, p Principal, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.Anonymous() {
		return zero, domain.ErrUnauthorized
	}
	v, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	if err := AuthorizeRead(p, v.Owner()); err != nil {
		return zero, err
	}
	return v, nil
}

// RequireAdmin fails for every principal without the admin role.
func RequireAdmin(p Principal) error {
	if p.Anonymous() {
		return domain.ErrUnauthorized
	}
	if !p.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

// OwnerScope returns the owner filter for listings: admins see every owner.
func OwnerScope(p Principal) string {
	if p.IsAdmin() {
		return ""
	}
	return p.UserID
}

type ctxKey struct{}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && !p.Anonymous()
}

// IsDenied reports whether err is one of the policy's refusals.
func IsDenied(err error) bool {
	return errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrUnauthorized)
}
