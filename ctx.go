package authsession

import "context"

type managerCtxKey struct{}

type userCtxKey struct{}

// WithManager returns a context carrying the Manager built by the
// composition root
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerCtxKey{}, m)
}

// ManagerFromContext returns the Manager stored with WithManager
func ManagerFromContext(ctx context.Context) (*Manager, bool) {
	m, ok := ctx.Value(managerCtxKey{}).(*Manager)
	return m, ok && m != nil
}

// WithUser returns a context carrying a copy of user
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user.Clone())
}

// UserFromContext returns the user stored with WithUser
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(*User)
	return u, ok && u != nil
}

// Can reports whether the user in ctx holds at least minRole
func Can(ctx context.Context, minRole Role) bool {
	user, ok := UserFromContext(ctx)
	if !ok || !user.IsActive {
		return false
	}
	return user.Role.IsAtLeast(minRole)
}
