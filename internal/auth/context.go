package auth

import "context"

const RoleAdmin = "admin"

type UserContext struct {
	MerchantID string
	UserID     string
	Role       string
}

type userKey struct{}

func WithUser(ctx context.Context, u UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func FromContext(ctx context.Context) (UserContext, bool) {
	u, ok := ctx.Value(userKey{}).(UserContext)
	return u, ok
}

// GetMerchantID returns the tenant the request acts for, or "" when the
// request was not authenticated.
func GetMerchantID(ctx context.Context) string {
	u, _ := FromContext(ctx)
	return u.MerchantID
}

func GetUserID(ctx context.Context) string {
	u, _ := FromContext(ctx)
	return u.UserID
}
