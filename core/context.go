package core

import "context"

type adminUserKey struct{}

// WithAdminUserID stores the id of the signed in admin user.
func WithAdminUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, adminUserKey{}, userID)
}

func AdminUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(adminUserKey{}).(int64)
	return userID, ok && userID > 0
}
