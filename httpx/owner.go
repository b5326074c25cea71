package httpx

import "context"

type ctxKey int

const ownerKey ctxKey = iota

// WithOwner records the authenticated requester on the context.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

func Owner(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey).(string)
	return id, ok && id != ""
}
