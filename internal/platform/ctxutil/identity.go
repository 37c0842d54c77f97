package ctxutil

import "context"

type identityKey struct{}

// Identity is the opaque authenticated caller handed over by the auth collaborator.
type Identity struct {
	UserID string
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok && id != nil && id.UserID != "" {
		return id
	}
	return nil
}
