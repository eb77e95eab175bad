package auth

import (
	"context"
	stderrors "errors"

	"github.com/victornm/quesgenie/internal/errors"
)

// Identity is the authenticated user of a request.
type Identity struct {
	UserID string
	Email  string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

var errNoIdentity = stderrors.New("no identity in context")

// UserID returns the id of the logged in user, or an Unauthenticated error.
func UserID(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", errors.Unauthenticated(errNoIdentity)
	}
	return id.UserID, nil
}
