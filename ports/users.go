package ports

import (
	"context"

	"github.com/layer-3/webnote/core"
)

// UserStore persists local user records.
// Lookups return core.ErrUserNotFound when no record matches.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*core.User, error)
	GetByName(ctx context.Context, name string) (*core.User, error)

	// GetByExternalSubject finds the user linked to subject for the given provider
	GetByExternalSubject(ctx context.Context, provider core.PrincipalType, subject string) (*core.User, error)

	// Save inserts the user when user.ID is empty, assigning a fresh id, and updates it otherwise
	Save(ctx context.Context, user *core.User) (string, error)
}
