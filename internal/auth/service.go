// Package auth validates bearer tokens and answers capability checks from
// the role and permission tables.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/user"
)

type UserRepository interface {
	GetWithPermissions(ctx context.Context, id int64) (*user.User, error)
}

// Principal is the caller as the read paths need to see it.
type Principal struct {
	UserID      int64
	Email       string
	RoleName    string
	Permissions []string
}

func (p *Principal) IsSuperAdmin() bool {
	return p.RoleName == user.SuperAdminRole
}

type Authorizer struct {
	users  UserRepository
	logger *slog.Logger
}

func NewAuthorizer(users UserRepository, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		users:  users,
		logger: logger,
	}
}

// Principal loads the active user with its role. A missing or inactive user
// is Unauthorized.
func (a *Authorizer) Principal(ctx context.Context, userID int64) (*Principal, error) {
	u, err := a.users.GetWithPermissions(ctx, userID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.NewUnauthorizedError("User not found", internal.ErrCodeUserNotFound)
		}
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive
	}

	p := &Principal{UserID: u.ID, Email: u.Email}
	if u.Role != nil {
		p.RoleName = u.Role.Name
		for _, perm := range u.Role.Permissions {
			p.Permissions = append(p.Permissions, perm.Name)
		}
	}
	return p, nil
}

func (a *Authorizer) Check(ctx context.Context, userID int64, permissions []string, mode Mode) error {
	_, err := a.Authorize(ctx, userID, permissions, mode)
	return err
}

// Authorize is Check that also hands back the principal, for callers that
// scope their reads by role.
func (a *Authorizer) Authorize(ctx context.Context, userID int64, permissions []string, mode Mode) (*Principal, error) {
	p, err := a.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !satisfies(p.Permissions, permissions, mode) {
		a.logger.WarnContext(ctx, "access denied: insufficient permissions",
			"user_id", userID,
			"required_permissions", permissions,
			"user_permissions", p.Permissions)
		return nil, internal.ErrInsufficientPermissions
	}
	return p, nil
}
