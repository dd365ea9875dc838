// Package user serves the authenticated caller's own profile.
package user

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
)

type Service struct {
	uow    store.UnitOfWorkFactory
	logger *slog.Logger
}

func NewService(uow store.UnitOfWorkFactory, logger *slog.Logger) *Service {
	return &Service{
		uow:    uow,
		logger: logger,
	}
}

// Profile loads userID with its role permissions and assigned branch.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	uow := s.uow.Create()

	u, err := uow.Users().GetWithPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive
	}

	p := &Profile{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		PhoneNumber: u.PhoneNumber,
		Permissions: []string{},
	}
	if u.Role != nil {
		p.Role = u.Role.Name
		for _, perm := range u.Role.Permissions {
			p.Permissions = append(p.Permissions, perm.Name)
		}
	}

	b, err := uow.Branches().GetEmployeeBranch(ctx, userID)
	switch {
	case err == nil:
		p.Branch = b
	case !errors.Is(err, internal.ErrBranchNotFound):
		return nil, err
	}

	s.logger.DebugContext(ctx, "profile loaded", "user_id", userID, "role", p.Role)
	return p, nil
}
