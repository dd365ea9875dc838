package postgres

import (
	"context"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, mapNotFound(err, internal.ErrUserNotFound)
	}
	return &u, nil
}

func (r *UserRepository) GetWithPermissions(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Preload("Role.Permissions").
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		return nil, mapNotFound(err, internal.ErrUserNotFound)
	}
	return &u, nil
}

type AddressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) GetByID(ctx context.Context, id int64) (*user.Address, error) {
	var a user.Address
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, mapNotFound(err, internal.ErrAddressNotFound)
	}
	return &a, nil
}
