package users

import (
	"context"
	"strings"

	"github.com/khanghh/mcpauth/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	FindUser(ctx context.Context, userID uint) (*model.User, error)
	FindOrganization(ctx context.Context, orgID uint) (*model.Organization, error)
	FindMembership(ctx context.Context, userID uint, orgID uint) (*model.Membership, error)
	FindMemberships(ctx context.Context, userID uint) ([]model.Membership, error)
	SearchMembers(ctx context.Context, orgID uint, keyword string, limit int) ([]model.Membership, error)
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return NewUserRepository(tx)
}

func (r *userRepository) FindUser(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindOrganization(ctx context.Context, orgID uint) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).First(&org, orgID).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *userRepository) FindMembership(ctx context.Context, userID uint, orgID uint) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ?", userID, orgID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *userRepository) FindMemberships(ctx context.Context, userID uint) ([]model.Membership, error) {
	var memberships []model.Membership
	err := r.db.WithContext(ctx).
		Preload("Organization").
		Where("user_id = ?", userID).
		Order("organization_id").
		Find(&memberships).Error
	return memberships, err
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func (r *userRepository) SearchMembers(ctx context.Context, orgID uint, keyword string, limit int) ([]model.Membership, error) {
	var memberships []model.Membership
	tx := r.db.WithContext(ctx).
		Joins("User").
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "organization_id"}, Value: orgID})
	if keyword != "" {
		pattern := "%" + strings.ToLower(escapeLike(keyword)) + "%"
		tx = tx.Where("(LOWER(`User`.username) LIKE ? ESCAPE '!' OR LOWER(`User`.full_name) LIKE ? ESCAPE '!' OR LOWER(`User`.email) LIKE ? ESCAPE '!')",
			pattern, pattern, pattern)
	}
	err := tx.Order("`User`.username").Limit(limit).Find(&memberships).Error
	return memberships, err
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db}
}
