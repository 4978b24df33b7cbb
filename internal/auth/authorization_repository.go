package auth

import (
	"context"
	"time"

	"github.com/khanghh/mcpauth/model"
	"gorm.io/gorm"
)

type AuthorizationRepository interface {
	WithTx(tx *gorm.DB) AuthorizationRepository
	Transaction(ctx context.Context, fn func(repo AuthorizationRepository) error) error
	CreateAuthorization(ctx context.Context, authz *model.Authorization) error
	CreateAccessToken(ctx context.Context, token *model.AccessToken) error
	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	FindAuthorization(ctx context.Context, authzID uint) (*model.Authorization, error)
	FindActiveAuthorizations(ctx context.Context, userID uint) ([]model.Authorization, error)
	FindActiveAuthorizationsByOrg(ctx context.Context, userID uint, orgID uint) ([]model.Authorization, error)
	FindAccessToken(ctx context.Context, tokenHash string) (*model.AccessToken, error)
	FindRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	DeactivateAuthorization(ctx context.Context, authzID uint) (int64, error)
	RevokeRefreshTokens(ctx context.Context, authzID uint, revokedAt time.Time) (int64, error)
	TouchAuthorization(ctx context.Context, authzID uint, usedAt time.Time) error
}

type authorizationRepository struct {
	db *gorm.DB
}

func (r *authorizationRepository) WithTx(tx *gorm.DB) AuthorizationRepository {
	return NewAuthorizationRepository(tx)
}

func (r *authorizationRepository) Transaction(ctx context.Context, fn func(repo AuthorizationRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func (r *authorizationRepository) CreateAuthorization(ctx context.Context, authz *model.Authorization) error {
	return r.db.WithContext(ctx).Create(authz).Error
}

func (r *authorizationRepository) CreateAccessToken(ctx context.Context, token *model.AccessToken) error {
	return r.db.WithContext(ctx).Omit("Authorization").Create(token).Error
}

func (r *authorizationRepository) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	return r.db.WithContext(ctx).Omit("Authorization").Create(token).Error
}

func (r *authorizationRepository) FindAuthorization(ctx context.Context, authzID uint) (*model.Authorization, error) {
	var authz model.Authorization
	if err := r.db.WithContext(ctx).First(&authz, authzID).Error; err != nil {
		return nil, err
	}
	return &authz, nil
}

func (r *authorizationRepository) FindActiveAuthorizations(ctx context.Context, userID uint) ([]model.Authorization, error) {
	var authzs []model.Authorization
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at DESC").
		Find(&authzs).Error
	return authzs, err
}

func (r *authorizationRepository) FindActiveAuthorizationsByOrg(ctx context.Context, userID uint, orgID uint) ([]model.Authorization, error) {
	var authzs []model.Authorization
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ? AND active = ?", userID, orgID, true).
		Find(&authzs).Error
	return authzs, err
}

func (r *authorizationRepository) FindAccessToken(ctx context.Context, tokenHash string) (*model.AccessToken, error) {
	var token model.AccessToken
	err := r.db.WithContext(ctx).
		Preload("Authorization").
		Where("token_hash = ?", tokenHash).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *authorizationRepository) FindRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.WithContext(ctx).
		Preload("Authorization").
		Where("token_hash = ?", tokenHash).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// DeactivateAuthorization flips an active authorization to inactive and
// returns the number of rows changed, zero when it was already inactive.
func (r *authorizationRepository) DeactivateAuthorization(ctx context.Context, authzID uint) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.Authorization{}).
		Where("id = ? AND active = ?", authzID, true).
		Update("active", false)
	return ret.RowsAffected, ret.Error
}

func (r *authorizationRepository) RevokeRefreshTokens(ctx context.Context, authzID uint, revokedAt time.Time) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("authorization_id = ? AND revoked = ?", authzID, false).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": revokedAt})
	return ret.RowsAffected, ret.Error
}

func (r *authorizationRepository) TouchAuthorization(ctx context.Context, authzID uint, usedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Authorization{}).
		Where("id = ?", authzID).
		UpdateColumn("last_used_at", usedAt).Error
}

func NewAuthorizationRepository(db *gorm.DB) AuthorizationRepository {
	return &authorizationRepository{db}
}
