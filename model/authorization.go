package model

import (
	"time"

	"gorm.io/gorm"
)

// Authorization is a user's standing consent for one client inside one organization.
// Active only ever goes from true to false; a new consent creates a new row.
type Authorization struct {
	ID             uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID         uint      `gorm:"not null;index:idx_authorization_user_org"`
	OrganizationID uint      `gorm:"not null;index:idx_authorization_user_org"`
	ClientID       string    `gorm:"size:128;not null;index"`
	ClientName     string    `gorm:"size:128;not null"`
	Active         bool      `gorm:"not null;default:true;index"`
	CreatedAt      time.Time `gorm:"not null"`
	LastUsedAt     time.Time `gorm:"not null"`
}

func (a *Authorization) BeforeCreate(tx *gorm.DB) error {
	if a.ID == 0 {
		a.ID = GenerateID()
	}
	return nil
}

// AccessToken stores the hash of a short-lived bearer credential.
type AccessToken struct {
	ID              uint           `gorm:"primaryKey;autoIncrement:false"`
	TokenHash       string         `gorm:"size:64;not null;uniqueIndex"`
	AuthorizationID uint           `gorm:"not null;index"`
	Authorization   *Authorization `gorm:"foreignKey:AuthorizationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	ExpiresAt       time.Time      `gorm:"not null"`
	CreatedAt       time.Time      `gorm:"not null"`
}

func (t *AccessToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == 0 {
		t.ID = GenerateID()
	}
	return nil
}

// RefreshToken stores the hash of a long-lived credential used to mint access tokens.
// Revoked only ever goes from false to true.
type RefreshToken struct {
	ID              uint           `gorm:"primaryKey;autoIncrement:false"`
	TokenHash       string         `gorm:"size:64;not null;uniqueIndex"`
	AuthorizationID uint           `gorm:"not null;index"`
	Authorization   *Authorization `gorm:"foreignKey:AuthorizationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	ExpiresAt       time.Time      `gorm:"not null"`
	Revoked         bool           `gorm:"not null;default:false"`
	RevokedAt       *time.Time
	CreatedAt       time.Time `gorm:"not null"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == 0 {
		t.ID = GenerateID()
	}
	return nil
}
