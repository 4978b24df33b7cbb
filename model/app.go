package model

import "time"

// The models below belong to the notes application that embeds the authorization
// server. They are read here to resolve principals and to serve tools.

type User struct {
	ID        uint   `gorm:"primarykey"`
	Username  string `gorm:"uniqueIndex;size:32;not null"`
	FullName  string `gorm:"size:64;not null"`
	Email     string `gorm:"uniqueIndex;size:256;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Organization struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"size:128;not null"`
	Slug      string `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Membership struct {
	UserID         uint          `gorm:"primaryKey;autoIncrement:false"`
	OrganizationID uint          `gorm:"primaryKey;autoIncrement:false;index"`
	Role           string        `gorm:"size:32;not null;default:member"`
	User           *User         `gorm:"foreignKey:UserID;references:ID"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID;references:ID"`
	CreatedAt      time.Time
}

type Note struct {
	ID             uint      `gorm:"primarykey"`
	OrganizationID uint      `gorm:"not null;index"`
	AuthorID       uint      `gorm:"not null;index"`
	Title          string    `gorm:"size:256;not null"`
	Content        string    `gorm:"type:text;not null"`
	Public         bool      `gorm:"not null;default:false"`
	Author         *User     `gorm:"foreignKey:AuthorID;references:ID"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

type NoteShare struct {
	NoteID    uint `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}
