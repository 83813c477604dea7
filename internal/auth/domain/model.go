// Package domain contains core types for the identity and session store.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
)

type Role = string

const (
	RoleUser  Role = authorization.RoleUser
	RoleAdmin Role = authorization.RoleAdmin
)

// User represents a system user account.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username     string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"username"`
	Email        string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	FullName     string       `gorm:"type:varchar(255);not null;default:''" json:"full_name"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	Role         Role         `gorm:"type:varchar(16);not null" json:"role"`
	IsActive     bool         `gorm:"not null" json:"is_active"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u User) Actor() authorization.Actor {
	return authorization.Actor{UserID: u.ID, Role: u.Role}
}

// Session is a persisted login session. Only a digest of the token is stored.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:varchar(64);not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:varchar(64)"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
}

func (Session) TableName() string { return "sessions" }

// Identity is what a valid session resolves to.
type Identity struct {
	UserID    snowflake.ID
	Username  string
	Role      Role
	SessionID snowflake.ID
	ExpiresAt time.Time
}

func (i Identity) Actor() authorization.Actor {
	return authorization.Actor{UserID: i.UserID, Role: i.Role}
}

// Origin describes where a login came from.
type Origin struct {
	IPAddress string
	UserAgent string
}
