package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authenticate(ctx context.Context, handle, credential string) (*User, error)
	CreateSession(ctx context.Context, userID snowflake.ID, origin Origin) (*SessionToken, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	ResolveSession(ctx context.Context, rawToken string) (*Identity, error)
	DeleteSession(ctx context.Context, rawToken string) error
	UpdateLastAuthenticated(ctx context.Context, userID snowflake.ID) error

	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
	UpdateProfile(ctx context.Context, userID snowflake.ID, req ProfileUpdate) (*User, error)

	ListUsers(ctx context.Context, actor authorization.Actor, req ListUsersRequest) ([]User, error)
	AdminUpdateUser(ctx context.Context, actor authorization.Actor, userID snowflake.ID, req AdminUserUpdate) (*User, error)
	DeleteUser(ctx context.Context, actor authorization.Actor, userID snowflake.ID) error
}

type RegisterRequest struct {
	Username string
	Email    string
	FullName string
	Password string
}

type LoginRequest struct {
	Handle     string
	Credential string
	Origin     Origin
	// PreviousToken, when set, is deleted after a successful login.
	PreviousToken string
}

type SessionToken struct {
	RawToken  string
	SessionID snowflake.ID
	ExpiresAt time.Time
}

type LoginResult struct {
	User  *User
	Token SessionToken
}

// ProfileUpdate is the whitelist of fields a user may change on their own account.
// Role and activation state are deliberately absent.
type ProfileUpdate struct {
	Email    *string
	FullName *string
	Password *string
}

// AdminUserUpdate is the whitelist of fields an administrator may change.
type AdminUserUpdate struct {
	Email    *string
	FullName *string
	Password *string
	Role     *string
	IsActive *bool
}

type ListUsersRequest struct {
	Limit  int
	Offset int
}
