package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/internal/auth/password"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/smallbiznis/invoiceflow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	bootstrapLockName = "seed:bootstrap-admin"
	bootstrapLockTTL  = 30 * time.Second
	bootstrapName     = "Administrator"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	GenID  *snowflake.Node
	Users  authdomain.Repository
	Clock  clock.Clock
	Locker *ratelimit.Locker `optional:"true"`
}

// EnsureBootstrapAdmin creates the configured administrator when the users
// table is empty. It is a no-op when no bootstrap credentials are set or any
// user already exists, so it is safe on every start.
func EnsureBootstrapAdmin(ctx context.Context, p Params) error {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("seed")

	admin := p.Config.BootstrapAdmin
	if !admin.Enabled() {
		return nil
	}
	if p.Users == nil || p.GenID == nil {
		return errors.New("seed requires a user repository and id generator")
	}

	lease, err := p.Locker.Acquire(ctx, bootstrapLockName, bootstrapLockTTL)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		log.Info("bootstrap admin seeding held by another replica")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			log.Warn("release bootstrap lock failed", zap.Error(err))
		}
	}()

	count, err := p.Users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if len(admin.Password) < password.MinLength {
		return errors.New("BOOTSTRAP_ADMIN_PASSWORD is too short")
	}
	hashed, err := password.Hash(admin.Password)
	if err != nil {
		return err
	}

	username := strings.TrimSpace(admin.Username)
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" {
		email = strings.ToLower(username) + "@localhost"
	}

	now := time.Now().UTC()
	if p.Clock != nil {
		now = p.Clock.Now()
	}
	user := &authdomain.User{
		ID:           p.GenID.Generate(),
		Username:     username,
		Email:        email,
		FullName:     bootstrapName,
		PasswordHash: hashed,
		Role:         authdomain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.Users.Create(ctx, user); err != nil {
		if errors.Is(err, authdomain.ErrUserExists) {
			return nil
		}
		return err
	}

	log.Info("bootstrap admin created",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
	)
	return nil
}
