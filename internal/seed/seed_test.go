package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/internal/auth/password"
	authrepo "github.com/smallbiznis/invoiceflow/internal/auth/repository"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/smallbiznis/invoiceflow/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newParams(t *testing.T, admin config.BootstrapAdminConfig) (Params, authdomain.Repository) {
	t.Helper()
	conn := db.NewTest(t, &authdomain.User{})
	users, _ := authrepo.New(conn)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return Params{
		Config: config.Config{BootstrapAdmin: admin},
		Log:    zap.NewNop(),
		GenID:  node,
		Users:  users,
		Clock:  clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	}, users
}

func TestEnsureBootstrapAdminCreatesAdminOnEmptyTable(t *testing.T) {
	p, users := newParams(t, config.BootstrapAdminConfig{Username: "root", Email: "Root@Example.com", Password: "correct-horse"})

	require.NoError(t, EnsureBootstrapAdmin(context.Background(), p))

	user, err := users.FindByHandle(context.Background(), "root")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, authdomain.RoleAdmin, user.Role)
	assert.Equal(t, "root@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.True(t, password.Verify("correct-horse", user.PasswordHash))
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
}

func TestEnsureBootstrapAdminIsIdempotent(t *testing.T) {
	p, users := newParams(t, config.BootstrapAdminConfig{Username: "root", Password: "correct-horse"})

	require.NoError(t, EnsureBootstrapAdmin(context.Background(), p))
	require.NoError(t, EnsureBootstrapAdmin(context.Background(), p))

	count, err := users.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEnsureBootstrapAdminSkipsPopulatedTable(t *testing.T) {
	p, users := newParams(t, config.BootstrapAdminConfig{Username: "root", Password: "correct-horse"})
	now := time.Now().UTC()
	require.NoError(t, users.Create(context.Background(), &authdomain.User{
		ID: 9, Username: "ann", Email: "ann@example.com", PasswordHash: "x", Role: authdomain.RoleUser, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, EnsureBootstrapAdmin(context.Background(), p))

	_, err := users.FindByHandle(context.Background(), "root")
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)
}

func TestEnsureBootstrapAdminDisabledWithoutCredentials(t *testing.T) {
	p, users := newParams(t, config.BootstrapAdminConfig{Username: "root"})

	require.NoError(t, EnsureBootstrapAdmin(context.Background(), p))

	count, err := users.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEnsureBootstrapAdminRejectsShortPassword(t *testing.T) {
	p, _ := newParams(t, config.BootstrapAdminConfig{Username: "root", Password: "short"})

	assert.Error(t, EnsureBootstrapAdmin(context.Background(), p))
}
