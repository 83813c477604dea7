package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	activitydomain "github.com/smallbiznis/invoiceflow/internal/activity/domain"
	"github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/internal/auth/password"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/smallbiznis/invoiceflow/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	defaultSessionTTL = 24 * time.Hour

	maxEmailLength    = 255
	maxFullNameLength = 255

	maxHandleLength = 255
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)
	validate        = validator.New()
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Config      config.Config
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	GenID       *snowflake.Node
	Guard       *authorization.Guard
	Clock       clock.Clock
	Activity    activitydomain.Recorder `optional:"true"`
	Metrics     *metrics.Metrics        `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	genID       *snowflake.Node
	guard       *authorization.Guard
	clock       clock.Clock
	activity    activitydomain.Recorder
	metrics     *metrics.Metrics
	sessionTTL  time.Duration
}

func New(p Params) domain.Service {
	ttl := p.Config.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	activity := p.Activity
	if activity == nil {
		activity = activitydomain.NopRecorder{}
	}
	return &Service{
		log:         p.Log.Named("auth.service"),
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		genID:       p.GenID,
		guard:       p.Guard,
		clock:       p.Clock,
		activity:    activity,
		metrics:     p.Metrics,
		sessionTTL:  ttl,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, domain.ErrInvalidUsername
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	fullName := strings.TrimSpace(req.FullName)
	if len(fullName) > maxFullNameLength {
		return nil, domain.ErrInvalidFullName
	}
	if !password.ValidateStrength(req.Password) {
		return nil, domain.ErrInvalidPassword
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, username, email, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserExists
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hashed,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       user.ID,
		Action:       activitydomain.ActionRegister,
		ResourceType: activitydomain.ResourceUser,
		ResourceID:   user.ID.String(),
	})
	return user, nil
}

// Authenticate checks a handle (username or email) and credential.
// Every failure is ErrInvalidCredentials and costs one Argon2id evaluation.
func (s *Service) Authenticate(ctx context.Context, handle, credential string) (*domain.User, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || credential == "" || len(handle) > maxHandleLength || len(credential) > password.MaxLength {
		password.VerifyDummy("")
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			password.VerifyDummy(credential)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(credential, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) CreateSession(ctx context.Context, userID snowflake.ID, origin domain.Origin) (*domain.SessionToken, error) {
	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           userID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(origin.UserAgent),
		IPAddress:        strings.TrimSpace(origin.IPAddress),
		ExpiresAt:        now.Add(s.sessionTTL),
		CreatedAt:        now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.SessionToken{
		RawToken:  rawToken,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Login authenticates and issues a fresh session. A token presented with the
// request is discarded so a planted session id cannot survive authentication.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	user, err := s.Authenticate(ctx, req.Handle, req.Credential)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.metrics.RecordLogin(ctx, "failure")
			s.activity.Record(ctx, activitydomain.Record{
				Action:    activitydomain.ActionLoginFailed,
				Details:   "invalid credentials",
				IPAddress: req.Origin.IPAddress,
				UserAgent: req.Origin.UserAgent,
			})
		}
		return nil, err
	}

	token, err := s.CreateSession(ctx, user.ID, req.Origin)
	if err != nil {
		return nil, err
	}

	if prev := strings.TrimSpace(req.PreviousToken); prev != "" {
		if err := s.sessionRepo.DeleteSessionByTokenHash(ctx, hashToken(prev)); err != nil {
			s.log.Warn("failed to drop previous session", zap.Error(err))
		}
	}

	if err := s.UpdateLastAuthenticated(ctx, user.ID); err != nil {
		s.log.Warn("failed to update last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	s.metrics.RecordLogin(ctx, "success")
	s.activity.Record(ctx, activitydomain.Record{
		UserID:       user.ID,
		Action:       activitydomain.ActionLogin,
		ResourceType: activitydomain.ResourceSession,
		ResourceID:   token.SessionID.String(),
		IPAddress:    req.Origin.IPAddress,
		UserAgent:    req.Origin.UserAgent,
	})

	return &domain.LoginResult{User: user, Token: *token}, nil
}

// ResolveSession maps a raw token to its identity. It performs no writes.
func (s *Service) ResolveSession(ctx context.Context, rawToken string) (*domain.Identity, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}
	if !s.clock.Now().Before(session.ExpiresAt) {
		return nil, domain.ErrInvalidSession
	}

	user, err := s.repo.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidSession
	}

	return &domain.Identity{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// DeleteSession removes the session for rawToken. Unknown tokens succeed.
func (s *Service) DeleteSession(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil
	}
	hash := hashToken(token)

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if err := s.sessionRepo.DeleteSessionByTokenHash(ctx, hash); err != nil {
		return err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       session.UserID,
		Action:       activitydomain.ActionLogout,
		ResourceType: activitydomain.ResourceSession,
		ResourceID:   session.ID.String(),
	})
	return nil
}

func (s *Service) UpdateLastAuthenticated(ctx context.Context, userID snowflake.ID) error {
	now := s.clock.Now().UTC()
	return s.repo.UpdateFields(ctx, userID, map[string]any{
		"last_login_at": now,
	})
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	if id == 0 {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile applies a self-service change. Only the fields of ProfileUpdate can change.
func (s *Service) UpdateProfile(ctx context.Context, userID snowflake.ID, req domain.ProfileUpdate) (*domain.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields, changed, err := s.profileFields(ctx, user, req.Email, req.FullName, req.Password)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return user, nil
	}

	fields["updated_at"] = s.clock.Now().UTC()
	if err := s.repo.UpdateFields(ctx, user.ID, fields); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       user.ID,
		Action:       activitydomain.ActionUpdateProfile,
		ResourceType: activitydomain.ResourceUser,
		ResourceID:   user.ID.String(),
		Metadata:     map[string]any{"fields": changed},
	})
	return s.repo.FindByID(ctx, user.ID)
}

func (s *Service) ListUsers(ctx context.Context, actor authorization.Actor, req domain.ListUsersRequest) ([]domain.User, error) {
	if err := s.guard.Check(actor, authorization.ActionAdmin, authorization.Resource{Object: authorization.ObjectSystem}); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, req)
}

func (s *Service) AdminUpdateUser(ctx context.Context, actor authorization.Actor, userID snowflake.ID, req domain.AdminUserUpdate) (*domain.User, error) {
	target, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(actor, authorization.ActionWrite, authorization.Resource{Object: authorization.ObjectUser, OwnerID: target.ID}); err != nil {
		return nil, err
	}

	fields, changed, err := s.profileFields(ctx, target, req.Email, req.FullName, req.Password)
	if err != nil {
		return nil, err
	}

	if req.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*req.Role))
		if role != domain.RoleUser && role != domain.RoleAdmin {
			return nil, domain.ErrInvalidRole
		}
		if role != target.Role {
			if err := s.guard.Check(actor, authorization.ActionSetRole, authorization.Resource{Object: authorization.ObjectUser, OwnerID: target.ID}); err != nil {
				return nil, err
			}
			if actor.UserID == target.ID {
				return nil, domain.ErrCannotModifySelf
			}
			fields["role"] = role
			changed = append(changed, "role")
		}
	}
	if req.IsActive != nil && *req.IsActive != target.IsActive {
		if actor.UserID == target.ID {
			return nil, domain.ErrCannotModifySelf
		}
		fields["is_active"] = *req.IsActive
		changed = append(changed, "is_active")
	}

	if len(fields) == 0 {
		return target, nil
	}
	fields["updated_at"] = s.clock.Now().UTC()
	if err := s.repo.UpdateFields(ctx, target.ID, fields); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionAdminUpdateUser,
		ResourceType: activitydomain.ResourceUser,
		ResourceID:   target.ID.String(),
		Metadata:     map[string]any{"fields": changed},
	})
	return s.repo.FindByID(ctx, target.ID)
}

func (s *Service) DeleteUser(ctx context.Context, actor authorization.Actor, userID snowflake.ID) error {
	if err := s.guard.Check(actor, authorization.ActionAdmin, authorization.Resource{Object: authorization.ObjectSystem}); err != nil {
		return err
	}
	if userID == 0 {
		return domain.ErrUserNotFound
	}
	if actor.UserID == userID {
		return domain.ErrCannotModifySelf
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionAdminDeleteUser,
		ResourceType: activitydomain.ResourceUser,
		ResourceID:   userID.String(),
	})
	return nil
}

// profileFields validates the shared email/full_name/password whitelist and
// returns the column updates plus the names of changed fields.
func (s *Service) profileFields(ctx context.Context, user *domain.User, email, fullName, newPassword *string) (map[string]any, []any, error) {
	fields := map[string]any{}
	changed := []any{}

	if email != nil {
		normalized, err := normalizeEmail(*email)
		if err != nil {
			return nil, nil, domain.ErrInvalidEmail
		}
		if normalized != user.Email {
			exists, err := s.repo.ExistsByUsernameOrEmail(ctx, "", normalized, user.ID)
			if err != nil {
				return nil, nil, err
			}
			if exists {
				return nil, nil, domain.ErrUserExists
			}
			fields["email"] = normalized
			changed = append(changed, "email")
		}
	}
	if fullName != nil {
		name := strings.TrimSpace(*fullName)
		if len(name) > maxFullNameLength {
			return nil, nil, domain.ErrInvalidFullName
		}
		if name != user.FullName {
			fields["full_name"] = name
			changed = append(changed, "full_name")
		}
	}
	if newPassword != nil {
		if !password.ValidateStrength(*newPassword) {
			return nil, nil, domain.ErrInvalidPassword
		}
		hashed, err := password.Hash(*newPassword)
		if err != nil {
			return nil, nil, err
		}
		fields["password_hash"] = hashed
		changed = append(changed, "password")
	}
	return fields, changed, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxEmailLength {
		return "", domain.ErrInvalidEmail
	}
	if validate.Var(trimmed, "email") != nil {
		return "", domain.ErrInvalidEmail
	}
	return strings.ToLower(trimmed), nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
