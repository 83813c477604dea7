package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(conn *gorm.DB) (domain.Repository, domain.SessionRepository) {
	r := &repo{db: conn}
	return r, r
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Model(&domain.User{}).Count(&count).Error
	})
	return count, err
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrUserExists
	}
	return err
}

// FindByHandle matches a username or an email, case-insensitively.
func (r *repo) FindByHandle(ctx context.Context, handle string) (*domain.User, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	var user domain.User
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).
			Where("LOWER(username) = ? OR LOWER(email) = ?", handle, handle).
			Order("id ASC").
			First(&user).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) ExistsByUsernameOrEmail(ctx context.Context, username, email string, exclude snowflake.ID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.User{})
	switch {
	case username != "" && email != "":
		query = query.Where("LOWER(username) = ? OR LOWER(email) = ?", strings.ToLower(username), strings.ToLower(email))
	case username != "":
		query = query.Where("LOWER(username) = ?", strings.ToLower(username))
	case email != "":
		query = query.Where("LOWER(email) = ?", strings.ToLower(email))
	default:
		return false, nil
	}
	if exclude != 0 {
		query = query.Where("id <> ?", exclude)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, filter domain.ListUsersRequest) ([]domain.User, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 250 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var users []domain.User
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		users = users[:0]
		return r.db.WithContext(ctx).
			Order("created_at DESC, id DESC").
			Limit(limit).
			Offset(offset).
			Find(&users).Error
	})
	return users, err
}

func (r *repo) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		if db.IsDuplicateKeyErr(tx.Error) {
			return domain.ErrUserExists
		}
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Sessions cascade in the schema; delete explicitly for engines without FK enforcement.
		if err := tx.Where("user_id = ?", id).Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrUserNotFound
		}
		return nil
	})
}

func (r *repo) CreateSession(ctx context.Context, session *domain.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var session domain.Session
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Where("session_token_hash = ?", tokenHash).First(&session).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Where("session_token_hash = ?", tokenHash).Delete(&domain.Session{}).Error
}

func (r *repo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}
