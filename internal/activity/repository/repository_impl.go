package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/invoiceflow/internal/activity/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return conn.WithContext(ctx).Exec(
		`INSERT INTO activity_log (
			id, user_id, action, resource_type, resource_id, details,
			metadata, ip_address, user_agent, request_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Details,
		entry.Metadata,
		entry.IPAddress,
		entry.UserAgent,
		entry.RequestID,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, req domain.ListRequest) ([]domain.EntryView, error) {
	var rows []domain.EntryView
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		rows = rows[:0]
		stmt := conn.WithContext(ctx).
			Table("activity_log AS a").
			Select("a.*, u.username AS username").
			Joins("LEFT JOIN users u ON u.id = a.user_id")

		if req.UserID != 0 {
			stmt = stmt.Where("a.user_id = ?", req.UserID)
		}
		if action := strings.TrimSpace(req.Action); action != "" {
			stmt = stmt.Where("a.action = ?", action)
		}
		if req.Since != nil {
			stmt = stmt.Where("a.created_at >= ?", req.Since.UTC())
		}
		return stmt.
			Order("a.created_at DESC, a.id DESC").
			Limit(req.Limit).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
