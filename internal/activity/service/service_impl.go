package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/activity/domain"
	"github.com/smallbiznis/invoiceflow/internal/activity/masking"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	obscontext "github.com/smallbiznis/invoiceflow/internal/observability/context"
	"github.com/smallbiznis/invoiceflow/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	maxDetailsLength = 1000
	writeTimeout     = 2 * time.Second
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Guard   *authorization.Guard
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	guard   *authorization.Guard
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("activity.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		guard:   p.Guard,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// Record appends an entry. Failures are logged and counted, never returned.
func (s *Service) Record(ctx context.Context, rec domain.Record) {
	action := strings.TrimSpace(rec.Action)
	if action == "" {
		s.log.Warn("activity without action dropped")
		return
	}

	entry := domain.Entry{
		ID:           s.genID.Generate(),
		Action:       action,
		ResourceType: strings.TrimSpace(rec.ResourceType),
		ResourceID:   strings.TrimSpace(rec.ResourceID),
		Details:      truncate(strings.TrimSpace(rec.Details), maxDetailsLength),
		IPAddress:    firstNonEmpty(rec.IPAddress, obscontext.IPAddressFromContext(ctx)),
		UserAgent:    firstNonEmpty(rec.UserAgent, obscontext.UserAgentFromContext(ctx)),
		RequestID:    obscontext.RequestIDFromContext(ctx),
		CreatedAt:    s.clock.Now().UTC(),
	}
	if rec.UserID != 0 {
		userID := rec.UserID
		entry.UserID = &userID
	}
	if masked := masking.MaskMetadata(rec.Metadata); masked != nil {
		entry.Metadata = datatypes.JSONMap(masked)
	}

	// The business write has already committed; a cancelled request must not lose the entry.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := s.repo.Insert(writeCtx, s.db, &entry); err != nil {
		s.log.Warn("failed to write activity log", zap.String("action", action), zap.Error(err))
		s.metrics.RecordActivityDropped(ctx, action)
	}
}

// List spans every user and is restricted to administrators.
func (s *Service) List(ctx context.Context, actor authorization.Actor, req domain.ListRequest) ([]domain.EntryView, error) {
	if err := s.guard.Check(actor, authorization.ActionAdmin, authorization.Resource{Object: authorization.ObjectSystem}); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}
	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}
	if req.Action != "" && strings.TrimSpace(req.Action) == "" {
		return nil, domain.ErrInvalidAction
	}
	return s.repo.List(ctx, s.db, req)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// truncate cuts to at most max bytes without splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
