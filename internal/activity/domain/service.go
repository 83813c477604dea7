package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"gorm.io/gorm"
)

// Record is the input of Recorder.Record. Origin fields fall back to the request context.
type Record struct {
	UserID       snowflake.ID
	Action       string
	ResourceType string
	ResourceID   string
	Details      string
	Metadata     map[string]any
	IPAddress    string
	UserAgent    string
}

// Recorder appends to the activity log. Implementations never fail the caller.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

type ListRequest struct {
	Limit  int
	UserID snowflake.ID
	Action string
	Since  *time.Time
}

type Service interface {
	Recorder
	List(ctx context.Context, actor authorization.Actor, req ListRequest) ([]EntryView, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]EntryView, error)
}

var ErrInvalidAction = errors.New("invalid_action")

// NopRecorder discards every record.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Record) {}
