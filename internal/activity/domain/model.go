package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Action tags recorded in the activity log.
const (
	ActionLogin               = "login"
	ActionLoginFailed         = "login_failed"
	ActionLogout              = "logout"
	ActionRegister            = "register"
	ActionUpdateProfile       = "update_profile"
	ActionCreateInvoice       = "create_invoice"
	ActionUpdateInvoice       = "update_invoice"
	ActionUpdateInvoiceStatus = "update_invoice_status"
	ActionDeleteInvoice       = "delete_invoice"
	ActionSetAttachment       = "set_invoice_attachment"
	ActionCreateCompany       = "create_company"
	ActionUpdateCompany       = "update_company"
	ActionDeleteCompany       = "delete_company"
	ActionAdminUpdateUser     = "admin_update_user"
	ActionAdminDeleteUser     = "admin_delete_user"
)

const (
	ResourceUser    = "user"
	ResourceSession = "session"
	ResourceInvoice = "invoice"
	ResourceCompany = "company"
)

// Entry is an append-only record of a user action. UserID is nil for anonymous events.
type Entry struct {
	ID           snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID       *snowflake.ID     `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Action       string            `gorm:"type:varchar(64);not null;index" json:"action"`
	ResourceType string            `gorm:"column:resource_type;type:varchar(32)" json:"resource_type,omitempty"`
	ResourceID   string            `gorm:"column:resource_id;type:varchar(64)" json:"resource_id,omitempty"`
	Details      string            `gorm:"type:text" json:"details,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	IPAddress    string            `gorm:"column:ip_address;type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent    string            `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	RequestID    string            `gorm:"column:request_id;type:varchar(128)" json:"request_id,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}

func (Entry) TableName() string { return "activity_log" }

// EntryView is an entry joined with the acting user's name.
type EntryView struct {
	Entry
	Username string `json:"username,omitempty"`
}
