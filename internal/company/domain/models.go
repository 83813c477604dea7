// Package domain holds the client-company records owned by users.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Company struct {
	ID            snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID        snowflake.ID `gorm:"column:user_id;not null;index" json:"user_id"`
	CompanyName   string       `gorm:"column:company_name;type:varchar(255);not null" json:"company_name"`
	ContactPerson string       `gorm:"column:contact_person;type:varchar(255);not null;default:''" json:"contact_person"`
	Email         string       `gorm:"type:varchar(255);not null;default:''" json:"email"`
	Phone         string       `gorm:"type:varchar(64);not null;default:''" json:"phone"`
	Address       string       `gorm:"type:text;not null;default:''" json:"address"`
	City          string       `gorm:"type:varchar(128);not null;default:''" json:"city"`
	State         string       `gorm:"type:varchar(128);not null;default:''" json:"state"`
	ZipCode       string       `gorm:"column:zip_code;type:varchar(32);not null;default:''" json:"zip_code"`
	Country       string       `gorm:"type:varchar(128);not null;default:''" json:"country"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

// FullAddress joins the non-empty postal components with ", ".
func FullAddress(c Company) string {
	parts := make([]string, 0, 5)
	for _, part := range []string{c.Address, c.City, c.State, c.ZipCode, c.Country} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}

// CompanyFields is the complete set of caller-editable company fields.
type CompanyFields struct {
	CompanyName   string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	City          string
	State         string
	ZipCode       string
	Country       string
}
