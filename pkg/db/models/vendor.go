package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// Vendor is a selling party whose parts the marketplace settles.
type Vendor struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string             `gorm:"column:name;not null"`
	Slug          string             `gorm:"column:slug;not null;uniqueIndex"`
	Status        enums.VendorStatus `gorm:"column:status;type:vendor_status;not null;default:'active'"`
	ContactEmail  string             `gorm:"column:contact_email;not null"`
	PayoutDetails json.RawMessage    `gorm:"column:payout_details;type:jsonb"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
