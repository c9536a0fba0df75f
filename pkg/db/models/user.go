package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// User is an authenticated API identity. Vendor users carry the vendor
// their session is scoped to; operators and buyers leave it unset.
type User struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string           `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string           `gorm:"column:password_hash;not null"`
	Role         enums.UserRole   `gorm:"column:role;type:user_role;not null;default:'buyer'"`
	VendorID     *uuid.UUID       `gorm:"column:vendor_id;type:uuid"`
	Status       enums.UserStatus `gorm:"column:status;type:user_status;not null;default:'active'"`
	LastLoginAt  *time.Time       `gorm:"column:last_login_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
