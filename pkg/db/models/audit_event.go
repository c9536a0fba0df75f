package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// AuditEvent records an immutable trail entry for settlement mutations:
// payment transitions (including rejected ones), payout operator actions,
// commission rule changes, and manual restocks.
type AuditEvent struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Action     enums.AuditAction `gorm:"column:action;type:audit_action;not null"`
	EntityType string            `gorm:"column:entity_type;not null"`
	EntityID   uuid.UUID         `gorm:"column:entity_id;type:uuid;not null;index"`
	Actor      json.RawMessage   `gorm:"column:actor;type:jsonb"`
	Metadata   json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
