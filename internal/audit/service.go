package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
)

// EntityType values used across the settlement trail.
const (
	EntityPayment        = "payment"
	EntityVendorPayout   = "vendor_payout"
	EntityCommissionRule = "commission_rule"
	EntityInventoryItem  = "inventory_item"
)

// Service records immutable audit events alongside the mutations they
// describe. Record is expected to run inside the caller's transaction so a
// rolled back mutation never leaves a trail entry behind.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditEvent, error)
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditEvent, error)
}

type service struct {
	repo Repository
}

// Actor identifies who performed the audited action.
type Actor struct {
	UserID uuid.UUID `json:"user_id,omitempty"`
	Role   string    `json:"role,omitempty"`
	System string    `json:"system,omitempty"`
}

// RecordInput captures the immutable data an audit event requires.
type RecordInput struct {
	Action     enums.AuditAction
	EntityType string
	EntityID   uuid.UUID
	Actor      *Actor
	Metadata   json.RawMessage
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditEvent, error) {
	if !input.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", input.Action)
	}
	if input.EntityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if input.EntityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}

	event := &models.AuditEvent{
		Action:     input.Action,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Metadata:   input.Metadata,
	}
	if input.Actor != nil {
		encoded, err := json.Marshal(input.Actor)
		if err != nil {
			return nil, fmt.Errorf("encode actor: %w", err)
		}
		event.Actor = encoded
	}

	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditEvent, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if entityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}
	return s.repo.ListByEntity(ctx, entityType, entityID)
}
