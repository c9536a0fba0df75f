package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, event *models.AuditEvent) error
	listFn   func(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditEvent, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditEvent, error) {
	if f.listFn != nil {
		return f.listFn(ctx, entityType, entityID)
	}
	return nil, nil
}

func TestServiceRecord(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.AuditEvent
	repo.createFn = func(ctx context.Context, event *models.AuditEvent) error {
		created = event
		return nil
	}

	actorID := uuid.New()
	paymentID := uuid.New()
	metadata := json.RawMessage(`{"from":"pending","to":"completed"}`)

	got, err := svc.Record(context.Background(), nil, RecordInput{
		Action:     enums.AuditPaymentStatusChanged,
		EntityType: EntityPayment,
		EntityID:   paymentID,
		Actor:      &Actor{UserID: actorID, Role: "operator"},
		Metadata:   metadata,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if created == nil {
		t.Fatal("expected audit event to be created")
	}
	if created.Action != enums.AuditPaymentStatusChanged || created.EntityID != paymentID {
		t.Fatalf("unexpected audit event: %+v", created)
	}
	if string(created.Metadata) != string(metadata) {
		t.Fatalf("metadata mismatch: %s", created.Metadata)
	}

	var actor Actor
	if err := json.Unmarshal(created.Actor, &actor); err != nil {
		t.Fatalf("decode actor: %v", err)
	}
	if actor.UserID != actorID || actor.Role != "operator" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if got != created {
		t.Fatal("service should return created event")
	}
}

func TestServiceRecordValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name  string
		input RecordInput
	}{
		{
			name: "invalid action",
			input: RecordInput{
				Action:     enums.AuditAction("not_real"),
				EntityType: EntityPayment,
				EntityID:   uuid.New(),
			},
		},
		{
			name: "missing entity type",
			input: RecordInput{
				Action:   enums.AuditPaymentStatusChanged,
				EntityID: uuid.New(),
			},
		},
		{
			name: "missing entity id",
			input: RecordInput{
				Action:     enums.AuditPaymentStatusChanged,
				EntityType: EntityPayment,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Record(context.Background(), nil, tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestServiceRecordRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, event *models.AuditEvent) error {
		return expectedErr
	}

	if _, err := svc.Record(context.Background(), nil, RecordInput{
		Action:     enums.AuditPayoutStatusChanged,
		EntityType: EntityVendorPayout,
		EntityID:   uuid.New(),
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}
