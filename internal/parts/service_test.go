package parts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
)

type fakeRepository struct {
	parts   map[uuid.UUID]models.Part
	queried []uuid.UUID
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	if part, ok := f.parts[id]; ok {
		return &part, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Part, error) {
	f.queried = ids
	var rows []models.Part
	for _, id := range ids {
		if part, ok := f.parts[id]; ok {
			rows = append(rows, part)
		}
	}
	return rows, nil
}

func (f *fakeRepository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Part, error) {
	var rows []models.Part
	for _, part := range f.parts {
		if part.VendorID == vendorID {
			rows = append(rows, part)
		}
	}
	return rows, nil
}

func seedPart(vendorID uuid.UUID, sku string) models.Part {
	return models.Part{
		ID:        uuid.New(),
		VendorID:  vendorID,
		SKU:       sku,
		Name:      "Part " + sku,
		UnitPrice: decimal.NewFromFloat(19.99),
		Status:    enums.PartStatusActive,
	}
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestGetByIDNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeRepository{parts: map[uuid.UUID]models.Part{}})

	_, err := svc.GetByID(context.Background(), uuid.New())
	if got := pkgerrors.As(err); got == nil || got.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetByIDsCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	vendorID := uuid.New()
	a := seedPart(vendorID, "BRK-001")
	b := seedPart(vendorID, "FLT-002")
	repo := &fakeRepository{parts: map[uuid.UUID]models.Part{a.ID: a, b.ID: b}}
	svc := newTestService(t, repo)

	byID, err := svc.GetByIDs(context.Background(), []uuid.UUID{a.ID, b.ID, a.ID})
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(byID) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(byID))
	}
	if len(repo.queried) != 2 {
		t.Fatalf("expected duplicate ids collapsed into 2, queried %d", len(repo.queried))
	}
	if byID[a.ID].SKU != "BRK-001" {
		t.Fatalf("unexpected part for id %s: %s", a.ID, byID[a.ID].SKU)
	}
}

func TestGetByIDsMissingPartOmitted(t *testing.T) {
	t.Parallel()

	a := seedPart(uuid.New(), "BRK-001")
	repo := &fakeRepository{parts: map[uuid.UUID]models.Part{a.ID: a}}
	svc := newTestService(t, repo)

	missing := uuid.New()
	byID, err := svc.GetByIDs(context.Background(), []uuid.UUID{a.ID, missing})
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if _, ok := byID[missing]; ok {
		t.Fatal("expected missing part to be absent from map")
	}
	if _, ok := byID[a.ID]; !ok {
		t.Fatal("expected known part to be present")
	}
}

func TestGetByIDsRejectsNilID(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeRepository{parts: map[uuid.UUID]models.Part{}})

	_, err := svc.GetByIDs(context.Background(), []uuid.UUID{uuid.Nil})
	if got := pkgerrors.As(err); got == nil || got.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListVendorPartsRequiresVendor(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeRepository{parts: map[uuid.UUID]models.Part{}})

	_, err := svc.ListVendorParts(context.Background(), uuid.Nil)
	if got := pkgerrors.As(err); got == nil || got.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
