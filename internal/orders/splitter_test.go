package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
)

func orderItem(vendorID uuid.UUID, lineTotal string, qty int) models.OrderItem {
	total := decimal.RequireFromString(lineTotal)
	return models.OrderItem{
		ID:        uuid.New(),
		PartID:    uuid.New(),
		VendorID:  vendorID,
		PartName:  "Test Part",
		Quantity:  qty,
		UnitPrice: total.Div(decimal.NewFromInt(int64(qty))),
		LineTotal: total,
	}
}

func TestSplitGroupsByVendor(t *testing.T) {
	t.Parallel()

	vendorA := uuid.New()
	vendorB := uuid.New()
	items := []models.OrderItem{
		orderItem(vendorA, "100.00", 2),
		orderItem(vendorB, "35.50", 1),
		orderItem(vendorA, "20.50", 1),
	}

	shares, err := Split(items)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	if shares[0].VendorID != vendorA {
		t.Fatalf("expected first share to follow first appearance, got %s", shares[0].VendorID)
	}
	if len(shares[0].Items) != 2 || len(shares[1].Items) != 1 {
		t.Fatalf("unexpected item partition: %d/%d", len(shares[0].Items), len(shares[1].Items))
	}
	if !shares[0].GrossAmount.Equal(decimal.RequireFromString("120.50")) {
		t.Fatalf("expected vendor A gross 120.50, got %s", shares[0].GrossAmount)
	}
	if !shares[1].GrossAmount.Equal(decimal.RequireFromString("35.50")) {
		t.Fatalf("expected vendor B gross 35.50, got %s", shares[1].GrossAmount)
	}
}

func TestSplitSingleVendor(t *testing.T) {
	t.Parallel()

	vendorID := uuid.New()
	shares, err := Split([]models.OrderItem{
		orderItem(vendorID, "10.00", 1),
		orderItem(vendorID, "15.00", 3),
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(shares) != 1 {
		t.Fatalf("expected a single share, got %d", len(shares))
	}
	if !shares[0].GrossAmount.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected gross 25.00, got %s", shares[0].GrossAmount)
	}
}

func TestSplitDeterministicOrder(t *testing.T) {
	t.Parallel()

	vendorA := uuid.New()
	vendorB := uuid.New()
	vendorC := uuid.New()
	items := []models.OrderItem{
		orderItem(vendorC, "1.00", 1),
		orderItem(vendorA, "2.00", 1),
		orderItem(vendorB, "3.00", 1),
		orderItem(vendorA, "4.00", 1),
	}

	for i := 0; i < 10; i++ {
		shares, err := Split(items)
		if err != nil {
			t.Fatalf("split: %v", err)
		}
		got := []uuid.UUID{shares[0].VendorID, shares[1].VendorID, shares[2].VendorID}
		want := []uuid.UUID{vendorC, vendorA, vendorB}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("run %d: share %d = %s, want %s", i, j, got[j], want[j])
			}
		}
	}
}

func TestSplitRejectsMissingVendorAttribution(t *testing.T) {
	t.Parallel()

	good := orderItem(uuid.New(), "9.99", 1)
	bad := orderItem(uuid.Nil, "5.00", 1)

	_, err := Split([]models.OrderItem{good, bad})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	partIDs, ok := details["part_ids"].([]uuid.UUID)
	if !ok || len(partIDs) != 1 || partIDs[0] != bad.PartID {
		t.Fatalf("expected offending part id in details, got %v", details["part_ids"])
	}
}

func TestSplitRejectsEmptyItems(t *testing.T) {
	t.Parallel()

	_, err := Split(nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
