package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/internal/commission"
	"github.com/partsbay/partsbay-backend/internal/inventory"
	"github.com/partsbay/partsbay-backend/internal/settlement"
	"github.com/partsbay/partsbay-backend/pkg/db"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/ordering"
	"github.com/partsbay/partsbay-backend/pkg/outbox"
	"github.com/partsbay/partsbay-backend/pkg/outbox/payloads"
)

// orderNumberAttempts bounds the regenerate loop when a generated order
// number collides with an existing row.
const orderNumberAttempts = 5

// errOrderNumberTaken signals that the generated order number lost a race
// with a concurrent insert. The placement transaction has been rolled back.
var errOrderNumberTaken = errors.New("order number already exists")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type partsCatalog interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Part, error)
}

type vendorRegistry interface {
	EnsureOrderable(ctx context.Context, ids []uuid.UUID) error
}

type inventoryLedger interface {
	Decrement(ctx context.Context, tx *gorm.DB, input inventory.MovementInput) error
}

type rateResolver interface {
	Resolve(ctx context.Context, input commission.ResolveInput) (*commission.ResolvedRate, error)
}

type splitRecorder interface {
	RecordSplit(ctx context.Context, tx *gorm.DB, input settlement.RecordSplitInput) ([]models.Payment, error)
}

// Service places orders and reads them back. Placement runs as a single
// transaction: stock decrements, the vendor split, pending payments, and the
// order rows either all commit or none do.
type Service interface {
	Place(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	parts      partsCatalog
	vendors    vendorRegistry
	inventory  inventoryLedger
	commission rateResolver
	settlement splitRecorder
	outbox     outboxPublisher
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds an orders service with the required collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	parts partsCatalog,
	vendors vendorRegistry,
	inventorySvc inventoryLedger,
	commissionSvc rateResolver,
	settlementSvc splitRecorder,
	outboxSvc outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if parts == nil {
		return nil, fmt.Errorf("parts catalog required")
	}
	if vendors == nil {
		return nil, fmt.Errorf("vendor registry required")
	}
	if inventorySvc == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if commissionSvc == nil {
		return nil, fmt.Errorf("commission resolver required")
	}
	if settlementSvc == nil {
		return nil, fmt.Errorf("settlement recorder required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		parts:      parts,
		vendors:    vendors,
		inventory:  inventorySvc,
		commission: commissionSvc,
		settlement: settlementSvc,
		outbox:     outboxSvc,
		logg:       logg,
		now:        time.Now,
	}, nil
}

func (s *service) Place(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}
	for _, item := range input.Items {
		if item.PartID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required on every item")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	// A collision on the generated order number rolls back the whole
	// placement, so the retry re-runs the transaction with a fresh number.
	var placed *models.Order
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := NewOrderNumber(s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}

		placed, err = s.placeOnce(ctx, input, number)
		if err != nil {
			if errors.Is(err, errOrderNumberTaken) {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
					"order_number": number,
					"attempt":      attempt + 1,
				}), "order number collision, regenerating")
				continue
			}
			return nil, err
		}
		return placed, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique order number")
}

func (s *service) placeOnce(ctx context.Context, input PlaceOrderInput, orderNumber string) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		partIDs := make([]uuid.UUID, len(input.Items))
		for i, item := range input.Items {
			partIDs[i] = item.PartID
		}
		catalog, err := s.parts.GetByIDs(ctx, partIDs)
		if err != nil {
			return err
		}

		items, total, err := buildOrderItems(input.Items, catalog)
		if err != nil {
			return err
		}

		shares, err := Split(items)
		if err != nil {
			return err
		}

		vendorIDs := make([]uuid.UUID, len(shares))
		for i, share := range shares {
			vendorIDs[i] = share.VendorID
		}
		if err := s.vendors.EnsureOrderable(ctx, vendorIDs); err != nil {
			return err
		}

		order := &models.Order{
			ID:            uuid.New(),
			OrderNumber:   orderNumber,
			BuyerID:       &input.BuyerID,
			TotalAmount:   total,
			PaymentStatus: enums.OrderPaymentStatusPending,
		}
		if err := repo.Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "order_number") {
				return errOrderNumberTaken
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		actor := "user:" + input.BuyerID.String()
		for _, item := range items {
			if err := s.inventory.Decrement(ctx, tx, inventory.MovementInput{
				PartID:  item.PartID,
				Qty:     item.Quantity,
				Reason:  enums.StockTransactionReasonSale,
				OrderID: &order.ID,
				Actor:   &actor,
			}); err != nil {
				return err
			}
		}

		asOf := s.now().UTC()
		settlementShares := make([]settlement.VendorShare, len(shares))
		for i, share := range shares {
			commissionTotal := decimal.Zero
			for _, item := range share.Items {
				rate, err := s.commission.Resolve(ctx, commission.ResolveInput{
					VendorID:   share.VendorID,
					CategoryID: item.CategoryID,
					AsOf:       asOf,
				})
				if err != nil {
					return err
				}
				commissionTotal = commissionTotal.Add(rate.Apply(item.LineTotal))
			}
			settlementShares[i] = settlement.VendorShare{
				VendorID:         share.VendorID,
				Amount:           share.GrossAmount,
				CommissionAmount: commissionTotal,
			}
		}

		payments, err := s.settlement.RecordSplit(ctx, tx, settlement.RecordSplitInput{
			OrderID: order.ID,
			Shares:  settlementShares,
		})
		if err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		paymentIDs := make([]uuid.UUID, len(payments))
		for i, payment := range payments {
			paymentIDs[i] = payment.ID
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.UserRoleBuyer.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				BuyerID:     input.BuyerID,
				VendorIDs:   vendorIDs,
				PaymentIDs:  paymentIDs,
				TotalAmount: order.TotalAmount,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		order.Items = items
		order.Payments = payments
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// buildOrderItems snapshots the requested lines against the catalog. Name,
// category, and unit price are copied onto the item so later catalog edits
// never change what was sold.
func buildOrderItems(requested []PlaceOrderItemInput, catalog map[uuid.UUID]models.Part) ([]models.OrderItem, decimal.Decimal, error) {
	var missing []uuid.UUID
	var inactive []uuid.UUID
	minQty := make([]ordering.MinQtyValidationInput, 0, len(requested))
	items := make([]models.OrderItem, 0, len(requested))
	total := decimal.Zero

	for _, line := range requested {
		part, ok := catalog[line.PartID]
		if !ok {
			missing = append(missing, line.PartID)
			continue
		}
		if part.Status != enums.PartStatusActive {
			inactive = append(inactive, part.ID)
			continue
		}

		minQty = append(minQty, ordering.MinQtyValidationInput{
			PartID:      part.ID,
			PartName:    part.Name,
			MinOrderQty: part.MinOrderQty,
			Quantity:    line.Quantity,
		})

		lineTotal := part.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, models.OrderItem{
			ID:         uuid.New(),
			PartID:     part.ID,
			VendorID:   part.VendorID,
			CategoryID: part.CategoryID,
			PartName:   part.Name,
			Quantity:   line.Quantity,
			UnitPrice:  part.UnitPrice,
			LineTotal:  lineTotal,
		})
		total = total.Add(lineTotal)
	}

	if len(missing) > 0 {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order references unknown parts").WithDetails(map[string]any{
			"part_ids": missing,
		})
	}
	if len(inactive) > 0 {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "order references parts no longer for sale").WithDetails(map[string]any{
			"part_ids": inactive,
		})
	}
	if err := ordering.ValidateMinOrderQty(minQty); err != nil {
		return nil, decimal.Zero, err
	}
	return items, total, nil
}

// NewOrderNumber builds a human-referenceable order number from the
// placement time plus a random suffix. Uniqueness is enforced by the
// database; callers retry on collision.
func NewOrderNumber(now time.Time) (string, error) {
	var suffix [3]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	return fmt.Sprintf("PB-%s-%X", now.UTC().Format("20060102-150405"), suffix), nil
}
