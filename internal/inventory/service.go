package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/internal/audit"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditEvent, error)
}

// Service is the inventory ledger. Every stock mutation flows through it so
// the counter and the transaction log always move together.
type Service interface {
	Decrement(ctx context.Context, tx *gorm.DB, input MovementInput) error
	Increment(ctx context.Context, tx *gorm.DB, input MovementInput) error
	Restock(ctx context.Context, input RestockInput) (*models.InventoryItem, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.InventoryItem, error)
	GetItem(ctx context.Context, partID uuid.UUID) (*models.InventoryItem, error)
	ListTransactions(ctx context.Context, input ListTransactionsInput) (*TransactionPage, error)
	ListVendorStock(ctx context.Context, vendorID uuid.UUID) ([]VendorStockRow, error)
	ListBelowReorderPoint(ctx context.Context) ([]LowStockRow, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	audit auditRecorder
}

// MovementInput describes a single stock movement tied to an order flow.
type MovementInput struct {
	PartID    uuid.UUID
	Qty       int
	Reason    enums.StockTransactionReason
	OrderID   *uuid.UUID
	PaymentID *uuid.UUID
	Actor     *string
}

// RestockInput carries a vendor-initiated stock top-up.
type RestockInput struct {
	PartID      uuid.UUID
	Qty         int
	ActorUserID uuid.UUID
}

// AdjustInput carries an operator correction. Delta may be negative.
type AdjustInput struct {
	PartID      uuid.UUID
	Delta       int
	ActorUserID uuid.UUID
}

// ListTransactionsInput filters the ledger log for one part.
type ListTransactionsInput struct {
	PartID uuid.UUID
	Limit  int
	Cursor string
}

// TransactionPage is one page of ledger entries plus the cursor for the next.
type TransactionPage struct {
	Transactions []models.StockTransaction
	NextCursor   string
}

// InsufficientStockDetails names the part an order could not be filled from.
type InsufficientStockDetails struct {
	PartID    uuid.UUID `json:"part_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

type restockAuditMetadata struct {
	QuantityAdded int `json:"quantity_added"`
	QuantityAfter int `json:"quantity_after"`
}

// NewService builds the inventory ledger service.
func NewService(repo Repository, tx txRunner, auditSvc auditRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{repo: repo, tx: tx, audit: auditSvc}, nil
}

func (s *service) Decrement(ctx context.Context, tx *gorm.DB, input MovementInput) error {
	if err := validateMovement(input); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	ok, err := repo.DecrementQuantity(ctx, input.PartID, input.Qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if !ok {
		item, gerr := repo.GetItem(ctx, input.PartID)
		if gerr != nil {
			if errors.Is(gerr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no inventory record for part").
					WithDetails(InsufficientStockDetails{PartID: input.PartID, Requested: input.Qty})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, gerr, "load inventory item")
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(InsufficientStockDetails{
				PartID:    input.PartID,
				Requested: input.Qty,
				Available: item.Quantity,
			})
	}

	return s.appendMovement(ctx, repo, input, -input.Qty)
}

func (s *service) Increment(ctx context.Context, tx *gorm.DB, input MovementInput) error {
	if err := validateMovement(input); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	ok, err := repo.IncrementQuantity(ctx, input.PartID, input.Qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no inventory record for part").
			WithDetails(InsufficientStockDetails{PartID: input.PartID, Requested: input.Qty})
	}

	return s.appendMovement(ctx, repo, input, input.Qty)
}

func (s *service) Restock(ctx context.Context, input RestockInput) (*models.InventoryItem, error) {
	if input.PartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var item *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		actor := "user:" + input.ActorUserID.String()
		if err := s.Increment(ctx, tx, MovementInput{
			PartID: input.PartID,
			Qty:    input.Qty,
			Reason: enums.StockTransactionReasonRestock,
			Actor:  &actor,
		}); err != nil {
			return err
		}

		loaded, err := s.repo.WithTx(tx).GetItem(ctx, input.PartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory item")
		}
		item = loaded

		metadata, err := json.Marshal(restockAuditMetadata{
			QuantityAdded: input.Qty,
			QuantityAfter: loaded.Quantity,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode restock metadata")
		}
		_, err = s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditInventoryRestocked,
			EntityType: audit.EntityInventoryItem,
			EntityID:   input.PartID,
			Actor:      &audit.Actor{UserID: input.ActorUserID, Role: "vendor"},
			Metadata:   metadata,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryItem, error) {
	if input.PartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment delta must be non-zero")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var item *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		actor := "user:" + input.ActorUserID.String()
		movement := MovementInput{
			PartID: input.PartID,
			Reason: enums.StockTransactionReasonManualAdjustment,
			Actor:  &actor,
		}

		var err error
		if input.Delta > 0 {
			movement.Qty = input.Delta
			err = s.Increment(ctx, tx, movement)
		} else {
			movement.Qty = -input.Delta
			err = s.Decrement(ctx, tx, movement)
		}
		if err != nil {
			return err
		}

		loaded, err := s.repo.WithTx(tx).GetItem(ctx, input.PartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory item")
		}
		item = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, partID uuid.UUID) (*models.InventoryItem, error) {
	if partID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	item, err := s.repo.GetItem(ctx, partID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no inventory record for part")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	return item, nil
}

func (s *service) ListTransactions(ctx context.Context, input ListTransactionsInput) (*TransactionPage, error) {
	if input.PartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	transactions, next, err := s.repo.ListTransactions(ctx, listTransactionsParams{
		PartID: input.PartID,
		Limit:  input.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock transactions")
	}

	page := &TransactionPage{Transactions: transactions}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) ListVendorStock(ctx context.Context, vendorID uuid.UUID) ([]VendorStockRow, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	rows, err := s.repo.ListVendorStock(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor stock")
	}
	return rows, nil
}

func (s *service) ListBelowReorderPoint(ctx context.Context) ([]LowStockRow, error) {
	rows, err := s.repo.ListBelowReorderPoint(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan low stock")
	}
	return rows, nil
}

func (s *service) appendMovement(ctx context.Context, repo Repository, input MovementInput, delta int) error {
	txn := &models.StockTransaction{
		PartID:    input.PartID,
		Delta:     delta,
		Reason:    input.Reason,
		OrderID:   input.OrderID,
		PaymentID: input.PaymentID,
		Actor:     input.Actor,
	}
	if err := repo.AppendTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock transaction")
	}
	return nil
}

func validateMovement(input MovementInput) error {
	if input.PartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	if input.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !input.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stock transaction reason %q", input.Reason))
	}
	return nil
}
