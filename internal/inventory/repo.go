package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	"github.com/partsbay/partsbay-backend/pkg/pagination"
)

// Repository exposes persistence helpers for stock counters and the
// append-only stock transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetItem(ctx context.Context, partID uuid.UUID) (*models.InventoryItem, error)
	CreateItem(ctx context.Context, item *models.InventoryItem) error
	DecrementQuantity(ctx context.Context, partID uuid.UUID, qty int) (bool, error)
	IncrementQuantity(ctx context.Context, partID uuid.UUID, qty int) (bool, error)
	AppendTransaction(ctx context.Context, txn *models.StockTransaction) error
	ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.StockTransaction, *pagination.Cursor, error)
	ListBelowReorderPoint(ctx context.Context) ([]LowStockRow, error)
	ListVendorStock(ctx context.Context, vendorID uuid.UUID) ([]VendorStockRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listTransactionsParams struct {
	PartID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

// LowStockRow joins a depleted counter with the part it belongs to.
type LowStockRow struct {
	PartID       uuid.UUID
	VendorID     uuid.UUID
	SKU          string
	Name         string
	Quantity     int
	ReorderPoint int
}

// VendorStockRow is one line of a vendor's inventory listing.
type VendorStockRow struct {
	PartID       uuid.UUID
	SKU          string
	Name         string
	Quantity     int
	SafetyStock  int
	ReorderPoint int
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetItem(ctx context.Context, partID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "part_id = ?", partID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// DecrementQuantity subtracts qty from the counter only when enough stock
// remains. The WHERE guard makes the check and the write one atomic
// statement, so concurrent orders can never drive the counter negative.
// It reports false when no row qualified.
func (r *repository) DecrementQuantity(ctx context.Context, partID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE part_id = ? AND quantity >= ?
	`, qty, partID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementQuantity adds qty back to the counter. It reports false when the
// part has no counter row.
func (r *repository) IncrementQuantity(ctx context.Context, partID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE part_id = ?
	`, qty, partID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) AppendTransaction(ctx context.Context, txn *models.StockTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.StockTransaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.StockTransaction{}).Where("part_id = ?", params.PartID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var transactions []models.StockTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&transactions).Error; err != nil {
		return nil, nil, err
	}

	if len(transactions) > normalized {
		transactions = transactions[:normalized]
		last := transactions[normalized-1]
		return transactions, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return transactions, nil, nil
}

func (r *repository) ListBelowReorderPoint(ctx context.Context) ([]LowStockRow, error) {
	var rows []LowStockRow
	err := r.db.WithContext(ctx).
		Table("inventory_items").
		Select("inventory_items.part_id AS part_id, parts.vendor_id AS vendor_id, parts.sku AS sku, parts.name AS name, inventory_items.quantity AS quantity, inventory_items.reorder_point AS reorder_point").
		Joins("JOIN parts ON parts.id = inventory_items.part_id").
		Where("inventory_items.quantity <= inventory_items.reorder_point").
		Where("parts.status = ?", enums.PartStatusActive).
		Order("inventory_items.part_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListVendorStock(ctx context.Context, vendorID uuid.UUID) ([]VendorStockRow, error) {
	var rows []VendorStockRow
	err := r.db.WithContext(ctx).
		Table("inventory_items").
		Select("inventory_items.part_id AS part_id, parts.sku AS sku, parts.name AS name, inventory_items.quantity AS quantity, inventory_items.safety_stock AS safety_stock, inventory_items.reorder_point AS reorder_point").
		Joins("JOIN parts ON parts.id = inventory_items.part_id").
		Where("parts.vendor_id = ?", vendorID).
		Order("parts.sku").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
