package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/partsbay/partsbay-backend/internal/inventory"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/outbox"
	"github.com/partsbay/partsbay-backend/pkg/outbox/payloads"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const defaultLowStockDedup = 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dedupOutboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent, since time.Time) error
}

type lowStockLister interface {
	ListBelowReorderPoint(ctx context.Context) ([]inventory.LowStockRow, error)
}

// LowStockJobParams configure the reorder-point alert scan.
type LowStockJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Inventory   lowStockLister
	Outbox      dedupOutboxEmitter
	DedupWindow time.Duration
}

// NewLowStockJob builds the cron job that emits low stock alerts for parts
// at or below their reorder point.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	dedup := params.DedupWindow
	if dedup <= 0 {
		dedup = defaultLowStockDedup
	}
	return &lowStockJob{
		logg:      params.Logger,
		db:        params.DB,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		dedup:     dedup,
		now:       time.Now,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	db        txRunner
	inventory lowStockLister
	outbox    dedupOutboxEmitter
	dedup     time.Duration
	now       func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-alert" }

func (j *lowStockJob) Run(ctx context.Context) error {
	rows, err := j.inventory.ListBelowReorderPoint(ctx)
	if err != nil {
		return fmt.Errorf("list low stock parts: %w", err)
	}

	since := j.now().UTC().Add(-j.dedup)
	var errs error
	emitted := 0
	for _, row := range rows {
		if err := j.emitAlert(ctx, row, since); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("part %s: %w", row.PartID, err))
			continue
		}
		emitted++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"below_reorder": len(rows),
		"emitted":       emitted,
	})
	j.logg.Info(logCtx, "low stock scan complete")
	return errs
}

func (j *lowStockJob) emitAlert(ctx context.Context, row inventory.LowStockRow, since time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventInventoryLowStock,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   row.PartID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.InventoryLowStockEvent{
				PartID:       row.PartID,
				VendorID:     row.VendorID,
				SKU:          row.SKU,
				Name:         row.Name,
				Quantity:     row.Quantity,
				ReorderPoint: row.ReorderPoint,
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event, since)
	})
}
