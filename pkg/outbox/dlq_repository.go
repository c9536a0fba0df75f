package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/partsbay/partsbay-backend/pkg/db/models"
)

const maxDLQErrorLen = 1024

// DLQRepository persists terminal outbox failures. Writes happen in the
// same transaction that pins the source row, so a dead-lettered event is
// never lost between the two tables.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateDLQError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

func truncateDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	return message[:maxDLQErrorLen]
}
