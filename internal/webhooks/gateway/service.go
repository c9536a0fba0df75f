package gatewaywebhook

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/partsbay/partsbay-backend/internal/settlement"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
)

type settlementRecorder interface {
	ApplyGatewayEvent(ctx context.Context, input settlement.GatewayEventInput) (*models.Payment, error)
}

// Event is the notification body the payment gateway posts after a
// transaction changes state.
type Event struct {
	TransactionID string           `json:"transaction_id"`
	Status        string           `json:"status"`
	FailureReason *string          `json:"failure_reason,omitempty"`
	RefundAmount  *decimal.Decimal `json:"refund_amount,omitempty"`
	Metadata      json.RawMessage  `json:"metadata,omitempty"`
}

// ParseEvent decodes a raw delivery. The signature must already be verified;
// this only rejects bodies the handler could not act on.
func ParseEvent(payload []byte) (*Event, enums.GatewayEventStatus, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode gateway event")
	}
	if event.TransactionID == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "transaction_id required")
	}
	status, err := enums.ParseGatewayEventStatus(event.Status)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode gateway event")
	}
	return &event, status, nil
}

// Service applies verified gateway events to the settlement state machine.
type Service struct {
	settlement settlementRecorder
}

// NewService builds a gateway webhook service.
func NewService(settlementSvc settlementRecorder) (*Service, error) {
	if settlementSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	return &Service{settlement: settlementSvc}, nil
}

// HandleEvent drives the payment referenced by the event through the
// settlement state machine.
func (s *Service) HandleEvent(ctx context.Context, event *Event, status enums.GatewayEventStatus) (*models.Payment, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway event required")
	}
	return s.settlement.ApplyGatewayEvent(ctx, settlement.GatewayEventInput{
		TransactionID:   event.TransactionID,
		Status:          status,
		FailureReason:   event.FailureReason,
		RefundAmount:    event.RefundAmount,
		GatewayMetadata: event.Metadata,
	})
}
