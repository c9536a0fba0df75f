package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/partsbay/partsbay-backend/api/responses"
	gatewaywebhook "github.com/partsbay/partsbay-backend/internal/webhooks/gateway"
	"github.com/partsbay/partsbay-backend/pkg/config"
	"github.com/partsbay/partsbay-backend/pkg/db/models"
	"github.com/partsbay/partsbay-backend/pkg/enums"
	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
	"github.com/partsbay/partsbay-backend/pkg/logger"
	"github.com/partsbay/partsbay-backend/pkg/metrics"
)

type GatewayWebhookService interface {
	HandleEvent(ctx context.Context, event *gatewaywebhook.Event, status enums.GatewayEventStatus) (*models.Payment, error)
}

type gatewayWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventKey string) (bool, error)
	Delete(ctx context.Context, eventKey string) error
}

// GatewayWebhook ingests payment gateway transaction notifications.
func GatewayWebhook(svc GatewayWebhookService, cfg config.GatewayConfig, guard gatewayWebhookGuard, webhookMetrics *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := gatewaywebhook.VerifySignature(cfg.WebhookSecret, payload, r.Header.Get(gatewaywebhook.SignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		event, status, err := gatewaywebhook.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		webhookMetrics.IncReceived(status.String())

		eventKey := gatewaywebhook.EventKey(event.TransactionID, status)
		alreadyProcessed, err := guard.CheckAndMark(ctx, eventKey)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			webhookMetrics.IncOutcome(status.String(), "duplicate")
			responses.WriteSuccess(w, nil)
			return
		}

		payment, err := svc.HandleEvent(ctx, event, status)
		if err != nil {
			_ = guard.Delete(ctx, eventKey)
			webhookMetrics.IncOutcome(status.String(), "failed")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		webhookMetrics.IncOutcome(status.String(), "processed")
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("gateway event %s applied to payment %s", eventKey, payment.ID))
		}
		responses.WriteSuccess(w, nil)
	}
}
