package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/partsbay/partsbay-backend/pkg/logger"
)

const defaultStalePaymentAge = 72 * time.Hour

type stalePaymentSweeper interface {
	SweepStalePending(ctx context.Context, olderThan time.Time) (int, error)
}

// StalePaymentJobParams configure the pending payment sweep.
type StalePaymentJobParams struct {
	Logger     *logger.Logger
	Settlement stalePaymentSweeper
	MaxAge     time.Duration
}

// NewStalePaymentJob builds the cron job that cancels pending payments the
// gateway never confirmed.
func NewStalePaymentJob(params StalePaymentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultStalePaymentAge
	}
	return &stalePaymentJob{
		logg:       params.Logger,
		settlement: params.Settlement,
		maxAge:     maxAge,
		now:        time.Now,
	}, nil
}

type stalePaymentJob struct {
	logg       *logger.Logger
	settlement stalePaymentSweeper
	maxAge     time.Duration
	now        func() time.Time
}

func (j *stalePaymentJob) Name() string { return "stale-payment-sweep" }

func (j *stalePaymentJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	swept, err := j.settlement.SweepStalePending(ctx, cutoff)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff.Format(time.RFC3339),
		"swept":  swept,
	})
	if err != nil {
		j.logg.Error(logCtx, "stale payment sweep incomplete", err)
		return err
	}
	j.logg.Info(logCtx, "stale payment sweep complete")
	return nil
}
