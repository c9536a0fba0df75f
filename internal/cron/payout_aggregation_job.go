package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/partsbay/partsbay-backend/internal/payouts"
	"github.com/partsbay/partsbay-backend/pkg/logger"
)

const defaultPayoutPeriodDays = 7

// payoutPeriodAnchor is the first Monday of the Unix epoch, so default
// seven-day periods land on Mon-Sun UTC weeks.
var payoutPeriodAnchor = time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)

// PayoutAggregationJobParams configure the weekly payout close.
type PayoutAggregationJobParams struct {
	Logger     *logger.Logger
	Payouts    payoutAggregator
	PeriodDays int
}

type payoutAggregator interface {
	AggregateAllVendors(ctx context.Context, periodStart, periodEnd time.Time) (payouts.AggregateSummary, error)
}

// NewPayoutAggregationJob builds the cron job that closes the most recent
// fully elapsed payout period for every vendor with completed payments.
func NewPayoutAggregationJob(params PayoutAggregationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts service required")
	}
	periodDays := params.PeriodDays
	if periodDays <= 0 {
		periodDays = defaultPayoutPeriodDays
	}
	return &payoutAggregationJob{
		logg:       params.Logger,
		payouts:    params.Payouts,
		periodDays: periodDays,
		now:        time.Now,
	}, nil
}

type payoutAggregationJob struct {
	logg       *logger.Logger
	payouts    payoutAggregator
	periodDays int
	now        func() time.Time
}

func (j *payoutAggregationJob) Name() string { return "payout-aggregation" }

func (j *payoutAggregationJob) Run(ctx context.Context) error {
	periodStart, periodEnd := j.lastElapsedPeriod(j.now())

	summary, err := j.payouts.AggregateAllVendors(ctx, periodStart, periodEnd)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"period_start": periodStart.Format(time.RFC3339),
		"period_end":   periodEnd.Format(time.RFC3339),
		"aggregated":   summary.Aggregated,
		"frozen":       summary.Frozen,
	})
	if err != nil {
		j.logg.Error(logCtx, "payout aggregation incomplete", err)
		return err
	}
	j.logg.Info(logCtx, "payout aggregation complete")
	return nil
}

// lastElapsedPeriod returns the most recent period of periodDays days that
// ended at or before now. Periods are aligned to Monday UTC so the default
// length yields Mon-Sun weeks.
func (j *payoutAggregationJob) lastElapsedPeriod(now time.Time) (time.Time, time.Time) {
	periodLen := time.Duration(j.periodDays) * 24 * time.Hour
	elapsed := now.UTC().Sub(payoutPeriodAnchor)
	index := elapsed / periodLen
	currentStart := payoutPeriodAnchor.Add(index * periodLen)
	return currentStart.Add(-periodLen), currentStart
}
