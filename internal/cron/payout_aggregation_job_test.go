package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/partsbay/partsbay-backend/internal/payouts"
	"github.com/partsbay/partsbay-backend/pkg/logger"
)

func TestPayoutAggregationJobClosesPreviousWeek(t *testing.T) {
	// Tuesday, so the Mon-Sun week ending 2026-08-24 has fully elapsed.
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	aggregator := &fakePayoutAggregator{summary: payouts.AggregateSummary{Aggregated: 3, Frozen: 1}}
	job := newPayoutAggregationJob(t, aggregator)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	if !aggregator.periodStart.Equal(wantStart) {
		t.Fatalf("expected period start %s, got %s", wantStart, aggregator.periodStart)
	}
	if !aggregator.periodEnd.Equal(wantEnd) {
		t.Fatalf("expected period end %s, got %s", wantEnd, aggregator.periodEnd)
	}
	if aggregator.calls != 1 {
		t.Fatalf("expected one aggregation call, got %d", aggregator.calls)
	}
}

func TestPayoutAggregationJobMondayBoundary(t *testing.T) {
	// Exactly Monday midnight: the week ending right now is the one to close.
	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	aggregator := &fakePayoutAggregator{}
	job := newPayoutAggregationJob(t, aggregator)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	if !aggregator.periodStart.Equal(wantStart) {
		t.Fatalf("expected period start %s, got %s", wantStart, aggregator.periodStart)
	}
	if !aggregator.periodEnd.Equal(now) {
		t.Fatalf("expected period end %s, got %s", now, aggregator.periodEnd)
	}
}

func TestPayoutAggregationJobPropagatesError(t *testing.T) {
	aggregator := &fakePayoutAggregator{err: errors.New("vendor 123: boom")}
	job := newPayoutAggregationJob(t, aggregator)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newPayoutAggregationJob(t *testing.T, aggregator *fakePayoutAggregator) *payoutAggregationJob {
	t.Helper()
	jobIface, err := NewPayoutAggregationJob(PayoutAggregationJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: aggregator,
	})
	if err != nil {
		t.Fatalf("NewPayoutAggregationJob: %v", err)
	}
	job, ok := jobIface.(*payoutAggregationJob)
	if !ok {
		t.Fatalf("expected payoutAggregationJob, got %T", jobIface)
	}
	return job
}

type fakePayoutAggregator struct {
	periodStart time.Time
	periodEnd   time.Time
	calls       int
	summary     payouts.AggregateSummary
	err         error
}

func (f *fakePayoutAggregator) AggregateAllVendors(ctx context.Context, periodStart, periodEnd time.Time) (payouts.AggregateSummary, error) {
	f.calls++
	f.periodStart = periodStart
	f.periodEnd = periodEnd
	if f.err != nil {
		return f.summary, f.err
	}
	return f.summary, nil
}
