package ingest

import (
	"context"

	"go.uber.org/zap"
)

// Listener is notified after each lead is persisted. Implementations must
// be safe for concurrent use; batch imports persist leads in parallel.
type Listener interface {
	OnLeadIngested(ctx context.Context, tenantID string, res *Result)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, tenantID string, res *Result)

// OnLeadIngested implements Listener.
func (f ListenerFunc) OnLeadIngested(ctx context.Context, tenantID string, res *Result) {
	f(ctx, tenantID, res)
}

// LogListener logs every outcome at info level.
type LogListener struct{}

// OnLeadIngested implements Listener.
func (LogListener) OnLeadIngested(_ context.Context, tenantID string, res *Result) {
	zap.L().Info(res.Outcome.LogMessage,
		zap.String("tenant", tenantID),
		zap.String("lead_id", res.Lead.ID),
		zap.Bool("is_new", res.IsNew),
		zap.String("case", string(res.Outcome.Case)),
		zap.String("source", res.Lead.Data.Source),
	)
}
