package syncbridge

import (
	"context"
	"time"

	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// backoffSchedule is the fixed exponential sequence 1s->2s->4s, capped at
// 30s, with a hard ceiling of maxAttempts (spec §4.4 "Failure model").
var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

const (
	maxBackoff   = 30 * time.Second
	maxAttempts  = 3
)

func backoffFor(attempt int) time.Duration {
	if attempt < len(backoffSchedule) {
		d := backoffSchedule[attempt]
		if d > maxBackoff {
			return maxBackoff
		}
		return d
	}
	return maxBackoff
}

// RunCycleWithRetry wraps RunCycle with the bridge's transient-failure
// retry policy. On exhausting retries it returns the last error; when that
// error came from the reconciliation phases, RunCycle has already saved
// SyncState.Health = Degraded (earlier failures leave Health as is). Callers
// are expected to keep serving stale data with a warning rather than block
// (spec §4.4 "On persistent failure, pause the bridge... serve stale data
// with a warning").
func (b *Bridge) RunCycleWithRetry(ctx context.Context, tc tenancy.Context, sleep func(time.Duration)) (CycleResult, error) {
	if sleep == nil {
		sleep = time.Sleep
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := b.RunCycle(ctx, tc)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return CycleResult{}, ctx.Err()
			default:
				sleep(backoffFor(attempt))
			}
		}
	}
	return CycleResult{}, lastErr
}

// Health returns the tenant's current SyncHealth (spec §4.4).
func (b *Bridge) Health(ctx context.Context, tenantID string) (Health, string, error) {
	state, err := b.states.Get(ctx, tenantID)
	if err != nil {
		return HealthDegraded, "", err
	}
	if state.Health == "" {
		return HealthHealthy, "", nil
	}
	return state.Health, state.LastError, nil
}
