package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/errdefs"
)

const minSweepInterval = time.Second

// RunIdleSleeper stops the container once it has not been resolved for the
// definition's sleep-after duration. It blocks until ctx is done.
func (a *Adapter) RunIdleSleeper(ctx context.Context) error {
	idle, err := time.ParseDuration(a.def.SleepAfter)
	if err != nil {
		return fmt.Errorf("invalid sleep-after %q: %w", a.def.SleepAfter, err)
	}
	interval := idle / 4
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.sleepIfIdle(ctx, idle); err != nil {
				a.log.Warn().Err(err).Msg("idle sweep failed")
			}
		}
	}
}

// sleepIfIdle stops the container when it was last used more than idle ago.
// It holds the adapter lock, so a concurrent Resolve waits and wakes the
// container again instead of racing the stop.
func (a *Adapter) sleepIfIdle(ctx context.Context, idle time.Duration) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastUsed.IsZero() || a.now().Sub(a.lastUsed) < idle {
		return false, nil
	}

	name := a.def.Identity.String()
	info, err := a.api.ContainerInspect(ctx, name)
	if errdefs.IsNotFound(err) {
		a.lastUsed = time.Time{}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect container: %w", err)
	}
	if !isRunning(info) {
		a.lastUsed = time.Time{}
		return false, nil
	}

	a.log.Info().
		Str("container", name).
		Str("sleep_after", a.def.SleepAfter).
		Msg("putting idle container to sleep")
	if err := a.stop(ctx, name); err != nil {
		return false, err
	}
	return true, nil
}
