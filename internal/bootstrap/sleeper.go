package bootstrap

import (
	"context"

	"github.com/rs/zerolog"
)

// IdleSleeper stops the container after a quiet period.
type IdleSleeper interface {
	RunIdleSleeper(ctx context.Context) error
}

// StartIdleSleeper runs s in the background until ctx is done. A failure is
// logged rather than returned, since the edge keeps serving without it. The
// returned channel closes once the sleeper has exited.
func StartIdleSleeper(ctx context.Context, s IdleSleeper, log zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.RunIdleSleeper(ctx); err != nil {
			log.Error().Err(err).Msg("idle sleeper stopped")
		}
	}()
	return done
}
