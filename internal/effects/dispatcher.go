package effects

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 5 * time.Second

// Dispatcher runs best-effort side effects after a use case has committed.
// Run has no result: an effect that fails or panics is logged and dropped.
type Dispatcher struct {
	timeout time.Duration
	log     zerolog.Logger
}

func NewDispatcher(log zerolog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		timeout: timeout,
		log:     log.With().Str("component", "effects").Logger(),
	}
}

// Run executes fn detached from the caller's cancellation, bounded by the dispatcher timeout.
func (d *Dispatcher) Run(ctx context.Context, name string, contractID int64, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("effect", name).
				Int64("contract_id", contractID).
				Str("panic", fmt.Sprint(r)).
				Msg("side effect panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		d.log.Warn().
			Err(err).
			Str("effect", name).
			Int64("contract_id", contractID).
			Msg("side effect failed")
	}
}
