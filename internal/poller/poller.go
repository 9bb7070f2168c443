package poller

import (
	"context"
	"time"

	"github.com/sudodev/sudodev-cli/internal/domain"
)

// StatusClient is the slice of the API client the poller needs
type StatusClient interface {
	GetStatus(ctx context.Context, runID string) (domain.RunObservation, error)
}

// Poller repeatedly fetches status for one run at a fixed cadence and
// hands each observation to a delivery callback in arrival order.
type Poller struct {
	client   StatusClient
	interval time.Duration
}

// New creates a Poller with the given cadence
func New(client StatusClient, interval time.Duration) *Poller {
	return &Poller{client: client, interval: interval}
}

// Run polls until the run reaches a terminal status, an observation
// carries an error indicator, a poll fails, or ctx is cancelled. Polls
// are strictly sequential; a tick that fires while a poll is still in
// flight is skipped rather than queued.
//
// A failed poll is fatal for the run: it is forwarded as a synthetic
// errorIndicator observation and polling stops. No retry is attempted.
func (p *Poller) Run(ctx context.Context, runID string, deliver func(domain.RunObservation)) {
	// First poll fires immediately; the ticker governs the rest.
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		obs, err := p.client.GetStatus(ctx, runID)

		// Drop the tick that may have accumulated while the poll was
		// outstanding, so a slow response doesn't trigger a burst.
		select {
		case <-ticker.C:
		default:
		}

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			deliver(domain.RunObservation{
				Status:         domain.StatusFailed,
				ErrorIndicator: true,
				ErrorMessage:   err.Error(),
			})
			return
		}

		deliver(obs)

		if obs.ErrorIndicator || obs.Status.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
