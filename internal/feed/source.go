// Package feed abstracts the upstream play-by-play data source. Live
// polling and historical replay implement the same contract, so the
// pipeline downstream never knows which one is driving it.
package feed

import (
	"context"

	"github.com/betbot/swingfeed/internal/domain"
)

// Source is the upstream event/play contract.
//
// LiveEvents fails soft: transient upstream errors yield an empty slice,
// never an error, so the discovery loop keeps ticking. PlaySequence
// returns the full ordered sequence known so far, newest last.
type Source interface {
	LiveEvents(ctx context.Context) []domain.Event
	PlaySequence(ctx context.Context, eventID string) ([]domain.Play, error)
}

// WinProbProvider is implemented by sources that expose a live
// win-probability for the favored side.
type WinProbProvider interface {
	WinProbability(ctx context.Context, eventID string) (float64, bool)
}
