package feed

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/swingfeed/internal/domain"
)

// ReplaySource replays a finished game as if it were live. The full play
// sequence is fetched once from the underlying source, then revealed one
// play per pace interval so the downstream pipeline behaves exactly as it
// would against a live feed.
type ReplaySource struct {
	upstream Source
	eventID  string
	pace     time.Duration

	mu      sync.Mutex
	plays   []domain.Play
	started time.Time
	done    bool
}

func NewReplaySource(upstream Source, eventID string, pace time.Duration) *ReplaySource {
	if pace <= 0 {
		pace = time.Second
	}
	return &ReplaySource{upstream: upstream, eventID: eventID, pace: pace}
}

// LiveEvents reports the replayed event as live until the last play has
// been revealed, then stops reporting it so discovery reaps the worker.
func (r *ReplaySource) LiveEvents(ctx context.Context) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	return []domain.Event{{ID: r.eventID}}
}

// PlaySequence returns the prefix of the recorded game visible at this
// point in the replay. The prefix only ever grows, so dedup and detector
// behavior downstream match the live path.
func (r *ReplaySource) PlaySequence(ctx context.Context, eventID string) ([]domain.Play, error) {
	if eventID != r.eventID {
		return nil, errors.Errorf("replay source only serves event %s", r.eventID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plays == nil {
		plays, err := r.upstream.PlaySequence(ctx, eventID)
		if err != nil {
			return nil, errors.Wrap(err, "load replay game")
		}
		if len(plays) == 0 {
			return nil, errors.Errorf("replay game %s has no plays", eventID)
		}
		r.plays = plays
		r.started = time.Now()
		log.Infof("replaying event %s: %d plays at %s per play", eventID, len(plays), r.pace)
	}

	visible := int(time.Since(r.started)/r.pace) + 1
	if visible >= len(r.plays) {
		visible = len(r.plays)
		r.done = true
	}
	return r.plays[:visible], nil
}
