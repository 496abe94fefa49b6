package feed

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/betbot/swingfeed/internal/domain"
	"github.com/betbot/swingfeed/internal/metrics"
	"github.com/betbot/swingfeed/pkg/cache"
	"github.com/betbot/swingfeed/pkg/httpclient"
)

var log = logrus.WithField("component", "feed")

// ESPNSource polls the public scoreboard/summary API. Summary responses
// are cached for a short TTL to absorb bursty polling from many workers,
// and all upstream calls run behind a circuit breaker so a flapping
// upstream degrades to soft failures instead of hammering it.
type ESPNSource struct {
	client   *httpclient.Client
	cache    *cache.InMemoryCache[string, []domain.Play]
	cacheTTL time.Duration
	breaker  *gobreaker.CircuitBreaker
}

// NewESPNSource creates a live polling source rooted at baseURL.
func NewESPNSource(baseURL string, timeout, cacheTTL time.Duration) *ESPNSource {
	return &ESPNSource{
		client:   httpclient.New(baseURL, timeout),
		cache:    cache.NewInMemoryCache[string, []domain.Play](cacheTTL),
		cacheTTL: cacheTTL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "espn",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnf("upstream breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

// LiveEvents lists in-progress games. Soft-fails to an empty slice on any
// upstream trouble; the discovery loop retries on its next tick.
func (s *ESPNSource) LiveEvents(ctx context.Context) []domain.Event {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		var resp scoreboardResponse
		if err := s.client.GetJSON(ctx, "/scoreboard", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		metrics.UpstreamErrors.Add(1)
		log.Warnf("list live events: %v", err)
		return nil
	}

	resp := out.(*scoreboardResponse)
	var events []domain.Event
	for _, ev := range resp.Events {
		if ev.Status.Type.State != "in" {
			continue
		}
		e := domain.Event{
			ID:      ev.ID,
			Quarter: ev.Status.Period,
			Clock:   ev.Status.DisplayClock,
		}
		if len(ev.Competitions) > 0 {
			for _, c := range ev.Competitions[0].Competitors {
				score, _ := strconv.Atoi(c.Score)
				if c.HomeAway == "home" {
					e.HomeTeam = c.Team.Abbreviation
					e.HomeScore = score
				} else {
					e.AwayTeam = c.Team.Abbreviation
					e.AwayScore = score
				}
			}
		}
		events = append(events, e)
	}
	return events
}

// PlaySequence returns the ordered play list for one event, newest last.
// Results are cached for the configured TTL.
func (s *ESPNSource) PlaySequence(ctx context.Context, eventID string) ([]domain.Play, error) {
	if plays, ok := s.cache.Get(eventID); ok {
		return plays, nil
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		var resp summaryResponse
		if err := s.client.GetJSON(ctx, "/summary", map[string]string{"event": eventID}, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		metrics.UpstreamErrors.Add(1)
		return nil, err
	}

	resp := out.(*summaryResponse)
	plays := flattenDrives(eventID, resp)
	s.cache.Set(eventID, plays, s.cacheTTL)
	return plays, nil
}

// WinProbability returns the latest win probability of the favored side.
// The upstream reports the home side as a fraction or a percentage; both
// are normalized here.
func (s *ESPNSource) WinProbability(ctx context.Context, eventID string) (float64, bool) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		var resp summaryResponse
		if err := s.client.GetJSON(ctx, "/summary", map[string]string{"event": eventID}, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		metrics.UpstreamErrors.Add(1)
		return 0, false
	}

	resp := out.(*summaryResponse)
	if len(resp.WinProbability) == 0 {
		return 0, false
	}
	home := resp.WinProbability[len(resp.WinProbability)-1].HomeWinPercentage
	if home > 1 {
		home /= 100
	}
	if home < 0 {
		home = 0
	}
	if home > 1 {
		home = 1
	}
	away := 1 - home
	if away > home {
		return away, true
	}
	return home, true
}

// flattenDrives walks previous drives plus the current one and assigns
// the monotonic sequence key in traversal order, which the upstream keeps
// chronological and append-only.
func flattenDrives(eventID string, resp *summaryResponse) []domain.Play {
	allDrives := resp.Drives.Previous
	if resp.Drives.Current != nil {
		allDrives = append(allDrives[:len(allDrives):len(allDrives)], *resp.Drives.Current)
	}

	var plays []domain.Play
	var seq int64
	for _, d := range allDrives {
		for _, wp := range d.Plays {
			p := domain.Play{
				EventID:     eventID,
				PlayID:      wp.ID,
				Sequence:    seq,
				Quarter:     wp.Period.Number,
				Clock:       wp.Clock.DisplayValue,
				Description: wp.Text,
				PlayType:    wp.Type.Text,
				YardsGained: wp.StatYardage,
				ScoringPlay: wp.ScoringPlay,
				HomeScore:   wp.HomeScore,
				AwayScore:   wp.AwayScore,
			}
			if wp.Start != nil {
				p.Down = wp.Start.Down
				p.YardsToGo = wp.Start.Distance
				p.YardLine = wp.Start.YardsToEndzone
				if p.YardLine == 0 {
					p.YardLine = wp.Start.YardLine
				}
			}
			plays = append(plays, p)
			seq++
		}
	}
	return plays
}
