package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/betbot/swingfeed/internal/domain"
)

// HistoryStore serves play-by-play for completed games, backed by a badger
// cache so a game is fetched from the upstream at most once. Replay cursors
// iterate these sequences play by play.
type HistoryStore struct {
	source Source
	lookup ScoreboardLookup
	db     *badger.DB
}

// ScoreboardLookup resolves a date (YYYYMMDD) to the events played that day.
// *ESPNSource satisfies it through the dated scoreboard endpoint.
type ScoreboardLookup interface {
	EventsOn(ctx context.Context, date string) ([]domain.Event, error)
}

// EventsOn lists all events on the given date, regardless of state.
func (s *ESPNSource) EventsOn(ctx context.Context, date string) ([]domain.Event, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		var resp scoreboardResponse
		if err := s.client.GetJSON(ctx, "/scoreboard", map[string]string{"dates": date}, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scoreboard for %s", date)
	}

	resp := out.(*scoreboardResponse)
	events := make([]domain.Event, 0, len(resp.Events))
	for _, ev := range resp.Events {
		e := domain.Event{ID: ev.ID, Quarter: ev.Status.Period, Clock: ev.Status.DisplayClock}
		if len(ev.Competitions) > 0 {
			for _, c := range ev.Competitions[0].Competitors {
				if c.HomeAway == "home" {
					e.HomeTeam = c.Team.Abbreviation
				} else {
					e.AwayTeam = c.Team.Abbreviation
				}
			}
		}
		events = append(events, e)
	}
	return events, nil
}

// NewHistoryStore opens the on-disk cache at dir. The source must also be
// a ScoreboardLookup for team/date resolution to work.
func NewHistoryStore(source Source, dir string) (*HistoryStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open history cache")
	}
	lookup, _ := source.(ScoreboardLookup)
	return &HistoryStore{source: source, lookup: lookup, db: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// FindEvent resolves a matchup on a date to its event id. Team names are
// matched case-insensitively against abbreviations, in either order.
func (h *HistoryStore) FindEvent(ctx context.Context, date, team1, team2 string) (domain.Event, error) {
	if h.lookup == nil {
		return domain.Event{}, errors.New("history source does not support date lookup")
	}
	events, err := h.lookup.EventsOn(ctx, date)
	if err != nil {
		return domain.Event{}, err
	}
	t1, t2 := strings.ToUpper(team1), strings.ToUpper(team2)
	for _, e := range events {
		home, away := strings.ToUpper(e.HomeTeam), strings.ToUpper(e.AwayTeam)
		if (home == t1 && away == t2) || (home == t2 && away == t1) {
			return e, nil
		}
	}
	return domain.Event{}, errors.Errorf("no game %s vs %s on %s", team1, team2, date)
}

// Plays returns the full play sequence for a completed game, serving from
// the cache when present.
func (h *HistoryStore) Plays(ctx context.Context, eventID string) ([]domain.Play, error) {
	key := []byte("pbp:" + eventID)

	var cached []byte
	err := h.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		cached, err = item.ValueCopy(nil)
		return err
	})
	if err == nil {
		var plays []domain.Play
		if err := json.Unmarshal(cached, &plays); err == nil {
			return plays, nil
		}
		log.Warnf("corrupt history cache entry for %s, refetching", eventID)
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrap(err, "read history cache")
	}

	plays, err := h.source.PlaySequence(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(plays) == 0 {
		return nil, errors.Errorf("event %s has no plays", eventID)
	}

	buf, err := json.Marshal(plays)
	if err != nil {
		return nil, errors.Wrap(err, "encode history cache entry")
	}
	if err := h.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf).WithTTL(30 * 24 * time.Hour)
		return txn.SetEntry(entry)
	}); err != nil {
		log.Warnf("write history cache for %s: %v", eventID, err)
	}
	return plays, nil
}
