package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const scoreboardJSON = `{
  "events": [
    {
      "id": "401001",
      "status": {"period": 2, "displayClock": "7:21", "type": {"state": "in"}},
      "competitions": [{"competitors": [
        {"homeAway": "home", "score": "14", "team": {"abbreviation": "KC"}},
        {"homeAway": "away", "score": "10", "team": {"abbreviation": "BUF"}}
      ]}]
    },
    {
      "id": "401002",
      "status": {"period": 0, "displayClock": "0:00", "type": {"state": "pre"}},
      "competitions": []
    }
  ]
}`

const summaryJSON = `{
  "drives": {
    "previous": [
      {"id": "d1", "plays": [
        {"id": "p1", "period": {"number": 1}, "clock": {"displayValue": "15:00"},
         "text": "kickoff", "type": {"text": "Kickoff"}, "statYardage": 0,
         "homeScore": 0, "awayScore": 0},
        {"id": "p2", "period": {"number": 1}, "clock": {"displayValue": "14:20"},
         "text": "run for 5", "type": {"text": "Rush"}, "statYardage": 5,
         "homeScore": 0, "awayScore": 0,
         "start": {"down": 1, "distance": 10, "yardsToEndzone": 75}}
      ]}
    ],
    "current": {"id": "d2", "plays": [
      {"id": "p3", "period": {"number": 2}, "clock": {"displayValue": "7:21"},
       "text": "touchdown pass", "type": {"text": "Pass"}, "statYardage": 22,
       "scoringPlay": true, "homeScore": 7, "awayScore": 0,
       "start": {"down": 3, "distance": 4, "yardsToEndzone": 22}}
    ]}
  },
  "winprobability": [
    {"playId": "p1", "homeWinPercentage": 50.0, "secondsLeft": 3600},
    {"playId": "p3", "homeWinPercentage": 71.5, "secondsLeft": 2241}
  ]
}`

func espnFixture(t *testing.T, summaryCalls *int32) *ESPNSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/scoreboard":
			_, _ = w.Write([]byte(scoreboardJSON))
		case "/summary":
			if summaryCalls != nil {
				atomic.AddInt32(summaryCalls, 1)
			}
			_, _ = w.Write([]byte(summaryJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return NewESPNSource(srv.URL, time.Second, 50*time.Millisecond)
}

func TestLiveEventsFiltersInProgress(t *testing.T) {
	src := espnFixture(t, nil)
	events := src.LiveEvents(context.Background())
	if len(events) != 1 {
		t.Fatalf("live events: got %d, want 1", len(events))
	}
	ev := events[0]
	if ev.ID != "401001" || ev.HomeTeam != "KC" || ev.AwayTeam != "BUF" {
		t.Fatalf("event: %+v", ev)
	}
	if ev.HomeScore != 14 || ev.AwayScore != 10 || ev.Quarter != 2 {
		t.Fatalf("event metadata: %+v", ev)
	}
}

func TestPlaySequenceFlattensDrivesInOrder(t *testing.T) {
	src := espnFixture(t, nil)
	plays, err := src.PlaySequence(context.Background(), "401001")
	if err != nil {
		t.Fatalf("play sequence: %v", err)
	}
	if len(plays) != 3 {
		t.Fatalf("plays: got %d, want 3", len(plays))
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if plays[i].PlayID != want || plays[i].Sequence != int64(i) {
			t.Fatalf("play %d: id=%s seq=%d, want id=%s seq=%d", i, plays[i].PlayID, plays[i].Sequence, want, i)
		}
	}

	td := plays[2]
	if td.Quarter != 2 || td.Down != 3 || td.YardsToGo != 4 || td.YardLine != 22 {
		t.Fatalf("situation: %+v", td)
	}
	if !td.ScoringPlay || td.YardsGained != 22 || td.EventID != "401001" {
		t.Fatalf("play detail: %+v", td)
	}
}

func TestPlaySequenceUsesTTLCache(t *testing.T) {
	var calls int32
	src := espnFixture(t, &calls)
	ctx := context.Background()

	if _, err := src.PlaySequence(ctx, "401001"); err != nil {
		t.Fatal(err)
	}
	if _, err := src.PlaySequence(ctx, "401001"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("summary fetched %d times inside TTL, want 1", n)
	}

	time.Sleep(80 * time.Millisecond)
	if _, err := src.PlaySequence(ctx, "401001"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("summary fetched %d times after TTL expiry, want 2", n)
	}
}

func TestWinProbabilityNormalizesAndFavors(t *testing.T) {
	src := espnFixture(t, nil)
	wp, ok := src.WinProbability(context.Background(), "401001")
	if !ok {
		t.Fatal("no win probability")
	}
	// latest tick: home 71.5%, favored side 0.715
	if wp < 0.714 || wp > 0.716 {
		t.Fatalf("wp: got %v, want 0.715", wp)
	}
}

func TestLiveEventsSoftFailsOnUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewESPNSource(srv.URL, time.Second, time.Minute)
	if events := src.LiveEvents(context.Background()); events != nil {
		t.Fatalf("got %v, want nil on upstream error", events)
	}
}
