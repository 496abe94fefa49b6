package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/betbot/swingfeed/internal/domain"
	"github.com/betbot/swingfeed/internal/signal"
)

// cursorStore tracks replay position per matchup, so repeated calls to
// the cursor endpoint step through a historical game one play at a time.
type cursorStore struct {
	mu      sync.Mutex
	cursors map[string]*cursor
}

type cursor struct {
	event domain.Event
	rows  []domain.PlayResult
	index int
}

func newCursorStore() *cursorStore {
	return &cursorStore{cursors: make(map[string]*cursor)}
}

func cursorKey(date, team1, team2 string) string {
	a, b := strings.ToUpper(team1), strings.ToUpper(team2)
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s:%s", date, a, b)
}

// handleNext steps a replay cursor through a completed game. Query
// parameters: date (YYYYMMDD), team1, team2 select the game; reset=1
// rewinds to the first play, peek=1 reads without advancing, verbose=1
// returns the full scored record instead of the short form.
func (s *Server) handleNext(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "replay history not configured"})
		return
	}

	date := c.Query("date")
	team1 := c.Query("team1")
	team2 := c.Query("team2")
	if date == "" || team1 == "" || team2 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date, team1 and team2 are required"})
		return
	}

	key := cursorKey(date, team1, team2)
	cur, err := s.loadCursor(c, key, date, team1, team2)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	s.cursors.mu.Lock()
	defer s.cursors.mu.Unlock()

	if c.Query("reset") == "1" {
		cur.index = 0
	}
	if cur.index >= len(cur.rows) {
		c.JSON(http.StatusOK, gin.H{"done": true, "total": len(cur.rows)})
		return
	}

	row := cur.rows[cur.index]
	index := cur.index
	if c.Query("peek") != "1" {
		cur.index++
	}

	resp := gin.H{
		"game_id": cur.event.ID,
		"index":   index,
		"total":   len(cur.rows),
	}
	if c.Query("verbose") == "1" {
		resp["play"] = row
	} else {
		resp["play"] = gin.H{
			"play_id": row.PlayID,
			"qtr":     row.Quarter,
			"clock":   row.Clock,
			"desc":    row.Description,
			"signal":  row.Signal,
			"wp":      row.WinProb,
			"prob":    row.SwingProb,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// loadCursor returns the cursor for a matchup, resolving, fetching and
// scoring the game on first use.
func (s *Server) loadCursor(c *gin.Context, key, date, team1, team2 string) (*cursor, error) {
	s.cursors.mu.Lock()
	if cur, ok := s.cursors.cursors[key]; ok {
		s.cursors.mu.Unlock()
		return cur, nil
	}
	s.cursors.mu.Unlock()

	event, err := s.history.FindEvent(c.Request.Context(), date, team1, team2)
	if err != nil {
		return nil, err
	}
	plays, err := s.history.Plays(c.Request.Context(), event.ID)
	if err != nil {
		return nil, err
	}
	rows := s.scoreSequence(event.ID, plays)

	s.cursors.mu.Lock()
	defer s.cursors.mu.Unlock()
	if cur, ok := s.cursors.cursors[key]; ok {
		return cur, nil
	}
	cur := &cursor{event: event, rows: rows}
	s.cursors.cursors[key] = cur
	return cur, nil
}

// scoreSequence runs a completed game through the feature, ensemble and
// detector chain in play order, producing the same records a live worker
// would have published.
func (s *Server) scoreSequence(eventID string, plays []domain.Play) []domain.PlayResult {
	det := signal.New(s.detector)
	rows := make([]domain.PlayResult, 0, len(plays))
	for i, play := range plays {
		wp := play.WinProb
		if !play.HasWinProb {
			wp = play.EstimatedWinProb()
		}
		play.WinProb = wp
		play.HasWinProb = true

		fv := s.extractor.Extract(play, plays[:i])
		var prob float64
		if s.predictor != nil {
			p, _, err := s.predictor.Predict(fv)
			if err != nil {
				log.Warnf("score play %s for %s: %v", play.PlayID, eventID, err)
			} else {
				prob = p
			}
		}

		sig := det.Observe(domain.WinProbabilitySample{
			EventID: eventID,
			PlayID:  play.PlayID,
			Quarter: play.Quarter,
			WinProb: wp,
		})

		secs := play.SecondsRemaining
		if secs <= 0 {
			secs = int(fv.Get("game_seconds_remaining"))
		}
		rows = append(rows, domain.PlayResult{
			EventID:          eventID,
			PlayID:           play.PlayID,
			Quarter:          play.Quarter,
			WinProb:          wp,
			Signal:           sig,
			Description:      play.Description,
			Clock:            play.Clock,
			SwingProb:        prob,
			Posteam:          play.Posteam,
			Defteam:          play.Defteam,
			Down:             play.Down,
			YardsToGo:        play.YardsToGo,
			YardLine:         play.YardLine,
			SecondsRemaining: secs,
		})
	}
	return rows
}
