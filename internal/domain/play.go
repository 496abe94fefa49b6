package domain

import "strings"

// Play is one discrete game event as observed from the upstream feed.
// Immutable once observed; Sequence is the monotonic ordering key within
// an event (play ids are unique but not guaranteed sortable).
type Play struct {
	EventID          string  `json:"event_id"`
	PlayID           string  `json:"play_id"`
	Sequence         int64   `json:"sequence"`
	Quarter          int     `json:"qtr"`
	Clock            string  `json:"clock"`
	Down             int     `json:"down"`
	YardsToGo        int     `json:"ydstogo"`
	YardLine         int     `json:"yardline_100"`
	SecondsRemaining int     `json:"game_seconds_remaining"`
	Description      string  `json:"desc"`
	PlayType         string  `json:"play_type,omitempty"`
	YardsGained      int     `json:"yards_gained"`
	ScoringPlay      bool    `json:"scoring_play"`
	HomeScore        int     `json:"home_score"`
	AwayScore        int     `json:"away_score"`
	Posteam          string  `json:"posteam,omitempty"`
	Defteam          string  `json:"defteam,omitempty"`
	WinProb          float64 `json:"wp,omitempty"`
	HasWinProb       bool    `json:"-"`
}

// ScoreDiff returns home minus away at the time of the play.
func (p *Play) ScoreDiff() int {
	return p.HomeScore - p.AwayScore
}

// IsTurnover flags interception/fumble plays from the description text.
func (p *Play) IsTurnover() bool {
	u := strings.ToUpper(p.Description)
	return strings.Contains(u, "INTERCEPTED") || strings.Contains(u, "FUMBLE")
}

// EstimatedWinProb is the score-based fallback used when the upstream
// feed carries no win-probability for the play: 0.5 + diff/50, clamped.
func (p *Play) EstimatedWinProb() float64 {
	wp := 0.5 + float64(p.ScoreDiff())/50.0
	if wp < 0 {
		return 0
	}
	if wp > 1 {
		return 1
	}
	return wp
}

// FeatureVector is an ordered mapping from feature names to values. The
// name order is fixed by the extractor so downstream alignment is stable.
type FeatureVector struct {
	Names  []string
	Values map[string]float64
}

// Get returns the named feature, 0 if absent.
func (v FeatureVector) Get(name string) float64 {
	return v.Values[name]
}

// PredictionResult is the blended ensemble output for one play.
type PredictionResult struct {
	EventID   string             `json:"event_id"`
	PlayID    string             `json:"play_id"`
	SwingProb float64            `json:"swing_prob"`
	PerModel  map[string]float64 `json:"per_model,omitempty"`
}

// WinProbabilitySample is one point of an event's win-probability trace.
// WinProb refers to the currently favored side, not a fixed side.
type WinProbabilitySample struct {
	EventID string
	PlayID  string
	Quarter int
	WinProb float64
}

// Trailing is the distance from certainty toward a tossup: min(wp, 1-wp).
func (s WinProbabilitySample) Trailing() float64 {
	if s.WinProb < 1.0-s.WinProb {
		return s.WinProb
	}
	return 1.0 - s.WinProb
}

// PlayResult is the record delivered to downstream sinks for one new play.
// JSON field names follow the push-sink wire contract.
type PlayResult struct {
	EventID          string  `json:"-"`
	PlayID           string  `json:"play_id"`
	Quarter          int     `json:"qtr"`
	WinProb          float64 `json:"wp"`
	Signal           int     `json:"signal"`
	Description      string  `json:"desc"`
	Clock            string  `json:"clock,omitempty"`
	SwingProb        float64 `json:"prob"`
	Posteam          string  `json:"posteam,omitempty"`
	Defteam          string  `json:"defteam,omitempty"`
	Down             int     `json:"down"`
	YardsToGo        int     `json:"ydstogo"`
	YardLine         int     `json:"yardline_100"`
	SecondsRemaining int     `json:"game_seconds_remaining"`
}

// Event identifies one live game with enough metadata to key a worker.
type Event struct {
	ID        string `json:"id"`
	HomeTeam  string `json:"home_team,omitempty"`
	AwayTeam  string `json:"away_team,omitempty"`
	HomeScore int    `json:"home_score,omitempty"`
	AwayScore int    `json:"away_score,omitempty"`
	Quarter   int    `json:"qtr,omitempty"`
	Clock     string `json:"clock,omitempty"`
}
