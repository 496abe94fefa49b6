// Package features turns one play plus its preceding context window into
// the fixed-order numeric vector the ensemble was trained on.
package features

import (
	"math"
	"strconv"
	"strings"

	"github.com/betbot/swingfeed/internal/domain"
)

// featureOrder is the canonical vector layout. The classifier artifacts
// were trained against these names; alignment downstream keys off them.
var featureOrder = []string{
	"down",
	"ydstogo",
	"yardline_100",
	"qtr",
	"game_seconds_remaining",
	"score_differential",
	"in_red_zone",
	"in_fg_range",
	"field_position_value",
	"third_down",
	"long_distance",
	"short_yardage",
	"is_close_game",
	"is_very_close",
	"is_fourth_qtr",
	"is_crunch_time",
	"is_final_2min",
	"leverage_index",
	"wp",
	"wp_change_abs",
	"wp_change_3plays_abs",
	"wp_change_5plays_abs",
	"rolling_epa_3",
	"rolling_epa_5",
	"rolling_epa_10",
	"rolling_epa_std_3",
	"rolling_epa_std_5",
	"rolling_epa_std_10",
	"turnover",
	"explosive_play",
	"scoring_play",
	"sack",
	"fourth_down_attempt",
	"yards_gained",
}

// Defaults applied when the upstream schema drops a field. Zero values on
// the play are treated as missing for these three.
const (
	defaultDown      = 1
	defaultYardsToGo = 10
	defaultYardLine  = 50
)

// Names returns the canonical feature order.
func Names() []string {
	out := make([]string, len(featureOrder))
	copy(out, featureOrder)
	return out
}

// Extractor derives feature vectors from plays. Stateless; safe for
// concurrent use across workers.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract builds the feature vector for latest given its context window
// (ordered, oldest first, up to and including latest). Deterministic for
// identical inputs. Fields absent upstream degrade to safe defaults; a
// feature that cannot be derived materializes as 0, never as an error.
func (e *Extractor) Extract(latest domain.Play, context []domain.Play) domain.FeatureVector {
	if len(context) == 0 {
		context = []domain.Play{latest}
	}

	down := latest.Down
	if down <= 0 {
		down = defaultDown
	}
	ydstogo := latest.YardsToGo
	if ydstogo <= 0 {
		ydstogo = defaultYardsToGo
	}
	yardline := latest.YardLine
	if yardline <= 0 {
		yardline = defaultYardLine
	}
	secondsRemaining := latest.SecondsRemaining
	if secondsRemaining <= 0 {
		secondsRemaining = clockToSeconds(latest.Clock, latest.Quarter)
	}

	f := make(map[string]float64, len(featureOrder))

	f["down"] = float64(down)
	f["ydstogo"] = float64(ydstogo)
	f["yardline_100"] = float64(yardline)
	f["qtr"] = float64(latest.Quarter)
	f["game_seconds_remaining"] = float64(secondsRemaining)
	f["score_differential"] = float64(latest.ScoreDiff())

	f["in_red_zone"] = boolFeature(yardline <= 20)
	f["in_fg_range"] = boolFeature(yardline <= 35)
	f["field_position_value"] = float64(100 - yardline)

	f["third_down"] = boolFeature(down == 3)
	f["long_distance"] = boolFeature(ydstogo >= 7)
	f["short_yardage"] = boolFeature(ydstogo <= 2)

	scoreDiff := math.Abs(float64(latest.ScoreDiff()))
	f["is_close_game"] = boolFeature(scoreDiff <= 8)
	f["is_very_close"] = boolFeature(scoreDiff <= 3)
	f["is_fourth_qtr"] = boolFeature(latest.Quarter == 4)
	f["is_crunch_time"] = boolFeature(latest.Quarter == 4 && secondsRemaining < 300)
	f["is_final_2min"] = boolFeature(latest.Quarter == 4 && secondsRemaining < 120)

	f["leverage_index"] = f["is_close_game"] *
		(1 + f["is_fourth_qtr"]) *
		(1 + f["is_crunch_time"]) *
		(1 + f["is_final_2min"])

	wp := playWinProb(latest)
	f["wp"] = wp
	f["wp_change_abs"] = wpDelta(wp, context, 1)
	f["wp_change_3plays_abs"] = wpDelta(wp, context, 3)
	f["wp_change_5plays_abs"] = wpDelta(wp, context, 5)

	for _, window := range []int{3, 5, 10} {
		mean, std := rollingYards(context, window)
		f["rolling_epa_"+strconv.Itoa(window)] = mean / 10
		f["rolling_epa_std_"+strconv.Itoa(window)] = std / 10
	}

	f["turnover"] = boolFeature(latest.IsTurnover())
	f["explosive_play"] = boolFeature(latest.YardsGained >= 20)
	f["scoring_play"] = boolFeature(latest.ScoringPlay)
	f["sack"] = boolFeature(strings.Contains(strings.ToLower(latest.Description), "sack"))
	f["fourth_down_attempt"] = boolFeature(latest.Down == 4)
	f["yards_gained"] = float64(latest.YardsGained)

	return domain.FeatureVector{Names: Names(), Values: f}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// playWinProb prefers the upstream win probability and falls back to the
// score-based estimate.
func playWinProb(p domain.Play) float64 {
	if p.HasWinProb {
		return p.WinProb
	}
	return p.EstimatedWinProb()
}

// wpDelta is the absolute win-probability change over a lookback of n
// plays. Short histories yield 0, not an error.
func wpDelta(current float64, context []domain.Play, lookback int) float64 {
	idx := len(context) - 1 - lookback
	if idx < 0 {
		return 0
	}
	return math.Abs(current - playWinProb(context[idx]))
}

// rollingYards returns mean and population-ish stddev of yards gained
// over the trailing window (shorter histories use what exists).
func rollingYards(context []domain.Play, window int) (float64, float64) {
	start := len(context) - window
	if start < 0 {
		start = 0
	}
	tail := context[start:]
	if len(tail) == 0 {
		return 0, 0
	}

	var sum float64
	for _, p := range tail {
		sum += float64(p.YardsGained)
	}
	mean := sum / float64(len(tail))

	if len(tail) < 2 {
		return mean, 0
	}
	var variance float64
	for _, p := range tail {
		d := float64(p.YardsGained) - mean
		variance += d * d
	}
	variance /= float64(len(tail) - 1)
	return mean, math.Sqrt(variance)
}

// clockToSeconds derives full-game seconds remaining from a display clock
// like "12:34" plus the quarter. Unparseable clocks fall back to a full
// quarter on the clock.
func clockToSeconds(clock string, quarter int) int {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 900
	}
	minutes, errM := strconv.Atoi(strings.TrimSpace(parts[0]))
	seconds, errS := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errM != nil || errS != nil {
		return 900
	}
	quarterSeconds := minutes*60 + seconds

	quartersLeft := 4 - quarter
	if quartersLeft < 0 {
		quartersLeft = 0
	}
	return quartersLeft*900 + quarterSeconds
}
