package features

import (
	"math"
	"testing"

	"github.com/betbot/swingfeed/internal/domain"
)

func TestExtractAppliesDefaultsForMissingFields(t *testing.T) {
	e := NewExtractor()
	// a play with nothing but a description: every situational field missing
	fv := e.Extract(domain.Play{Description: "no huddle snap"}, nil)

	checks := map[string]float64{
		"down":         1,
		"ydstogo":      10,
		"yardline_100": 50,
	}
	for name, want := range checks {
		if got := fv.Get(name); got != want {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}
}

func TestExtractNeverPanicsOnEmptyPlay(t *testing.T) {
	e := NewExtractor()
	fv := e.Extract(domain.Play{}, nil)
	if len(fv.Values) != len(featureOrder) {
		t.Fatalf("vector has %d features, want %d", len(fv.Values), len(featureOrder))
	}
	for _, name := range fv.Names {
		v := fv.Get(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("feature %s is %v", name, v)
		}
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	e := NewExtractor()
	play := domain.Play{
		Quarter: 4, Clock: "3:12", Down: 3, YardsToGo: 8, YardLine: 42,
		HomeScore: 21, AwayScore: 17, YardsGained: 6,
		Description: "pass complete for 6 yards",
	}
	ctx := []domain.Play{{YardsGained: 3}, {YardsGained: -2}, play}

	a := e.Extract(play, ctx)
	b := e.Extract(play, ctx)
	for _, name := range a.Names {
		if a.Get(name) != b.Get(name) {
			t.Fatalf("feature %s differs across identical calls: %v vs %v", name, a.Get(name), b.Get(name))
		}
	}
}

func TestWPChangesZeroOnShortHistory(t *testing.T) {
	e := NewExtractor()
	play := domain.Play{Quarter: 1, Clock: "10:00"}
	fv := e.Extract(play, []domain.Play{play})

	for _, name := range []string{"wp_change_abs", "wp_change_3plays_abs", "wp_change_5plays_abs"} {
		if got := fv.Get(name); got != 0 {
			t.Fatalf("%s with one-play history: got %v, want 0", name, got)
		}
	}
}

func TestWPChangeUsesLookback(t *testing.T) {
	e := NewExtractor()
	older := domain.Play{WinProb: 0.30, HasWinProb: true}
	latest := domain.Play{WinProb: 0.55, HasWinProb: true}
	fv := e.Extract(latest, []domain.Play{older, latest})

	if got := fv.Get("wp_change_abs"); math.Abs(got-0.25) > 1e-12 {
		t.Fatalf("wp_change_abs: got %v, want 0.25", got)
	}
}

func TestSituationalFlags(t *testing.T) {
	e := NewExtractor()
	play := domain.Play{
		Quarter: 4, Clock: "1:30", Down: 3, YardsToGo: 9, YardLine: 18,
		HomeScore: 20, AwayScore: 17,
	}
	fv := e.Extract(play, nil)

	flags := map[string]float64{
		"third_down":    1,
		"long_distance": 1,
		"short_yardage": 0,
		"in_red_zone":   1,
		"in_fg_range":   1,
		"is_close_game": 1,
		"is_very_close": 1,
		"is_fourth_qtr": 1,
		"is_final_2min": 1,
	}
	for name, want := range flags {
		if got := fv.Get(name); got != want {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}
	// close game, fourth quarter, crunch time and final 2 minutes all stack
	if got := fv.Get("leverage_index"); got != 8 {
		t.Fatalf("leverage_index: got %v, want 8", got)
	}
}

func TestClockToSeconds(t *testing.T) {
	cases := []struct {
		clock   string
		quarter int
		want    int
	}{
		{"15:00", 1, 3*900 + 900},
		{"7:30", 2, 2*900 + 450},
		{"0:45", 4, 45},
		{"", 3, 900},
		{"halftime", 2, 900},
	}
	for _, tc := range cases {
		if got := clockToSeconds(tc.clock, tc.quarter); got != tc.want {
			t.Fatalf("clockToSeconds(%q, %d) = %d, want %d", tc.clock, tc.quarter, got, tc.want)
		}
	}
}

func TestRollingYards(t *testing.T) {
	ctx := []domain.Play{{YardsGained: 10}, {YardsGained: 20}, {YardsGained: 30}}
	mean, std := rollingYards(ctx, 3)
	if mean != 20 {
		t.Fatalf("mean: got %v, want 20", mean)
	}
	if math.Abs(std-10) > 1e-12 {
		t.Fatalf("std: got %v, want 10", std)
	}

	mean, std = rollingYards(ctx[:1], 5)
	if mean != 10 || std != 0 {
		t.Fatalf("single play window: got mean=%v std=%v", mean, std)
	}
}
