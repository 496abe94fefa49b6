package signal

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/betbot/swingfeed/internal/domain"
	"github.com/betbot/swingfeed/pkg/config"
)


// normWP folds an arbitrary float into [0, 1) for generated traces.
func normWP(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.5
	}
	return math.Abs(math.Mod(v, 1))
}

func samplesFrom(quarter int, wps ...float64) []domain.WinProbabilitySample {
	out := make([]domain.WinProbabilitySample, len(wps))
	for i, wp := range wps {
		out[i] = domain.WinProbabilitySample{Quarter: quarter, WinProb: wp}
	}
	return out
}

func TestFirstSampleAlwaysZero(t *testing.T) {
	cfg := config.DefaultDetector()
	for _, wp := range []float64{0.0, 0.2, 0.5, 0.45, 1.0} {
		d := New(cfg)
		got := d.Observe(domain.WinProbabilitySample{Quarter: 4, WinProb: wp})
		if got != 0 {
			t.Fatalf("first sample wp=%v: got signal %d, want 0", wp, got)
		}
	}
}

func TestRisingStreakEntry(t *testing.T) {
	cfg := config.DefaultDetector()
	// trailing climbs below the entry gate; five consecutive rises enter
	samples := samplesFrom(2, 0.10, 0.12, 0.15, 0.18, 0.21, 0.24)
	got := Run(cfg, samples)
	want := []int{0, 0, 0, 0, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rising streak: index %d got %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestRisingStreakEntrySurvivesLowTrailing(t *testing.T) {
	cfg := config.DefaultDetector()
	// the trailing probability is still far below the exit level when the
	// streak completes; the entry must hold, not cancel on its own sample
	samples := samplesFrom(2, 0.10, 0.12, 0.15, 0.18, 0.21, 0.24, 0.26, 0.28)
	got := Run(cfg, samples)
	want := []int{0, 0, 0, 0, 0, 1, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("low-trailing entry: index %d got %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestLevelExitFiresOnDownwardCross(t *testing.T) {
	cfg := config.DefaultDetector()
	// -0.06 is too small for the drop rule and one non-rising step is no
	// streak; crossing down through the exit level ends the signal anyway
	samples := samplesFrom(2, 0.30, 0.20, 0.33, 0.34, 0.46, 0.40)
	got := Run(cfg, samples)
	want := []int{0, 0, 0, 0, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("level cross exit: index %d got %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestJumpEntry(t *testing.T) {
	cfg := config.DefaultDetector()
	// +0.20 from 0.30 clears the jump rule on the second sample
	samples := samplesFrom(2, 0.30, 0.50)
	got := Run(cfg, samples)
	if got[1] != 1 {
		t.Fatalf("jump entry: got %v, want signal 1 at index 1", got)
	}
}

func TestReboundEntry(t *testing.T) {
	cfg := config.DefaultDetector()
	// a dip below the gate inside the lookback window plus recovery to the
	// rebound level enters even without a full rising streak
	samples := samplesFrom(2, 0.30, 0.20, 0.33, 0.34, 0.46)
	got := Run(cfg, samples)
	want := []int{0, 0, 0, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rebound: index %d got %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestNoEntryAboveGate(t *testing.T) {
	cfg := config.DefaultDetector()
	// trailing rises but the prior sample never sits below the entry gate
	samples := samplesFrom(2, 0.40, 0.42, 0.44, 0.46, 0.48, 0.50, 0.50, 0.50)
	for i, sig := range Run(cfg, samples) {
		if sig != 0 {
			t.Fatalf("entry without gate: index %d got %d, want 0", i, sig)
		}
	}
}

// The reference end-to-end trace: a sub-gate head sample, a sharp move to
// a tossup, then a fade. Signal enters on the move and exits after three
// consecutive non-rising steps, which here coincides with the exit level.
func TestEntryThenFadeExit(t *testing.T) {
	cfg := config.DefaultDetector()
	// wp 0.50,0.52,0.55,0.60 gives trailing 0.50,0.48,0.45,0.40
	samples := samplesFrom(3, 0.30, 0.50, 0.52, 0.55, 0.60, 0.63, 0.66, 0.66, 0.66)
	got := Run(cfg, samples)
	want := []int{0, 1, 1, 1, 0, 0, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fade exit: index %d got %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestSharpDropExit(t *testing.T) {
	cfg := config.DefaultDetector()
	// enter by jump, then one -0.20 step exits immediately
	samples := samplesFrom(2, 0.30, 0.48, 0.50, 0.30)
	got := Run(cfg, samples)
	want := []int{0, 1, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drop exit: index %d got %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestStateTwoOnlyInFinalQuarter(t *testing.T) {
	cfg := config.DefaultDetector()
	inBand := samplesFrom(4, 0.50, 0.50, 0.52)
	got := Run(cfg, inBand)
	if got[1] != 2 || got[2] != 2 {
		t.Fatalf("final quarter band: got %v, want 2 from index 1", got)
	}

	for q := 1; q <= 3; q++ {
		for i, sig := range Run(cfg, samplesFrom(q, 0.50, 0.50, 0.52)) {
			if sig == 2 {
				t.Fatalf("quarter %d: signal 2 at index %d", q, i)
			}
		}
	}
}

func TestBandGrace(t *testing.T) {
	cfg := config.DefaultDetector()
	// leaving the band keeps state 2 alive for grace-1 samples
	samples := samplesFrom(4, 0.50, 0.50, 0.30, 0.30, 0.30, 0.30)
	got := Run(cfg, samples)
	want := []int{0, 2, 2, 2, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("band grace: index %d got %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestResetClearsState(t *testing.T) {
	cfg := config.DefaultDetector()
	d := New(cfg)
	for _, s := range samplesFrom(4, 0.30, 0.50, 0.50) {
		d.Observe(s)
	}
	d.Reset()
	st := d.State()
	if st.Samples != 0 || st.OneActive || st.TwoActive {
		t.Fatalf("reset left state behind: %+v", st)
	}
	if got := d.Observe(domain.WinProbabilitySample{Quarter: 4, WinProb: 0.50}); got != 0 {
		t.Fatalf("first sample after reset: got %d, want 0", got)
	}
}

// Streaming Observe and batch Run are the same transition function.
func TestStreamingMatchesBatch(t *testing.T) {
	cfg := config.DefaultDetector()
	samples := samplesFrom(4, 0.30, 0.50, 0.52, 0.55, 0.60, 0.30, 0.20, 0.45, 0.50)
	batch := Run(cfg, samples)

	d := New(cfg)
	for i, s := range samples {
		if got := d.Observe(s); got != batch[i] {
			t.Fatalf("index %d: streaming %d, batch %d", i, got, batch[i])
		}
	}
}

// Property: the detector is a pure function of the ordered sample prefix.
// Scoring a longer trace must agree with the shorter trace on every
// shared index.
func TestPropertyPrefixDeterminism(t *testing.T) {
	cfg := config.DefaultDetector()
	property := func(raw []float64, quarters []uint8, cut uint8) bool {
		if len(raw) == 0 {
			return true
		}
		samples := make([]domain.WinProbabilitySample, len(raw))
		for i, v := range raw {
			q := 1
			if i < len(quarters) {
				q = int(quarters[i]%4) + 1
			}
			samples[i] = domain.WinProbabilitySample{Quarter: q, WinProb: normWP(v)}
		}

		full := Run(cfg, samples)
		n := int(cut) % len(samples)
		prefix := Run(cfg, samples[:n])
		for i := range prefix {
			if prefix[i] != full[i] {
				return false
			}
		}
		return full[0] == 0 || len(full) == 0
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 500}); err != nil {
		t.Fatalf("prefix determinism violated: %v", err)
	}
}

// Property: signal 2 never appears outside the configured final quarter.
func TestPropertyNoStateTwoBeforeFinalQuarter(t *testing.T) {
	cfg := config.DefaultDetector()
	property := func(raw []float64, quarter uint8) bool {
		q := int(quarter%3) + 1 // 1..3
		samples := make([]domain.WinProbabilitySample, len(raw))
		for i, v := range raw {
			samples[i] = domain.WinProbabilitySample{Quarter: q, WinProb: normWP(v)}
		}
		for _, sig := range Run(cfg, samples) {
			if sig == 2 {
				return false
			}
		}
		return true
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 500}); err != nil {
		t.Fatalf("state 2 outside final quarter: %v", err)
	}
}
