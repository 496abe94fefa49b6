// Package signal converts a noisy per-event win-probability trace into a
// stable tri-state swing signal.
//
// The detector works on the trailing probability min(wp, 1-wp): the
// distance from certainty toward a 50/50 tossup. Signal 1 marks a
// building/sustained move toward parity, signal 2 a sustained close
// finish inside the final quarter. Both sides of the state machine use
// hysteresis so a single noisy sample cannot flip the signal.
package signal

import (
	"github.com/betbot/swingfeed/internal/domain"
	"github.com/betbot/swingfeed/pkg/config"
)

// Detector is the per-event hysteresis state machine. One instance owns
// the state for exactly one event; feed it samples in sequence order.
// It is a pure function of the ordered sample history: replaying any
// prefix reproduces the same outputs.
type Detector struct {
	cfg config.DetectorConfig

	trail []float64 // trailing probability per observed sample

	risingStreak  int
	fallingStreak int
	outsideBand   int
	oneActive     bool
	twoActive     bool
}

// State is a diagnostic snapshot of the detector.
type State struct {
	Samples       int
	RisingStreak  int
	FallingStreak int
	OutsideBand   int
	OneActive     bool
	TwoActive     bool
	LastTrailing  float64
}

// New creates a detector with the given thresholds.
func New(cfg config.DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Observe consumes the next sample of the event's trace and returns the
// signal for it. The first sample always reports 0: no prior delta exists.
func (d *Detector) Observe(s domain.WinProbabilitySample) int {
	curr := s.Trailing()
	d.trail = append(d.trail, curr)

	i := len(d.trail) - 1
	if i == 0 {
		return 0
	}

	prev := d.trail[i-1]
	rise := curr > prev
	delta := curr - prev

	if !d.oneActive && prev < d.cfg.EntryGate {
		if rise {
			d.risingStreak++
		} else {
			d.risingStreak = 0
		}
		if d.risingStreak >= d.cfg.RiseStreak {
			d.oneActive = true
		}
		if curr >= d.cfg.ReboundLevel && d.reboundArmed(i) {
			d.oneActive = true
		}
		if prev <= d.cfg.JumpFrom && delta >= d.cfg.JumpDelta {
			d.oneActive = true
		}
	}

	if d.oneActive {
		if !rise {
			d.fallingStreak++
		} else {
			d.fallingStreak = 0
		}
		// the level exit fires on a downward cross only, so an entry
		// armed while the trailing probability is still low is not
		// cancelled on the very sample that opened it
		if d.fallingStreak >= d.cfg.FallStreak || delta <= -d.cfg.DropDelta || (prev > d.cfg.ExitLevel && curr <= d.cfg.ExitLevel) {
			d.oneActive = false
			d.fallingStreak = 0
		}
	}

	if s.Quarter == d.cfg.FinalQuarter {
		if curr >= d.cfg.BandLow && curr <= d.cfg.BandHigh {
			d.twoActive = true
			d.outsideBand = 0
		} else {
			d.outsideBand++
			if d.outsideBand >= d.cfg.BandGrace {
				d.twoActive = false
			}
		}
	} else {
		d.twoActive = false
		d.outsideBand = 0
	}

	switch {
	case d.twoActive:
		return 2
	case d.oneActive:
		return 1
	default:
		return 0
	}
}

// reboundArmed reports whether the trailing probability sat below the
// entry gate somewhere in the rebound lookback window. Lookbacks past the
// start of the trace clamp to the first sample.
func (d *Detector) reboundArmed(i int) bool {
	for k := d.cfg.ReboundLookMin; k <= d.cfg.ReboundLookMax; k++ {
		j := i - k
		if j < 0 {
			j = 0
		}
		if d.trail[j] < d.cfg.EntryGate {
			return true
		}
	}
	return false
}

// State returns a snapshot for diagnostics and tests.
func (d *Detector) State() State {
	st := State{
		Samples:       len(d.trail),
		RisingStreak:  d.risingStreak,
		FallingStreak: d.fallingStreak,
		OutsideBand:   d.outsideBand,
		OneActive:     d.oneActive,
		TwoActive:     d.twoActive,
	}
	if len(d.trail) > 0 {
		st.LastTrailing = d.trail[len(d.trail)-1]
	}
	return st
}

// Reset discards all state so the detector can score a fresh trace.
func (d *Detector) Reset() {
	d.trail = d.trail[:0]
	d.risingStreak = 0
	d.fallingStreak = 0
	d.outsideBand = 0
	d.oneActive = false
	d.twoActive = false
}

// Run scores a full trace in one call. It is the batch face of the same
// transition function: Run(cfg, samples)[i] equals the i-th Observe on a
// fresh detector, which is what makes live and replay paths agree.
func Run(cfg config.DetectorConfig, samples []domain.WinProbabilitySample) []int {
	d := New(cfg)
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = d.Observe(s)
	}
	return out
}
