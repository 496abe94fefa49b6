package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/swingfeed/internal/domain"
	"github.com/betbot/swingfeed/internal/ensemble"
	"github.com/betbot/swingfeed/internal/feed"
	"github.com/betbot/swingfeed/internal/features"
	"github.com/betbot/swingfeed/internal/metrics"
	"github.com/betbot/swingfeed/internal/signal"
	"github.com/betbot/swingfeed/pkg/config"
)

var log = logrus.WithField("component", "monitor")

// ResultSink receives the result record for every newly observed play.
type ResultSink interface {
	Publish(domain.PlayResult)
}

// Worker polls one event's play sequence, runs each new play through the
// feature/ensemble/detector chain and hands the result to the sink. One
// worker per event; the detector inside it is the event's signal state.
type Worker struct {
	eventID   string
	source    feed.Source
	extractor *features.Extractor
	predictor *ensemble.Predictor
	detector  *signal.Detector
	sessions  *SessionStore
	sink      ResultSink
	poll      time.Duration
	cooldown  time.Duration
	log       *logrus.Entry
}

func NewWorker(eventID string, source feed.Source, predictor *ensemble.Predictor, cfg *config.Config, sessions *SessionStore, sink ResultSink) *Worker {
	return &Worker{
		eventID:   eventID,
		source:    source,
		extractor: features.NewExtractor(),
		predictor: predictor,
		detector:  signal.New(cfg.Detector),
		sessions:  sessions,
		sink:      sink,
		poll:      cfg.PollInterval(),
		cooldown:  cfg.Cooldown(),
		log:       log.WithField("event", eventID),
	}
}

// Run polls until the context is canceled. A panic while processing one
// play is recovered inside the poll so the worker keeps going; a poison
// play can never take down the whole event.
func (w *Worker) Run(ctx context.Context) {
	metrics.WorkersStarted.Add(1)
	metrics.WorkersActive.Add(1)
	defer metrics.WorkersActive.Add(-1)
	defer metrics.WorkersStopped.Add(1)
	w.log.Info("worker started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		case <-timer.C:
		}
		delivered := w.pollOnce(ctx)
		if delivered {
			timer.Reset(w.cooldown)
		} else {
			timer.Reset(w.poll)
		}
	}
}

// pollOnce fetches the current sequence, processes anything new and
// reports whether at least one play was delivered.
func (w *Worker) pollOnce(ctx context.Context) bool {
	plays, err := w.source.PlaySequence(ctx, w.eventID)
	if err != nil {
		w.log.Warnf("poll: %v", err)
		return false
	}

	sess := w.sessions.Get(w.eventID)
	start := newPlaysFrom(plays, sess)
	if start >= len(plays) {
		return false
	}

	delivered := false
	for i := start; i < len(plays); i++ {
		if w.processPlay(ctx, plays[i], plays[:i]) {
			delivered = true
		}
		sess.LastPlayID = plays[i].PlayID
		sess.LastCount = i + 1
	}
	if delivered {
		sess.CooldownUntil = time.Now().Add(w.cooldown)
	}
	return delivered
}

// newPlaysFrom finds the index of the first unseen play. The id of the
// last processed play wins over the raw count, so an upstream that
// rewrites history (drops or reorders old plays) resynchronizes instead
// of double-delivering. A fresh session joining a game already in
// progress starts at the latest play; the backlog predates the worker
// and would only feed the chain a synthetic flat trace.
func newPlaysFrom(plays []domain.Play, sess *Session) int {
	if sess.LastPlayID == "" {
		if len(plays) > 1 {
			return len(plays) - 1
		}
		return 0
	}
	for i := len(plays) - 1; i >= 0; i-- {
		if plays[i].PlayID == sess.LastPlayID {
			return i + 1
		}
	}
	if sess.LastCount < len(plays) {
		return sess.LastCount
	}
	return len(plays)
}

func (w *Worker) processPlay(ctx context.Context, play domain.Play, prior []domain.Play) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("panic processing play %s: %v", play.PlayID, r)
			ok = false
		}
	}()

	wp := w.winProb(ctx, play)
	play.WinProb = wp
	play.HasWinProb = true

	fv := w.extractor.Extract(play, prior)
	prob, _, err := w.predictor.Predict(fv)
	if err != nil {
		w.log.Warnf("predict play %s: %v", play.PlayID, err)
		prob = 0
	}

	sig := w.detector.Observe(domain.WinProbabilitySample{
		EventID: w.eventID,
		PlayID:  play.PlayID,
		Quarter: play.Quarter,
		WinProb: wp,
	})
	if sig != 0 {
		metrics.SignalsEmitted.Add(1)
	}

	w.sink.Publish(domain.PlayResult{
		EventID:          w.eventID,
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
		SecondsRemaining: secondsRemaining(play, fv),
	})
	metrics.PlaysProcessed.Add(1)
	return true
}

// secondsRemaining reports the play's own value when the feed carried
// one, otherwise the extractor's clock-derived estimate.
func secondsRemaining(play domain.Play, fv domain.FeatureVector) int {
	if play.SecondsRemaining > 0 {
		return play.SecondsRemaining
	}
	return int(fv.Get("game_seconds_remaining"))
}

// winProb prefers the upstream's own win-probability series when the
// source exposes one and falls back to the score-based estimate.
func (w *Worker) winProb(ctx context.Context, play domain.Play) float64 {
	if wpp, ok := w.source.(feed.WinProbProvider); ok {
		if wp, ok := wpp.WinProbability(ctx, w.eventID); ok {
			return wp
		}
	}
	return play.EstimatedWinProb()
}
