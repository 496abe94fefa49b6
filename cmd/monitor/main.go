package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/swingfeed/internal/ensemble"
	"github.com/betbot/swingfeed/internal/feed"
	"github.com/betbot/swingfeed/internal/metrics"
	"github.com/betbot/swingfeed/internal/monitor"
	"github.com/betbot/swingfeed/internal/publish"
	"github.com/betbot/swingfeed/internal/server"
	"github.com/betbot/swingfeed/pkg/config"
	"github.com/betbot/swingfeed/pkg/logger"
	"github.com/betbot/swingfeed/pkg/shutdown"
	"github.com/betbot/swingfeed/pkg/syncgroup"
)

var (
	configPath = flag.String("config", "", "config file path (.yaml, .yml or .json)")
	replayID   = flag.String("replay", "", "replay this historical event instead of polling live games")
	noServer   = flag.Bool("no-server", false, "disable the ingest/stream HTTP server")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if *replayID != "" {
		cfg.Replay.EventID = *replayID
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile}); err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	log := logrus.WithField("component", "main")

	// model artifacts are load-bearing: refuse to run without classifiers
	artifacts, err := ensemble.LoadArtifacts(cfg.Models.Dir)
	if err != nil {
		log.Fatalf("load model artifacts: %v", err)
	}
	predictor, err := ensemble.NewPredictor(artifacts, cfg.Models.Weights)
	if err != nil {
		log.Fatalf("build predictor: %v", err)
	}
	log.Infof("ensemble ready: models=%v", predictor.ModelNames())

	espn := feed.NewESPNSource(
		cfg.Upstream.BaseURL,
		time.Duration(cfg.Upstream.TimeoutSeconds*float64(time.Second)),
		time.Duration(cfg.Upstream.CacheTTLSeconds*float64(time.Second)),
	)

	var source feed.Source = espn
	if cfg.Replay.EventID != "" {
		pace := time.Duration(cfg.Replay.PaceSeconds * float64(time.Second))
		source = feed.NewReplaySource(espn, cfg.Replay.EventID, pace)
		log.Infof("replay mode: event=%s pace=%s", cfg.Replay.EventID, pace)
	}

	hub := publish.NewHub()
	var sinks []*publish.PushSink
	pushTimeout := time.Duration(cfg.Push.TimeoutSeconds * float64(time.Second))
	for _, endpoint := range cfg.Push.Endpoints {
		sinks = append(sinks, publish.NewPushSink(endpoint, pushTimeout))
	}
	publisher := publish.NewPublisher(hub, sinks, pushTimeout)

	sessions := monitor.NewSessionStore()
	factory := func(eventID string) monitor.Runner {
		return monitor.NewWorker(eventID, source, predictor, cfg, sessions, publisher)
	}
	discovery := monitor.NewDiscovery(source, factory, sessions, cfg.DiscoveryInterval())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sd := shutdown.NewManager()
	group := syncgroup.NewSyncGroup()

	group.Add(func() { discovery.Run(ctx) })

	if !*noServer {
		// historical play-by-play may live on a different host
		historySource := espn
		if cfg.Replay.DataURL != "" {
			historySource = feed.NewESPNSource(
				cfg.Replay.DataURL,
				time.Duration(cfg.Upstream.TimeoutSeconds*float64(time.Second)),
				time.Duration(cfg.Upstream.CacheTTLSeconds*float64(time.Second)),
			)
		}
		var history *feed.HistoryStore
		history, err = feed.NewHistoryStore(historySource, cfg.Replay.CacheDir)
		if err != nil {
			log.Warnf("history cache unavailable: %v", err)
		} else {
			sd.OnShutdown(func(context.Context, *sync.WaitGroup) {
				_ = history.Close()
			})
		}
		srv := server.New(cfg.Server, hub, history, predictor, cfg.Detector)
		group.Add(func() {
			if err := srv.Run(ctx); err != nil {
				log.Errorf("http server: %v", err)
			}
		})
	}

	if cfg.MetricsAddr != "" {
		if _, err := metrics.StartAsync(ctx, cfg.MetricsAddr); err != nil {
			log.Warnf("metrics server: %v", err)
		}
	}
	group.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("received %s, shutting down", sig)

	cancel()
	group.Wait()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	sd.Shutdown(shutCtx)
	log.Info("shutdown complete")
}
