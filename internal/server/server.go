package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/swingfeed/internal/ensemble"
	"github.com/betbot/swingfeed/internal/feed"
	"github.com/betbot/swingfeed/internal/features"
	"github.com/betbot/swingfeed/internal/publish"
	"github.com/betbot/swingfeed/pkg/config"
)

var log = logrus.WithField("component", "server")

// Server exposes the pipeline over HTTP: ingest for pushed plays, live
// result streams per event, and a replay cursor over historical games.
// The replay cursor scores the historical sequence through the same
// feature/ensemble/detector chain the live workers run, so replayed
// plays carry the signal they would have carried live.
type Server struct {
	cfg       config.ServerConfig
	hub       *publish.Hub
	history   *feed.HistoryStore
	predictor *ensemble.Predictor
	detector  config.DetectorConfig
	extractor *features.Extractor
	cursors   *cursorStore
}

// New builds the server. history may be nil; the replay cursor endpoint
// then reports itself unavailable.
func New(cfg config.ServerConfig, hub *publish.Hub, history *feed.HistoryStore, predictor *ensemble.Predictor, detector config.DetectorConfig) *Server {
	return &Server{
		cfg:       cfg,
		hub:       hub,
		history:   history,
		predictor: predictor,
		detector:  detector,
		extractor: features.NewExtractor(),
		cursors:   newCursorStore(),
	}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	games := r.Group("/games/:gameID")
	games.POST("/plays", s.handleIngest)
	games.GET("/plays", s.handleResults)
	games.GET("/stream", s.handleStream)
	games.GET("/ws", s.handleWS)

	r.GET("/next", s.handleNext)
	return r
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Listen, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("http server listening on %s", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func (s *Server) heartbeat() time.Duration {
	if s.cfg.HeartbeatSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.cfg.HeartbeatSeconds * float64(time.Second))
}
