package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"alertcam/internal/config"
	"alertcam/internal/logger"
	"alertcam/internal/metrics"
	"alertcam/internal/model"
	"alertcam/internal/repository/sqlite"
	"alertcam/internal/route"
	"alertcam/internal/service"
	"alertcam/internal/service/ai"
	"alertcam/internal/service/ai/coco"
	"alertcam/internal/service/alert"
	"alertcam/internal/service/camera"
	"alertcam/internal/service/episode"
	"alertcam/internal/service/geo"
	"alertcam/internal/service/storage"
	"alertcam/internal/service/websocket"

	"gocv.io/x/gocv"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	source   camera.Source
	detector *ai.DetectorService
	maxmind  *geo.MaxMindProvider
	journal  *storage.JournalService
	hub      *websocket.HubService
	metrics  *metrics.Metrics
	manager  *service.Manager[gocv.Mat]
	server   *http.Server
}

// NewApp builds every service from cfg. The camera is opened here so a
// missing device fails fast.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	a := &App{config: cfg, logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	registry, err := episode.NewRegistry(cfg.TargetClasses)
	if err != nil {
		return nil, err
	}

	labels := coco.Labels()
	if cfg.LabelsPath != "" {
		if labels, err = coco.LoadLabels(cfg.LabelsPath); err != nil {
			return nil, err
		}
	}

	a.db, err = sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	repo := sqlite.NewEpisodeRepository(a.db)
	a.journal = storage.NewJournalService(cfg.ImageDirectory, repo, log)
	a.hub = websocket.NewHubService(log)
	a.metrics = metrics.New()

	a.detector, err = ai.NewDetectorService(cfg.ModelPath, cfg.ConfigPath, labels, cfg.DetectionThreshold, log)
	if err != nil {
		return nil, err
	}

	a.source, err = camera.Open(ctx, cfg.CameraDevice)
	if err != nil {
		return nil, err
	}

	locator, err := a.locator()
	if err != nil {
		return nil, err
	}

	aggregator := episode.NewAggregator[gocv.Mat](registry, ai.JPEGEncoder{Quality: cfg.JPEGQuality}, episode.Options{
		Description:   cfg.AlertDescription,
		MaxImages:     cfg.MaxEpisodeImages,
		MinConfidence: cfg.MinConfidence,
	})

	a.manager = service.NewManager[gocv.Mat](a.source, a.detector, aggregator,
		alert.NewSubmitter(cfg.AlertURL, cfg.AlertTimeout),
		service.ManagerOptions[gocv.Mat]{
			CameraName:    cfg.CameraName,
			Interval:      cfg.DetectionInterval,
			SubmitTimeout: cfg.AlertTimeout,
			Annotator:     a.detector,
			Viewer:        a.hub,
			Locator:       locator,
			Journal:       a.journal,
			Metrics:       a.metrics,
		}, log)

	a.server = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: route.SetupRoutes(route.Dependencies{
			Config:   cfg,
			Logger:   log,
			Hub:      a.hub,
			Episodes: repo,
			Journal:  a.journal,
			Pipeline: a.manager,
			Metrics:  a.metrics,
			Classes:  registry.Labels(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// locator prefers fixed coordinates and falls back to a GeoIP lookup of
// the public address. A nil provider means alerts go out without location.
func (a *App) locator() (geo.Provider, error) {
	cfg := a.config
	var chain geo.Chain

	if cfg.Latitude != nil && cfg.Longitude != nil {
		chain = append(chain, geo.StaticProvider{Location: model.Location{Latitude: *cfg.Latitude, Longitude: *cfg.Longitude}})
	}

	if cfg.GeoIPDatabase != "" {
		var resolver geo.IPResolver = geo.NewHTTPIPResolver(cfg.PublicIPURL, service.DefaultLocateTimeout)
		if cfg.PublicIP != "" {
			resolver = geo.FixedIP(cfg.PublicIP)
		}
		mm, err := geo.OpenMaxMind(cfg.GeoIPDatabase, resolver)
		if err != nil {
			return nil, err
		}
		a.maxmind = mm
		chain = append(chain, mm)
	}

	if len(chain) == 0 {
		a.logger.Warning("No location source configured, alerts are sent without coordinates")
		return nil, nil
	}
	return chain, nil
}

// Run serves HTTP and drives the detection loop until ctx is cancelled or
// the camera fails. An alert in flight is allowed to finish.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The journal outlives the loop so the last episode is still written.
	journalCtx, stopJournal := context.WithCancel(context.WithoutCancel(ctx))
	defer stopJournal()
	journalDone := make(chan struct{})
	go func() {
		a.journal.Run(journalCtx)
		close(journalDone)
	}()
	go a.hub.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	managerErr := make(chan error, 1)
	go func() {
		managerErr <- a.manager.Run(ctx)
	}()

	a.logger.Info("🚀 alertcam listening on http://localhost:%d", a.config.Port)
	a.logger.Info("📷 Camera: %s (%s)", a.config.CameraName, a.config.CameraDevice)
	a.logger.Info("🎯 Alert URL: %s", a.config.AlertURL)
	a.logger.Info("🤖 AI Model: %s", a.config.ModelPath)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-managerErr:
		runErr = err
		managerErr = nil
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	cancel()

	if managerErr != nil {
		if err := <-managerErr; err != nil && runErr == nil {
			runErr = err
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	stopJournal()
	<-journalDone
	a.logger.Info("alertcam stopped")
	return runErr
}

// Close releases the camera, the network and the database.
func (a *App) Close() error {
	var errs []error
	if a.source != nil {
		errs = append(errs, a.source.Close())
	}
	if a.detector != nil {
		errs = append(errs, a.detector.Close())
	}
	if a.maxmind != nil {
		errs = append(errs, a.maxmind.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
