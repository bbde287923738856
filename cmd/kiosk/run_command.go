package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"attendance-kiosk/config"
	"attendance-kiosk/internal/api"
	"attendance-kiosk/internal/api/handlers"
	"attendance-kiosk/internal/camera"
	"attendance-kiosk/internal/cleanup"
	"attendance-kiosk/internal/core/processor"
	"attendance-kiosk/internal/database"
	"attendance-kiosk/internal/display"
	"attendance-kiosk/internal/i18n"
	"attendance-kiosk/internal/integrations/homeassistant"
	"attendance-kiosk/internal/integrations/mqtt"
	"attendance-kiosk/internal/integrations/opencv"
	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/logger"
	"attendance-kiosk/internal/server/sse"
	"attendance-kiosk/internal/snapshots"
	"attendance-kiosk/internal/transport"
	"attendance-kiosk/internal/util/timezone"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var autostart bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the kiosk: capture, recognise and serve the local UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runKiosk(cmd.Context(), cfg, autostart)
		},
	}
	cmd.Flags().BoolVar(&autostart, "autostart", false, "Start hand recognition without waiting for the Start button")
	return cmd
}

func runKiosk(parent context.Context, cfg *config.Config, autostart bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCloser, err := logger.Init(cfg.Log)
	if err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}
	defer logCloser.Close()
	timezone.Initialize(cfg.Kiosk.Timezone)

	// Ein Kiosk pro Datenverzeichnis und Kamera
	lockPath := filepath.Join(cfg.Kiosk.DataDir, "kiosk.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another kiosk is already running (lock %s)", lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warnf("Failed to release lock: %v", err)
		}
	}()

	log.WithFields(log.Fields{"kiosk": cfg.Kiosk.ID, "version": version}).Info("Starting attendance kiosk")

	tr, err := i18n.New(cfg.Kiosk.Language)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := sse.NewHub()
	go hub.Run(hubCtx)

	board := display.NewBoard(tr, hub)
	displays := kiosk.Displays{board}
	var recorders kiosk.Recorders

	// --- Anwesenheitsjournal ---
	var journal *database.Journal
	if cfg.DB.Enabled {
		if err := database.Init(cfg.DB); err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer database.Close()
		journal = database.NewJournal(database.DB)
		recorders = append(recorders, journal)
	} else {
		log.Info("Attendance journal is disabled in config.")
	}

	var archive kiosk.FrameArchive
	if cfg.Snapshots.Enabled {
		store, err := snapshots.NewStore(cfg.Snapshots.Dir, cfg.Snapshots.MaxFrames, cfg.Snapshots.KeepUnknown)
		if err != nil {
			return err
		}
		archive = store
	}

	cam, err := openCamera(cfg.Camera)
	if err != nil {
		return err
	}
	defer cam.Close()

	// --- Backend ---
	endpoint, err := transport.SelectEndpoint(cfg.Transport)
	if err != nil {
		return err
	}
	conn, err := transport.Dial(ctx, endpoint, transport.Options{
		DialTimeout:     time.Duration(cfg.Transport.DialTimeoutMs) * time.Millisecond,
		WriteTimeout:    time.Duration(cfg.Transport.WriteTimeoutMs) * time.Millisecond,
		MaxMessageBytes: cfg.Transport.MaxMessageBytes,
		InsecureSkipTLS: cfg.Transport.InsecureSkipTLS,
	})
	if err != nil {
		board.Disconnected()
		return err
	}
	defer conn.Close()

	// --- MQTT ---
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to start MQTT client: %v. Continuing without MQTT.", err)
			mqttClient = nil
		} else {
			defer mqttClient.Stop()
			publisher := homeassistant.NewPublisher(mqttClient)
			displays = append(displays, publisher)
			recorders = append(recorders, publisher)
			if cfg.MQTT.HomeAssistant.Enabled {
				dm := homeassistant.NewDiscoveryManager(mqttClient, cfg.MQTT.HomeAssistant.DiscoveryPrefix, cfg.Kiosk.ID, version)
				if err := dm.Register(); err != nil {
					log.Warnf("Failed to register Home Assistant discovery: %v", err)
				}
			}
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	opts := kiosk.Options{
		KioskID:         cfg.Kiosk.ID,
		Group:           cfg.Kiosk.Group,
		CaptureInterval: cfg.Kiosk.CaptureInterval(),
		SettleDelay:     cfg.Kiosk.SettleDelay(),
		ResultDisplay:   cfg.Kiosk.ResultDisplay(),
		UnknownTimeout:  cfg.Kiosk.UnknownTimeout(),
		Archive:         archive,
	}
	if len(recorders) > 0 {
		// Journal und Broker blockieren nie die Leseschleife
		pool := processor.NewWorkerPool(recorders, 1, 64, 5*time.Second)
		defer pool.Shutdown()
		opts.Recorder = pool
	}
	session := kiosk.NewSession(cam, conn, displays, opts)
	defer session.Close()

	if mqttClient != nil {
		mqttClient.RegisterHandler(mqtt.NewCommandHandler(session))
	}

	// --- Aufräumen ---
	var pruner cleanup.Pruner
	if journal != nil {
		pruner = journal
	}
	var snapshotDir string
	if cfg.Snapshots.Enabled {
		snapshotDir = cfg.Snapshots.Dir
	}
	if cleanupService := cleanup.NewService(pruner, cfg.Cleanup.RetentionDays, snapshotDir, time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute); cleanupService != nil {
		cleanupService.StartBackgroundCleanup()
		defer cleanupService.StopBackgroundCleanup()
	}

	// --- Lokale Oberfläche ---
	if cfg.Server.Enabled {
		srv, err := startServer(cfg.Server, tr, board, hub, session, journal)
		if err != nil {
			return err
		}
		defer func() {
			// Streams end with the hub, so stop it before waiting on requests.
			stopHub()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warnf("HTTP server shutdown: %v", err)
			}
		}()
	}

	if autostart {
		if _, err := session.Start(); err != nil {
			return err
		}
	}

	err = conn.Listen(ctx, session)
	if ctx.Err() != nil {
		log.Info("Shutting down kiosk")
		return nil
	}
	session.Disconnected(err)
	if errors.Is(err, transport.ErrConnectionLost) {
		return err
	}
	return fmt.Errorf("backend connection ended: %w", err)
}

func openCamera(cfg config.CameraConfig) (camera.Capturer, error) {
	settings := camera.Settings{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Format:  camera.Format(cfg.ImageFormat),
		Quality: cfg.JPEGQuality,
		Mirror:  cfg.Mirror,
	}
	switch cfg.Source {
	case "still":
		return opencv.NewStill(cfg.StillPath, settings)
	default:
		return opencv.NewWebcam(cfg.Device, settings)
	}
}

func startServer(cfg config.ServerConfig, tr *i18n.Translator, board *display.Board, hub *sse.Hub, session *kiosk.Session, journal *database.Journal) (*api.Server, error) {
	web, err := handlers.NewWebHandler(board, hub, tr)
	if err != nil {
		return nil, fmt.Errorf("initialize web handlers: %w", err)
	}
	var j handlers.Journal
	if journal != nil {
		j = journal
	}
	router := api.NewRouter(cfg, tr, web, handlers.NewAPIHandler(session, board, j))

	srv, err := api.Listen(cfg, router)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Serve(); err != nil {
			log.Errorf("HTTP server failed: %v", err)
		}
	}()
	return srv, nil
}
