package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/holoshare/relay/internal/alignment"
	"github.com/holoshare/relay/internal/avatar"
	"github.com/holoshare/relay/internal/config"
	"github.com/holoshare/relay/internal/database"
	"github.com/holoshare/relay/internal/logging"
	"github.com/holoshare/relay/internal/monitor"
	intOtel "github.com/holoshare/relay/internal/otel"
	"github.com/holoshare/relay/internal/sensor"
	"github.com/holoshare/relay/internal/session"
	"github.com/holoshare/relay/internal/telemetry"
	"github.com/holoshare/relay/internal/transport"
	"github.com/holoshare/relay/pkg/core"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.Load("."); err != nil {
		return err
	}

	sessionStart := time.Now()
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	logFile, err := os.OpenFile(
		logging.LogFilePath(logsDir, "relay", sessionStart),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	otelCfg := config.GetOTelConfig()
	otelProvider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing otel: %w", err)
	}

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logFile, config.GetString("logLevel"), otelProvider.LoggerProvider())
	log := slogManager.Logger()
	log.Info("relay starting", "version", Version)

	sessCfg := config.GetSessionConfig()
	sensorCfg := config.GetSensorConfig()
	transportCfg := config.GetTransportConfig()
	storageCfg := config.GetStorageConfig()

	mode, err := core.ParseAlignmentMode(sessCfg.AlignMode)
	if err != nil {
		return err
	}
	schema, err := sensor.SchemaByName(sensorCfg.Schema)
	if err != nil {
		return err
	}

	zlog := zerolog.New(logFile).With().Timestamp().Logger()
	dbManager := database.NewManager(zlog)
	if err := dbManager.Connect(storageCfg.Path); err != nil {
		return fmt.Errorf("opening calibration database: %w", err)
	}
	defer dbManager.Close()

	store, err := alignment.NewStore(dbManager.DB, log)
	if err != nil {
		return err
	}

	// a stored calibration for this space skips renegotiating from identity
	localRef := core.DefaultPose()
	if pose, err := store.Load(storageCfg.Slot); err == nil {
		localRef = pose
		log.Info("loaded stored calibration", "slot", storageCfg.Slot)
	} else {
		log.Info("no stored calibration, starting from identity", "slot", storageCfg.Slot)
	}

	localPeer := core.Peer{
		ID:       uint16(sessCfg.PeerID),
		Name:     sessCfg.PeerName,
		IsLocal:  true,
		JoinTime: sessionStart,
	}

	tr, err := transport.New(transportCfg.Type, transportCfg.URL, transportCfg.Secret, localPeer.ID)
	if err != nil {
		return err
	}

	registry := alignment.NewRegistry(mode, localRef, log)
	negotiator := alignment.NewNegotiator(registry, tr, localPeer.ID,
		schema.Version, sessCfg.SettleDelay, log)
	ingester := sensor.NewIngester(schema, log)

	var source sensor.Source
	switch sensorCfg.Source {
	case "udp":
		udpSource, err := sensor.NewUDPSource(sensorCfg.Listen, ingester.RawVectorLen(), log)
		if err != nil {
			return err
		}
		defer udpSource.Close()
		source = udpSource
	case "none", "":
		log.Info("no local sensor source configured, relaying poses only")
	default:
		return fmt.Errorf("unknown sensor source %q", sensorCfg.Source)
	}

	engine, err := session.NewEngine(session.Options{
		LocalPeer:    localPeer,
		TickRate:     sessCfg.TickRate,
		Transport:    tr,
		Registry:     registry,
		Negotiator:   negotiator,
		Synchronizer: avatar.NewSynchronizer(float32(sessCfg.InterpRate), localPeer.ID, registry, log),
		Codec:        sensor.NewCodec(schema, sensorCfg.Compress),
		Ingester:     ingester,
		Throttle:     sensor.NewThrottle(uint(sensorCfg.SendEveryNTicks)),
		Source:       source,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statusMonitor := monitor.NewService(monitor.Dependencies{
		LogManager: slogManager,
		Engine:     engine,
		StatusDir:  logsDir,
	})
	if err := statusMonitor.Start(); err != nil {
		return err
	}
	defer statusMonitor.Stop()

	startTelemetry(ctx, zlog, log, logsDir, localPeer.ID, engine)

	err = engine.Run(ctx)

	// persist whatever reference pose we ended the session with
	if saveErr := store.Save(storageCfg.Slot, registry.LocalReference()); saveErr != nil {
		log.Error("saving calibration", "error", saveErr)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if flushErr := slogManager.Flush(flushCtx); flushErr != nil {
		log.Error("flushing logs", "error", flushErr)
	}
	if shutdownErr := otelProvider.Shutdown(flushCtx); shutdownErr != nil {
		fmt.Fprintln(os.Stderr, "relay: otel shutdown:", shutdownErr)
	}

	return err
}

// startTelemetry wires the optional InfluxDB session-stats reporter.
func startTelemetry(ctx context.Context, zlog zerolog.Logger, log *slog.Logger,
	logsDir string, peerID uint16, engine *session.Engine) {
	if !config.GetBool("influx.enabled") {
		return
	}

	mgr := telemetry.NewManager(zlog, filepath.Join(logsDir, "influx_backup.gz"))
	if err := mgr.Connect(); err != nil {
		log.Warn("influx telemetry disabled", "error", err)
		return
	}

	reporter := telemetry.NewReporter(mgr, 10*time.Second, func() telemetry.Stats {
		return telemetry.Stats{
			PeerID:         peerID,
			PeerCount:      len(engine.Peers()),
			TrackedAvatars: engine.TrackedAvatarCount(),
			AlignedPeers:   engine.AlignedPeerCount(),
			Aligned:        engine.Aligned(),
		}
	})
	go func() {
		reporter.Run(ctx)
		mgr.Close()
	}()
}
