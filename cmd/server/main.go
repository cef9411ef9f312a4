package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/gifsmith/gifsmith/internal/api"
	"github.com/gifsmith/gifsmith/internal/domain/port"
	"github.com/gifsmith/gifsmith/internal/infra/config"
	"github.com/gifsmith/gifsmith/internal/infra/ffmpeg"
	"github.com/gifsmith/gifsmith/internal/infra/gifenc"
	"github.com/gifsmith/gifsmith/internal/infra/metrics"
	miniostorage "github.com/gifsmith/gifsmith/internal/infra/minio"
	"github.com/gifsmith/gifsmith/internal/infra/ollama"
	"github.com/gifsmith/gifsmith/internal/infra/rabbitmq"
	"github.com/gifsmith/gifsmith/internal/infra/tracing"
	"github.com/gifsmith/gifsmith/internal/usecase"
	"github.com/gifsmith/gifsmith/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting gifsmith-segment-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	if cfg.OTLPEndpoint != "" {
		shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint)
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer shutdownTracing(ctx)
		}
	}

	// Artifact store
	store, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		UseSSL:        cfg.MinIOUseSSL,
		GifBucket:     cfg.MinIOGifBucket,
		PresignExpiry: time.Duration(cfg.PresignExpiryMins) * time.Minute,
	})
	fatalOnErr(err, "create artifact store")
	fatalOnErr(store.EnsureBucket(ctx), "ensure gif bucket")

	// Status events (optional)
	var publisher port.StatusPublisher = rabbitmq.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
		fatalOnErr(err, "connect to rabbitmq")
		defer rmqConn.Close()

		pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange, cfg.RabbitMQStatusQueue)
		fatalOnErr(err, "create status publisher")
		publisher = pub
	}

	// Infra adapters
	extractor := ffmpeg.NewExtractor(cfg.FrameQuality, log)
	encoder := gifenc.NewEncoder(cfg.EncoderWorkers, cfg.PaletteURL, log)
	captioner, err := ollama.NewCaptioner(cfg.OllamaHost, cfg.CaptionModel, log)
	fatalOnErr(err, "create captioner")
	archiver := ffmpeg.NewFrameArchiver()

	// Use case
	svc := usecase.NewSegmentService(
		extractor, extractor, encoder, captioner,
		store, publisher,
		log,
		usecase.Config{SampleRate: cfg.FrameSampleRate},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, func() bool {
		_, ok := svc.VideoInfo()
		return ok
	}, log)

	// API server
	mux := http.NewServeMux()
	api.NewHandler(svc, archiver, cfg.TempDir, log).Register(mux)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Info("api server starting", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server error", zap.Error(err))
			cancel()
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("gifsmith-segment-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
