package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/verch-scan/config"
	"github.com/nvr-ai/verch-scan/detection"
	"github.com/nvr-ai/verch-scan/images"
	"github.com/nvr-ai/verch-scan/inference"
	"github.com/nvr-ai/verch-scan/inference/detectors"
	"github.com/nvr-ai/verch-scan/inference/providers"
	"github.com/nvr-ai/verch-scan/server"
	"github.com/nvr-ai/verch-scan/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// fileResult is one line of -image output.
type fileResult struct {
	Path string `json:"path"`
	detection.Response
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		imagePath  string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&imagePath, "image", "", "Detect on an image file or directory and print JSON instead of serving")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Error("invalid configuration")
		return 2
	}
	log := cfg.NewLogger()

	if err := providers.InitializeEnvironment(cfg.Model.LibraryPath, cfg.Debug); err != nil {
		log.WithError(err).Error("failed to initialize onnxruntime")
		return 1
	}
	defer func() {
		if err := providers.DestroyEnvironment(); err != nil {
			log.WithError(err).Warn("failed to destroy onnxruntime environment")
		}
	}()

	det, err := detectors.NewONNXDetector(cfg.Detector(), log)
	if err != nil {
		log.WithError(err).Error("failed to load model")
		return 1
	}
	defer func() {
		if err := det.Close(); err != nil {
			log.WithError(err).Warn("failed to close model")
		}
	}()
	shape := det.InputShape()
	log.WithFields(logrus.Fields{
		"input_width":  shape.X,
		"input_height": shape.Y,
		"concurrency":  cfg.Inference.Concurrency,
	}).Info("detector ready")

	engine := inference.NewGatedEngine(det, inference.NewGate(cfg.Inference.Concurrency))
	defer func() {
		m := engine.Gate().Metrics()
		log.WithFields(logrus.Fields{
			"inferences":      m.InferenceCount,
			"failures":        m.FailureCount,
			"average_time_ms": m.AverageTimeMs,
			"throughput_fps":  m.ThroughputFPS,
		}).Info("inference metrics")
	}()

	decoder, err := images.NewDecoder(cfg.Inference.Decoder, cfg.Decoder())
	if err != nil {
		log.WithError(err).Error("failed to create decoder")
		return 1
	}

	srv := server.New(engine, decoder, cfg.HTTP(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if imagePath != "" {
		return detectFiles(ctx, srv, imagePath, log)
	}

	if err := serve(ctx, srv, cfg, log); err != nil {
		log.WithError(err).Error("server failed")
		return 1
	}
	return 0
}

// serve runs the HTTP listener until ctx is cancelled, then drains it.
func serve(ctx context.Context, srv *server.Server, cfg config.Config, log *logrus.Logger) error {
	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", httpServer.Addr).Info("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

// detectFiles prints one JSON line per image under path.
func detectFiles(ctx context.Context, srv *server.Server, path string, log *logrus.Logger) int {
	files, err := util.LoadImageFiles(path)
	if err != nil {
		log.WithError(err).Error("failed to load images")
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	code := 0
	for _, f := range files {
		resp, err := srv.DetectBytes(ctx, f.Data)
		if err != nil {
			log.WithError(err).WithField("path", f.Path).Error("detection failed")
			code = 1
			if ctx.Err() != nil {
				return code
			}
			continue
		}
		if err := enc.Encode(fileResult{Path: f.Path, Response: resp}); err != nil {
			log.WithError(err).Error("failed to write result")
			return 1
		}
	}
	return code
}
