// Package server - HTTP and websocket front end for the detection model.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nvr-ai/verch-scan/detection"
	"github.com/nvr-ai/verch-scan/images"
	"github.com/nvr-ai/verch-scan/inference"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// ErrMissingImageField is returned when a detect request has no "image" file.
var ErrMissingImageField = errors.New("no image provided")

// missingImageMessage is the client-facing text for ErrMissingImageField.
const missingImageMessage = "No image provided"

// Config controls the HTTP front end.
type Config struct {
	// Debug adds stack traces to 500 responses.
	Debug bool `json:"debug" yaml:"debug"`
	// IncludeImageSize adds the decoded image size to detect responses.
	IncludeImageSize bool `json:"include_image_size" yaml:"include_image_size"`
	// MaxUploadBytes limits the size of an uploaded image.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	// AllowedOrigins lists CORS origins. "*" allows any origin.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	// Message is reported by the health endpoint.
	Message string `json:"message" yaml:"message"`
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		IncludeImageSize: true,
		MaxUploadBytes:   32 << 20,
		AllowedOrigins:   []string{"*"},
		Message:          "Verch Scan API is running",
	}
}

// Server serves detections from a single model.
type Server struct {
	engine   inference.Engine
	decoder  images.Decoder
	cfg      Config
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

// New creates a server around a loaded model.
//
// Arguments:
//   - engine: The model. It is shared by all requests.
//   - decoder: Decodes uploaded images.
//   - cfg: Server configuration.
//   - log: The logger.
//
// Returns:
//   - *Server: The server.
func New(engine inference.Engine, decoder images.Decoder, cfg Config, log *logrus.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.Message == "" {
		cfg.Message = DefaultConfig().Message
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		engine:  engine,
		decoder: decoder,
		cfg:     cfg,
		log:     log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 << 10,
		WriteBufferSize: 64 << 10,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the HTTP handler with routes, recovery, logging and CORS.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(s.requestLogger(), gin.CustomRecovery(s.handlePanic))

	router.GET("/", s.health)
	router.POST("/detect", s.detect)
	router.GET("/ws", s.stream)

	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(router)
}

// DetectBytes runs the full pipeline on an encoded image.
//
// Arguments:
//   - ctx: Cancels the wait for a free inference slot.
//   - data: The encoded image.
//
// Returns:
//   - detection.Response: The formatted detections.
//   - error: images.ErrInvalidImage for undecodable input, inference errors otherwise.
func (s *Server) DetectBytes(ctx context.Context, data []byte) (detection.Response, error) {
	img, err := s.decoder.Decode(data)
	if err != nil {
		return detection.Response{}, err
	}

	raw, err := s.engine.Infer(ctx, img.Pixels)
	if err != nil {
		return detection.Response{}, err
	}

	dims := detection.ImageDimensions{Width: img.Width, Height: img.Height}
	resp, rejected := detection.Build(raw, s.engine.ClassNames(), dims, detection.FormatOptions{
		IncludeImageSize: s.cfg.IncludeImageSize,
	})

	for _, r := range rejected {
		s.log.WithFields(logrus.Fields{
			"index":      r.Index,
			"class_id":   r.Detection.ClassID,
			"confidence": r.Detection.Confidence,
		}).WithError(r.Err).Debug("dropped detection")
	}

	return resp, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
