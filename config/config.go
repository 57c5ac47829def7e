// Package config - Service configuration from YAML, .env files and the environment.
package config

import (
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/verch-scan/images"
	"github.com/nvr-ai/verch-scan/inference/detectors"
	"github.com/nvr-ai/verch-scan/inference/providers"
	"github.com/nvr-ai/verch-scan/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Port      int             `yaml:"port"`
	Debug     bool            `yaml:"debug"`
	Log       LogConfig       `yaml:"log"`
	Model     ModelConfig     `yaml:"model"`
	Inference InferenceConfig `yaml:"inference"`
	Server    ServerConfig    `yaml:"server"`
}

// LogConfig controls the logger.
type LogConfig struct {
	// Level is a logrus level name such as debug, info or warn.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// ModelConfig describes the ONNX model and its runtime.
type ModelConfig struct {
	Path                string           `yaml:"path"`
	LibraryPath         string           `yaml:"library_path"`
	InputWidth          int              `yaml:"input_width"`
	InputHeight         int              `yaml:"input_height"`
	ConfidenceThreshold float32          `yaml:"confidence_threshold"`
	NMSThreshold        float32          `yaml:"nms_threshold"`
	MaxDetections       int              `yaml:"max_detections"`
	ClassAgnosticNMS    bool             `yaml:"class_agnostic_nms"`
	ClassNames          map[int]string   `yaml:"class_names"`
	Provider            providers.Config `yaml:"provider"`
}

// InferenceConfig controls request scheduling.
type InferenceConfig struct {
	// Concurrency is the number of inferences allowed to run at once.
	Concurrency int `yaml:"concurrency"`
	// Decoder names the image decoder, std or gocv.
	Decoder string `yaml:"decoder"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	MaxImagePixels   int64         `yaml:"max_image_pixels"`
	IncludeImageSize bool          `yaml:"include_image_size"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	det := detectors.DefaultConfig()
	srv := server.DefaultConfig()
	return Config{
		Port: 10000,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Model: ModelConfig{
			Path:                "best.onnx",
			InputWidth:          det.InputShape.X,
			InputHeight:         det.InputShape.Y,
			ConfidenceThreshold: det.ConfidenceThreshold,
			NMSThreshold:        det.NMSThreshold,
			MaxDetections:       det.MaxDetections,
			Provider:            det.Provider,
		},
		Inference: InferenceConfig{
			Concurrency: 1,
			Decoder:     "std",
		},
		Server: ServerConfig{
			ReadTimeout:      120 * time.Second,
			WriteTimeout:     120 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			MaxUploadBytes:   srv.MaxUploadBytes,
			MaxImagePixels:   images.DefaultMaxPixels,
			IncludeImageSize: srv.IncludeImageSize,
			AllowedOrigins:   srv.AllowedOrigins,
		},
	}
}

// Load builds the configuration.
//
// Defaults are overlaid with the YAML file at path (skipped when path is
// empty), then with variables from the .env files, then with the process
// environment. Missing .env files are ignored; the process environment wins
// over .env values.
//
// Arguments:
//   - path: The YAML config file, or empty.
//   - envFiles: .env files to read. Defaults to ".env".
//
// Returns:
//   - Config: The validated configuration.
//   - error: If a file cannot be parsed or a value is invalid.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	dotenv := map[string]string{}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		vars, err := godotenv.Read(f)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read env file %s", f)
		}
		for k, v := range vars {
			dotenv[k] = v
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
//
// Recognized variables: PORT, MODEL_PATH, ORT_LIB_PATH, EXECUTION_PROVIDER,
// DEBUG, LOG_LEVEL, INFERENCE_CONCURRENCY and CONFIDENCE_THRESHOLD.
//
// Arguments:
//   - lookup: Returns a variable's value and whether it is set.
//
// Returns:
//   - error: If a numeric or boolean variable does not parse.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "PORT=%q", v)
		}
		c.Port = port
	}
	if v, ok := get("MODEL_PATH"); ok {
		c.Model.Path = v
	}
	if v, ok := get("ORT_LIB_PATH"); ok {
		c.Model.LibraryPath = v
	}
	if v, ok := get("EXECUTION_PROVIDER"); ok {
		c.Model.Provider.Backend = providers.ProviderBackend(v)
	}
	if v, ok := get("DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "DEBUG=%q", v)
		}
		c.Debug = debug
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("INFERENCE_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "INFERENCE_CONCURRENCY=%q", v)
		}
		c.Inference.Concurrency = n
	}
	if v, ok := get("CONFIDENCE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrapf(err, "CONFIDENCE_THRESHOLD=%q", v)
		}
		c.Model.ConfidenceThreshold = float32(f)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port %d out of range 1-65535", c.Port)
	}
	if strings.TrimSpace(c.Model.Path) == "" {
		return errors.New("model.path is required")
	}
	if c.Model.ConfidenceThreshold < 0 || c.Model.ConfidenceThreshold > 1 {
		return errors.Errorf("model.confidence_threshold %v out of range [0, 1]", c.Model.ConfidenceThreshold)
	}
	if c.Model.NMSThreshold < 0 || c.Model.NMSThreshold > 1 {
		return errors.Errorf("model.nms_threshold %v out of range [0, 1]", c.Model.NMSThreshold)
	}
	if c.Model.InputWidth < 0 || c.Model.InputHeight < 0 {
		return errors.Errorf("model input size %dx%d must not be negative", c.Model.InputWidth, c.Model.InputHeight)
	}
	if c.Model.MaxDetections < 0 {
		return errors.Errorf("model.max_detections %d must not be negative", c.Model.MaxDetections)
	}
	backend, err := providers.ParseBackend(string(c.Model.Provider.Backend))
	if err != nil {
		return err
	}
	c.Model.Provider.Backend = backend
	if err := c.Model.Provider.Optimization.Validate(); err != nil {
		return errors.Wrap(err, "model.provider.optimization")
	}
	if c.Inference.Concurrency < 1 {
		return errors.Errorf("inference.concurrency %d must be at least 1", c.Inference.Concurrency)
	}
	if _, err := images.NewDecoder(c.Inference.Decoder, c.Decoder()); err != nil {
		return err
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.Errorf("server.max_upload_bytes %d must be positive", c.Server.MaxUploadBytes)
	}
	if c.Server.MaxImagePixels <= 0 {
		return errors.Errorf("server.max_image_pixels %d must be positive", c.Server.MaxImagePixels)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// Detector returns the detector settings.
func (c Config) Detector() detectors.Config {
	return detectors.Config{
		ModelPath:           c.Model.Path,
		Provider:            c.Model.Provider,
		InputShape:          image.Pt(c.Model.InputWidth, c.Model.InputHeight),
		ConfidenceThreshold: c.Model.ConfidenceThreshold,
		NMSThreshold:        c.Model.NMSThreshold,
		MaxDetections:       c.Model.MaxDetections,
		ClassAgnosticNMS:    c.Model.ClassAgnosticNMS,
		ClassNames:          c.Model.ClassNames,
	}
}

// Decoder returns the image decoder limits.
func (c Config) Decoder() images.DecoderOptions {
	return images.DecoderOptions{MaxPixels: c.Server.MaxImagePixels}
}

// HTTP returns the HTTP front end settings.
func (c Config) HTTP() server.Config {
	return server.Config{
		Debug:            c.Debug,
		IncludeImageSize: c.Server.IncludeImageSize,
		MaxUploadBytes:   c.Server.MaxUploadBytes,
		AllowedOrigins:   c.Server.AllowedOrigins,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// NewLogger builds the logger described by c.
func (c Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if c.Debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	return log
}
