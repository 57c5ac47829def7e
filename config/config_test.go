package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/verch-scan/images"
	"github.com/nvr-ai/verch-scan/inference/providers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10000, cfg.Port)
	assert.Equal(t, ":10000", cfg.Addr())
	assert.Equal(t, 1, cfg.Inference.Concurrency)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, float32(0.25), cfg.Model.ConfidenceThreshold)
	assert.True(t, cfg.Server.IncludeImageSize)
	assert.Equal(t, images.DefaultMaxPixels, cfg.Decoder().MaxPixels)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
port: 8080
debug: true
log:
  level: warn
  format: json
model:
  path: /models/verch.onnx
  confidence_threshold: 0.4
  class_names:
    0: scratch
    1: dent
  provider:
    backend: openvino
    openvino:
      device_type: GPU
inference:
  concurrency: 3
server:
  read_timeout: 30s
  include_image_size: false
  max_image_pixels: 4000000
`)

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/models/verch.onnx", cfg.Model.Path)
	assert.Equal(t, float32(0.4), cfg.Model.ConfidenceThreshold)
	assert.Equal(t, map[int]string{0: "scratch", 1: "dent"}, cfg.Model.ClassNames)
	assert.Equal(t, providers.OpenVINOProviderBackend, cfg.Model.Provider.Backend)
	assert.Equal(t, "GPU", cfg.Model.Provider.OpenVINO.DeviceType)
	assert.Equal(t, 3, cfg.Inference.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout, "unset fields keep defaults")
	assert.False(t, cfg.Server.IncludeImageSize)
	assert.Equal(t, int64(4000000), cfg.Decoder().MaxPixels)

	det := cfg.Detector()
	assert.Equal(t, "/models/verch.onnx", det.ModelPath)
	assert.Equal(t, 640, det.InputShape.X)
	assert.True(t, cfg.HTTP().Debug)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, dir, "test.env", "PORT=9000\nMODEL_PATH=from-dotenv.onnx\nINFERENCE_CONCURRENCY=2\n")
	t.Setenv("MODEL_PATH", "from-env.onnx")

	cfg, err := Load("", env)

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "from-env.onnx", cfg.Model.Path, "process environment wins over .env")
	assert.Equal(t, 2, cfg.Inference.Concurrency)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                 "7000",
		"DEBUG":                "true",
		"LOG_LEVEL":            "debug",
		"ORT_LIB_PATH":         "/usr/lib/libonnxruntime.so",
		"EXECUTION_PROVIDER":   "cuda",
		"CONFIDENCE_THRESHOLD": "0.5",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, 7000, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.Model.LibraryPath)
	assert.Equal(t, providers.CUDAProviderBackend, cfg.Model.Provider.Backend)
	assert.Equal(t, float32(0.5), cfg.Model.ConfidenceThreshold)

	env = map[string]string{"PORT": "eighty"}
	assert.Error(t, cfg.ApplyEnv(lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "port zero", mutate: func(c *Config) { c.Port = 0 }},
		{name: "port too high", mutate: func(c *Config) { c.Port = 70000 }},
		{name: "empty model path", mutate: func(c *Config) { c.Model.Path = " " }},
		{name: "confidence above one", mutate: func(c *Config) { c.Model.ConfidenceThreshold = 1.5 }},
		{name: "negative nms", mutate: func(c *Config) { c.Model.NMSThreshold = -0.1 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Inference.Concurrency = 0 }},
		{name: "unknown provider", mutate: func(c *Config) { c.Model.Provider.Backend = "tpu" }},
		{name: "unknown decoder", mutate: func(c *Config) { c.Inference.Decoder = "magick" }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
		{name: "zero upload limit", mutate: func(c *Config) { c.Server.MaxUploadBytes = 0 }},
		{name: "zero pixel limit", mutate: func(c *Config) { c.Server.MaxImagePixels = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Debug = true

	log := cfg.NewLogger()

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	cfg = Default()
	cfg.Log.Format = "json"
	assert.IsType(t, &logrus.JSONFormatter{}, cfg.NewLogger().Formatter)
}
