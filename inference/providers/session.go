package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// InitializeEnvironment loads the onnxruntime shared library and prepares the
// process-wide runtime environment. Calling it again after a successful
// initialization is a no-op.
//
// Arguments:
//   - libPath: The shared library path, or empty for the platform default.
//   - verbose: Enable verbose native logging.
//
// Returns:
//   - error: If the library is missing or the environment cannot be created.
func InitializeEnvironment(libPath string, verbose bool) error {
	if ort.IsInitialized() {
		return nil
	}

	path, err := GetSharedLibPath(libPath)
	if err != nil {
		return err
	}
	if err := checkLibrary(path); err != nil {
		return err
	}

	// Point ONNX Runtime to the exact shared library path (overrides default search).
	ort.SetSharedLibraryPath(path)

	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}

	level := ort.LoggingLevel(ort.LoggingLevelWarning)
	if verbose {
		level = ort.LoggingLevel(ort.LoggingLevelVerbose)
	}
	if err := ort.SetEnvironmentLogLevel(level); err != nil {
		return errors.Wrap(err, "error setting ORT log level")
	}

	return nil
}

// DestroyEnvironment tears down the runtime environment if it was initialized.
func DestroyEnvironment() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// NewSessionOptions builds session options for cfg, including the execution
// provider. The caller must Destroy the result.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: The configured options.
//   - error: If a setting is invalid or the provider cannot be enabled.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	level, err := ParseGraphOptimizationLevel(cfg.Optimization.GraphOptimizationLevel)
	if err != nil {
		return nil, err
	}
	mode, err := ParseExecutionMode(cfg.Optimization.ExecutionMode)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := configure(options, cfg, level, mode); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}

func configure(options *ort.SessionOptions, cfg Config, level ort.GraphOptimizationLevel, mode ort.ExecutionMode) error {
	if err := options.SetIntraOpNumThreads(cfg.Optimization.IntraOpNumThreads); err != nil {
		return errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.Optimization.InterOpNumThreads); err != nil {
		return errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}
	if err := options.SetExecutionMode(mode); err != nil {
		return errors.Wrap(err, "error setting execution mode")
	}

	switch cfg.Backend {
	case "", CPUProviderBackend:
		// The CPU provider is always registered.
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(cfg.CoreML.Flags()); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(cfg.OpenVINO.ToMap()); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case CUDAProviderBackend:
		cuda, err := cfg.CUDA.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	default:
		return errors.Errorf("unsupported execution provider %q", cfg.Backend)
	}

	return nil
}
