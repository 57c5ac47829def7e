package providers

import (
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains ONNX Runtime session tuning.
type OptimizationConfig struct {
	// GraphOptimizationLevel is one of disable_all, basic, extended or all.
	GraphOptimizationLevel string `json:"graph_optimization_level" yaml:"graph_optimization_level"`

	// ExecutionMode is sequential or parallel.
	ExecutionMode string `json:"execution_mode" yaml:"execution_mode"`

	// IntraOpNumThreads sets threads for parallelizing ops. 0 lets ONNX Runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. 0 lets ONNX Runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
}

// DefaultOptimizationConfig enables extended graph rewrites with runtime-chosen thread counts.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: "extended",
		ExecutionMode:          "sequential",
	}
}

// ParseGraphOptimizationLevel maps a level name to the runtime constant.
func ParseGraphOptimizationLevel(name string) (ort.GraphOptimizationLevel, error) {
	switch strings.ToLower(name) {
	case "disable_all", "none":
		return ort.GraphOptimizationLevelDisableAll, nil
	case "basic":
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "", "extended":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case "all":
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", name)
	}
}

// ParseExecutionMode maps an execution mode name to the runtime constant.
func ParseExecutionMode(name string) (ort.ExecutionMode, error) {
	switch strings.ToLower(name) {
	case "", "sequential":
		return ort.ExecutionModeSequential, nil
	case "parallel":
		return ort.ExecutionModeParallel, nil
	default:
		return 0, errors.Errorf("unknown execution mode %q", name)
	}
}

// Validate checks that every field parses.
func (c OptimizationConfig) Validate() error {
	if _, err := ParseGraphOptimizationLevel(c.GraphOptimizationLevel); err != nil {
		return err
	}
	if _, err := ParseExecutionMode(c.ExecutionMode); err != nil {
		return err
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return errors.Errorf("thread counts must not be negative (intra %d, inter %d)",
			c.IntraOpNumThreads, c.InterOpNumThreads)
	}
	return nil
}
