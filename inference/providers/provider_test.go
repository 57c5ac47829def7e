package providers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderBackend
		wantErr bool
	}{
		{in: "", want: CPUProviderBackend},
		{in: "CPU", want: CPUProviderBackend},
		{in: " cuda ", want: CUDAProviderBackend},
		{in: "coreml", want: CoreMLProviderBackend},
		{in: "openvino", want: OpenVINOProviderBackend},
		{in: "tpu", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptimizationConfig(t *testing.T) {
	assert.NoError(t, DefaultOptimizationConfig().Validate())

	level, err := ParseGraphOptimizationLevel("all")
	require.NoError(t, err)
	assert.Equal(t, ort.GraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll), level)

	mode, err := ParseExecutionMode("parallel")
	require.NoError(t, err)
	assert.Equal(t, ort.ExecutionMode(ort.ExecutionModeParallel), mode)

	assert.Error(t, OptimizationConfig{GraphOptimizationLevel: "max"}.Validate())
	assert.Error(t, OptimizationConfig{ExecutionMode: "async"}.Validate())
	assert.Error(t, OptimizationConfig{IntraOpNumThreads: -1}.Validate())
}

func TestCUDAOptionsToMap(t *testing.T) {
	m := CUDAOptions{DeviceID: 1, UseTF32: true, CudnnConvAlgoSearch: "HEURISTIC"}.ToMap()

	assert.Equal(t, map[string]string{
		"device_id":                 "1",
		"do_copy_in_default_stream": "0",
		"use_tf32":                  "1",
		"cudnn_conv_algo_search":    "HEURISTIC",
	}, m)
}

func TestCoreMLFlags(t *testing.T) {
	assert.Equal(t, uint32(0), CoreMLOptions{}.Flags())
	assert.Equal(t, uint32(0x011), CoreMLOptions{CPUOnly: true, CreateMLProgram: true}.Flags())
}

func TestOpenVINOOptionsToMap(t *testing.T) {
	assert.Empty(t, OpenVINOOptions{}.ToMap())
	assert.Equal(t, map[string]string{
		"device_type":    "GPU",
		"precision":      "FP16",
		"num_of_threads": "4",
	}, OpenVINOOptions{DeviceType: "GPU", Precision: "FP16", NumOfThreads: 4}.ToMap())
}

func TestGetSharedLibPath(t *testing.T) {
	path, err := GetSharedLibPath("/opt/ort/libonnxruntime.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", path)

	assert.Error(t, checkLibrary(filepath.Join(t.TempDir(), "missing.so")))
}
