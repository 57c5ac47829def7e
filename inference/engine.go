// Package inference - Inference engine interface and concurrency control.
package inference

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/nvr-ai/verch-scan/detection"
	"github.com/pkg/errors"
)

var (
	// ErrInferenceFailure is returned when the model fails on an otherwise valid image.
	ErrInferenceFailure = errors.New("inference failed")
	// ErrModelLoad is returned when the model cannot be loaded at startup.
	ErrModelLoad = errors.New("model load failed")
)

// Engine defines the interface for ML inference engines
type Engine interface {
	// Infer runs the model on img. Coordinates are in img pixels.
	Infer(ctx context.Context, img image.Image) ([]detection.RawDetection, error)
	// ClassNames returns the label table the model's class indices refer to.
	ClassNames() detection.ClassResolver
	// Close releases the model.
	Close() error
}

// GatedEngine limits concurrent calls into an Engine.
type GatedEngine struct {
	Engine
	gate *Gate
}

// NewGatedEngine wraps engine so that at most gate's capacity of Infer calls
// run at once.
//
// Arguments:
//   - engine: The engine to wrap.
//   - gate: The gate bounding concurrency.
//
// Returns:
//   - *GatedEngine: The wrapped engine.
func NewGatedEngine(engine Engine, gate *Gate) *GatedEngine {
	return &GatedEngine{Engine: engine, gate: gate}
}

// Infer runs the wrapped engine once a slot is free. Engine errors are wrapped
// with ErrInferenceFailure; a cancelled wait returns the context error.
func (g *GatedEngine) Infer(ctx context.Context, img image.Image) ([]detection.RawDetection, error) {
	var out []detection.RawDetection
	err := g.gate.Run(ctx, func() error {
		var err error
		out, err = g.Engine.Infer(ctx, img)
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrInferenceFailure) {
			return nil, err
		}
		return nil, &failure{cause: err}
	}
	return out, nil
}

// failure marks an engine error as ErrInferenceFailure while keeping the
// cause, and its stack trace, in the chain.
type failure struct {
	cause error
}

func (f *failure) Error() string { return ErrInferenceFailure.Error() + ": " + f.cause.Error() }

func (f *failure) Unwrap() error { return f.cause }

func (f *failure) Cause() error { return f.cause }

func (f *failure) Is(target error) bool { return target == ErrInferenceFailure }

// Format prints the cause's stack trace for %+v, like pkg/errors.
func (f *failure) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%+v\n", f.cause)
			io.WriteString(s, ErrInferenceFailure.Error())
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, f.Error())
	case 'q':
		fmt.Fprintf(s, "%q", f.Error())
	}
}

// Gate returns the gate used by g.
func (g *GatedEngine) Gate() *Gate { return g.gate }
