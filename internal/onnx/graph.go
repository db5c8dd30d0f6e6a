// Package onnx wraps ONNX Runtime sessions behind a narrow tensor-function
// interface so the pipeline never depends on a specific inference backend.
package onnx

import "context"

// Graph is an opaque tensor function: named input tensors in, named output
// tensors out. Both inference engines (G2P and acoustic) depend only on this
// contract, which keeps them testable against fake graphs.
type Graph interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Close()
}
