package onnx

import (
	"strings"
	"testing"
)

func TestNewTensorInt64(t *testing.T) {
	tensor, err := NewTensor([]int64{1, 2, 3, 4, 5, 6}, []int64{2, 3})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	if tensor.DType() != DTypeInt64 {
		t.Errorf("DType = %s; want int64", tensor.DType())
	}

	shape := tensor.Shape()
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Errorf("Shape = %v; want [2 3]", shape)
	}

	data, err := ExtractInt64(tensor)
	if err != nil {
		t.Fatalf("ExtractInt64: %v", err)
	}

	if len(data) != 6 || data[0] != 1 || data[5] != 6 {
		t.Errorf("data = %v", data)
	}
}

func TestNewTensorFloat32(t *testing.T) {
	tensor, err := NewTensor([]float32{0.5, -0.5}, []int64{1, 2})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	if tensor.DType() != DTypeFloat32 {
		t.Errorf("DType = %s; want float32", tensor.DType())
	}

	if _, err := ExtractInt64(tensor); err == nil {
		t.Error("ExtractInt64 on float32 tensor should fail")
	}
}

func TestNewTensorShapeMismatch(t *testing.T) {
	_, err := NewTensor([]int64{1, 2, 3}, []int64{2, 2})
	if err == nil {
		t.Fatal("expected shape/data mismatch error")
	}

	if !strings.Contains(err.Error(), "expects 4 elements") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewTensorRejectsNonPositiveDims(t *testing.T) {
	_, err := NewTensor([]float32{}, []int64{0})
	if err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestTensorDataIsCopied(t *testing.T) {
	src := []int64{7, 8}
	tensor, err := NewTensor(src, []int64{2})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	src[0] = 99

	data, err := ExtractInt64(tensor)
	if err != nil {
		t.Fatalf("ExtractInt64: %v", err)
	}

	if data[0] != 7 {
		t.Errorf("tensor aliased caller slice: data[0] = %d", data[0])
	}

	// Mutating the extracted copy must not affect later reads either.
	data[1] = 42
	again, _ := ExtractInt64(tensor)
	if again[1] != 8 {
		t.Errorf("ExtractInt64 returned aliasing slice: %v", again)
	}
}

func TestScalarShape(t *testing.T) {
	tensor, err := NewTensor([]int64{5}, nil)
	if err != nil {
		t.Fatalf("NewTensor scalar: %v", err)
	}

	if len(tensor.Shape()) != 0 {
		t.Errorf("scalar shape = %v; want empty", tensor.Shape())
	}
}
