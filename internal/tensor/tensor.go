// Package tensor provides dense, row-major batch tensors produced by the
// collators. Float carries continuous features (mel targets, pitch, priors),
// Int carries symbol ids, durations, masks and length vectors.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Float is a dense, row-major float32 tensor.
type Float struct {
	shape []int64
	data  []float32
}

// Int is a dense, row-major int64 tensor.
type Int struct {
	shape []int64
	data  []int64
}

// NewFloat creates a float tensor from data and shape.
func NewFloat(data []float32, shape []int64) (*Float, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	s := append([]int64(nil), shape...)
	d := append([]float32(nil), data...)

	return &Float{shape: s, data: d}, nil
}

// NewInt creates an int tensor from data and shape.
func NewInt(data []int64, shape []int64) (*Int, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	s := append([]int64(nil), shape...)
	d := append([]int64(nil), data...)

	return &Int{shape: s, data: d}, nil
}

// ZerosFloat creates a zero-initialized float tensor.
func ZerosFloat(shape []int64) (*Float, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Float{
		shape: append([]int64(nil), shape...),
		data:  make([]float32, total),
	}, nil
}

// ZerosInt creates a zero-initialized int tensor.
func ZerosInt(shape []int64) (*Int, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Int{
		shape: append([]int64(nil), shape...),
		data:  make([]int64, total),
	}, nil
}

func (t *Float) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

func (t *Int) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the underlying tensor data.
func (t *Float) Data() []float32 {
	if t == nil {
		return nil
	}

	return append([]float32(nil), t.data...)
}

// Data returns a copy of the underlying tensor data.
func (t *Int) Data() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.data...)
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only.
func (t *Float) RawData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only.
func (t *Int) RawData() []int64 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Float) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Int) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Float) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

func (t *Int) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// At reads the element at coord. The coordinate rank must match the tensor rank.
func (t *Float) At(coord ...int64) (float32, error) {
	off, err := t.offset(coord)
	if err != nil {
		return 0, err
	}

	return t.data[off], nil
}

// SetAt writes the element at coord.
func (t *Float) SetAt(v float32, coord ...int64) error {
	off, err := t.offset(coord)
	if err != nil {
		return err
	}

	t.data[off] = v

	return nil
}

// At reads the element at coord.
func (t *Int) At(coord ...int64) (int64, error) {
	off, err := offsetFor(t.shape, coord)
	if err != nil {
		return 0, err
	}

	return t.data[off], nil
}

// SetAt writes the element at coord.
func (t *Int) SetAt(v int64, coord ...int64) error {
	off, err := offsetFor(t.shape, coord)
	if err != nil {
		return err
	}

	t.data[off] = v

	return nil
}

func (t *Float) offset(coord []int64) (int64, error) {
	if t == nil {
		return 0, errors.New("tensor: access on nil tensor")
	}

	return offsetFor(t.shape, coord)
}

func offsetFor(shape, coord []int64) (int64, error) {
	if len(coord) != len(shape) {
		return 0, fmt.Errorf("tensor: coordinate %v does not match rank %d", coord, len(shape))
	}

	strides := computeStrides(shape)

	var off int64
	for i, c := range coord {
		if c < 0 || c >= shape[i] {
			return 0, fmt.Errorf("tensor: coordinate %v out of bounds for shape %v", coord, shape)
		}

		off += c * strides[i]
	}

	return off, nil
}

// StackLast stacks rank-2 int tensors of identical shape [B, L] into a single
// [B, L, len(ts)] tensor, interleaving them along a new trailing axis.
func StackLast(ts []*Int) (*Int, error) {
	if len(ts) == 0 {
		return nil, errors.New("tensor: stack requires at least one tensor")
	}

	first := ts[0]
	if first == nil {
		return nil, errors.New("tensor: stack tensor 0 is nil")
	}

	if first.Rank() != 2 {
		return nil, fmt.Errorf("tensor: stack requires rank 2, got %d", first.Rank())
	}

	for i, t := range ts {
		if t == nil {
			return nil, fmt.Errorf("tensor: stack tensor %d is nil", i)
		}

		if !equalShape(t.shape, first.shape) {
			return nil, fmt.Errorf("tensor: stack tensor %d shape %v does not match base shape %v", i, t.shape, first.shape)
		}
	}

	n := int64(len(ts))
	outShape := []int64{first.shape[0], first.shape[1], n}

	out, err := ZerosInt(outShape)
	if err != nil {
		return nil, err
	}

	for i, t := range ts {
		for j, v := range t.data {
			out.data[int64(j)*n+int64(i)] = v
		}
	}

	return out, nil
}

func shapeElemCount(shape []int64) (int, error) {
	total := int64(1)

	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: shape %v has negative dimension at %d", shape, i)
		}

		total *= d
		if total > math.MaxInt32 && total > math.MaxInt64/2 {
			return 0, fmt.Errorf("tensor: shape %v too large", shape)
		}
	}

	if total > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("tensor: shape %v exceeds platform int size", shape)
	}

	return int(total), nil
}

func computeStrides(shape []int64) []int64 {
	if len(shape) == 0 {
		return nil
	}

	strides := make([]int64, len(shape))

	stride := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	return strides
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
