// Package padding turns ragged per-utterance sequences into rectangular batch
// tensors: right-padding for 1-D and 2-D arrays, the two-branch duration
// padding policy, and batch-level stacking helpers.
package padding

import (
	"fmt"

	"github.com/example/go-tts-dataprep/internal/tensor"
)

// Pad1DFloat right-pads x to length with fill. length must be >= len(x).
func Pad1DFloat(x []float32, length int, fill float32) ([]float32, error) {
	if length < len(x) {
		return nil, fmt.Errorf("padding: target length %d shorter than input length %d", length, len(x))
	}

	out := make([]float32, length)
	copy(out, x)

	for i := len(x); i < length; i++ {
		out[i] = fill
	}

	return out, nil
}

// Pad1DInt right-pads x to length with fill. length must be >= len(x).
func Pad1DInt(x []int64, length int, fill int64) ([]int64, error) {
	if length < len(x) {
		return nil, fmt.Errorf("padding: target length %d shorter than input length %d", length, len(x))
	}

	out := make([]int64, length)
	copy(out, x)

	for i := len(x); i < length; i++ {
		out[i] = fill
	}

	return out, nil
}

// Pad2D right-pads x along the frame axis (axis 0) to length, filling new
// frames with fill. All rows of x must share one channel width.
func Pad2D(x [][]float32, length int, fill float32) ([][]float32, error) {
	if length < len(x) {
		return nil, fmt.Errorf("padding: target length %d shorter than input length %d", length, len(x))
	}

	if len(x) == 0 {
		return nil, fmt.Errorf("padding: cannot pad empty 2-D input to length %d without a channel width", length)
	}

	channels := len(x[0])
	for i, row := range x {
		if len(row) != channels {
			return nil, fmt.Errorf("padding: ragged 2-D input: row %d has %d channels, row 0 has %d", i, len(row), channels)
		}
	}

	out := make([][]float32, length)
	for i, row := range x {
		out[i] = append([]float32(nil), row...)
	}

	for i := len(x); i < length; i++ {
		row := make([]float32, channels)
		for j := range row {
			row[j] = fill
		}

		out[i] = row
	}

	return out, nil
}

// PadDurations pads a per-symbol duration array to maxSymbols entries.
//
// If the frame sum falls short of maxFrames, one synthetic symbol carrying the
// deficit is appended after the real symbols so the sum reaches maxFrames
// exactly, followed by zero-duration filler up to maxSymbols. Otherwise only
// zero-duration filler is appended and the frame sum is left as-is (it may
// legitimately exceed maxFrames due to rounding upstream).
func PadDurations(duration []int64, maxSymbols, maxFrames int) ([]int64, error) {
	var frames int64
	for _, d := range duration {
		frames += d
	}

	symbols := len(duration)

	if frames < int64(maxFrames) {
		if symbols+1 > maxSymbols {
			return nil, fmt.Errorf("padding: no room for deficit symbol: %d symbols, max %d", symbols, maxSymbols)
		}

		out := make([]int64, maxSymbols)
		copy(out, duration)
		out[symbols] = int64(maxFrames) - frames

		return out, nil
	}

	if symbols > maxSymbols {
		return nil, fmt.Errorf("padding: %d symbols exceed max %d", symbols, maxSymbols)
	}

	out := make([]int64, maxSymbols)
	copy(out, duration)

	return out, nil
}

// RoundUp returns the smallest value >= x that is a multiple of multiple.
// multiple must be positive.
func RoundUp(x, multiple int) int {
	if multiple <= 0 {
		return x
	}

	remainder := x % multiple
	if remainder == 0 {
		return x
	}

	return x + multiple - remainder
}

// StackScalarInt pads every sequence to maxLen with fill and stacks the result
// into a [B, maxLen] int tensor.
func StackScalarInt(seqs [][]int64, maxLen int, fill int64) (*tensor.Int, error) {
	data := make([]int64, 0, len(seqs)*maxLen)

	for i, s := range seqs {
		padded, err := Pad1DInt(s, maxLen, fill)
		if err != nil {
			return nil, fmt.Errorf("padding: sequence %d: %w", i, err)
		}

		data = append(data, padded...)
	}

	return tensor.NewInt(data, []int64{int64(len(seqs)), int64(maxLen)})
}

// StackScalarFloat pads every sequence to maxLen with fill and stacks the
// result into a [B, maxLen] float tensor.
func StackScalarFloat(seqs [][]float32, maxLen int, fill float32) (*tensor.Float, error) {
	data := make([]float32, 0, len(seqs)*maxLen)

	for i, s := range seqs {
		padded, err := Pad1DFloat(s, maxLen, fill)
		if err != nil {
			return nil, fmt.Errorf("padding: sequence %d: %w", i, err)
		}

		data = append(data, padded...)
	}

	return tensor.NewFloat(data, []int64{int64(len(seqs)), int64(maxLen)})
}

// StackTargets pads every frame matrix to maxLen frames with fill and stacks
// the result into a [B, maxLen, C] float tensor. All matrices must share one
// channel width.
func StackTargets(targets [][][]float32, maxLen int, fill float32) (*tensor.Float, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("padding: cannot stack empty target list")
	}

	if len(targets[0]) == 0 {
		return nil, fmt.Errorf("padding: target 0 has no frames")
	}

	channels := len(targets[0][0])
	data := make([]float32, 0, len(targets)*maxLen*channels)

	for i, t := range targets {
		if len(t) > 0 && len(t[0]) != channels {
			return nil, fmt.Errorf("padding: target %d has %d channels, target 0 has %d", i, len(t[0]), channels)
		}

		padded, err := Pad2D(t, maxLen, fill)
		if err != nil {
			return nil, fmt.Errorf("padding: target %d: %w", i, err)
		}

		for _, row := range padded {
			data = append(data, row...)
		}
	}

	return tensor.NewFloat(data, []int64{int64(len(targets)), int64(maxLen), int64(channels)})
}

// StackDurations pads every duration array via PadDurations and stacks the
// result into a [B, maxSymbols] int tensor.
func StackDurations(durations [][]int64, maxSymbols, maxFrames int) (*tensor.Int, error) {
	data := make([]int64, 0, len(durations)*maxSymbols)

	for i, d := range durations {
		padded, err := PadDurations(d, maxSymbols, maxFrames)
		if err != nil {
			return nil, fmt.Errorf("padding: duration %d: %w", i, err)
		}

		data = append(data, padded...)
	}

	return tensor.NewInt(data, []int64{int64(len(durations)), int64(maxSymbols)})
}
