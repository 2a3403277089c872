// Package npy loads per-utterance feature arrays stored as NumPy .npy files:
// 2-D mel/feature matrices and 1-D duration, pitch, energy and voicing arrays.
//
// The header and payload decoding is delegated to npyio; this package narrows
// the dtype surface to the little-endian types the data pipeline emits
// (f4/f8/i4/i8) and widens everything to float32 or int64.
package npy

import (
	"fmt"
	"os"
	"strings"

	"github.com/sbinet/npyio"
)

// Load1D reads a 1-D float array, accepting f4/f8/i4/i8 payloads.
func Load1D(path string) ([]float32, error) {
	r, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	shape := r.Header.Descr.Shape
	if len(shape) != 1 {
		return nil, fmt.Errorf("npy: %s: expected 1-D array, got shape %v", path, shape)
	}

	data, err := readFloats(r, path)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Load1DInt reads a 1-D integer array (durations), accepting i4/i8 payloads.
func Load1DInt(path string) ([]int64, error) {
	r, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	shape := r.Header.Descr.Shape
	if len(shape) != 1 {
		return nil, fmt.Errorf("npy: %s: expected 1-D array, got shape %v", path, shape)
	}

	switch dtype := r.Header.Descr.Type; {
	case strings.HasSuffix(dtype, "i4"):
		var raw []int32
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("npy: %s: read i4 payload: %w", path, err)
		}

		out := make([]int64, len(raw))
		for i, v := range raw {
			out[i] = int64(v)
		}

		return out, nil
	case strings.HasSuffix(dtype, "i8"):
		var raw []int64
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("npy: %s: read i8 payload: %w", path, err)
		}

		return raw, nil
	default:
		return nil, fmt.Errorf("npy: %s: unsupported integer dtype %q", path, dtype)
	}
}

// Load2D reads a 2-D float matrix as a frame-major slice of rows, accepting
// f4/f8 payloads. Fortran-ordered files are rejected.
func Load2D(path string) ([][]float32, error) {
	r, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	if r.Header.Descr.Fortran {
		return nil, fmt.Errorf("npy: %s: fortran-ordered arrays are not supported", path)
	}

	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("npy: %s: expected 2-D array, got shape %v", path, shape)
	}

	flat, err := readFloats(r, path)
	if err != nil {
		return nil, err
	}

	frames, channels := shape[0], shape[1]
	if len(flat) != frames*channels {
		return nil, fmt.Errorf("npy: %s: payload has %d elements, shape %v needs %d", path, len(flat), shape, frames*channels)
	}

	out := make([][]float32, frames)
	for i := range out {
		out[i] = flat[i*channels : (i+1)*channels : (i+1)*channels]
	}

	return out, nil
}

func open(path string) (*npyio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("npy: open %s: %w", path, err)
	}

	r, err := npyio.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("npy: parse header %s: %w", path, err)
	}

	return r, func() { f.Close() }, nil
}

func readFloats(r *npyio.Reader, path string) ([]float32, error) {
	switch dtype := r.Header.Descr.Type; {
	case strings.HasSuffix(dtype, "f4"):
		var raw []float32
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("npy: %s: read f4 payload: %w", path, err)
		}

		return raw, nil
	case strings.HasSuffix(dtype, "f8"):
		var raw []float64
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("npy: %s: read f8 payload: %w", path, err)
		}

		out := make([]float32, len(raw))
		for i, v := range raw {
			out[i] = float32(v)
		}

		return out, nil
	case strings.HasSuffix(dtype, "i4"):
		var raw []int32
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("npy: %s: read i4 payload: %w", path, err)
		}

		out := make([]float32, len(raw))
		for i, v := range raw {
			out[i] = float32(v)
		}

		return out, nil
	case strings.HasSuffix(dtype, "i8"):
		var raw []int64
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("npy: %s: read i8 payload: %w", path, err)
		}

		out := make([]float32, len(raw))
		for i, v := range raw {
			out[i] = float32(v)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("npy: %s: unsupported dtype %q", path, dtype)
	}
}
