package audio

import "fmt"

// ReflectPadEnd appends n samples mirrored around the final sample, so
// trailing analysis frames have full context. Mirrors numpy's
// pad(x, (0, n), mode="reflect"): the last sample itself is not repeated.
// Requires len(x) > n.
func ReflectPadEnd(x []float32, n int) ([]float32, error) {
	if n < 0 {
		return nil, fmt.Errorf("audio: negative reflection pad %d", n)
	}

	if n >= len(x) {
		return nil, fmt.Errorf("audio: reflection pad %d requires input longer than pad, got %d samples", n, len(x))
	}

	out := make([]float32, len(x)+n)
	copy(out, x)

	last := len(x) - 1
	for i := 0; i < n; i++ {
		out[len(x)+i] = x[last-1-i]
	}

	return out, nil
}
