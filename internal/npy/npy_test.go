package npy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

func writeNpy(t *testing.T, name string, v any) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if err := npyio.Write(f, v); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}

	return path
}

func TestLoad1D_Float32(t *testing.T) {
	path := writeNpy(t, "f0.npy", []float32{120.5, 0, 131.25})

	got, err := Load1D(path)
	if err != nil {
		t.Fatalf("Load1D error: %v", err)
	}

	want := []float32{120.5, 0, 131.25}
	if len(got) != len(want) {
		t.Fatalf("len = %d; want %d", len(got), len(want))
	}

	for i, v := range got {
		if v != want[i] {
			t.Fatalf("got[%d] = %v; want %v", i, v, want[i])
		}
	}
}

func TestLoad1D_WidensFloat64(t *testing.T) {
	path := writeNpy(t, "energy.npy", []float64{1.5, 2.5})

	got, err := Load1D(path)
	if err != nil {
		t.Fatalf("Load1D error: %v", err)
	}

	if got[0] != 1.5 || got[1] != 2.5 {
		t.Fatalf("got = %v; want [1.5 2.5]", got)
	}
}

func TestLoad1DInt(t *testing.T) {
	path := writeNpy(t, "duration.npy", []int64{4, 0, 9})

	got, err := Load1DInt(path)
	if err != nil {
		t.Fatalf("Load1DInt error: %v", err)
	}

	if len(got) != 3 || got[0] != 4 || got[1] != 0 || got[2] != 9 {
		t.Fatalf("got = %v; want [4 0 9]", got)
	}
}

func TestLoad1DInt_WidensInt32(t *testing.T) {
	path := writeNpy(t, "duration32.npy", []int32{7, 8})

	got, err := Load1DInt(path)
	if err != nil {
		t.Fatalf("Load1DInt error: %v", err)
	}

	if got[0] != 7 || got[1] != 8 {
		t.Fatalf("got = %v; want [7 8]", got)
	}
}

func TestLoad1DInt_RejectsFloat(t *testing.T) {
	path := writeNpy(t, "notints.npy", []float32{1, 2})

	if _, err := Load1DInt(path); err == nil {
		t.Fatal("expected dtype error for float payload")
	}
}

func TestLoad2D(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	path := writeNpy(t, "mel.npy", m)

	got, err := Load2D(path)
	if err != nil {
		t.Fatalf("Load2D error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("frames = %d; want 3", len(got))
	}

	want := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	for f := range want {
		for c := range want[f] {
			if got[f][c] != want[f][c] {
				t.Fatalf("got[%d][%d] = %v; want %v", f, c, got[f][c], want[f][c])
			}
		}
	}
}

func TestLoad2D_RejectsWrongRank(t *testing.T) {
	path := writeNpy(t, "flat.npy", []float32{1, 2, 3})

	if _, err := Load2D(path); err == nil {
		t.Fatal("expected rank error for 1-D payload")
	}
}

func TestLoad1D_RejectsWrongRank(t *testing.T) {
	path := writeNpy(t, "matrix.npy", mat.NewDense(2, 2, []float64{1, 2, 3, 4}))

	if _, err := Load1D(path); err == nil {
		t.Fatal("expected rank error for 2-D payload")
	}
}

func TestLoad1D_MissingFile(t *testing.T) {
	if _, err := Load1D(filepath.Join(t.TempDir(), "nope.npy")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
