package tensor

import (
	"strings"
	"testing"
)

func TestNewFloat_ShapeMismatch(t *testing.T) {
	_, err := NewFloat([]float32{1, 2, 3}, []int64{2, 2})
	if err == nil || !strings.Contains(err.Error(), "does not match shape") {
		t.Fatalf("expected shape mismatch error, got: %v", err)
	}
}

func TestNewInt_CopiesData(t *testing.T) {
	src := []int64{1, 2, 3, 4}

	ti, err := NewInt(src, []int64{2, 2})
	if err != nil {
		t.Fatalf("NewInt error: %v", err)
	}

	src[0] = 99
	if got := ti.Data()[0]; got != 1 {
		t.Fatalf("tensor shares caller data: got %d, want 1", got)
	}
}

func TestZerosFloat(t *testing.T) {
	tf, err := ZerosFloat([]int64{3, 4})
	if err != nil {
		t.Fatalf("ZerosFloat error: %v", err)
	}

	if tf.ElemCount() != 12 {
		t.Fatalf("ElemCount = %d; want 12", tf.ElemCount())
	}

	for i, v := range tf.RawData() {
		if v != 0 {
			t.Fatalf("element %d = %v; want 0", i, v)
		}
	}
}

func TestFloat_AtSetAt(t *testing.T) {
	tf, err := ZerosFloat([]int64{2, 3})
	if err != nil {
		t.Fatalf("ZerosFloat error: %v", err)
	}

	if err := tf.SetAt(7.5, 1, 2); err != nil {
		t.Fatalf("SetAt error: %v", err)
	}

	got, err := tf.At(1, 2)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}

	if got != 7.5 {
		t.Fatalf("At(1,2) = %v; want 7.5", got)
	}

	if _, err := tf.At(2, 0); err == nil {
		t.Fatal("expected out-of-bounds error")
	}

	if _, err := tf.At(1); err == nil {
		t.Fatal("expected rank mismatch error")
	}
}

func TestStackLast(t *testing.T) {
	a, err := NewInt([]int64{1, 2, 3, 4}, []int64{2, 2})
	if err != nil {
		t.Fatalf("NewInt error: %v", err)
	}

	b, err := NewInt([]int64{10, 20, 30, 40}, []int64{2, 2})
	if err != nil {
		t.Fatalf("NewInt error: %v", err)
	}

	out, err := StackLast([]*Int{a, b})
	if err != nil {
		t.Fatalf("StackLast error: %v", err)
	}

	wantShape := []int64{2, 2, 2}
	if got := out.Shape(); !equalShape(got, wantShape) {
		t.Fatalf("shape = %v; want %v", got, wantShape)
	}

	want := []int64{1, 10, 2, 20, 3, 30, 4, 40}
	for i, v := range out.RawData() {
		if v != want[i] {
			t.Fatalf("data[%d] = %d; want %d", i, v, want[i])
		}
	}
}

func TestStackLast_ShapeMismatch(t *testing.T) {
	a, _ := ZerosInt([]int64{2, 2})
	b, _ := ZerosInt([]int64{2, 3})

	_, err := StackLast([]*Int{a, b})
	if err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Fatalf("expected shape mismatch error, got: %v", err)
	}
}
