package format

import "testing"

func TestAlignUp(t *testing.T) {
	tests := []struct {
		v, align, want uint64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{9, 16, 16},
		{17, 16, 32},
		{4095, 4096, 4096},
		{4097, 4096, 8192},
		{5, 1, 5},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.v, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
		if got := AlignUpPtr(uintptr(tt.v), uintptr(tt.align)); got != uintptr(tt.want) {
			t.Errorf("AlignUpPtr(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
	}
}

func TestAlign8(t *testing.T) {
	for n, want := range map[uint64]uint64{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 100: 104} {
		if got := Align8(n); got != want {
			t.Errorf("Align8(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uint64{1, 2, 4, 8, 4096, 1 << 40} {
		if !IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = false", n)
		}
	}
	for _, n := range []uint64{0, 3, 6, 12, 4097} {
		if IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = true", n)
		}
	}
}

func TestIsAligned(t *testing.T) {
	if !IsAligned(0x1000, 0x1000) || !IsAligned(24, 8) {
		t.Fatal("expected aligned")
	}
	if IsAligned(20, 8) {
		t.Fatal("20 is not 8-aligned")
	}
}
