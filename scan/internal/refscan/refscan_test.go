package refscan

import "testing"

func TestScanInclusiveSingleGroup(t *testing.T) {
	// S1: A[i] = 2i+1 for i in [0, 128). Expected B[i] = (i+1)^2.
	a := make([]uint32, 128)
	for i := range a {
		a[i] = uint32(2*i + 1)
	}
	b := Scan(a, false)
	for i := range b {
		want := uint32((i + 1) * (i + 1))
		if b[i] != want {
			t.Fatalf("B[%d] = %d, want %d", i, b[i], want)
		}
	}
	if b[127] != 16384 {
		t.Errorf("B[127] = %d, want 16384", b[127])
	}
}

func TestScanExclusiveSingleGroup(t *testing.T) {
	// S2: same A, exclusive.
	a := make([]uint32, 128)
	for i := range a {
		a[i] = uint32(2*i + 1)
	}
	b := Scan(a, true)
	if b[0] != 0 {
		t.Errorf("B[0] = %d, want 0", b[0])
	}
	if b[1] != 1 {
		t.Errorf("B[1] = %d, want 1", b[1])
	}
	if b[127] != 16129 {
		t.Errorf("B[127] = %d, want 16129", b[127])
	}
}

func TestScanTwoLevelInclusive(t *testing.T) {
	// S3: A of length 1024, all ones. Expected B[i] = i+1.
	a := make([]uint32, 1024)
	for i := range a {
		a[i] = 1
	}
	b := Scan(a, false)
	for i := range b {
		want := uint32(i + 1)
		if b[i] != want {
			t.Fatalf("B[%d] = %d, want %d", i, b[i], want)
		}
	}
}

func TestScanUnalignedInclusive(t *testing.T) {
	// S6: A of length 200, A[i] = i. Expected B[i] = i(i+1)/2.
	a := make([]uint32, 200)
	for i := range a {
		a[i] = uint32(i)
	}
	b := Scan(a, false)
	for i := range b {
		want := uint32(i * (i + 1) / 2)
		if b[i] != want {
			t.Fatalf("B[%d] = %d, want %d", i, b[i], want)
		}
	}
	if b[199] != 19900 {
		t.Errorf("B[199] = %d, want 19900", b[199])
	}
}

func TestScanZeroLength(t *testing.T) {
	// P6: N = 0 completes without fault.
	b := Scan(nil, false)
	if len(b) != 0 {
		t.Errorf("expected empty output, got %d elements", len(b))
	}
}

func TestScanIdempotent(t *testing.T) {
	// P4: scanning twice with the same input produces identical output.
	a := make([]uint32, 513)
	for i := range a {
		a[i] = uint32(i % 7)
	}
	b1 := Scan(a, false)
	b2 := Scan(a, false)
	for i := range b1 {
		if b1[i] != b2[i] {
			t.Fatalf("non-idempotent at %d: %d vs %d", i, b1[i], b2[i])
		}
	}
}
