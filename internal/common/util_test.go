package common

import (
	"testing"
)

// ---------- WipeByteArray ----------

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

// ---------- GenerateRandByteArray ----------

func TestGenerateRandByteArray_Basic(t *testing.T) {
	const n = 24
	buf := GenerateRandByteArray(n)
	if buf == nil {
		t.Fatalf("expected non-nil slice")
	}
	if len(buf) != n {
		t.Fatalf("expected length %d, got %d", n, len(buf))
	}
}

func TestGenerateRandByteArray_EntropyHint(t *testing.T) {
	const n = 32
	a := GenerateRandByteArray(n)
	b := GenerateRandByteArray(n)

	if len(a) != n || len(b) != n {
		t.Fatalf("unexpected lengths: %d, %d", len(a), len(b))
	}

	identical := true
	for i := range a {
		if a[i] != b[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Logf("warning: two GenerateRandByteArray(%d) results are identical; extremely unlikely", n)
	}
}

// ---------- RandomDigits / IsDigits ----------

func TestRandomDigits_Shape(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, err := RandomDigits(OTPLength)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !IsDigits(s, OTPLength) {
			t.Fatalf("expected %d digits, got %q", OTPLength, s)
		}
	}
}

func TestRandomDigits_Unsupported(t *testing.T) {
	if _, err := RandomDigits(0); err == nil {
		t.Fatal("expected error for n=0")
	}
	if _, err := RandomDigits(19); err == nil {
		t.Fatal("expected error for n=19")
	}
}

func TestIsDigits(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want bool
	}{
		{"123456", 6, true},
		{"000000", 6, true},
		{"12345", 6, false},
		{"12345a", 6, false},
		{"", 6, false},
		{" 12345", 6, false},
	}
	for _, c := range cases {
		if got := IsDigits(c.in, c.n); got != c.want {
			t.Fatalf("IsDigits(%q, %d) = %v, want %v", c.in, c.n, got, c.want)
		}
	}
}
