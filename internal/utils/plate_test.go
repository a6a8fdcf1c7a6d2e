package utils

import "testing"

func TestNormalizePlate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"CA123GP", "CA123GP"},
		{"ca 123 gp", "CA123GP"},
		{"CA-123-GP", "CA123GP"},
		{"ca_123_gp", "CA123GP"},
		{"  nd 45-67_gp  ", "ND4567GP"},
		{"\tab 1\t", "AB1"},
		{"", ""},
		{" - _ ", ""},
	}

	for _, c := range cases {
		if got := NormalizePlate(c.in); got != c.want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePlateIdempotent(t *testing.T) {
	for _, in := range []string{"ca 123-gp", "X_Y z", "ABC123"} {
		once := NormalizePlate(in)
		if twice := NormalizePlate(once); twice != once {
			t.Errorf("normalising %q twice changed it: %q -> %q", in, once, twice)
		}
	}
}

func TestSamePlate(t *testing.T) {
	if !SamePlate("CA 123 GP", "ca-123-gp") {
		t.Error("expected plates to match after normalisation")
	}
	if SamePlate("CA123GP", "CA123GX") {
		t.Error("expected different plates not to match")
	}
	if SamePlate("", " ") {
		t.Error("empty plates must never match")
	}
}
