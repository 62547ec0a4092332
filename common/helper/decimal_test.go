package helper

import (
	"testing"
)

func TestCentsToString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{100, "1.00"},
		{12345, "123.45"},
		{-250, "-2.50"},
	}
	for _, c := range cases {
		if got := CentsToString(c.cents); got != c.want {
			t.Fatalf("CentsToString(%d) = %s, want %s", c.cents, got, c.want)
		}
	}
}

func TestStringToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"0.01", 1},
		{"1", 100},
		{"1.5", 150},
		{"123.45", 12345},
	}
	for _, c := range cases {
		got, err := StringToCents(c.in)
		if err != nil {
			t.Fatalf("StringToCents(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("StringToCents(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestStringToCentsRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "1.234", "0.001"} {
		if _, err := StringToCents(in); err == nil {
			t.Fatalf("StringToCents(%q) should fail", in)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 101, 999999} {
		s := CentsToString(cents)
		back, err := StringToCents(s)
		if err != nil {
			t.Fatalf("round trip %d -> %s failed: %v", cents, s, err)
		}
		if back != cents {
			t.Fatalf("round trip %d -> %s -> %d", cents, s, back)
		}
	}
}
